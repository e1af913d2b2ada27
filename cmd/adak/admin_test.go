// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRelay stands in for the admin API. It records the last request
// and answers with canned JSON.
type fakeRelay struct {
	t         *testing.T
	wantToken string

	lastPath string
	lastBody []byte

	status int
	body   string
}

func (f *fakeRelay) handler(w http.ResponseWriter, r *http.Request) {
	f.lastPath = r.URL.String()
	if r.Body != nil {
		f.lastBody, _ = io.ReadAll(r.Body)
	}

	if r.Header.Get("Authorization") != "Bearer "+f.wantToken {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.status)
	w.Write([]byte(f.body))
}

func newFakeRelay(t *testing.T, status int, body string) (*fakeRelay, *AdminClient) {
	t.Helper()
	f := &fakeRelay{t: t, wantToken: "sekret", status: status, body: body}
	ts := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(ts.Close)
	return f, NewAdminClient(ts.URL, "sekret")
}

func TestAdminClient_ListUsers(t *testing.T) {
	f, client := newFakeRelay(t, http.StatusOK,
		`{"users":[{"username":"alice","created_at_ms":1}],"count":1}`)

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "/v1/admin/users", f.lastPath)
}

func TestAdminClient_ListActive(t *testing.T) {
	_, client := newFakeRelay(t, http.StatusOK, `{"active":["alice","bob"],"count":2}`)

	active, err := client.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, active)
}

func TestAdminClient_History_LimitParam(t *testing.T) {
	f, client := newFakeRelay(t, http.StatusOK,
		`{"messages":[{"sender":"alice","content":"hi","timestamp":1}],"count":1}`)

	messages, err := client.History(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, "/v1/admin/history?limit=5", f.lastPath)
}

func TestAdminClient_History_NoLimit(t *testing.T) {
	f, client := newFakeRelay(t, http.StatusOK, `{"messages":[],"count":0}`)

	_, err := client.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "/v1/admin/history", f.lastPath)
}

func TestAdminClient_WrongToken(t *testing.T) {
	f, _ := newFakeRelay(t, http.StatusOK, `{}`)
	ts := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(ts.Close)
	client := NewAdminClient(ts.URL, "wrong")

	_, err := client.ListUsers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestAdminClient_ServerErrorSurfaced(t *testing.T) {
	_, client := newFakeRelay(t, http.StatusInternalServerError,
		`{"error":"failed to list users"}`)

	_, err := client.ListUsers(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list users")
}

func TestAdminClient_ImportUsers(t *testing.T) {
	f, client := newFakeRelay(t, http.StatusOK, `{"imported":2,"skipped":1,"total":3}`)

	csvPath := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("alice,pw\nbob,pw\n"), 0600))

	result, err := client.ImportUsers(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "alice,pw\nbob,pw\n", string(f.lastBody))
}

func TestAdminClient_ImportUsers_MissingFile(t *testing.T) {
	_, client := newFakeRelay(t, http.StatusOK, `{}`)

	_, err := client.ImportUsers(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestAdminClient_DownloadBackup(t *testing.T) {
	_, client := newFakeRelay(t, http.StatusOK, "binary-backup-bytes")

	var buf bytes.Buffer
	n, err := client.DownloadBackup(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("binary-backup-bytes")), n)
	assert.Equal(t, "binary-backup-bytes", buf.String())
}
