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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/adak/pkg/wire"
)

// adminRequestTimeout bounds the non-streaming admin calls. The backup
// stream sets its own deadline via context.
const adminRequestTimeout = 30 * time.Second

// AdminUser mirrors the relay's user listing, credential-free.
type AdminUser struct {
	Username    string `json:"username"`
	CreatedAtMs int64  `json:"created_at_ms"`
	LastLoginMs int64  `json:"last_login_ms,omitempty"`
}

// ImportSummary mirrors the relay's CSV import result.
type ImportSummary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// AdminClient talks to the relay's bearer-token admin API.
//
// # Thread Safety
//
// Safe for concurrent use; it holds no mutable state.
type AdminClient struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewAdminClient creates a client for the relay at baseURL
// (http://host:port).
func NewAdminClient(baseURL, token string) *AdminClient {
	return &AdminClient{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: adminRequestTimeout},
	}
}

// do issues one authenticated request and decodes the JSON reply into
// out (when out is non-nil). Non-2xx replies surface the relay's error
// message.
func (c *AdminClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	// JoinPath escapes '?', so the query string rides separately.
	pathOnly, rawQuery, _ := strings.Cut(path, "?")
	u, err := url.JoinPath(c.baseURL, pathOnly)
	if err != nil {
		return fmt.Errorf("bad server URL %q: %w", c.baseURL, err)
	}
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeAPIError turns a non-2xx admin reply into a readable error.
func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("relay: %s (%s)", payload.Error, resp.Status)
	}
	return fmt.Errorf("relay: %s", resp.Status)
}

// ListUsers fetches every registered user.
func (c *AdminClient) ListUsers(ctx context.Context) ([]AdminUser, error) {
	var payload struct {
		Users []AdminUser `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/users", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Users, nil
}

// ListActive fetches the currently connected usernames.
func (c *AdminClient) ListActive(ctx context.Context) ([]string, error) {
	var payload struct {
		Active []string `json:"active"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/active", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Active, nil
}

// History fetches up to limit recent room messages, newest first. limit
// <= 0 uses the relay's default.
func (c *AdminClient) History(ctx context.Context, limit int) ([]wire.ChatMessage, error) {
	path := "/v1/admin/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var payload struct {
		Messages []wire.ChatMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}

// ImportUsers posts a legacy username,password CSV through the
// migration endpoint.
func (c *AdminClient) ImportUsers(ctx context.Context, csvPath string) (ImportSummary, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	var result ImportSummary
	if err := c.do(ctx, http.MethodPost, "/v1/admin/users/import", f, &result); err != nil {
		return ImportSummary{}, err
	}
	return result, nil
}

// DownloadBackup streams the relay's badger backup into w.
//
// # Description
//
// The request bypasses the default client timeout since a backup of a
// long-lived store can outlast 30 seconds; bound it with ctx instead.
func (c *AdminClient) DownloadBackup(ctx context.Context, w io.Writer) (int64, error) {
	u, err := url.JoinPath(c.baseURL, "/v1/admin/backup")
	if err != nil {
		return 0, fmt.Errorf("bad server URL %q: %w", c.baseURL, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("backup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeAPIError(resp)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("backup stream interrupted after %d bytes: %w", n, err)
	}
	return n, nil
}
