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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adak/pkg/ux"
	"github.com/AleutianAI/adak/pkg/wire"
)

// newTestRenderer renders into a buffer in machine mode so assertions
// see plain text.
func newTestRenderer() *ux.ChatRenderer {
	return ux.NewChatRendererWithWriter(&bytes.Buffer{}, ux.PersonalityMachine)
}

// newDisconnectedClient builds a client that buffers sends; good enough
// for driving the runner loop without a relay.
func newDisconnectedClient() *ChatClient {
	creds := NewCredentials("alice", []byte("pw"))
	return NewChatClient("ws://127.0.0.1:1/ws/chat", creds, newTestRenderer())
}

// pendingContents snapshots the offline buffer.
func pendingContents(c *ChatClient) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.pending))
	for i, msg := range c.pending {
		out[i] = msg.Content
	}
	return out
}

func TestChatRunner_SendsLines(t *testing.T) {
	client := newDisconnectedClient()
	reader := NewMockInputReader([]string{"hello", "world"})
	runner := NewChatRunner(client, reader, newTestRenderer())

	err := runner.Run(context.Background())
	require.NoError(t, err) // EOF after the inputs is a clean exit

	assert.Equal(t, []string{"hello", "world"}, pendingContents(client))
}

func TestChatRunner_QuitStopsBeforeRemainingInput(t *testing.T) {
	client := newDisconnectedClient()
	reader := NewMockInputReader([]string{"first", wire.QuitCommand, "never sent"})
	runner := NewChatRunner(client, reader, newTestRenderer())

	err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"first"}, pendingContents(client))
}

func TestChatRunner_SkipsEmptyLines(t *testing.T) {
	client := newDisconnectedClient()
	reader := NewMockInputReader([]string{"", "real", ""})
	runner := NewChatRunner(client, reader, newTestRenderer())

	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, []string{"real"}, pendingContents(client))
}

func TestChatRunner_ContextCancelled(t *testing.T) {
	client := newDisconnectedClient()
	reader := NewMockInputReader([]string{"queued"})
	runner := NewChatRunner(client, reader, newTestRenderer())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChatRunner_ClientErrorEndsRun(t *testing.T) {
	client := newDisconnectedClient()
	client.finish(io.ErrUnexpectedEOF)

	reader := NewMockInputReader([]string{"won't matter"})
	runner := NewChatRunner(client, reader, newTestRenderer())

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMockInputReader_EOFWhenExhausted(t *testing.T) {
	reader := NewMockInputReader([]string{"only"})

	line, err := reader.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "only", line)

	_, err = reader.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestChatClient_SendWhileClosedFails(t *testing.T) {
	client := newDisconnectedClient()
	require.NoError(t, client.Close())

	err := client.Send("too late")
	assert.Error(t, err)
}

func TestChatClient_OfflineBufferBounded(t *testing.T) {
	client := newDisconnectedClient()

	for i := 0; i < maxPendingMessages; i++ {
		require.NoError(t, client.Send("fits"))
	}
	assert.Error(t, client.Send("overflows"))
}
