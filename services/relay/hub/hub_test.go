// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/adak/pkg/wire"
)

func newTestHub() *Hub {
	return New(Config{})
}

// drainOne receives a single frame from a client without blocking the
// test forever on a bug.
func drainOne(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case frame, ok := <-c.Send:
		require.True(t, ok, "send channel closed unexpectedly")
		return frame
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func TestJoin_AndLeave(t *testing.T) {
	h := newTestHub()

	alice, err := h.Join("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.Username)
	assert.True(t, h.IsActive("alice"))
	assert.Equal(t, 1, h.Len())

	h.Leave(alice)
	assert.False(t, h.IsActive("alice"))
	assert.Equal(t, 0, h.Len())

	// The send channel closes on leave.
	_, ok := <-alice.Send
	assert.False(t, ok)
}

func TestJoin_DuplicateUsername(t *testing.T) {
	h := newTestHub()

	_, err := h.Join("alice")
	require.NoError(t, err)

	_, err = h.Join("alice")
	assert.ErrorIs(t, err, ErrAlreadyLoggedIn)
}

func TestJoin_ConcurrentSameUsername_OneWinner(t *testing.T) {
	h := newTestHub()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.Join("alice")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyLoggedIn)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, h.Len())
}

func TestLeave_Twice(t *testing.T) {
	h := newTestHub()

	alice, err := h.Join("alice")
	require.NoError(t, err)

	h.Leave(alice)
	h.Leave(alice) // must not panic on the closed channel
	assert.Equal(t, 0, h.Len())
}

func TestLeave_StaleSessionDoesNotDropSuccessor(t *testing.T) {
	h := newTestHub()

	old, err := h.Join("alice")
	require.NoError(t, err)
	h.Leave(old)

	replacement, err := h.Join("alice")
	require.NoError(t, err)

	// A late Leave from the dead session must not evict the new one.
	h.Leave(old)
	assert.True(t, h.IsActive("alice"))
	h.Leave(replacement)
}

func TestBroadcast_SkipsSender(t *testing.T) {
	h := newTestHub()

	_, err := h.Join("alice")
	require.NoError(t, err)
	bob, err := h.Join("bob")
	require.NoError(t, err)
	carol, err := h.Join("carol")
	require.NoError(t, err)

	sent := h.Broadcast([]byte("frame"), "alice")
	assert.Equal(t, 2, sent)

	assert.Equal(t, []byte("frame"), drainOne(t, bob))
	assert.Equal(t, []byte("frame"), drainOne(t, carol))
}

func TestBroadcast_EmptyExceptReachesEveryone(t *testing.T) {
	h := newTestHub()

	alice, err := h.Join("alice")
	require.NoError(t, err)
	bob, err := h.Join("bob")
	require.NoError(t, err)

	sent := h.Broadcast([]byte("frame"), "")
	assert.Equal(t, 2, sent)
	drainOne(t, alice)
	drainOne(t, bob)
}

func TestSendTo(t *testing.T) {
	h := newTestHub()

	bob, err := h.Join("bob")
	require.NoError(t, err)

	require.NoError(t, h.SendTo("bob", []byte("psst")))
	assert.Equal(t, []byte("psst"), drainOne(t, bob))

	assert.ErrorIs(t, h.SendTo("nobody", []byte("psst")), ErrNotConnected)
}

func TestBroadcast_DropsSlowConsumer(t *testing.T) {
	h := newTestHub()

	_, err := h.Join("alice")
	require.NoError(t, err)
	_, err = h.Join("slow")
	require.NoError(t, err)

	// Fill slow's buffer past capacity; nobody drains it.
	for i := 0; i <= sendBufferSize; i++ {
		h.Broadcast([]byte("spam"), "alice")
	}

	assert.False(t, h.IsActive("slow"))
	assert.True(t, h.IsActive("alice"))
}

func TestActive_Sorted(t *testing.T) {
	h := newTestHub()

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := h.Join(name)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"alice", "bob", "carol"}, h.Active())
}

func TestAllow_RateLimitsAfterBurst(t *testing.T) {
	h := New(Config{MessagesPerSecond: 1, Burst: 3})

	alice, err := h.Join("alice")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.True(t, h.Allow(alice), "message %d should pass within burst", i)
	}
	assert.False(t, h.Allow(alice))
}

func TestNoticePresence_SkipsSubject(t *testing.T) {
	h := newTestHub()

	alice, err := h.Join("alice")
	require.NoError(t, err)
	bob, err := h.Join("bob")
	require.NoError(t, err)

	h.NoticePresence("alice", "User 'alice' is now online.")

	frame := drainOne(t, bob)
	env, err := wire.ParseEnvelope(frame)
	require.NoError(t, err)
	resp, err := env.Response()
	require.NoError(t, err)
	assert.Equal(t, wire.StatusInfo, resp.Status)
	assert.Equal(t, "User 'alice' is now online.", resp.Content)

	select {
	case <-alice.Send:
		t.Fatal("presence notice echoed to its subject")
	default:
	}
}

func TestShutdown(t *testing.T) {
	h := newTestHub()

	alice, err := h.Join("alice")
	require.NoError(t, err)

	h.Shutdown("Server is shutting down. Goodbye.")

	// The goodbye arrives, then the channel closes.
	frame, ok := <-alice.Send
	require.True(t, ok)
	env, err := wire.ParseEnvelope(frame)
	require.NoError(t, err)
	resp, err := env.Response()
	require.NoError(t, err)
	assert.Equal(t, "Server is shutting down. Goodbye.", resp.Content)

	_, ok = <-alice.Send
	assert.False(t, ok)

	// No joins after shutdown.
	_, err = h.Join("bob")
	assert.ErrorIs(t, err, ErrShutdown)
	assert.Equal(t, 0, h.Len())
}
