// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hub tracks the connected clients of the single chat room and
// routes frames between them.
//
// The hub owns membership: one active session per username, enforced
// under the registry lock at join time. All sends are non-blocking; a
// client whose send buffer is full is dropped rather than allowed to
// stall the fanout for everyone else.
package hub

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/adak/pkg/wire"
	"github.com/AleutianAI/adak/services/relay/observability"
)

// Sentinel errors for membership operations.
var (
	// ErrAlreadyLoggedIn is returned by Join when the username has an
	// active session.
	ErrAlreadyLoggedIn = errors.New("user is already logged in")

	// ErrNotConnected is returned by SendTo when the target username has
	// no active session.
	ErrNotConnected = errors.New("user is not connected")

	// ErrShutdown is returned by Join after Shutdown has run.
	ErrShutdown = errors.New("hub is shut down")
)

// sendBufferSize is the per-client outbound frame buffer. A client that
// falls this many frames behind is dropped as a slow consumer.
const sendBufferSize = 64

// Client is one connected chat session.
//
// The hub writes outbound frames to Send; the connection's write pump
// drains it. When the hub drops a client it closes Send, which the
// write pump treats as an order to close the socket.
type Client struct {
	// ID is the connection identity, distinct from the username so logs
	// can follow a session across reconnects.
	ID uuid.UUID

	// Username is the authenticated user. Stamped by the auth phase,
	// never client-supplied.
	Username string

	// Send carries encoded wire frames to the write pump.
	Send chan []byte

	limiter *rate.Limiter

	// closed guards double-close of Send. Only touched under the hub
	// lock.
	closed bool
}

// Hub is the room registry. Safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*Client // keyed by username
	metrics  *observability.RelayMetrics
	msgRate  rate.Limit
	msgBurst int
	shutdown bool
}

// Config tunes the hub.
type Config struct {
	// MessagesPerSecond is the per-client sustained message rate.
	MessagesPerSecond float64

	// Burst is the per-client burst allowance.
	Burst int

	// Metrics receives hub counters. May be nil in tests.
	Metrics *observability.RelayMetrics
}

// New creates an empty hub.
func New(cfg Config) *Hub {
	if cfg.MessagesPerSecond <= 0 {
		cfg.MessagesPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Hub{
		clients:  make(map[string]*Client),
		metrics:  cfg.Metrics,
		msgRate:  rate.Limit(cfg.MessagesPerSecond),
		msgBurst: cfg.Burst,
	}
}

// Join registers an authenticated session.
//
// # Description
//
// Creates the client, checks the one-session-per-username invariant
// under the registry lock, and returns the client whose Send channel
// the caller's write pump must drain. Concurrent joins for the same
// username resolve to exactly one winner.
//
// # Outputs
//
//   - *Client: The registered session.
//   - error: ErrAlreadyLoggedIn or ErrShutdown.
func (h *Hub) Join(username string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shutdown {
		return nil, ErrShutdown
	}
	if _, ok := h.clients[username]; ok {
		return nil, ErrAlreadyLoggedIn
	}

	client := &Client{
		ID:       uuid.New(),
		Username: username,
		Send:     make(chan []byte, sendBufferSize),
		limiter:  rate.NewLimiter(h.msgRate, h.msgBurst),
	}
	h.clients[username] = client

	if h.metrics != nil {
		h.metrics.ClientJoined()
	}
	return client, nil
}

// Leave removes a session. Safe to call more than once; only the first
// call for a still-registered client does anything.
func (h *Hub) Leave(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
}

// dropLocked unregisters a client and closes its send channel. Caller
// holds h.mu.
func (h *Hub) dropLocked(client *Client) {
	current, ok := h.clients[client.Username]
	if !ok || current.ID != client.ID {
		return
	}
	delete(h.clients, client.Username)
	if !client.closed {
		client.closed = true
		close(client.Send)
	}
	if h.metrics != nil {
		h.metrics.ClientLeft()
	}
}

// trySend queues a frame without blocking. A full buffer means the
// client cannot keep up with the room; it is dropped on the spot so the
// fanout never stalls. Caller holds h.mu.
func (h *Hub) trySend(client *Client, frame []byte) bool {
	if client.closed {
		return false
	}
	select {
	case client.Send <- frame:
		return true
	default:
		h.dropLocked(client)
		if h.metrics != nil {
			h.metrics.MessageDropped(observability.DropSlowConsumer)
		}
		return false
	}
}

// Broadcast sends a frame to every connected client except the named
// sender. Returns the number of clients reached.
func (h *Hub) Broadcast(frame []byte, exceptUsername string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for username, client := range h.clients {
		if username == exceptUsername {
			continue
		}
		if h.trySend(client, frame) {
			sent++
		}
	}
	if h.metrics != nil {
		h.metrics.RecordFanout(sent)
	}
	return sent
}

// SendTo delivers a frame to a single username.
func (h *Hub) SendTo(username string, frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[username]
	if !ok {
		return ErrNotConnected
	}
	if !h.trySend(client, frame) {
		return ErrNotConnected
	}
	return nil
}

// Active returns the connected usernames, sorted.
func (h *Hub) Active() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.clients))
	for username := range h.clients {
		names = append(names, username)
	}
	sort.Strings(names)
	return names
}

// IsActive reports whether the username has a live session.
func (h *Hub) IsActive(username string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[username]
	return ok
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Allow applies the per-client flood limit. A false return means the
// message should be discarded and the sender told off.
func (h *Hub) Allow(client *Client) bool {
	ok := client.limiter.Allow()
	if !ok && h.metrics != nil {
		h.metrics.MessageDropped(observability.DropRateLimit)
	}
	return ok
}

// NoticePresence broadcasts an INFO response to everyone except the
// user the notice describes. Presence notices are never echoed back to
// their subject.
func (h *Hub) NoticePresence(username, content string) {
	env, err := wire.NewResponseEnvelope(wire.ServerResponse{
		Status:  wire.StatusInfo,
		Content: content,
	})
	if err != nil {
		return
	}
	frame, err := env.Encode()
	if err != nil {
		return
	}
	h.Broadcast(frame, username)
}

// Shutdown sends a final INFO to every client, closes all sessions, and
// refuses further joins. Used by the relay's graceful stop.
func (h *Hub) Shutdown(reason string) {
	env, err := wire.NewResponseEnvelope(wire.ServerResponse{
		Status:  wire.StatusInfo,
		Content: reason,
	})
	var frame []byte
	if err == nil {
		frame, _ = env.Encode()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.shutdown = true
	for _, client := range h.clients {
		if frame != nil {
			h.trySend(client, frame)
		}
	}
	// Snapshot: dropLocked mutates the map.
	remaining := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		remaining = append(remaining, client)
	}
	for _, client := range remaining {
		h.dropLocked(client)
	}
}

// WaitEmpty blocks until every session has left or the timeout passes.
// Test helper for shutdown ordering.
func (h *Hub) WaitEmpty(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.Len() == 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return h.Len() == 0
}
