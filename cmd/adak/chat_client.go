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
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/adak/pkg/ux"
	"github.com/AleutianAI/adak/pkg/wire"
)

// Reconnection policy: up to three attempts, sleeping 2^attempt seconds
// before each (2s, 4s, 8s).
const (
	maxReconnectAttempts = 3
	handshakeTimeout     = 10 * time.Second

	// maxPendingMessages bounds the offline buffer. Typing hundreds of
	// messages into a dead connection means the session is over anyway.
	maxPendingMessages = 100
)

// ErrAuthRejected wraps a server ERROR response to an auth request.
type ErrAuthRejected struct {
	Content string
}

func (e *ErrAuthRejected) Error() string {
	return e.Content
}

// ChatClient is the WebSocket side of a chat session.
//
// # Description
//
// Owns the connection after authentication: renders incoming traffic,
// sends outgoing messages, and survives connection loss with the
// original reconnect policy — re-dial, re-authenticate with the cached
// credentials, flush anything typed while offline. When all reconnect
// attempts fail the session is dead and Done() yields the error.
//
// # Thread Safety
//
// Send and Close are safe to call concurrently with the read loop.
type ChatClient struct {
	serverURL string
	creds     *Credentials
	renderer  *ux.ChatRenderer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	pending   []wire.ChatMessage
	closed    bool

	done     chan error
	doneOnce sync.Once
}

// NewChatClient creates a client for the given relay URL. Call Dial and
// an auth helper, then Attach to start the session.
func NewChatClient(serverURL string, creds *Credentials, renderer *ux.ChatRenderer) *ChatClient {
	return &ChatClient{
		serverURL: serverURL,
		creds:     creds,
		renderer:  renderer,
		done:      make(chan error, 1),
	}
}

// Dial opens a WebSocket connection to the relay, announcing the wire
// protocol version on the upgrade request.
func Dial(serverURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	header := http.Header{}
	header.Set(wire.ProtocolHeader, wire.ProtocolVersion)

	conn, resp, err := dialer.Dial(serverURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUpgradeRequired {
			return nil, fmt.Errorf("protocol version rejected by server (client speaks %s)",
				wire.ProtocolVersion)
		}
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	return conn, nil
}

// Authenticate sends one auth request and reads the server's verdict.
//
// # Description
//
// Non-response envelopes read while waiting are skipped; the server
// does not send room traffic to unauthenticated connections. An ERROR
// response comes back as *ErrAuthRejected so callers can distinguish
// "wrong password" from "connection broke".
func Authenticate(conn *websocket.Conn, req wire.AuthRequest) (wire.ServerResponse, error) {
	env, err := wire.NewAuthEnvelope(req)
	if err != nil {
		return wire.ServerResponse{}, err
	}
	frame, err := env.Encode()
	if err != nil {
		return wire.ServerResponse{}, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return wire.ServerResponse{}, fmt.Errorf("send auth request: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return wire.ServerResponse{}, fmt.Errorf("read auth response: %w", err)
		}
		respEnv, err := wire.ParseEnvelope(data)
		if err != nil || respEnv.Type != wire.TypeResponse {
			continue
		}
		resp, err := respEnv.Response()
		if err != nil {
			continue
		}
		if resp.Status == wire.StatusError {
			return resp, &ErrAuthRejected{Content: resp.Content}
		}
		return resp, nil
	}
}

// login authenticates a fresh connection with the cached credentials.
// Used on reconnect; the interactive first login happens in the auth
// form flow before Attach.
func (c *ChatClient) login(conn *websocket.Conn) error {
	var req wire.AuthRequest
	err := c.creds.WithPassword(func(password []byte) error {
		req = wire.AuthRequest{
			Action:   wire.ActionLogin,
			Username: c.creds.Username(),
			Password: string(password),
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, err = Authenticate(conn, req)
	return err
}

// Attach adopts an authenticated connection and starts the read loop.
func (c *ChatClient) Attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()
}

// Done yields the session's terminal error: nil on clean close, the
// final connection error when reconnection gave up.
func (c *ChatClient) Done() <-chan error {
	return c.done
}

// finish records the terminal error exactly once.
func (c *ChatClient) finish(err error) {
	c.doneOnce.Do(func() {
		c.done <- err
	})
}

// Send transmits a chat message, or buffers it while disconnected.
//
// # Description
//
// The sender field is stamped with the cached username; the server
// re-stamps it anyway. While the connection is down messages queue in
// order (bounded) and flush after a successful reconnect. A write
// failure hands the message to the buffer and lets the read loop's
// reconnect machinery take over.
func (c *ChatClient) Send(text string) error {
	msg := wire.NewChatMessage(c.creds.Username(), text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("client closed")
	}
	if !c.connected {
		return c.bufferLocked(msg)
	}
	if err := c.writeLocked(msg); err != nil {
		c.connected = false
		return c.bufferLocked(msg)
	}
	return nil
}

// writeLocked encodes and writes one chat envelope. Caller holds c.mu.
func (c *ChatClient) writeLocked(msg wire.ChatMessage) error {
	env, err := wire.NewChatEnvelope(msg)
	if err != nil {
		return err
	}
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// bufferLocked queues a message for the post-reconnect flush. Caller
// holds c.mu.
func (c *ChatClient) bufferLocked(msg wire.ChatMessage) error {
	if len(c.pending) >= maxPendingMessages {
		return errors.New("offline buffer full")
	}
	c.pending = append(c.pending, msg)
	return nil
}

// readLoop renders incoming traffic and drives reconnection.
func (c *ChatClient) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.connected = false
			c.mu.Unlock()
			if closed {
				c.finish(nil)
				return
			}
			if rerr := c.attemptReconnection(); rerr != nil {
				c.finish(fmt.Errorf("connection lost: %w", rerr))
				return
			}
			continue
		}

		env, err := wire.ParseEnvelope(data)
		if err != nil {
			continue
		}
		switch env.Type {
		case wire.TypeChat:
			if msg, err := env.Chat(); err == nil {
				c.renderer.PrintChat(msg)
			}
		case wire.TypeResponse:
			if resp, err := env.Response(); err == nil {
				c.renderer.PrintResponse(resp)
			}
		}
	}
}

// attemptReconnection re-dials and re-authenticates, sleeping
// 2^attempt seconds before each try. On success the pending buffer is
// flushed in order; a failed flush re-queues and counts as a failed
// attempt.
func (c *ChatClient) attemptReconnection() error {
	var lastErr error

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		wait := time.Duration(1<<attempt) * time.Second
		c.renderer.PrintResponse(wire.ServerResponse{
			Status: wire.StatusInfo,
			Content: fmt.Sprintf("Connection lost. Reconnecting in %s (attempt %d/%d)...",
				wait, attempt, maxReconnectAttempts),
		})
		time.Sleep(wait)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return errors.New("client closed")
		}
		c.mu.Unlock()

		conn, err := Dial(c.serverURL)
		if err != nil {
			lastErr = err
			continue
		}
		if err := c.login(conn); err != nil {
			conn.Close()
			lastErr = err
			// A rejected login will not improve by retrying, but the
			// server may also be mid-restart with a cold store; keep
			// trying within the attempt budget.
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		flushErr := c.flushPendingLocked()
		c.mu.Unlock()

		if flushErr != nil {
			lastErr = flushErr
			continue
		}

		c.renderer.PrintResponse(wire.ServerResponse{
			Status:  wire.StatusInfo,
			Content: "Reconnected.",
		})
		return nil
	}

	return lastErr
}

// flushPendingLocked sends the offline buffer in order. On a write
// failure the unsent tail stays queued. Caller holds c.mu.
func (c *ChatClient) flushPendingLocked() error {
	for i, msg := range c.pending {
		if err := c.writeLocked(msg); err != nil {
			c.pending = c.pending[i:]
			c.connected = false
			return err
		}
	}
	c.pending = nil
	return nil
}

// Close shuts the connection down cleanly. Safe to call more than
// once.
func (c *ChatClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.conn != nil {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return c.conn.Close()
	}
	return nil
}
