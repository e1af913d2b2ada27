// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the relay's HTTP and WebSocket endpoints.
//
// The chat session runs in two phases over one WebSocket connection:
// an auth phase (login/register envelopes until a successful login) and
// a chat phase (room traffic until disconnect). Response strings are
// part of the protocol; clients match on them, so they do not change.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/adak/pkg/wire"
	"github.com/AleutianAI/adak/services/relay/hub"
	"github.com/AleutianAI/adak/services/relay/observability"
	"github.com/AleutianAI/adak/services/relay/store"
)

// Protocol response strings. These are wire contract, not UI copy.
const (
	respInvalidAuthFormat  = "Invalid authentication request format."
	respUsernameExists     = "Username already exists."
	respRegistered         = "Registration successful. Please log in."
	respAlreadyLoggedIn    = "This user is already logged in."
	respInvalidCredentials = "Invalid username or password."
	respRateLimited        = "Rate limit exceeded."
	respMessageTooLarge    = "Message rejected: content exceeds 1024 bytes."
)

// ShutdownNotice is the final INFO sent to every client when the relay
// stops. Exported for the lifecycle code in main.
const ShutdownNotice = "Server is shutting down. Goodbye."

// Connection timing. Pings keep NAT mappings alive and detect dead
// peers; the pong deadline is the effective liveness timeout.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxFrameBytes bounds a whole frame: 1024 bytes of content plus
	// JSON envelope overhead.
	maxFrameBytes = 4096
)

// persistTimeout bounds history writes so a slow disk cannot stall the
// read loop.
const persistTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	// The relay serves a LAN; origin policy is left to a fronting proxy
	// in deployments that have one.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  maxFrameBytes,
	WriteBufferSize: maxFrameBytes,
}

// ChatDeps carries the collaborators of the chat endpoint.
type ChatDeps struct {
	Store   *store.Store
	Hub     *hub.Hub
	Metrics *observability.RelayMetrics
	Logger  *slog.Logger

	// MOTD returns the current message of the day, empty for none.
	// May be nil when the feature is off.
	MOTD func() string
}

// session is the per-connection state of one chat session.
type session struct {
	deps   ChatDeps
	ws     *websocket.Conn
	connID uuid.UUID
	logger *slog.Logger
}

// HandleChatWebSocket upgrades the connection and runs the session.
//
// # Description
//
// Rejects incompatible protocol versions with 426 before upgrading.
// After the upgrade, runs the auth phase until a successful login, then
// joins the hub and relays chat traffic until the peer goes away.
func HandleChatWebSocket(deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientProto := c.GetHeader(wire.ProtocolHeader)
		if err := wire.CheckProtocol(clientProto); err != nil {
			c.JSON(http.StatusUpgradeRequired, gin.H{
				"error":           err.Error(),
				"server_protocol": wire.ProtocolVersion,
				"client_protocol": clientProto,
			})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			deps.Logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		defer ws.Close()

		s := &session{
			deps:   deps,
			ws:     ws,
			connID: uuid.New(),
		}
		s.logger = deps.Logger.With(slog.String("conn_id", s.connID.String()))
		s.logger.Info("client connected", slog.String("remote", ws.RemoteAddr().String()))

		ws.SetReadLimit(maxFrameBytes)

		username, ok := s.runAuthPhase()
		if !ok {
			s.logger.Info("client left during auth")
			return
		}

		s.runChatPhase(username)
	}
}

// writeEnvelope writes one envelope directly to the socket. Only safe
// before the write pump starts; after that all writes go through the
// hub client's send channel.
func (s *session) writeEnvelope(env wire.Envelope) error {
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.SendError()
		}
		return err
	}
	return nil
}

func (s *session) writeResponse(status wire.ResponseStatus, content string) error {
	env, err := wire.NewResponseEnvelope(wire.ServerResponse{Status: status, Content: content})
	if err != nil {
		return err
	}
	return s.writeEnvelope(env)
}

// runAuthPhase loops until a successful login or disconnect.
//
// Auth failures answer with an ERROR and keep the connection; only a
// read error ends the phase. Returns the authenticated username.
func (s *session) runAuthPhase() (string, bool) {
	for {
		_, frame, err := s.ws.ReadMessage()
		if err != nil {
			return "", false
		}

		env, err := wire.ParseEnvelope(frame)
		if err != nil {
			if err := s.writeResponse(wire.StatusError, respInvalidAuthFormat); err != nil {
				return "", false
			}
			continue
		}
		if env.Type != wire.TypeAuth {
			// Chat before login is ignored, matching the original server.
			continue
		}

		req, err := env.Auth()
		if err != nil {
			if err := s.writeResponse(wire.StatusError, respInvalidAuthFormat); err != nil {
				return "", false
			}
			continue
		}

		switch req.Action {
		case wire.ActionRegister:
			if ok := s.handleRegister(req); !ok {
				return "", false
			}

		case wire.ActionLogin:
			username, done, alive := s.handleLogin(req)
			if !alive {
				return "", false
			}
			if done {
				return username, true
			}
		}
	}
}

// handleRegister creates the account. Returns false when the
// connection is dead.
func (s *session) handleRegister(req wire.AuthRequest) bool {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := s.deps.Store.CreateUser(ctx, req.Username, req.Password)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordAuth("register", err == nil)
	}
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return s.writeResponse(wire.StatusError, respUsernameExists) == nil
		}
		s.logger.Error("register failed", slog.String("error", err.Error()))
		return s.writeResponse(wire.StatusError, respInvalidAuthFormat) == nil
	}

	s.logger.Info("user registered", slog.String("username", req.Username))
	return s.writeResponse(wire.StatusSuccess, respRegistered) == nil
}

// handleLogin authenticates and, on success, answers with the welcome
// message. done means the auth phase is over; alive means the
// connection still works.
func (s *session) handleLogin(req wire.AuthRequest) (username string, done, alive bool) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err := s.deps.Store.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordAuth("login", false)
		}
		if errors.Is(err, store.ErrInvalidCredentials) {
			return "", false, s.writeResponse(wire.StatusError, respInvalidCredentials) == nil
		}
		s.logger.Error("login failed", slog.String("error", err.Error()))
		return "", false, s.writeResponse(wire.StatusError, respInvalidCredentials) == nil
	}

	// Membership is checked at join time in the chat phase; here we only
	// pre-check to give the dedicated error before sending a welcome.
	if s.deps.Hub.IsActive(req.Username) {
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordAuth("login", false)
		}
		return "", false, s.writeResponse(wire.StatusError, respAlreadyLoggedIn) == nil
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordAuth("login", true)
	}
	return req.Username, true, true
}

// runChatPhase joins the hub and relays traffic until disconnect.
func (s *session) runChatPhase(username string) {
	client, err := s.deps.Hub.Join(username)
	if err != nil {
		// Lost the duplicate-login race between pre-check and join.
		s.writeResponse(wire.StatusError, respAlreadyLoggedIn)
		return
	}
	logger := s.logger.With(slog.String("username", username))

	// Welcome and MOTD go out before the write pump takes over the
	// socket; hub traffic buffers in the send channel meanwhile.
	if err := s.writeResponse(wire.StatusSuccess, wire.WelcomeMessage(username)); err != nil {
		s.deps.Hub.Leave(client)
		return
	}
	if s.deps.MOTD != nil {
		if motd := s.deps.MOTD(); motd != "" {
			if err := s.writeResponse(wire.StatusInfo, "Message of the day:\n"+motd); err != nil {
				s.deps.Hub.Leave(client)
				return
			}
		}
	}

	s.noticeAndPersist(username, fmt.Sprintf("User '%s' is now online.", username))
	logger.Info("user joined")

	// Deadline and pong handler are set here, before the pump goroutine
	// exists: only Close and WriteControl may race with a reader, and
	// readLoop is about to enter ReadMessage.
	s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		s.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pumpDone := make(chan struct{})
	go s.writePump(client, pumpDone)

	s.readLoop(client, logger)

	s.deps.Hub.Leave(client)
	<-pumpDone

	s.noticeAndPersist(username, fmt.Sprintf("User '%s' is now offline.", username))
	logger.Info("user left")
}

// writePump drains the client's send channel onto the socket and keeps
// the connection alive with pings. Exits when the hub closes the send
// channel or a write fails.
func (s *session) writePump(client *hub.Client, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-client.Send:
			if !ok {
				// Hub dropped us: slow consumer or shutdown.
				s.ws.SetWriteDeadline(time.Now().Add(writeWait))
				s.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				s.ws.Close()
				return
			}
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				if s.deps.Metrics != nil {
					s.deps.Metrics.SendError()
				}
				s.ws.Close()
				return
			}

		case <-ticker.C:
			s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.ws.Close()
				return
			}
		}
	}
}

// readLoop processes inbound chat envelopes until the peer goes away.
func (s *session) readLoop(client *hub.Client, logger *slog.Logger) {
	for {
		_, frame, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("client disconnected", slog.String("error", err.Error()))
			}
			return
		}

		env, err := wire.ParseEnvelope(frame)
		if err != nil || env.Type != wire.TypeChat {
			// Unknown or malformed envelopes are ignored in the chat
			// phase, matching the original server.
			continue
		}

		msg, err := env.Chat()
		if err != nil {
			// Oversized content earns an explicit rejection; any other
			// malformed chat payload is dropped silently.
			if isContentTooLarge(err) {
				s.sendToClient(client, wire.StatusError, respMessageTooLarge)
			}
			continue
		}

		if !s.deps.Hub.Allow(client) {
			s.sendToClient(client, wire.StatusError, respRateLimited)
			continue
		}

		// Never trust the client's sender field.
		msg.Sender = client.Username

		switch {
		case msg.IsPrivate():
			s.handlePrivate(client, msg)
		case msg.IsUsersCommand():
			s.handleUsers(client)
		default:
			s.handleBroadcast(client, msg)
		}
	}
}

// isContentTooLarge reports whether a chat validation error was the
// content size cap specifically.
func isContentTooLarge(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == "maxbytes" {
			return true
		}
	}
	return false
}

// sendToClient queues a response envelope through the hub so it
// serializes with room traffic on the write pump.
func (s *session) sendToClient(client *hub.Client, status wire.ResponseStatus, content string) {
	env, err := wire.NewResponseEnvelope(wire.ServerResponse{Status: status, Content: content})
	if err != nil {
		return
	}
	frame, err := env.Encode()
	if err != nil {
		return
	}
	s.deps.Hub.SendTo(client.Username, frame)
}

// handlePrivate delivers a /pm to its recipient only. The recipient
// sees "(private) <text>" with the original sender and timestamp; the
// sender gets an ERROR if the recipient is offline. A self-PM is
// silently dropped.
func (s *session) handlePrivate(client *hub.Client, msg wire.ChatMessage) {
	recipient, text, ok := msg.SplitPrivate()
	if !ok {
		return
	}
	if recipient == client.Username {
		return
	}

	delivery := wire.ChatMessage{
		Sender:    msg.Sender,
		Content:   wire.PrivateMarker + text,
		Timestamp: msg.Timestamp,
	}
	env, err := wire.NewChatEnvelope(delivery)
	if err != nil {
		return
	}
	frame, err := env.Encode()
	if err != nil {
		return
	}

	if err := s.deps.Hub.SendTo(recipient, frame); err != nil {
		s.sendToClient(client, wire.StatusError,
			fmt.Sprintf("User '%s' not found or not online.", recipient))
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordMessage(observability.KindPrivate)
	}
	// Private messages are not persisted.
}

// handleUsers answers /users with the active list, requester included.
func (s *session) handleUsers(client *hub.Client) {
	active := s.deps.Hub.Active()
	list := "No users online."
	if len(active) > 0 {
		list = ""
		for i, name := range active {
			if i > 0 {
				list += "\n"
			}
			list += name
		}
	}
	s.sendToClient(client, wire.StatusSuccess, "Active users:\n"+list)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordMessage(observability.KindCommand)
	}
}

// handleBroadcast fans a room message out to everyone but the sender
// and appends it to history.
func (s *session) handleBroadcast(client *hub.Client, msg wire.ChatMessage) {
	env, err := wire.NewChatEnvelope(msg)
	if err != nil {
		return
	}
	frame, err := env.Encode()
	if err != nil {
		return
	}

	s.deps.Hub.Broadcast(frame, client.Username)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordMessage(observability.KindBroadcast)
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.deps.Store.AppendHistory(ctx, msg); err != nil {
		s.logger.Warn("history append failed", slog.String("error", err.Error()))
	}
}

// noticeAndPersist broadcasts a presence notice and appends it to
// history as a SERVER message.
func (s *session) noticeAndPersist(aboutUsername, content string) {
	s.deps.Hub.NoticePresence(aboutUsername, content)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	notice := wire.NewChatMessage(wire.ServerName, content)
	if err := s.deps.Store.AppendHistory(ctx, notice); err != nil {
		s.logger.Warn("history append failed", slog.String("error", err.Error()))
	}
}
