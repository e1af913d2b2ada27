// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package wire defines the message envelope and payload types exchanged
// between the relay server and chat clients.
//
// Every frame on the wire is a single JSON Envelope. The envelope's Type
// field selects the payload schema: an AuthRequest during the auth phase,
// a ChatMessage during the chat phase, or a ServerResponse for anything
// the server says back. Payloads are kept as raw JSON until the caller
// asks for the typed form, so unknown or irrelevant envelopes can be
// skipped without a decode error.
//
// The package also owns the shared protocol constants (command prefixes,
// size limits, the protocol version header) and the validation rules both
// sides apply before trusting a payload.
package wire

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
)

// =============================================================================
// Protocol Constants
// =============================================================================

const (
	// ServerName is the sender identity for server-originated chat messages.
	// Clients render these without a timestamp prefix.
	ServerName = "SERVER"

	// PMPrefix marks a private message command: /pm <username> <message>.
	PMPrefix = "/pm"

	// PrivateMarker prefixes the content of a delivered private message.
	// The server rewrites "/pm bob hi" into "(private) hi" before relaying.
	PrivateMarker = "(private) "

	// QuitCommand ends the client session. Handled client-side; the server
	// just sees the connection close.
	QuitCommand = "/quit"

	// UsersCommand asks the server for the active user list.
	UsersCommand = "/users"

	// MaxContentBytes is the maximum size of a single chat message content.
	// Checked in bytes, not runes, so oversized payloads are rejected before
	// they reach the room.
	MaxContentBytes = 1024

	// MaxUsernameLen bounds usernames; see usernamePattern for the charset.
	MaxUsernameLen = 32

	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72

	// ProtocolVersion is the wire protocol semver. Clients send it on the
	// upgrade request; servers reject a different MAJOR.
	ProtocolVersion = "v1.0.0"

	// ProtocolHeader carries ProtocolVersion on the WebSocket upgrade request.
	ProtocolHeader = "X-Adak-Protocol"
)

// usernamePattern restricts usernames to a shell- and key-safe charset.
// Usernames become store keys and /pm targets, so no whitespace and no
// separators beyond dot, dash, underscore.
var usernamePattern = regexp.MustCompile(fmt.Sprintf(`^[a-zA-Z0-9_.-]{2,%d}$`, MaxUsernameLen))

// =============================================================================
// Shared Validator Instance
// =============================================================================

// wireValidate is the validator instance for wire payloads.
// Initialized in init() with custom validators.
var wireValidate *validator.Validate

func init() {
	wireValidate = validator.New()

	_ = wireValidate.RegisterValidation("username", validateUsername)
	_ = wireValidate.RegisterValidation("maxbytes", validateMaxBytes)
	_ = wireValidate.RegisterValidation("passwordbytes", validatePasswordBytes)
}

// validateUsername checks a string field against usernamePattern.
func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

// validateMaxBytes validates that a string field does not exceed
// MaxContentBytes. Checks byte length (not rune count) to prevent memory
// exhaustion with large payloads.
func validateMaxBytes(fl validator.FieldLevel) bool {
	content := fl.Field().String()
	return len(content) <= MaxContentBytes
}

// validatePasswordBytes caps passwords at MaxPasswordBytes. Byte length,
// not rune count: bcrypt truncates nothing, it rejects input past 72
// bytes, so a multibyte password must be measured the way bcrypt sees it.
func validatePasswordBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPasswordBytes
}

// ValidUsername reports whether name is acceptable as a username.
// Exposed so clients can reject bad input before a round trip.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// =============================================================================
// Envelope
// =============================================================================

// MessageType discriminates envelope payloads.
type MessageType string

const (
	// TypeAuth wraps an AuthRequest (client to server, auth phase).
	TypeAuth MessageType = "auth"

	// TypeChat wraps a ChatMessage (either direction, chat phase).
	TypeChat MessageType = "chat"

	// TypeResponse wraps a ServerResponse (server to client).
	TypeResponse MessageType = "response"
)

// Envelope is the wrapper for every message on the wire.
//
// # Description
//
// Envelope carries a MessageType and the raw payload bytes. One envelope
// per WebSocket text frame. Use the typed accessors (Auth, Chat, Response)
// to decode the payload; they validate the decoded value before returning
// it.
//
// # Fields
//
//   - Type: Payload discriminator. One of "auth", "chat", "response".
//   - Payload: Raw JSON object for the payload type.
//
// # Examples
//
//	env, err := wire.ParseEnvelope(frame)
//	if err != nil {
//	    return err
//	}
//	if env.Type == wire.TypeChat {
//	    msg, err := env.Chat()
//	    ...
//	}
type Envelope struct {
	Type    MessageType     `json:"type" validate:"required,oneof=auth chat response"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// ParseEnvelope decodes and validates a single wire frame.
//
// # Inputs
//
//   - data: Raw frame bytes (one JSON envelope).
//
// # Outputs
//
//   - Envelope: The decoded envelope with its payload still raw.
//   - error: Non-nil if the frame is not a valid envelope.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := wireValidate.Struct(&env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	return env, nil
}

// Encode marshals the envelope to a single wire frame.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Auth decodes the payload as an AuthRequest and validates it.
func (e Envelope) Auth() (AuthRequest, error) {
	var req AuthRequest
	if err := json.Unmarshal(e.Payload, &req); err != nil {
		return AuthRequest{}, fmt.Errorf("decode auth payload: %w", err)
	}
	if err := req.Validate(); err != nil {
		return AuthRequest{}, err
	}
	return req, nil
}

// Chat decodes the payload as a ChatMessage and validates it.
func (e Envelope) Chat() (ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return ChatMessage{}, fmt.Errorf("decode chat payload: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

// Response decodes the payload as a ServerResponse and validates it.
func (e Envelope) Response() (ServerResponse, error) {
	var resp ServerResponse
	if err := json.Unmarshal(e.Payload, &resp); err != nil {
		return ServerResponse{}, fmt.Errorf("decode response payload: %w", err)
	}
	if err := resp.Validate(); err != nil {
		return ServerResponse{}, err
	}
	return resp, nil
}

// newEnvelope wraps a payload value. Marshal errors are impossible for the
// payload types in this package, but surfaced anyway.
func newEnvelope(t MessageType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// NewAuthEnvelope wraps an AuthRequest for sending.
func NewAuthEnvelope(req AuthRequest) (Envelope, error) {
	return newEnvelope(TypeAuth, req)
}

// NewChatEnvelope wraps a ChatMessage for sending.
func NewChatEnvelope(msg ChatMessage) (Envelope, error) {
	return newEnvelope(TypeChat, msg)
}

// NewResponseEnvelope wraps a ServerResponse for sending.
func NewResponseEnvelope(resp ServerResponse) (Envelope, error) {
	return newEnvelope(TypeResponse, resp)
}

// =============================================================================
// Protocol Version Gate
// =============================================================================

// CheckProtocol reports whether a client protocol version is compatible
// with this build.
//
// # Description
//
// Compatibility means same MAJOR version. An empty client version is
// accepted so pre-gate clients keep working; an invalid semver or a
// different major is rejected with an error naming both versions.
//
// # Inputs
//
//   - client: The version string from the upgrade request header. May be "".
//
// # Outputs
//
//   - error: Non-nil if the client version is present and incompatible.
func CheckProtocol(client string) error {
	if client == "" {
		return nil
	}
	if !semver.IsValid(client) {
		return fmt.Errorf("invalid protocol version %q (server speaks %s)", client, ProtocolVersion)
	}
	if semver.Major(client) != semver.Major(ProtocolVersion) {
		return fmt.Errorf("incompatible protocol version %s (server speaks %s)", client, ProtocolVersion)
	}
	return nil
}

// =============================================================================
// Welcome Message
// =============================================================================

// WelcomeMessage builds the greeting sent to a user on successful login.
func WelcomeMessage(username string) string {
	return fmt.Sprintf(`Welcome %s to the chat room!

Instructions:
- Type a message and press Enter to send.
- Type %s to list active users.
- Use %s <username> <message> to send a private message.
- Type %s to leave the chat room.`, username, UsersCommand, PMPrefix, QuitCommand)
}
