// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package wire

import (
	"fmt"
	"strings"
	"time"
)

// displayTimeLayout is the timestamp format shown next to user messages.
const displayTimeLayout = "2006-01-02 15:04:05"

// ChatMessage is the payload for TypeChat envelopes.
//
// # Description
//
// A single room or private message. Timestamp is Unix seconds, assigned by
// the sender and preserved by the server when it relays or rewrites the
// message. The server stamps Sender with the authenticated username on
// every inbound message, so receivers can trust it.
//
// # Fields
//
//   - Sender: Username of the author, or ServerName for server notices.
//   - Content: Message text. At most MaxContentBytes bytes.
//   - Timestamp: Unix seconds when the message was composed.
//
// # Validation
//
//   - Sender: required
//   - Content: required, maxbytes (1024)
//   - Timestamp: required, > 0
type ChatMessage struct {
	Sender    string `json:"sender" validate:"required"`
	Content   string `json:"content" validate:"required,maxbytes"`
	Timestamp int64  `json:"timestamp" validate:"required,gt=0"`
}

// NewChatMessage builds a message stamped with the current time.
func NewChatMessage(sender, content string) ChatMessage {
	return ChatMessage{
		Sender:    sender,
		Content:   content,
		Timestamp: time.Now().Unix(),
	}
}

// Validate checks the message against the wire rules.
func (m *ChatMessage) Validate() error {
	return wireValidate.Struct(m)
}

// IsPrivate reports whether the message is a private-message command.
// A valid private message has exactly three parts: /pm <recipient> <text>.
// The first token must be the command itself, so "/pmx a b" is plain chat.
func (m *ChatMessage) IsPrivate() bool {
	parts := strings.SplitN(m.Content, " ", 3)
	return len(parts) == 3 && parts[0] == PMPrefix
}

// SplitPrivate extracts the recipient and text from a private-message
// command. ok is false when the message is not a valid /pm command.
func (m *ChatMessage) SplitPrivate() (recipient, text string, ok bool) {
	parts := strings.SplitN(m.Content, " ", 3)
	if len(parts) != 3 || parts[0] != PMPrefix {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// IsUsersCommand reports whether the message asks for the active user list.
func (m *ChatMessage) IsUsersCommand() bool {
	return strings.TrimSpace(m.Content) == UsersCommand
}

// IsPrivateDelivery reports whether the message is a delivered private
// message, i.e. the server already rewrote it with PrivateMarker.
func (m *ChatMessage) IsPrivateDelivery() bool {
	return strings.HasPrefix(m.Content, PrivateMarker)
}

// DisplayTime renders the message timestamp in local time.
func (m *ChatMessage) DisplayTime() string {
	return time.Unix(m.Timestamp, 0).Local().Format(displayTimeLayout)
}

// DisplayString renders the message for a terminal.
//
// Server-originated messages skip the timestamp:
//
//	[SERVER]: maintenance in five minutes
//
// User messages carry the local-time timestamp:
//
//	[2025-01-02 15:04:05] ada: hello
func (m *ChatMessage) DisplayString() string {
	if m.Sender == ServerName {
		return fmt.Sprintf("[%s]: %s", m.Sender, m.Content)
	}
	return fmt.Sprintf("[%s] %s: %s", m.DisplayTime(), m.Sender, m.Content)
}
