// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package wire

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ChatMessage Validation Tests
// =============================================================================

func TestChatMessage_Validate_OK(t *testing.T) {
	msg := NewChatMessage("ada", "hello room")
	if err := msg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestChatMessage_Validate_ContentTooLarge(t *testing.T) {
	msg := NewChatMessage("ada", strings.Repeat("x", MaxContentBytes+1))
	if err := msg.Validate(); err == nil {
		t.Error("Validate() expected error for oversized content")
	}
}

func TestChatMessage_Validate_ContentAtLimit(t *testing.T) {
	msg := NewChatMessage("ada", strings.Repeat("x", MaxContentBytes))
	if err := msg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error at limit: %v", err)
	}
}

func TestChatMessage_Validate_MissingSender(t *testing.T) {
	msg := ChatMessage{Content: "hi", Timestamp: 42}
	if err := msg.Validate(); err == nil {
		t.Error("Validate() expected error for missing sender")
	}
}

// =============================================================================
// Private Message Detection Tests
// =============================================================================

func TestChatMessage_IsPrivate(t *testing.T) {
	cases := []struct {
		content string
		want    bool
	}{
		{"/pm bob hello there", true},
		{"/pm bob hi", true},
		{"/pm bob", false},       // no message part
		{"/pm", false},           // bare command
		{"/pmx bob hi", false},   // not the command token
		{"hello /pm bob", false}, // not a prefix
		{"plain message", false},
	}

	for _, tc := range cases {
		msg := ChatMessage{Sender: "ada", Content: tc.content, Timestamp: 1}
		if got := msg.IsPrivate(); got != tc.want {
			t.Errorf("IsPrivate(%q) = %v, want %v", tc.content, got, tc.want)
		}
	}
}

func TestChatMessage_SplitPrivate(t *testing.T) {
	msg := ChatMessage{Sender: "ada", Content: "/pm bob hello there friend", Timestamp: 1}

	recipient, text, ok := msg.SplitPrivate()
	if !ok {
		t.Fatal("SplitPrivate() ok = false, want true")
	}
	if recipient != "bob" {
		t.Errorf("recipient = %q, want %q", recipient, "bob")
	}
	if text != "hello there friend" {
		t.Errorf("text = %q, want %q", text, "hello there friend")
	}
}

func TestChatMessage_SplitPrivate_NotPrivate(t *testing.T) {
	msg := ChatMessage{Sender: "ada", Content: "just chatting", Timestamp: 1}
	if _, _, ok := msg.SplitPrivate(); ok {
		t.Error("SplitPrivate() ok = true for plain message")
	}
}

func TestChatMessage_IsUsersCommand(t *testing.T) {
	yes := ChatMessage{Sender: "ada", Content: "  /users  ", Timestamp: 1}
	if !yes.IsUsersCommand() {
		t.Error("IsUsersCommand() = false for padded /users")
	}

	no := ChatMessage{Sender: "ada", Content: "/users please", Timestamp: 1}
	if no.IsUsersCommand() {
		t.Error("IsUsersCommand() = true for /users with trailing text")
	}
}

// =============================================================================
// Display Formatting Tests
// =============================================================================

func TestChatMessage_DisplayString_User(t *testing.T) {
	ts := int64(1735817400)
	msg := ChatMessage{Sender: "ada", Content: "hello", Timestamp: ts}

	want := "[" + time.Unix(ts, 0).Local().Format("2006-01-02 15:04:05") + "] ada: hello"
	if got := msg.DisplayString(); got != want {
		t.Errorf("DisplayString() = %q, want %q", got, want)
	}
}

func TestChatMessage_DisplayString_Server(t *testing.T) {
	msg := ChatMessage{Sender: ServerName, Content: "maintenance soon", Timestamp: 1735817400}

	if got := msg.DisplayString(); got != "[SERVER]: maintenance soon" {
		t.Errorf("DisplayString() = %q, want no timestamp for server messages", got)
	}
}

// =============================================================================
// AuthRequest Validation Tests
// =============================================================================

func TestAuthRequest_Validate(t *testing.T) {
	cases := []struct {
		name    string
		req     AuthRequest
		wantErr bool
	}{
		{"valid login", AuthRequest{Action: ActionLogin, Username: "ada", Password: "pw"}, false},
		{"valid register", AuthRequest{Action: ActionRegister, Username: "bob_2", Password: "secret"}, false},
		{"bad action", AuthRequest{Action: "delete", Username: "ada", Password: "pw"}, true},
		{"username with space", AuthRequest{Action: ActionLogin, Username: "not ok", Password: "pw"}, true},
		{"username too short", AuthRequest{Action: ActionLogin, Username: "a", Password: "pw"}, true},
		{"empty password", AuthRequest{Action: ActionLogin, Username: "ada", Password: ""}, true},
		{"password over bcrypt limit", AuthRequest{Action: ActionLogin, Username: "ada", Password: strings.Repeat("p", 73)}, true},
		{"password at bcrypt limit", AuthRequest{Action: ActionLogin, Username: "ada", Password: strings.Repeat("p", MaxPasswordBytes)}, false},
		// 72 runes but 144 bytes; bcrypt counts bytes, so must we.
		{"multibyte password over byte limit", AuthRequest{Action: ActionLogin, Username: "ada", Password: strings.Repeat("á", 72)}, true},
		{"multibyte password within byte limit", AuthRequest{Action: ActionLogin, Username: "ada", Password: strings.Repeat("á", 36)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr && err == nil {
				t.Error("Validate() expected error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

// =============================================================================
// ServerResponse Tests
// =============================================================================

func TestServerResponse_DisplayString(t *testing.T) {
	resp := ServerResponse{Status: StatusInfo, Content: "User 'bob' is now online."}

	if got := resp.DisplayString(); got != "[SERVER] User 'bob' is now online." {
		t.Errorf("DisplayString() = %q", got)
	}
}

func TestServerResponse_Validate_BadStatus(t *testing.T) {
	resp := ServerResponse{Status: "fatal", Content: "boom"}
	if err := resp.Validate(); err == nil {
		t.Error("Validate() expected error for unknown status")
	}
}
