// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides user experience components for the Adak CLI.
//
// This file contains the chat renderer shared by the interactive client,
// the history listing, and admin commands.
//
// Single Responsibility:
//
//	The renderer ONLY formats wire payloads for a terminal. It does not
//	read sockets, manage sessions, or parse commands. Machine personality
//	emits the plain display strings so piped output stays parseable.
package ux

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/adak/pkg/wire"
)

// =============================================================================
// Chat Styles
// =============================================================================

// chatStyles holds the styles applied to the room feed.
var chatStyles = struct {
	Timestamp lipgloss.Style
	Server    lipgloss.Style
	Private   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
	Success   lipgloss.Style
	Prompt    lipgloss.Style
}{
	Timestamp: lipgloss.NewStyle().Faint(true),
	Server:    lipgloss.NewStyle().Foreground(ColorServer).Bold(true),
	Private:   lipgloss.NewStyle().Foreground(ColorPrivate),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Info:      lipgloss.NewStyle().Foreground(ColorInfo),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Prompt:    lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
}

// senderPalette rotates distinct hues across usernames. Six entries is
// enough that collisions are rare in a small room and harmless in a big one.
var senderPalette = []lipgloss.Color{
	lipgloss.Color("#2CD7C7"), // teal
	lipgloss.Color("#61AFEF"), // blue
	lipgloss.Color("#98C379"), // green
	lipgloss.Color("#E5C07B"), // sand
	lipgloss.Color("#C678DD"), // violet
	lipgloss.Color("#E06C75"), // coral
}

// SenderStyle returns the color style assigned to a username. Assignment
// hashes the name, so a given user renders in the same color on every
// client and across reconnects.
func SenderStyle(username string) lipgloss.Style {
	h := fnv.New32a()
	h.Write([]byte(username))
	color := senderPalette[h.Sum32()%uint32(len(senderPalette))]
	return lipgloss.NewStyle().Foreground(color).Bold(true)
}

// =============================================================================
// Chat Renderer
// =============================================================================

// ChatRenderer formats wire messages for terminal display.
//
// Rendering adapts to the personality level:
//
//   - machine: the plain display strings, nothing else
//   - minimal: the plain display strings
//   - standard, full: colored senders, dim timestamps, styled notices
//
// Thread Safety:
//
//	A ChatRenderer is immutable after construction and safe for
//	concurrent use. Interleaving of concurrent Print calls is up to
//	the underlying writer.
type ChatRenderer struct {
	writer io.Writer
	level  PersonalityLevel
}

// NewChatRenderer creates a renderer bound to stdout with the current
// personality level.
func NewChatRenderer() *ChatRenderer {
	return &ChatRenderer{
		writer: os.Stdout,
		level:  GetPersonality().Level,
	}
}

// NewChatRendererWithWriter creates a renderer with a custom writer and
// level (for testing).
func NewChatRendererWithWriter(w io.Writer, level PersonalityLevel) *ChatRenderer {
	return &ChatRenderer{
		writer: w,
		level:  level,
	}
}

// plain reports whether rendering should skip all styling.
func (r *ChatRenderer) plain() bool {
	return r.level == PersonalityMachine || r.level == PersonalityMinimal
}

// FormatChat returns the display form of a room or private message.
//
// Server notices render without a timestamp:
//
//	[SERVER]: User 'ada' is now online.
//
// User messages carry a dim local-time timestamp and a colored sender:
//
//	[2025-01-02 15:04:05] ada: hello
//
// Delivered private messages keep their "(private) " marker and render
// the content in the private accent color.
func (r *ChatRenderer) FormatChat(msg wire.ChatMessage) string {
	if r.plain() {
		return msg.DisplayString()
	}

	if msg.Sender == wire.ServerName {
		return chatStyles.Server.Render("["+wire.ServerName+"]:") + " " + msg.Content
	}

	ts := chatStyles.Timestamp.Render("[" + msg.DisplayTime() + "]")
	sender := SenderStyle(msg.Sender).Render(msg.Sender + ":")
	content := msg.Content
	if msg.IsPrivateDelivery() {
		content = chatStyles.Private.Render(content)
	}
	return ts + " " + sender + " " + content
}

// FormatResponse returns the display form of a server response.
// Errors render red, info cyan, success teal. Machine mode keeps the
// plain "[SERVER] content" form.
func (r *ChatRenderer) FormatResponse(resp wire.ServerResponse) string {
	if r.plain() {
		return resp.DisplayString()
	}

	prefix := "[" + wire.ServerName + "]"
	switch resp.Status {
	case wire.StatusError:
		return chatStyles.Error.Render(prefix + " " + resp.Content)
	case wire.StatusInfo:
		return chatStyles.Info.Render(prefix) + " " + resp.Content
	default:
		return chatStyles.Success.Render(prefix) + " " + resp.Content
	}
}

// PrintChat writes a formatted chat message and a trailing newline.
func (r *ChatRenderer) PrintChat(msg wire.ChatMessage) {
	r.writeln(r.FormatChat(msg))
}

// PrintResponse writes a formatted server response and a trailing newline.
func (r *ChatRenderer) PrintResponse(resp wire.ServerResponse) {
	r.writeln(r.FormatResponse(resp))
}

// Prompt returns the input prompt string.
func (r *ChatRenderer) Prompt() string {
	if r.plain() {
		return "> "
	}
	return chatStyles.Prompt.Render(">") + " "
}

// writeln writes a line and swallows the error. Terminal write errors
// are non-recoverable, so there is nothing useful to do with them.
func (r *ChatRenderer) writeln(s string) {
	if _, err := fmt.Fprintln(r.writer, s); err != nil {
		return
	}
}

// =============================================================================
// Session Header
// =============================================================================

// HeaderConfig describes the banner shown after authentication.
type HeaderConfig struct {
	// ServerURL is the relay endpoint the client connected to
	ServerURL string

	// Username is the authenticated user
	Username string

	// Protocol is the negotiated wire protocol version
	Protocol string
}

// Header renders the session banner. Machine personality emits a single
// parseable line; richer levels draw the brand box.
func (r *ChatRenderer) Header(cfg HeaderConfig) string {
	if r.level == PersonalityMachine {
		return fmt.Sprintf("CONNECTED: server=%s user=%s", cfg.ServerURL, cfg.Username)
	}

	var content strings.Builder
	content.WriteString(Styles.Highlight.Render("Adak Relay Chat"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("Server: %s", Styles.Success.Render(cfg.ServerURL)))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("User: %s", SenderStyle(cfg.Username).Render(cfg.Username)))
	if cfg.Protocol != "" {
		content.WriteString("\n")
		content.WriteString(Styles.Muted.Render("Protocol " + cfg.Protocol))
	}

	if r.level == PersonalityMinimal {
		return content.String()
	}
	return Styles.Box.Width(60).Render(content.String())
}

// PrintHeader writes the session banner and a trailing newline.
func (r *ChatRenderer) PrintHeader(cfg HeaderConfig) {
	r.writeln(r.Header(cfg))
}
