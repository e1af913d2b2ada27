// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file defines the chat loop and its input abstraction.
//
// Architecture:
//
//	commands.go → ChatRunner → ChatClient (chat_client.go)
//	                         → InputReader (stdin abstraction)
//	                         → ux.ChatRenderer (pkg/ux)
//
// Incoming traffic renders on stdout; the interactive input prompt runs
// on stderr so piping the room feed stays clean.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/adak/pkg/ux"
	"github.com/AleutianAI/adak/pkg/wire"
)

// =============================================================================
// ChatRunner
// =============================================================================

// ChatRunner drives one interactive chat session.
//
// # Description
//
// Reads lines from the InputReader and hands them to the client; the
// client's receive callback renders incoming traffic. Exits on /quit,
// EOF, context cancellation, or an unrecoverable connection error.
//
// Callers MUST Close() the runner when done, typically via defer.
//
// # Thread Safety
//
// Not reusable: one Run per runner.
type ChatRunner struct {
	client   *ChatClient
	reader   InputReader
	renderer *ux.ChatRenderer
}

// NewChatRunner wires a runner to a connected client.
func NewChatRunner(client *ChatClient, reader InputReader, renderer *ux.ChatRenderer) *ChatRunner {
	return &ChatRunner{
		client:   client,
		reader:   reader,
		renderer: renderer,
	}
}

// Run executes the chat loop until exit, error, or cancellation.
//
// # Outputs
//
//   - error: nil on /quit or EOF, ctx.Err() on cancellation, or the
//     connection error that ended the session.
func (r *ChatRunner) Run(ctx context.Context) error {
	if p, ok := r.reader.(PromptingInputReader); ok {
		p.SetPrompt(r.renderer.Prompt())
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-r.client.Done():
			return err
		default:
		}

		line, err := r.reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if line == "" {
			continue
		}
		if line == wire.QuitCommand {
			return nil
		}

		if err := r.client.Send(line); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
}

// Close releases the runner's client connection. Safe to call more
// than once.
func (r *ChatRunner) Close() error {
	return r.client.Close()
}

// =============================================================================
// InputReader
// =============================================================================

// InputReader abstracts user input so the chat loop can be tested
// without a terminal. Production uses StdinReader or the interactive
// reader; tests use MockInputReader.
type InputReader interface {
	// ReadLine reads one trimmed line. Returns io.EOF when input is
	// exhausted (Ctrl+D, closed pipe).
	ReadLine() (string, error)
}

// PromptingInputReader is implemented by readers that draw their own
// prompt. The runner checks for it to avoid double-prompting.
type PromptingInputReader interface {
	InputReader
	// SetPrompt sets the prompt string to display before input.
	SetPrompt(prompt string)
}

// =============================================================================
// StdinReader
// =============================================================================

// StdinReader reads newline-terminated lines from os.Stdin. Used for
// piped input and as the non-TTY fallback.
//
// Not thread-safe; one reader per stdin.
type StdinReader struct {
	reader *bufio.Reader
}

// NewStdinReader creates a StdinReader wrapping os.Stdin.
func NewStdinReader() *StdinReader {
	return &StdinReader{
		reader: bufio.NewReader(os.Stdin),
	}
}

// ReadLine reads until newline and returns the trimmed line. Blocks
// until input is available; io.EOF when stdin closes.
func (r *StdinReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// InteractiveInputReader
// =============================================================================

// InteractiveInputReader provides up/down history navigation and line
// editing via bubbletea. Falls back to StdinReader when stdin is not a
// TTY (pipes, CI).
//
// History is in-memory only; it does not survive the process.
type InteractiveInputReader struct {
	history      []string
	historyIndex int
	maxHistory   int
	prompt       string
}

// inputModel is the bubbletea model for interactive input.
type inputModel struct {
	textInput    textinput.Model
	history      []string
	historyIndex int
	currentInput string // saved when navigating into history
	done         bool
	cancelled    bool
}

// NewInteractiveInputReader creates an interactive reader keeping up to
// maxHistory entries, or a StdinReader when stdin is not a TTY.
//
// The reader draws its own prompt; set it via SetPrompt.
func NewInteractiveInputReader(maxHistory int) InputReader {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewStdinReader()
	}

	return &InteractiveInputReader{
		history:      make([]string, 0, maxHistory),
		historyIndex: -1,
		maxHistory:   maxHistory,
		prompt:       "> ",
	}
}

// SetPrompt implements PromptingInputReader.
func (r *InteractiveInputReader) SetPrompt(prompt string) {
	r.prompt = prompt
}

// ReadLine reads one line with history support.
//
//   - Up/Down: navigate history
//   - Enter: submit
//   - Ctrl+C: clear and return empty
//   - Ctrl+D: io.EOF
func (r *InteractiveInputReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.Focus()
	ti.CharLimit = wire.MaxContentBytes
	ti.Width = 80

	m := inputModel{
		textInput:    ti,
		history:      r.history,
		historyIndex: -1,
	}

	// Input runs on stderr; stdout belongs to the room feed.
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	result, ok := finalModel.(inputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}

	if result.cancelled && result.textInput.Value() == "" {
		return "", io.EOF
	}

	input := strings.TrimSpace(result.textInput.Value())
	if input != "" {
		r.addToHistory(input)
	}
	return input, nil
}

// addToHistory appends an input, skipping immediate duplicates and
// trimming to maxHistory.
func (r *InteractiveInputReader) addToHistory(input string) {
	if len(r.history) > 0 && r.history[len(r.history)-1] == input {
		return
	}
	r.history = append(r.history, input)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
}

// Init initializes the bubbletea model.
func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input events for the bubbletea model.
func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlC:
			m.textInput.SetValue("")
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlD:
			m.cancelled = true
			m.textInput.SetValue("")
			m.done = true
			return m, tea.Quit

		case tea.KeyUp:
			if len(m.history) == 0 {
				return m, nil
			}
			if m.historyIndex == -1 {
				m.currentInput = m.textInput.Value()
				m.historyIndex = len(m.history) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textInput.SetValue(m.history[m.historyIndex])
			m.textInput.CursorEnd()
			return m, nil

		case tea.KeyDown:
			if m.historyIndex == -1 {
				return m, nil
			}
			if m.historyIndex < len(m.history)-1 {
				m.historyIndex++
				m.textInput.SetValue(m.history[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.textInput.SetValue(m.currentInput)
			}
			m.textInput.CursorEnd()
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the input prompt.
func (m inputModel) View() string {
	if m.done {
		return ""
	}
	return m.textInput.View()
}

// =============================================================================
// MockInputReader (for testing)
// =============================================================================

// MockInputReader returns predetermined inputs in order, then io.EOF.
// Not thread-safe; for single-threaded tests.
type MockInputReader struct {
	inputs []string
	index  int
}

// NewMockInputReader creates a reader over a fixed input sequence.
func NewMockInputReader(inputs []string) *MockInputReader {
	return &MockInputReader{inputs: inputs}
}

// ReadLine returns the next input, or io.EOF when exhausted.
func (m *MockInputReader) ReadLine() (string, error) {
	if m.index >= len(m.inputs) {
		return "", io.EOF
	}
	line := m.inputs[m.index]
	m.index++
	return line, nil
}
