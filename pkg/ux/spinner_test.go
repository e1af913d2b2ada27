// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a goroutine-safe bytes.Buffer for spinner output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// =============================================================================
// Spinner Tests
// =============================================================================

func TestSpinner_MachineModePrintsOnce(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	var buf syncBuffer
	s := NewSpinnerWithWriter(&buf, "dialing relay")
	s.Start()
	s.Stop()

	out := buf.String()
	if out != "PROGRESS: dialing relay\n" {
		t.Errorf("expected single progress line, got %q", out)
	}
}

func TestSpinner_FullModeAnimatesAndClears(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityFull)

	var buf syncBuffer
	s := NewSpinnerWithWriter(&buf, "dialing relay")
	s.Start()
	time.Sleep(3 * frameInterval)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "dialing relay") {
		t.Errorf("expected spinner message in output, got %q", out)
	}
	if !strings.Contains(out, "\033[K") {
		t.Errorf("expected clear sequence after stop, got %q", out)
	}
}

func TestSpinner_DoubleStartIsNoop(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	var buf syncBuffer
	s := NewSpinnerWithWriter(&buf, "working")
	s.Start()
	s.Start()
	s.Stop()

	if got := strings.Count(buf.String(), "PROGRESS:"); got != 1 {
		t.Errorf("expected one progress line, got %d", got)
	}
}

func TestSpinner_StopWithoutStartIsNoop(t *testing.T) {
	var buf syncBuffer
	s := NewSpinnerWithWriter(&buf, "idle")
	s.Stop()

	if buf.String() != "" {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestSpinner_UpdateMessage(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityFull)

	var buf syncBuffer
	s := NewSpinnerWithWriter(&buf, "connecting")
	s.Start()
	s.UpdateMessage("authenticating")
	time.Sleep(3 * frameInterval)
	s.Stop()

	if !strings.Contains(buf.String(), "authenticating") {
		t.Errorf("expected updated message in output, got %q", buf.String())
	}
}

// =============================================================================
// WithSpinner Tests
// =============================================================================

func TestWithSpinner_PropagatesError(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	wantErr := errors.New("dial failed")
	captureStdout(func() {
		captureStderr(func() {
			if err := WithSpinner("failing step", func() error { return wantErr }); err != wantErr {
				t.Errorf("expected error passthrough, got %v", err)
			}
		})
	})
}

func TestWithSpinner_NilOnSuccess(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	captureStdout(func() {
		if err := WithSpinner("ok step", func() error { return nil }); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})
}

// =============================================================================
// ProgressSpinner Tests
// =============================================================================

func TestProgressSpinner_IncrementFormatsCount(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityFull)

	p := NewProgressSpinner("importing users", 10)
	p.Increment()
	p.Increment()

	p.mu.Lock()
	msg := p.message
	p.mu.Unlock()

	if msg != "importing users [2/10]" {
		t.Errorf("unexpected progress message: %q", msg)
	}
}

func TestProgressSpinner_SetProgress(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityFull)

	p := NewProgressSpinner("importing users", 10)
	p.SetProgress(7)

	p.mu.Lock()
	msg := p.message
	p.mu.Unlock()

	if msg != "importing users [7/10]" {
		t.Errorf("unexpected progress message: %q", msg)
	}
}
