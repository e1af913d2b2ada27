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
	"testing"
)

// =============================================================================
// GetPersonality / SetPersonality Tests
// =============================================================================

func TestSetPersonality_AndGet(t *testing.T) {
	// Save original personality
	orig := GetPersonality()
	defer SetPersonality(orig)

	// Set a custom personality
	custom := Personality{
		Level:    PersonalityMinimal,
		Theme:    "custom",
		ShowTips: false,
	}
	SetPersonality(custom)

	// Verify it was set
	retrieved := GetPersonality()
	if retrieved.Level != PersonalityMinimal {
		t.Errorf("expected level %v, got %v", PersonalityMinimal, retrieved.Level)
	}
	if retrieved.Theme != "custom" {
		t.Errorf("expected theme 'custom', got %q", retrieved.Theme)
	}
	if retrieved.ShowTips != false {
		t.Errorf("expected ShowTips false, got %v", retrieved.ShowTips)
	}
}

// =============================================================================
// SetPersonalityLevel Tests
// =============================================================================

func TestSetPersonalityLevel_PreservesOtherFields(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityFull, Theme: "default", ShowTips: true})
	SetPersonalityLevel(PersonalityMachine)

	got := GetPersonality()
	if got.Level != PersonalityMachine {
		t.Errorf("expected PersonalityMachine, got %v", got.Level)
	}
	if got.Theme != "default" {
		t.Errorf("expected theme preserved, got %q", got.Theme)
	}
	if !got.ShowTips {
		t.Error("expected ShowTips preserved")
	}
}

// =============================================================================
// ParsePersonalityLevel Tests
// =============================================================================

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"f", PersonalityFull},
		{"FULL", PersonalityFull},
		{"standard", PersonalityStandard},
		{"std", PersonalityStandard},
		{"s", PersonalityStandard},
		{"minimal", PersonalityMinimal},
		{"min", PersonalityMinimal},
		{"m", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"quiet", PersonalityMachine},
		{"q", PersonalityMachine},
		{"bogus", PersonalityStandard},
		{"", PersonalityStandard},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParsePersonalityLevel(tt.input)
			if got != tt.expected {
				t.Errorf("ParsePersonalityLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// =============================================================================
// InitPersonality Tests
// =============================================================================

func TestInitPersonality_EnvOverride(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv("ADAK_PERSONALITY", "minimal")
	InitPersonality()

	if GetPersonality().Level != PersonalityMinimal {
		t.Errorf("expected PersonalityMinimal from env, got %v", GetPersonality().Level)
	}
}

func TestInitPersonality_EnvShorthand(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv("ADAK_PERSONALITY", "q")
	InitPersonality()

	if GetPersonality().Level != PersonalityMachine {
		t.Errorf("expected PersonalityMachine from env shorthand, got %v", GetPersonality().Level)
	}
}

func TestInitPersonality_NoEnvNonTTY(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv("ADAK_PERSONALITY", "")

	// Test binaries run with stdout redirected, so the non-TTY branch
	// applies and personality drops to machine.
	if isTerminal() {
		t.Skip("stdout is a terminal in this environment")
	}

	InitPersonality()
	if GetPersonality().Level != PersonalityMachine {
		t.Errorf("expected PersonalityMachine without a TTY, got %v", GetPersonality().Level)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestShouldShowProgress(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if ShouldShowProgress() {
		t.Error("expected no progress in machine mode")
	}

	SetPersonalityLevel(PersonalityFull)
	if !ShouldShowProgress() {
		t.Error("expected progress in full mode")
	}
}

func TestShouldShowColors(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if ShouldShowColors() {
		t.Error("expected no colors in machine mode")
	}

	SetPersonalityLevel(PersonalityMinimal)
	if !ShouldShowColors() {
		t.Error("expected colors allowed in minimal mode")
	}
}

func TestIsInteractive_MachineMode(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonalityLevel(PersonalityMachine)
	if IsInteractive() {
		t.Error("machine mode must never be interactive")
	}
}

func TestDefaultPersonality(t *testing.T) {
	def := DefaultPersonality()
	if def.Level != PersonalityFull {
		t.Errorf("expected default level full, got %v", def.Level)
	}
	if !def.ShowTips {
		t.Error("expected default ShowTips true")
	}
}
