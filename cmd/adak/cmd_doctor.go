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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/adak/pkg/wire"
)

// runDoctorCommand executes the environment checks.
func runDoctorCommand(cmd *cobra.Command, args []string) error {
	if !RunDoctor(cmd.Context(), DoctorOptions{ServerURL: doctorServerURL}) {
		// The failing checks are already on screen.
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

// runVersionCommand prints the binary and protocol versions.
func runVersionCommand(cmd *cobra.Command, args []string) {
	fmt.Printf("adak %s (protocol %s)\n", binaryVersion, wire.ProtocolVersion)
}
