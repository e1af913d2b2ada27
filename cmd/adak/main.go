// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// The adak binary is the terminal client and admin tool for the Adak
// chat relay.
package main

import (
	"os"

	"github.com/AleutianAI/adak/pkg/ux"
)

// binaryVersion is stamped at release time via -ldflags.
var binaryVersion = "dev"

// Default endpoints preserve the original deployment shape: the relay
// listens on 127.0.0.1:65432 unless configured otherwise.
const (
	defaultChatURL  = "ws://127.0.0.1:65432/ws/chat"
	defaultAdminURL = "http://127.0.0.1:65432"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}
