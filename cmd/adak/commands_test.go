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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Flag registration writes each default into the bound variable, so two
// commands must never share one variable: the later registration would
// silently overwrite the earlier command's default.

func TestChatServerFlag_DefaultMatchesBoundVariable(t *testing.T) {
	flag := chatCmd.Flags().Lookup("server")
	require.NotNil(t, flag)

	assert.Equal(t, defaultChatURL, flag.DefValue)
	assert.Equal(t, flag.DefValue, chatServerURL,
		"chat would dial %q instead of its advertised default", chatServerURL)
}

func TestDoctorServerFlag_DefaultMatchesBoundVariable(t *testing.T) {
	flag := doctorCmd.Flags().Lookup("server")
	require.NotNil(t, flag)

	assert.Equal(t, "", flag.DefValue)
	assert.Equal(t, flag.DefValue, doctorServerURL)
}

func TestAdminCommands_ShareServerAndTokenFlags(t *testing.T) {
	for _, c := range []string{"list", "import"} {
		sub, _, err := usersCmd.Find([]string{c})
		require.NoError(t, err)
		require.NotNil(t, sub.Flags().Lookup("server"), "users %s must take --server", c)
		require.NotNil(t, sub.Flags().Lookup("token"), "users %s must take --token", c)
	}
	assert.Equal(t, defaultAdminURL, activeCmd.Flags().Lookup("server").DefValue)
}
