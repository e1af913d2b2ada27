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
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/adak/pkg/ux"
)

// resolveAdminClient builds the REST client from flags and environment.
func resolveAdminClient() (*AdminClient, error) {
	token := adminToken
	if token == "" {
		token = os.Getenv("ADAK_ADMIN_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("no admin token: set --token or ADAK_ADMIN_TOKEN")
	}
	return NewAdminClient(adminURL, token), nil
}

// runUsersList prints every registered account.
func runUsersList(cmd *cobra.Command, args []string) error {
	admin, err := resolveAdminClient()
	if err != nil {
		return err
	}

	users, err := admin.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ux.Info("No registered users.")
		return nil
	}

	ux.Title(fmt.Sprintf("Registered users (%d)", len(users)))
	for _, u := range users {
		detail := "never logged in"
		if u.LastLoginMs > 0 {
			detail = "last login " + formatMs(u.LastLoginMs)
		}
		fmt.Printf("  %-32s %s\n", u.Username, detail)
	}
	return nil
}

// runUsersImport migrates a legacy CSV through the relay.
func runUsersImport(cmd *cobra.Command, args []string) error {
	admin, err := resolveAdminClient()
	if err != nil {
		return err
	}

	result, err := admin.ImportUsers(cmd.Context(), importCSVPath)
	if err != nil {
		return err
	}
	ux.Summary(result.Imported, result.Skipped, result.Total)
	return nil
}

// runActive prints the usernames connected right now.
func runActive(cmd *cobra.Command, args []string) error {
	admin, err := resolveAdminClient()
	if err != nil {
		return err
	}

	active, err := admin.ListActive(cmd.Context())
	if err != nil {
		return err
	}
	if len(active) == 0 {
		ux.Info("No users online.")
		return nil
	}
	ux.Title(fmt.Sprintf("Online (%d)", len(active)))
	for _, name := range active {
		fmt.Println("  " + name)
	}
	return nil
}

// runHistory prints recent room traffic through the chat renderer, so
// it looks like the live feed.
func runHistory(cmd *cobra.Command, args []string) error {
	admin, err := resolveAdminClient()
	if err != nil {
		return err
	}

	messages, err := admin.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		ux.Info("No history.")
		return nil
	}

	renderer := ux.NewChatRenderer()
	// Stored newest-first; replay oldest-first like a scrollback.
	for i := len(messages) - 1; i >= 0; i-- {
		renderer.PrintChat(messages[i])
	}
	return nil
}

// runBackupCommand drives the backup download (and optional upload).
func runBackupCommand(cmd *cobra.Command, args []string) error {
	admin, err := resolveAdminClient()
	if err != nil {
		return err
	}
	return runBackup(cmd.Context(), admin, BackupOptions{
		OutPath:   backupOut,
		Bucket:    backupBucket,
		SAKeyPath: backupSAKey,
		ProjectID: backupProject,
	})
}

// formatMs renders a unix-milliseconds timestamp for humans.
func formatMs(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
