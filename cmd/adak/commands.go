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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/adak/pkg/ux"
)

// --- Global Command Variables ---
var (
	// chatServerURL and doctorServerURL are deliberately separate: pflag
	// writes each flag's default into its bound variable at registration,
	// so two commands sharing one variable would clobber each other's
	// default.
	chatServerURL    string
	doctorServerURL  string
	adminURL         string
	adminToken       string
	chatUsername     string
	historyLimit     int
	importCSVPath    string
	backupOut        string
	backupBucket     string
	backupSAKey      string
	backupProject    string
	personalityLevel string // UX personality level (full/standard/minimal/machine)

	rootCmd = &cobra.Command{
		Use:   "adak",
		Short: "A cli for the Adak LAN chat relay",
		Long: `Adak is a small chat relay for your local network. This tool is
				the terminal client plus the admin and maintenance surface.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Connect to the relay and join the room",
		RunE:  runChatCommand, // Defined in cmd_chat.go
	}

	// --- Admin ---
	usersCmd = &cobra.Command{
		Use:   "users",
		Short: "Manage registered users on the relay",
	}
	usersListCmd = &cobra.Command{
		Use:   "list",
		Short: "List every registered user",
		RunE:  runUsersList, // Defined in cmd_admin.go
	}
	usersImportCmd = &cobra.Command{
		Use:   "import",
		Short: "Migrate a legacy username,password CSV into the relay",
		RunE:  runUsersImport,
	}
	activeCmd = &cobra.Command{
		Use:   "active",
		Short: "List the usernames connected right now",
		RunE:  runActive,
	}
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent room history, newest first",
		RunE:  runHistory,
	}
	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Download a consistent store backup, optionally uploading it to GCS",
		RunE:  runBackupCommand,
	}

	// --- Environment ---
	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Check this machine and (optionally) the relay",
		RunE:  runDoctorCommand, // Defined in cmd_doctor.go
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the binary and protocol versions",
		Run:   runVersionCommand,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"UX personality level (full/standard/minimal/machine)")

	chatCmd.Flags().StringVar(&chatServerURL, "server", defaultChatURL,
		"relay WebSocket URL")
	chatCmd.Flags().StringVar(&chatUsername, "username", "",
		"account name (with ADAK_PASSWORD, enables non-interactive login)")

	for _, cmd := range []*cobra.Command{usersListCmd, usersImportCmd, activeCmd, historyCmd, backupCmd} {
		cmd.Flags().StringVar(&adminURL, "server", defaultAdminURL, "relay base URL")
		cmd.Flags().StringVar(&adminToken, "token", "",
			"admin bearer token (or ADAK_ADMIN_TOKEN)")
	}
	usersImportCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to the legacy CSV")
	usersImportCmd.MarkFlagRequired("csv")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "max messages (0 = server default)")
	backupCmd.Flags().StringVar(&backupOut, "out", "", "destination file (default adak-<timestamp>.badger)")
	backupCmd.Flags().StringVar(&backupBucket, "bucket", "", "GCS bucket to upload the backup to")
	backupCmd.Flags().StringVar(&backupSAKey, "sa-key", "", "service account key file for the upload")
	backupCmd.Flags().StringVar(&backupProject, "project", "", "GCP project of the bucket")

	doctorCmd.Flags().StringVar(&doctorServerURL, "server", "", "relay URL to probe (optional)")

	usersCmd.AddCommand(usersListCmd, usersImportCmd)
	rootCmd.AddCommand(chatCmd, usersCmd, activeCmd, historyCmd, backupCmd, doctorCmd, versionCmd)
}
