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
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/adak/pkg/ux"
	"github.com/AleutianAI/adak/pkg/wire"
)

// inputHistorySize bounds the up-arrow history of the interactive
// reader.
const inputHistorySize = 100

// runChatCommand connects, authenticates, and runs the chat loop until
// /quit, EOF, SIGINT, or a dead connection.
func runChatCommand(cmd *cobra.Command, args []string) error {
	renderer := ux.NewChatRenderer()

	conn, err := Dial(chatServerURL)
	if err != nil {
		return err
	}

	creds, err := RunAuthFlow(conn, AuthOptions{
		Username: chatUsername,
		Password: os.Getenv("ADAK_PASSWORD"),
	}, renderer)
	if err != nil {
		conn.Close()
		return err
	}
	defer creds.Destroy()

	renderer.PrintHeader(ux.HeaderConfig{
		ServerURL: chatServerURL,
		Username:  creds.Username(),
		Protocol:  wire.ProtocolVersion,
	})

	client := NewChatClient(chatServerURL, creds, renderer)
	client.Attach(conn)

	runner := NewChatRunner(client, NewInteractiveInputReader(inputHistorySize), renderer)
	defer runner.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
