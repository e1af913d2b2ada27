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
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/gorilla/websocket"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/adak/pkg/ux"
	"github.com/AleutianAI/adak/pkg/wire"
)

// AuthOptions carries scripted credentials for non-interactive use.
type AuthOptions struct {
	// Username from --username; pre-fills the form when interactive.
	Username string
	// Password from ADAK_PASSWORD. Only used on the non-TTY path.
	Password string
}

// ErrNoCredentials means the non-interactive path had nothing to log in
// with.
var ErrNoCredentials = errors.New(
	"no credentials: set --username and ADAK_PASSWORD, or run from a terminal")

// RunAuthFlow authenticates the connection and returns sealed
// credentials.
//
// # Description
//
// On a TTY this loops the login/register form until a login succeeds; a
// successful registration prints the server's response and returns to
// the form, matching the original client's behavior. Without a TTY it
// makes a single login attempt from AuthOptions so piped sessions can
// authenticate.
//
// # Outputs
//
//   - *Credentials: username plus enclave-sealed password, for reconnect.
//   - error: connection failures, rejected scripted logins, or a
//     cancelled form.
func RunAuthFlow(conn *websocket.Conn, opts AuthOptions, renderer *ux.ChatRenderer) (*Credentials, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return scriptedLogin(conn, opts, renderer)
	}
	return interactiveAuth(conn, opts, renderer)
}

// scriptedLogin is the non-TTY path: one login attempt, no retry loop.
func scriptedLogin(conn *websocket.Conn, opts AuthOptions, renderer *ux.ChatRenderer) (*Credentials, error) {
	if opts.Username == "" || opts.Password == "" {
		return nil, ErrNoCredentials
	}
	if !wire.ValidUsername(opts.Username) {
		return nil, fmt.Errorf("invalid username %q", opts.Username)
	}

	resp, err := Authenticate(conn, wire.AuthRequest{
		Action:   wire.ActionLogin,
		Username: opts.Username,
		Password: opts.Password,
	})
	if err != nil {
		return nil, err
	}
	renderer.PrintResponse(resp)
	return NewCredentials(opts.Username, []byte(opts.Password)), nil
}

// interactiveAuth runs the form until a login lands.
func interactiveAuth(conn *websocket.Conn, opts AuthOptions, renderer *ux.ChatRenderer) (*Credentials, error) {
	action := string(wire.ActionLogin)
	username := opts.Username
	password := ""

	for {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Welcome to Adak").
					Options(
						huh.NewOption("Log in", string(wire.ActionLogin)),
						huh.NewOption("Register", string(wire.ActionRegister)),
					).
					Value(&action),
				huh.NewInput().
					Title("Username").
					Value(&username).
					Validate(func(s string) error {
						if !wire.ValidUsername(s) {
							return errors.New("2-32 characters: letters, digits, _ . -")
						}
						return nil
					}),
				huh.NewInput().
					Title("Password").
					EchoMode(huh.EchoModePassword).
					Value(&password).
					Validate(func(s string) error {
						if s == "" {
							return errors.New("password must not be empty")
						}
						return nil
					}),
			),
		)
		if err := form.Run(); err != nil {
			return nil, fmt.Errorf("auth form: %w", err)
		}

		resp, err := Authenticate(conn, wire.AuthRequest{
			Action:   wire.AuthAction(action),
			Username: username,
			Password: password,
		})

		var rejected *ErrAuthRejected
		if errors.As(err, &rejected) {
			renderer.PrintResponse(wire.ServerResponse{
				Status:  wire.StatusError,
				Content: rejected.Content,
			})
			password = ""
			continue
		}
		if err != nil {
			return nil, err
		}

		renderer.PrintResponse(resp)
		if wire.AuthAction(action) == wire.ActionRegister {
			// Registered, not logged in. Back to the form.
			action = string(wire.ActionLogin)
			password = ""
			continue
		}
		return NewCredentials(username, []byte(password)), nil
	}
}
