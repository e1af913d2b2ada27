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
	"sync"

	"github.com/awnumar/memguard"
)

// memguardInitOnce ensures memguard interrupt handling is set up once.
var memguardInitOnce sync.Once

// initMemguard arms memguard's interrupt hook so secure buffers are
// wiped even on Ctrl+C.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
	})
}

// Credentials holds the username and password for the session.
//
// # Description
//
// The password lives in a memguard enclave: encrypted at rest in
// process memory, decrypted only for the moment an auth request is
// built. The client re-authenticates with these credentials on every
// reconnect, so they outlive individual connections. Destroy() wipes
// the enclave; the zero-value Credentials is unusable.
//
// # Thread Safety
//
// Safe for concurrent use; the enclave handles its own locking.
type Credentials struct {
	username string
	sealed   *memguard.Enclave
}

// ErrCredentialsDestroyed is returned after Destroy.
var ErrCredentialsDestroyed = errors.New("credentials destroyed")

// NewCredentials seals a password into an enclave. The plaintext slice
// passed in is wiped by memguard; callers must not reuse it.
func NewCredentials(username string, password []byte) *Credentials {
	initMemguard()
	return &Credentials{
		username: username,
		sealed:   memguard.NewEnclave(password),
	}
}

// Username returns the account name. Not secret.
func (c *Credentials) Username() string {
	return c.username
}

// WithPassword opens the enclave and calls fn with the plaintext. The
// buffer is destroyed when fn returns; fn must not retain it.
func (c *Credentials) WithPassword(fn func(password []byte) error) error {
	if c.sealed == nil {
		return ErrCredentialsDestroyed
	}
	buf, err := c.sealed.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Destroy wipes the sealed password. Subsequent WithPassword calls
// fail.
func (c *Credentials) Destroy() {
	c.sealed = nil
	// Purge wipes every memguard allocation, including the session key
	// behind the enclave.
	memguard.Purge()
}
