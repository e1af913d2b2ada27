// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/AleutianAI/adak/pkg/wire"
)

// Sentinel errors for the user keyspace.
var (
	// ErrUserExists is returned by Create when the username is taken.
	ErrUserExists = errors.New("username already exists")

	// ErrInvalidCredentials is returned by Authenticate on an unknown
	// username or a wrong password. Callers must not distinguish the two.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserNotFound is returned by Get for an unknown username.
	ErrUserNotFound = errors.New("user not found")
)

// userKeyPrefix namespaces user records.
const userKeyPrefix = "user/"

// User is the stored account record. PasswordHash is a bcrypt hash;
// plaintext passwords never touch the store.
type User struct {
	Username     string `json:"username"`
	PasswordHash []byte `json:"password_hash"`
	CreatedAtMs  int64  `json:"created_at_ms"`
	LastLoginMs  int64  `json:"last_login_ms,omitempty"`
}

// UserInfo is the external view of a user, safe to return over the admin
// API. No hash material.
type UserInfo struct {
	Username    string `json:"username"`
	CreatedAtMs int64  `json:"created_at_ms"`
	LastLoginMs int64  `json:"last_login_ms,omitempty"`
}

// Info strips the credential material from a user record.
func (u *User) Info() UserInfo {
	return UserInfo{
		Username:    u.Username,
		CreatedAtMs: u.CreatedAtMs,
		LastLoginMs: u.LastLoginMs,
	}
}

func userKey(username string) []byte {
	return []byte(userKeyPrefix + username)
}

// CreateUser registers a new account.
//
// # Description
//
// Hashes the password with bcrypt and writes the record inside a single
// transaction, so a concurrent Create for the same name loses with
// ErrUserExists rather than silently overwriting.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - username: Must already satisfy wire.ValidUsername.
//   - password: 1-72 bytes (the bcrypt input limit).
//
// # Outputs
//
//   - error: ErrUserExists if taken, or a storage/hash error.
func (s *Store) CreateUser(ctx context.Context, username, password string) error {
	if !wire.ValidUsername(username) {
		return fmt.Errorf("invalid username %q", username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := User{
		Username:     username,
		PasswordHash: hash,
		CreatedAtMs:  time.Now().UnixMilli(),
	}
	data, err := json.Marshal(&user)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}

	return s.WithTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(username))
		if err == nil {
			return ErrUserExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check username %q: %w", username, err)
		}
		return txn.Set(userKey(username), data)
	})
}

// Authenticate verifies a username/password pair.
//
// # Description
//
// Compares the password against the stored bcrypt hash and stamps the
// last-login time on success. An unknown username and a wrong password
// both return ErrInvalidCredentials; the store does not leak which.
func (s *Store) Authenticate(ctx context.Context, username, password string) error {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	user.LastLoginMs = time.Now().UnixMilli()
	data, err := json.Marshal(&user)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := s.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(userKey(username), data)
	}); err != nil {
		// Login stands even if the last-login stamp fails.
		return nil
	}
	return nil
}

// GetUser loads a single user record.
func (s *Store) GetUser(ctx context.Context, username string) (User, error) {
	var user User
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("get user %q: %w", username, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	return user, err
}

// ListUsers returns all registered users sorted by username, without
// credential material.
func (s *Store) ListUsers(ctx context.Context) ([]UserInfo, error) {
	var users []UserInfo
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var user User
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			})
			if err != nil {
				return fmt.Errorf("decode user record: %w", err)
			}
			users = append(users, user.Info())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	count := 0
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ImportResult summarizes a CSV user migration.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// ImportCSV migrates a legacy two-column username,password CSV into the
// user store.
//
// # Description
//
// Each row is registered through CreateUser, so plaintext passwords from
// the legacy file are bcrypt-hashed on the way in. Existing usernames
// and malformed rows are skipped, not fatal. A header row of exactly
// "username,password" is ignored.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader) (ImportResult, error) {
	var result ImportResult

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read csv: %w", err)
		}

		if len(record) != 2 {
			result.Total++
			result.Skipped++
			continue
		}
		username, password := record[0], record[1]
		if username == "username" && password == "password" {
			// Header row.
			continue
		}
		result.Total++

		if err := s.CreateUser(ctx, username, password); err != nil {
			if errors.Is(err, ErrUserExists) || !wire.ValidUsername(username) {
				result.Skipped++
				continue
			}
			return result, fmt.Errorf("import user %q: %w", username, err)
		}
		result.Imported++
	}

	return result, nil
}
