// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import (
	"fmt"
	"io"
)

// Backup streams a full Badger backup to w.
//
// # Description
//
// Wraps badger.DB.Backup with since=0, producing a snapshot of every
// live key (users and unexpired history). The returned version marks
// where an incremental backup would resume; the relay currently always
// takes full backups, so callers mostly ignore it.
//
// # Outputs
//
//   - uint64: The version the backup ran up to.
//   - error: Non-nil if the stream fails mid-write.
func (s *Store) Backup(w io.Writer) (uint64, error) {
	since, err := s.db.Backup(w, 0)
	if err != nil {
		return 0, fmt.Errorf("stream badger backup: %w", err)
	}
	return since, nil
}

// Restore loads a backup stream produced by Backup into the store.
// Intended for disaster recovery into an empty store.
func (s *Store) Restore(r io.Reader) error {
	if err := s.db.Load(r, 16); err != nil {
		return fmt.Errorf("load badger backup: %w", err)
	}
	return nil
}
