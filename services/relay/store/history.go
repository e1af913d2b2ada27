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
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/adak/pkg/wire"
)

// historyKeyPrefix namespaces room history records.
const historyKeyPrefix = "history/"

// DefaultHistoryLimit is used when a caller asks for history without a
// limit.
const DefaultHistoryLimit = 50

// historyKey builds "history/<inverse_ts_nano>/<uuid>". Inverting the
// timestamp makes a forward prefix iteration return newest entries
// first. The uuid suffix keeps same-nanosecond appends distinct.
func historyKey(ts time.Time, id uuid.UUID) []byte {
	inverse := uint64(math.MaxInt64 - ts.UnixNano())
	return []byte(fmt.Sprintf("%s%020d/%s", historyKeyPrefix, inverse, id))
}

// AppendHistory records a room message or presence notice.
//
// # Description
//
// The wire message is stored as-is under a newest-first key, with the
// configured TTL so old history ages out of the store on its own.
// Private messages must not be passed here; the chat handler persists
// room traffic only.
func (s *Store) AppendHistory(ctx context.Context, msg wire.ChatMessage) error {
	data, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	key := historyKey(time.Now(), uuid.New())
	return s.WithTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if s.historyTTL > 0 {
			entry = entry.WithTTL(s.historyTTL)
		}
		return txn.SetEntry(entry)
	})
}

// RecentHistory returns up to limit messages, newest first. A limit of
// zero or less falls back to DefaultHistoryLimit.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]wire.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var messages []wire.ChatMessage
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(messages) < limit; it.Next() {
			var msg wire.ChatMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return fmt.Errorf("decode history entry: %w", err)
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// CountHistory returns the number of live history entries.
func (s *Store) CountHistory(ctx context.Context) (int, error) {
	count := 0
	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyKeyPrefix)
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
