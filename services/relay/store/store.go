// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the relay's embedded persistence on BadgerDB.
//
// One Badger instance holds both keyspaces:
//
//	user/<username>              -> JSON user record (no TTL)
//	history/<inv_ts>/<uuid>      -> JSON wire chat message (TTL-bounded)
//
// History keys embed an inverted timestamp so a forward iteration yields
// newest-first without a reverse scan.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the relay store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	// Default: true for production, false for testing.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Default: 5 minutes. Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	// Default: 0.5.
	GCDiscardRatio float64

	// HistoryTTL bounds how long room history entries live.
	// Default: 168h. Set to 0 to keep history forever.
	HistoryTTL time.Duration
}

// DefaultConfig returns production defaults: durable writes, five-minute
// GC, one week of history.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
		HistoryTTL:     168 * time.Hour,
	}
}

// InMemoryConfig returns configuration optimized for testing: no disk
// I/O, no GC.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
		GCInterval: 0,
		HistoryTTL: 168 * time.Hour,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// GCRunner runs periodic value log garbage collection.
type GCRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	logger   *slog.Logger
}

// NewGCRunner creates a garbage collection runner. Call Start to begin
// GC and Stop to halt it.
func NewGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) (*GCRunner, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	if interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if ratio < 0 || ratio > 1 {
		return nil, errors.New("ratio must be between 0 and 1")
	}

	return &GCRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start begins periodic garbage collection in a background goroutine.
func (r *GCRunner) Start() {
	go r.run()
}

// Stop signals the GC goroutine to stop and waits for it to finish.
func (r *GCRunner) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *GCRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *GCRunner) runGC() {
	// RunValueLogGC returns ErrNoRewrite when there is nothing to collect.
	err := r.db.RunValueLogGC(r.ratio)
	if err == nil {
		if r.logger != nil {
			r.logger.Debug("badger value log GC completed")
		}
	} else if !errors.Is(err, badger.ErrNoRewrite) {
		if r.logger != nil {
			r.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
		}
	}
}

// Store wraps a BadgerDB instance with lifecycle management and the
// relay's domain keyspaces.
type Store struct {
	db         *badger.DB
	gcRunner   *GCRunner
	historyTTL time.Duration
	path       string
	inMemory   bool
}

// Open opens the relay store with the given configuration.
//
// # Description
//
// Opens BadgerDB at the configured path (created 0750 if missing), or in
// memory when InMemory is set, and starts the GC runner if GCInterval is
// configured.
//
// # Outputs
//
//   - *Store: The managed store. Call Close when done.
//   - error: Non-nil if the database cannot be opened.
//
// # Thread Safety
//
// The returned Store is safe for concurrent use.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{
		db:         db,
		historyTTL: cfg.HistoryTTL,
		path:       cfg.Path,
		inMemory:   cfg.InMemory,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := NewGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gcRunner = runner
		runner.Start()
	}

	return s, nil
}

// OpenInMemory opens an in-memory store for testing. Data is lost when
// closed.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops the GC runner and closes the database.
func (s *Store) Close() error {
	if s.gcRunner != nil {
		s.gcRunner.Stop()
	}
	return s.db.Close()
}

// Path returns the store directory, or empty string for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// InMemory reports whether the store is in-memory.
func (s *Store) InMemory() bool {
	return s.inMemory
}

// Sync flushes pending writes to disk. No-op for in-memory stores.
func (s *Store) Sync() error {
	if s.inMemory {
		return nil
	}
	return s.db.Sync()
}

// WithTxn executes fn within a read-write transaction, committing when
// fn returns nil and discarding otherwise.
func (s *Store) WithTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}

	return txn.Commit()
}

// WithReadTxn executes fn within a read-only transaction.
func (s *Store) WithReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}
