// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package motd watches the message-of-the-day file and pushes changes to
// the room.
//
// # Debouncing
//
// Editors fire several filesystem events per save (write, chmod,
// rename-into-place). Events are collected into a debounce window and
// the file is reloaded once per burst, so the room sees one notice per
// edit, not one per syscall.
package motd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long to wait for more events before reloading.
const defaultDebounce = 250 * time.Millisecond

// ChangeHandler receives the new MOTD content after a reload.
type ChangeHandler func(content string)

// Watcher watches one MOTD file for changes.
//
// # Description
//
// Watches the file's parent directory (watching the file itself breaks
// on editors that replace the inode), debounces events, and calls the
// handler with the new content. The current content is cached so new
// logins can be greeted without touching the disk.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single
// goroutine.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration
	logger   *slog.Logger

	done     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	current string
}

// New creates a watcher for the MOTD file at path.
//
// # Inputs
//
//   - path: The MOTD file. The file may not exist yet; it is picked up
//     when created.
//   - handler: Called with the new content after each debounced change.
//   - logger: Structured logger. Must not be nil.
//
// # Outputs
//
//   - *Watcher: Ready to Start.
//   - error: Non-nil if the parent directory cannot be watched.
func New(path string, handler ChangeHandler, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve motd path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch motd directory: %w", err)
	}

	w := &Watcher{
		path:     abs,
		watcher:  fsw,
		handler:  handler,
		debounce: defaultDebounce,
		logger:   logger,
		done:     make(chan struct{}),
	}

	// Initial load; an absent file just means no MOTD yet.
	if content, err := readMOTD(abs); err == nil {
		w.current = content
	}

	return w, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.run()
}

// Stop halts the watcher and waits for the event loop to finish.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.watcher.Close()
		<-w.done
	})
}

// Current returns the cached MOTD content. Empty means no MOTD.
func (w *Watcher) Current() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) run() {
	defer close(w.done)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("motd watcher error", slog.String("error", err.Error()))
		}
	}
}

// reload re-reads the file and notifies the handler when the content
// actually changed. Deleting the file clears the MOTD without a notice;
// an empty room announcement helps nobody.
func (w *Watcher) reload() {
	content, err := readMOTD(w.path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("motd reload failed", slog.String("error", err.Error()))
			return
		}
		content = ""
	}

	w.mu.Lock()
	changed := content != w.current
	w.current = content
	w.mu.Unlock()

	if changed && content != "" && w.handler != nil {
		w.logger.Info("motd updated", slog.Int("bytes", len(content)))
		w.handler(content)
	}
}

func readMOTD(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}
