// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package motd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// changeCollector records handler calls for assertions.
type changeCollector struct {
	mu      sync.Mutex
	changes []string
}

func (c *changeCollector) handler(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, content)
}

func (c *changeCollector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.changes...)
}

// waitFor polls until cond holds or the timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestNew_LoadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")
	require.NoError(t, os.WriteFile(path, []byte("welcome\n"), 0600))

	w, err := New(path, nil, testLogger())
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	assert.Equal(t, "welcome", w.Current())
}

func TestNew_AbsentFileMeansNoMOTD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")

	w, err := New(path, nil, testLogger())
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	assert.Empty(t, w.Current())
}

func TestWatcher_NotifiesOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")
	collector := &changeCollector{}

	w, err := New(path, collector.handler, testLogger())
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("maintenance at noon\n"), 0600))

	ok := waitFor(t, 3*time.Second, func() bool {
		return len(collector.snapshot()) >= 1
	})
	require.True(t, ok, "handler never fired")
	assert.Equal(t, "maintenance at noon", collector.snapshot()[0])
	assert.Equal(t, "maintenance at noon", w.Current())
}

func TestWatcher_UnchangedContentDoesNotNotify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")
	require.NoError(t, os.WriteFile(path, []byte("same\n"), 0600))
	collector := &changeCollector{}

	w, err := New(path, collector.handler, testLogger())
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	// Rewrite with identical content; the debounced reload must see no
	// change.
	require.NoError(t, os.WriteFile(path, []byte("same\n"), 0600))

	time.Sleep(2 * defaultDebounce)
	assert.Empty(t, collector.snapshot())
}

func TestWatcher_DeleteClearsWithoutNotice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")
	require.NoError(t, os.WriteFile(path, []byte("old news\n"), 0600))
	collector := &changeCollector{}

	w, err := New(path, collector.handler, testLogger())
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.Remove(path))

	ok := waitFor(t, 3*time.Second, func() bool {
		return w.Current() == ""
	})
	assert.True(t, ok, "cache never cleared")
	assert.Empty(t, collector.snapshot())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motd.txt")

	w, err := New(path, nil, testLogger())
	require.NoError(t, err)
	w.Start()

	w.Stop()
	w.Stop()
}
