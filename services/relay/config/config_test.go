// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1:65432", cfg.Server.Addr())
	assert.Equal(t, "db", cfg.Store.Path)
	assert.Equal(t, 168*time.Hour, cfg.Store.HistoryTTL)
	assert.Equal(t, 5.0, cfg.Limits.MessagesPerSecond)
	assert.Equal(t, 10, cfg.Limits.Burst)
	assert.Empty(t, cfg.Admin.Token)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Addr(), cfg.Server.Addr())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 9000
store:
  path: /tmp/adak-db
  history_ttl: 24h
admin:
  token: sekret
limits:
  messages_per_second: 2
  burst: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, "/tmp/adak-db", cfg.Store.Path)
	assert.Equal(t, 24*time.Hour, cfg.Store.HistoryTTL)
	assert.Equal(t, "sekret", cfg.Admin.Token)
	assert.Equal(t, 2.0, cfg.Limits.MessagesPerSecond)
	assert.Equal(t, 4, cfg.Limits.Burst)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0600))

	t.Setenv("ADAK_PORT", "9001")
	t.Setenv("ADAK_HOST", "192.168.1.10")
	t.Setenv("ADAK_ADMIN_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.10:9001", cfg.Server.Addr())
	assert.Equal(t, "from-env", cfg.Admin.Token)
}

func TestLoad_BadEnvNumberIgnored(t *testing.T) {
	t.Setenv("ADAK_PORT", "not-a-port")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 65432, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RelayConfig)
		wantErr bool
	}{
		{"defaults pass", func(*RelayConfig) {}, false},
		{"zero port", func(c *RelayConfig) { c.Server.Port = 0 }, true},
		{"port too high", func(c *RelayConfig) { c.Server.Port = 70000 }, true},
		{"empty store path", func(c *RelayConfig) { c.Store.Path = "" }, true},
		{"zero rate", func(c *RelayConfig) { c.Limits.MessagesPerSecond = 0 }, true},
		{"zero burst", func(c *RelayConfig) { c.Limits.Burst = 0 }, true},
		{"negative ttl", func(c *RelayConfig) { c.Store.HistoryTTL = -time.Hour }, true},
		{"zero ttl ok", func(c *RelayConfig) { c.Store.HistoryTTL = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
