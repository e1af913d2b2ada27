// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the relay's configuration.
//
// Precedence, lowest to highest: defaults, the YAML file, ADAK_*
// environment variables. A missing config file is not an error; the
// relay runs on defaults so `relay` with no arguments serves the
// original localhost deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RelayConfig is the full relay configuration.
type RelayConfig struct {
	// Server is the listen address and protocol limits.
	Server ServerConfig `yaml:"server"`

	// Store is the embedded database.
	Store StoreConfig `yaml:"store"`

	// Limits is the per-client flood control.
	Limits LimitsConfig `yaml:"limits"`

	// Admin is the REST admin surface.
	Admin AdminConfig `yaml:"admin"`

	// MOTD is the message-of-the-day file.
	MOTD MOTDConfig `yaml:"motd"`

	// Log is the logging setup.
	Log LogConfig `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"` // e.g. 127.0.0.1
	Port int    `yaml:"port"` // e.g. 65432
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StoreConfig struct {
	Path       string        `yaml:"path"`        // badger directory, e.g. db/
	HistoryTTL time.Duration `yaml:"history_ttl"` // e.g. 168h
	GCInterval time.Duration `yaml:"gc_interval"` // e.g. 5m
}

type LimitsConfig struct {
	MessagesPerSecond float64 `yaml:"messages_per_second"` // e.g. 5
	Burst             int     `yaml:"burst"`               // e.g. 10
}

type AdminConfig struct {
	// Token guards /v1/admin. Empty disables the admin API entirely;
	// there is no unauthenticated admin mode.
	Token string `yaml:"token"`
}

type MOTDConfig struct {
	// Path to the MOTD file. Empty disables the feature.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`   // file logging directory, empty = stderr only
}

// DefaultConfig preserves the original deployment shape: localhost on
// 65432, a db/ store beside the binary, one week of history.
func DefaultConfig() RelayConfig {
	return RelayConfig{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 65432,
		},
		Store: StoreConfig{
			Path:       "db",
			HistoryTTL: 168 * time.Hour,
			GCInterval: 5 * time.Minute,
		},
		Limits: LimitsConfig{
			MessagesPerSecond: 5,
			Burst:             10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path and applies environment overrides.
//
// # Description
//
// A missing file falls back to defaults silently. A file that exists
// but fails to parse is an error; a half-read config is worse than no
// config.
func Load(path string) (RelayConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays ADAK_* environment variables. Invalid numeric
// values are ignored rather than fatal; the file/default value stands.
func applyEnv(cfg *RelayConfig) {
	if v := os.Getenv("ADAK_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ADAK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ADAK_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("ADAK_HISTORY_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Store.HistoryTTL = ttl
		}
	}
	if v := os.Getenv("ADAK_ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
	if v := os.Getenv("ADAK_MOTD_PATH"); v != "" {
		cfg.MOTD.Path = v
	}
	if v := os.Getenv("ADAK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("ADAK_LOG_DIR"); v != "" {
		cfg.Log.Dir = v
	}
	if v := os.Getenv("ADAK_RATE_LIMIT"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Limits.MessagesPerSecond = r
		}
	}
}

// Validate checks the configuration for values the relay cannot run
// with.
func (c *RelayConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}
	if c.Limits.MessagesPerSecond <= 0 {
		return fmt.Errorf("messages_per_second must be positive, got %g", c.Limits.MessagesPerSecond)
	}
	if c.Limits.Burst <= 0 {
		return fmt.Errorf("burst must be positive, got %d", c.Limits.Burst)
	}
	if c.Store.HistoryTTL < 0 {
		return fmt.Errorf("history_ttl must not be negative")
	}
	return nil
}
