// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileIsZeroConfig(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [broken"), 0600))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	want := Config{
		ConnectorURL: "http://localhost:9999",
		Token:        "secret-token",
		LogLevel:     "debug",
	}
	require.NoError(t, saveConfig(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "config holds the token")

	got, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CONNECTOR_URL", "http://localhost:7777")
	t.Setenv("CONNECTOR_TOKEN", "env-token")
	t.Setenv("REGISTRYDECK_LOG_LEVEL", "warn")

	cfg := applyEnvOverrides(Config{
		ConnectorURL: "http://localhost:1111",
		Token:        "file-token",
		LogLevel:     "debug",
	})

	assert.Equal(t, "http://localhost:7777", cfg.ConnectorURL)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestApplyEnvOverrides_Defaults(t *testing.T) {
	t.Setenv("CONNECTOR_URL", "")
	t.Setenv("CONNECTOR_TOKEN", "")
	t.Setenv("REGISTRYDECK_LOG_LEVEL", "")

	cfg := applyEnvOverrides(Config{})

	assert.Equal(t, "http://localhost:12780", cfg.ConnectorURL)
	assert.Empty(t, cfg.Token)
	assert.Equal(t, "info", cfg.LogLevel)
}
