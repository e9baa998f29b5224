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
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the operator's CLI configuration, stored at
// ~/.registrydeck/config.yaml. Every field is optional; the environment
// overrides the file and flags override both.
type Config struct {
	// ConnectorURL is the base URL of a running connector.
	// Default http://localhost:12780.
	ConnectorURL string `yaml:"connector_url"`

	// Token is the shared bearer token handed to the browser extension.
	// `registrydeck token generate` writes it here.
	Token string `yaml:"token"`

	// LogLevel is the serve/proxy log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// configDir returns ~/.registrydeck, creating nothing.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".registrydeck"
	}
	return filepath.Join(home, ".registrydeck")
}

func configPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// loadConfig reads the YAML config. A missing file yields the zero
// config with no error; a malformed file is reported.
func loadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// saveConfig writes the config back with owner-only permissions; the
// file holds the bearer token.
func saveConfig(path string, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0600)
}

// applyEnvOverrides layers the environment on top of the file config
// and fills remaining gaps with defaults.
func applyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("CONNECTOR_URL"); v != "" {
		cfg.ConnectorURL = v
	}
	if v := os.Getenv("CONNECTOR_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("REGISTRYDECK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if cfg.ConnectorURL == "" {
		cfg.ConnectorURL = "http://localhost:12780"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}
