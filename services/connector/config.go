// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package connector

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// DefaultPort is the connector's listen port when CONNECTOR_PORT is unset.
const DefaultPort = 12780

// Config holds the connector's runtime configuration.
//
// Configuration is env-first: LoadConfigFromEnv reads the environment and
// applyConfigDefaults fills the gaps, so a bare `registrydeck serve` works
// with zero setup.
type Config struct {
	// Port is the HTTP listen port. Env: CONNECTOR_PORT. Default 12780.
	Port int

	// Token is the shared bearer token. Env: CONNECTOR_TOKEN. When empty
	// a fresh UUIDv4 is generated and logged at startup so the operator
	// can hand it to the browser extension.
	Token string

	// NpmBin is the npm executable. Env: NPM_BIN. Default "npm".
	NpmBin string

	// NpmrcPath is the credentials file the watcher observes.
	// Env: NPMRC_PATH. Default ~/.npmrc.
	NpmrcPath string

	// TestEndpoints enables POST /reset. Env: CONNECTOR_TEST_ENDPOINTS
	// ("1" or "true"). Never enable outside test harnesses — /reset is
	// unauthenticated by design so test drivers can wipe state.
	TestEndpoints bool

	// OtlpEndpoint enables OTLP trace export when set.
	// Env: OTEL_EXPORTER_OTLP_ENDPOINT.
	OtlpEndpoint string
}

// LoadConfigFromEnv reads the connector configuration from the
// environment and applies defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Token:         os.Getenv("CONNECTOR_TOKEN"),
		NpmBin:        os.Getenv("NPM_BIN"),
		NpmrcPath:     os.Getenv("NPMRC_PATH"),
		OtlpEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TestEndpoints: boolEnv("CONNECTOR_TEST_ENDPOINTS"),
	}
	if raw := os.Getenv("CONNECTOR_PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 && port < 65536 {
			cfg.Port = port
		}
	}
	return applyConfigDefaults(cfg)
}

// applyConfigDefaults fills unset fields. Token generation is the one
// side-effectful default: callers that need to show the token to the
// operator read it back off the returned config.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.NpmBin == "" {
		cfg.NpmBin = "npm"
	}
	if cfg.NpmrcPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.NpmrcPath = filepath.Join(home, ".npmrc")
		}
	}
	if cfg.Token == "" {
		cfg.Token = uuid.NewString()
	}
	return cfg
}

func boolEnv(key string) bool {
	v := os.Getenv(key)
	return v == "1" || v == "true"
}
