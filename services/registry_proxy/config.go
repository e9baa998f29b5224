// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registryproxy

import (
	"os"
	"strconv"
)

// Defaults for the proxy configuration.
const (
	DefaultPort         = 12781
	DefaultRegistryURL  = "https://registry.npmjs.org"
	DefaultDownloadsURL = "https://api.npmjs.org/downloads"
	DefaultUpstreamRPS  = 10
)

// Config holds the registry proxy's runtime configuration.
//
// The proxy serves public, read-only registry data; it carries no
// connector state and no credentials.
type Config struct {
	// Port is the HTTP listen port. Env: PROXY_PORT. Default 12781.
	Port int

	// RegistryURL is the upstream metadata registry.
	// Env: REGISTRY_URL. Default https://registry.npmjs.org.
	RegistryURL string

	// DownloadsURL is the upstream download-counts API base.
	// Env: DOWNLOADS_URL. Default https://api.npmjs.org/downloads.
	DownloadsURL string

	// CacheDir switches the Badger cache from in-memory to disk.
	// Env: CACHE_DIR. Empty means in-memory.
	CacheDir string

	// UpstreamRPS is the token-bucket rate toward the upstream registry.
	// Env: UPSTREAM_RPS. Default 10.
	UpstreamRPS int
}

// LoadConfigFromEnv reads the proxy configuration from the environment
// and applies defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		RegistryURL:  os.Getenv("REGISTRY_URL"),
		DownloadsURL: os.Getenv("DOWNLOADS_URL"),
		CacheDir:     os.Getenv("CACHE_DIR"),
	}
	if raw := os.Getenv("PROXY_PORT"); raw != "" {
		if port, err := strconv.Atoi(raw); err == nil && port > 0 && port < 65536 {
			cfg.Port = port
		}
	}
	if raw := os.Getenv("UPSTREAM_RPS"); raw != "" {
		if rps, err := strconv.Atoi(raw); err == nil && rps > 0 {
			cfg.UpstreamRPS = rps
		}
	}
	return applyConfigDefaults(cfg)
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.RegistryURL == "" {
		cfg.RegistryURL = DefaultRegistryURL
	}
	if cfg.DownloadsURL == "" {
		cfg.DownloadsURL = DefaultDownloadsURL
	}
	if cfg.UpstreamRPS == 0 {
		cfg.UpstreamRPS = DefaultUpstreamRPS
	}
	return cfg
}
