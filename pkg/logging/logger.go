// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for RegistryDeck components.
//
// The package is a thin layer over the standard library slog package with
// two additions the services share:
//
//   - Default: stderr output for CLI compatibility (follows Unix conventions)
//   - Optional: file logging with automatic directory creation
//
// # Basic Usage
//
// Service mains install a process-wide default once at startup:
//
//	logger := logging.Init(logging.Config{
//	    Level:   logging.LevelInfo,
//	    Service: "connector",
//	    JSON:    true,
//	})
//	logger.Info("listening", "port", cfg.Port)
//
// # File Logging
//
// Setting LogDir writes JSON logs to `{service}_{date}.log` alongside
// stderr. The directory supports ~ expansion:
//
//	logging.Init(logging.Config{
//	    Service: "connector",
//	    LogDir:  "~/.registrydeck/logs",
//	})
//
// # Security Considerations
//
// This package does NOT redact sensitive data. Callers must never log the
// shared token or an OTP value; log presence flags instead:
//
//	logger.Info("otp updated", "otp_present", otp != "")
//
// # Thread Safety
//
// The returned slog.Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity. It maps 1:1 onto slog levels; the local
// type exists so CLI flags and YAML config can parse level names without
// importing slog.
type Level int

const (
	// LevelInfo is for normal operational messages. First so that the
	// zero value of Level (an unset Config) means Info.
	LevelInfo Level = iota

	// LevelDebug is for development troubleshooting.
	LevelDebug

	// LevelWarn is for potentially problematic situations.
	LevelWarn

	// LevelError is for operation failures the process survives.
	LevelError
)

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a
// Level. Unknown names fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// toSlogLevel bridges our Level type to the standard library.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures logger construction. The zero value produces an
// Info-level text logger on stderr.
type Config struct {
	// Level sets the minimum log level.
	// Messages below this level are discarded. Default: LevelInfo.
	Level Level

	// Service identifies the component generating logs.
	//
	// Included in every entry as the "service" attribute so aggregated
	// logs can be filtered per component.
	// Recommended values: "connector", "proxy", "cli".
	Service string

	// LogDir enables file logging to the specified directory.
	//
	// When set, logs are written to both stderr and a file named
	// "{Service}_{YYYY-MM-DD}.log" in JSON format. The directory is
	// created with 0750 permissions if missing, and supports ~ expansion.
	// Default: "" (file logging disabled).
	LogDir string

	// JSON switches stderr output to JSON format.
	//
	// File logs are always JSON regardless of this setting, as they are
	// intended for machine processing. Default: false (text).
	JSON bool

	// Quiet disables stderr output.
	//
	// Useful for daemon processes where stderr is not monitored.
	// Default: false.
	Quiet bool
}

// =============================================================================
// Construction
// =============================================================================

// New creates a logger from the given configuration.
//
// The file handle, when file logging is enabled, is owned by the returned
// logger's handler and lives for the process lifetime; there is nothing to
// close explicitly.
func New(config Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	if config.LogDir != "" {
		if h := fileHandler(config, opts); h != nil {
			handlers = append(handlers, h)
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet with no file destination still needs a sink.
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}
	return logger
}

// Init creates a logger and installs it as the slog default.
//
// Service mains call this exactly once at startup so that package-level
// slog calls in dependencies share the same destination.
func Init(config Config) *slog.Logger {
	logger := New(config)
	slog.SetDefault(logger)
	return logger
}

// fileHandler opens the dated log file and returns a JSON handler for it,
// or nil when the directory or file cannot be created. File logging is
// best-effort: a read-only filesystem must not prevent startup.
func fileHandler(config Config, opts *slog.HandlerOptions) slog.Handler {
	logDir := expandPath(config.LogDir)
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil
	}

	serviceName := config.Service
	if serviceName == "" {
		serviceName = "registrydeck"
	}
	filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil
	}
	return slog.NewJSONHandler(file, opts)
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out log records to multiple slog handlers, enabling
// simultaneous stderr and file output with different formats.
type multiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the level.
func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to all enabled handlers.
func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

// WithGroup returns a new handler with a group name.
func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helper Functions
// =============================================================================

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
