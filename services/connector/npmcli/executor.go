// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package npmcli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/RegistryDeck/pkg/procman"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

// DefaultTimeout bounds a single npm invocation. Registry mutations are
// interactive-scale operations; anything past a minute is hung.
const DefaultTimeout = 60 * time.Second

// Executor runs resolved invocations against the npm binary.
//
// # Contract
//
// Run never returns a Go error and never panics: spawn failure, nonzero
// exit, and timeout all resolve to a well-formed store.Result with a
// nonzero ExitCode (-1 when the process did not complete). This is what
// lets the execution engine treat every outcome uniformly as data.
//
// # Thread Safety
//
// Safe for concurrent use; the executor holds no mutable state.
type Executor struct {
	pm      procman.ProcessManager
	bin     string
	timeout time.Duration
	log     *slog.Logger
}

// NewExecutor creates an executor for the given npm binary.
//
// bin defaults to "npm" when empty; pm must not be nil (tests pass a
// procman.MockProcessManager); logger falls back to slog.Default.
func NewExecutor(pm procman.ProcessManager, bin string, logger *slog.Logger) *Executor {
	if bin == "" {
		bin = "npm"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		pm:      pm,
		bin:     bin,
		timeout: DefaultTimeout,
		log:     logger,
	}
}

// WithTimeout returns a copy of the executor with a different per-command
// timeout. Used by tests to avoid waiting out the full minute.
func (e *Executor) WithTimeout(d time.Duration) *Executor {
	cp := *e
	cp.timeout = d
	return &cp
}

// Run executes one resolved invocation, appending `--otp <value>` when an
// OTP is provided.
//
// # Inputs
//
//   - ctx: request-scoped context; the per-command timeout is layered on top
//   - inv: a catalog-resolved invocation; failing invocations short-circuit
//   - otp: one-time password, or "" for none
//
// # Outputs
//
//   - store.Result: always well-formed; see the Executor contract
func (e *Executor) Run(ctx context.Context, inv Invocation, otp string) store.Result {
	if inv.Fail {
		return store.Result{
			Stderr:   inv.Reason,
			ExitCode: 1,
		}
	}

	args := inv.Args
	if otp != "" {
		args = append(append([]string{}, args...), "--otp", otp)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cap, err := e.pm.CaptureRun(ctx, e.bin, args...)

	res := store.Result{
		Stdout:   strings.TrimRight(string(cap.Stdout), " \t\r\n"),
		Stderr:   strings.TrimRight(string(cap.Stderr), " \t\r\n"),
		ExitCode: cap.ExitCode,
	}

	if err != nil {
		// Spawn failure or timeout: fold the diagnostic into stderr so the
		// operation's recorded result is self-describing.
		res.ExitCode = -1
		diag := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			diag = fmt.Sprintf("command timed out after %s: %v", e.timeout, err)
		}
		if res.Stderr != "" {
			res.Stderr += "\n"
		}
		res.Stderr += diag
		e.log.Warn("npm invocation did not complete",
			"args", inv.Args,
			"error", err.Error(),
		)
	}

	res.RequiresOtp = detectOtpRequired(res.Stderr)
	res.AuthFailure = detectAuthFailure(res.Stderr)
	return res
}

// Whoami resolves the authenticated registry username. Used by the
// session layer at connect time and by the credential watcher.
//
// Returns the trimmed username, or an error when the CLI is logged out
// or unreachable.
func (e *Executor) Whoami(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.pm.Run(ctx, e.bin, "whoami")
	if err != nil {
		return "", fmt.Errorf("npm whoami: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// detectOtpRequired classifies stderr for registry OTP step-up.
//
// The registry signals step-up with an EOTP error code; older CLI
// versions print "one-time pass" prose instead.
func detectOtpRequired(stderr string) bool {
	return strings.Contains(stderr, "EOTP") ||
		strings.Contains(strings.ToLower(stderr), "one-time pass")
}

// detectAuthFailure classifies stderr for login problems.
func detectAuthFailure(stderr string) bool {
	return strings.Contains(stderr, "ENEEDAUTH") ||
		strings.Contains(stderr, "E401")
}
