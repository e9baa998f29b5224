// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package procman abstracts external process execution behind an interface.

All subprocess invocations in RegistryDeck (the npm CLI above all) go through
ProcessManager rather than calling exec.Command directly. By abstracting
process execution behind an interface we can:
  - Mock npm invocations in unit tests
  - Capture and verify the exact argument vectors sent to the CLI
  - Simulate success/failure/OTP scenarios without a real registry
*/
package procman

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Capture holds the separated output of a completed process.
//
// ExitCode is the process exit status; -1 indicates the process never ran
// (spawn failure) or was killed by the context deadline.
type Capture struct {
	// Stdout is the raw standard output of the process.
	Stdout []byte

	// Stderr is the raw standard error of the process.
	Stderr []byte

	// ExitCode is the exit status, or -1 if the process did not complete.
	ExitCode int
}

// ProcessManager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines.
//
// # Context Handling
//
// All methods accept a context.Context for cancellation and timeout support.
// A cancelled context kills the child process.
type ProcessManager interface {
	// Run executes a command synchronously and returns its stdout.
	//
	// # Description
	//
	// Convenience form for probes where stderr and the exact exit code do
	// not matter, such as `npm whoami`. On failure the returned error
	// includes trimmed stderr for diagnostics.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - []byte: Standard output
	//   - error: Non-nil if the command fails or is cancelled
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// CaptureRun executes a command and captures both streams separately.
	//
	// # Description
	//
	// The workhorse for the command executor: both streams are captured
	// even when the process fails, and the exit code is reported rather
	// than folded into the error. The error is non-nil only for faults
	// outside the process itself (spawn failure, context cancellation);
	// a nonzero exit is NOT an error here.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout
	//   - name: The executable name or path
	//   - args: Command arguments (variadic)
	//
	// # Outputs
	//
	//   - Capture: Stdout, stderr, and exit code
	//   - error: Non-nil only for spawn failure or cancellation
	CaptureRun(ctx context.Context, name string, args ...string) (Capture, error)
}

// -----------------------------------------------------------------------------
// Default Implementation
// -----------------------------------------------------------------------------

// DefaultProcessManager executes real processes using os/exec.
type DefaultProcessManager struct{}

// NewDefaultProcessManager creates a ProcessManager that executes real
// processes. Use this in production code; tests use MockProcessManager.
func NewDefaultProcessManager() *DefaultProcessManager {
	return &DefaultProcessManager{}
}

// Run executes a command synchronously and returns its stdout.
func (pm *DefaultProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Include stderr in the error for debugging
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// CaptureRun executes a command and captures both streams and the exit code.
func (pm *DefaultProcessManager) CaptureRun(ctx context.Context, name string, args ...string) (Capture, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	cap := Capture{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: 0,
	}

	if err != nil {
		// A context kill also surfaces as *exec.ExitError (signal death),
		// so the deadline check must come first or timeouts would be
		// misread as ordinary nonzero exits.
		if ctxErr := ctx.Err(); ctxErr != nil {
			cap.ExitCode = -1
			return cap, fmt.Errorf("process %s: %w", name, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Process ran and exited nonzero: a result, not an error.
			cap.ExitCode = exitErr.ExitCode()
			return cap, nil
		}
		// Spawn failure.
		cap.ExitCode = -1
		return cap, fmt.Errorf("process %s: %w", name, err)
	}

	return cap, nil
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockProcessManager is a test double for ProcessManager.
//
// Configure the mock by setting function fields before use. If a function
// field is nil and the corresponding method is called, it panics — a test
// exercising an unexpected path should fail loudly.
//
// # Examples
//
//	mock := &procman.MockProcessManager{
//	    CaptureRunFunc: func(ctx context.Context, name string, args ...string) (procman.Capture, error) {
//	        if args[0] == "whoami" {
//	            return procman.Capture{Stdout: []byte("bob\n")}, nil
//	        }
//	        return procman.Capture{Stderr: []byte("code EOTP"), ExitCode: 1}, nil
//	    },
//	}
type MockProcessManager struct {
	// RunFunc is called when Run is invoked
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	// CaptureRunFunc is called when CaptureRun is invoked
	CaptureRunFunc func(ctx context.Context, name string, args ...string) (Capture, error)

	// Calls records all method invocations for verification
	Calls []Call

	// mu protects Calls for concurrent access
	mu sync.Mutex
}

// Call records a single method invocation.
type Call struct {
	Method string
	Name   string
	Args   []string
}

// Run delegates to RunFunc and records the call.
func (m *MockProcessManager) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record("Run", name, args)
	if m.RunFunc == nil {
		panic("MockProcessManager.RunFunc not set")
	}
	return m.RunFunc(ctx, name, args...)
}

// CaptureRun delegates to CaptureRunFunc and records the call.
func (m *MockProcessManager) CaptureRun(ctx context.Context, name string, args ...string) (Capture, error) {
	m.record("CaptureRun", name, args)
	if m.CaptureRunFunc == nil {
		panic("MockProcessManager.CaptureRunFunc not set")
	}
	return m.CaptureRunFunc(ctx, name, args...)
}

// Reset clears all recorded calls.
func (m *MockProcessManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockProcessManager) GetCalls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Call, len(m.Calls))
	copy(result, m.Calls)
	return result
}

func (m *MockProcessManager) record(method, name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Method: method, Name: name, Args: args})
}

// Compile-time interface compliance check.
var (
	_ ProcessManager = (*DefaultProcessManager)(nil)
	_ ProcessManager = (*MockProcessManager)(nil)
)
