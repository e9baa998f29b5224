// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package procman

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProcessManager_Run(t *testing.T) {
	pm := NewDefaultProcessManager()

	out, err := pm.Run(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestDefaultProcessManager_Run_MissingBinary(t *testing.T) {
	pm := NewDefaultProcessManager()

	_, err := pm.Run(context.Background(), "definitely-not-a-binary-xyz")
	assert.Error(t, err)
}

func TestDefaultProcessManager_CaptureRun_Success(t *testing.T) {
	pm := NewDefaultProcessManager()

	cap, err := pm.CaptureRun(context.Background(), "echo", "hi")
	require.NoError(t, err)
	assert.Equal(t, 0, cap.ExitCode)
	assert.Equal(t, "hi\n", string(cap.Stdout))
	assert.Empty(t, cap.Stderr)
}

func TestDefaultProcessManager_CaptureRun_NonzeroExit(t *testing.T) {
	pm := NewDefaultProcessManager()

	// `false` exits 1 with no output; a nonzero exit is a result, not an error.
	cap, err := pm.CaptureRun(context.Background(), "false")
	require.NoError(t, err)
	assert.Equal(t, 1, cap.ExitCode)
}

func TestDefaultProcessManager_CaptureRun_SpawnFailure(t *testing.T) {
	pm := NewDefaultProcessManager()

	cap, err := pm.CaptureRun(context.Background(), "definitely-not-a-binary-xyz")
	assert.Error(t, err)
	assert.Equal(t, -1, cap.ExitCode)
}

func TestDefaultProcessManager_CaptureRun_Timeout(t *testing.T) {
	pm := NewDefaultProcessManager()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cap, err := pm.CaptureRun(ctx, "sleep", "10")
	assert.Error(t, err)
	assert.Equal(t, -1, cap.ExitCode)
}

func TestMockProcessManager_RecordsCalls(t *testing.T) {
	mock := &MockProcessManager{
		CaptureRunFunc: func(_ context.Context, _ string, _ ...string) (Capture, error) {
			return Capture{Stdout: []byte("ok")}, nil
		},
	}

	_, err := mock.CaptureRun(context.Background(), "npm", "org", "set", "@acme", "bob", "developer")
	require.NoError(t, err)

	calls := mock.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "CaptureRun", calls[0].Method)
	assert.Equal(t, "npm", calls[0].Name)
	assert.Equal(t, []string{"org", "set", "@acme", "bob", "developer"}, calls[0].Args)

	mock.Reset()
	assert.Empty(t, mock.GetCalls())
}
