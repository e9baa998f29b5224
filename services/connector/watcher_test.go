// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connector

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/RegistryDeck/pkg/extensions"
	"github.com/AleutianAI/RegistryDeck/pkg/procman"
)

func TestNpmrcWatcher_RefreshesUserOnChange(t *testing.T) {
	dir := t.TempDir()
	npmrc := filepath.Join(dir, ".npmrc")
	require.NoError(t, os.WriteFile(npmrc, []byte("//registry.npmjs.org/:_authToken=a\n"), 0o600))

	var mu sync.Mutex
	user := "before"
	pm := &procman.MockProcessManager{
		RunFunc: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			mu.Lock()
			defer mu.Unlock()
			return []byte(user + "\n"), nil
		},
	}

	svc := New(Config{Token: testToken, NpmrcPath: npmrc}, extensions.ServiceOptions{},
		pm, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.connect(ctx)
	require.Equal(t, "before", svc.currentSession().npmUser)

	svc.Start(ctx)
	defer svc.Close()

	mu.Lock()
	user = "after"
	mu.Unlock()
	require.NoError(t, os.WriteFile(npmrc, []byte("//registry.npmjs.org/:_authToken=b\n"), 0o600))

	assert.Eventually(t, func() bool {
		return svc.currentSession().npmUser == "after"
	}, 5*time.Second, 50*time.Millisecond, "watcher must re-resolve the registry user")
}

func TestNpmrcWatcher_MissingDirDisablesGracefully(t *testing.T) {
	svc := New(Config{Token: testToken, NpmrcPath: "/no/such/dir/.npmrc"},
		extensions.ServiceOptions{}, &procman.MockProcessManager{},
		slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	stop := svc.startNpmrcWatcher(context.Background())
	stop() // must be safe even when the watcher never started
}
