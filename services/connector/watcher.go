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
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// npmrcDebounce coalesces the burst of write/rename events editors and
// `npm login` produce when rewriting .npmrc.
const npmrcDebounce = 500 * time.Millisecond

// startNpmrcWatcher watches the credentials file and re-resolves the
// registry user when it changes.
//
// # Description
//
// npm login/logout rewrites ~/.npmrc, usually via rename, so the watch
// is on the parent directory with events filtered to the file name.
// After a debounce, if a session is connected, `npm whoami` runs again
// and the session's npmUser is updated (possibly to empty for logout).
//
// Never fails startup: a missing directory or unavailable inotify logs
// a warning and disables the watcher — the operator can still refresh by
// reconnecting.
//
// # Outputs
//
//   - func(): stop function; always safe to call
func (s *Service) startNpmrcWatcher(ctx context.Context) func() {
	if s.cfg.NpmrcPath == "" {
		return func() {}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Warn("credential watcher unavailable; npm user will not auto-refresh",
			"error", err.Error(),
		)
		return func() {}
	}

	dir := filepath.Dir(s.cfg.NpmrcPath)
	if err := watcher.Add(dir); err != nil {
		s.log.Warn("cannot watch npmrc directory; npm user will not auto-refresh",
			"dir", dir,
			"error", err.Error(),
		)
		watcher.Close()
		return func() {}
	}

	done := make(chan struct{})
	go s.watchNpmrc(ctx, watcher, done)

	return func() {
		watcher.Close()
		<-done
	}
}

func (s *Service) watchNpmrc(ctx context.Context, watcher *fsnotify.Watcher, done chan<- struct{}) {
	defer close(done)

	target := filepath.Clean(s.cfg.NpmrcPath)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	refresh := make(chan struct{}, 1)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(npmrcDebounce, func() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			})

		case <-refresh:
			s.refreshNpmUser(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("credential watcher error", "error", err.Error())

		case <-ctx.Done():
			return
		}
	}
}

// refreshNpmUser re-resolves whoami after a credentials change. A
// whoami failure means logged out; the session survives with an empty
// user.
func (s *Service) refreshNpmUser(ctx context.Context) {
	if !s.currentSession().connected {
		return
	}

	user, err := s.executor.Whoami(ctx)
	if err != nil {
		s.log.Info("npmrc changed; registry now appears logged out", "error", err.Error())
		user = ""
	} else {
		s.log.Info("npmrc changed; re-resolved registry user", "npm_user", user)
	}
	s.setNpmUser(user)
}
