// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package connector implements the local operations-queue service that
// mediates between the RegistryDeck browser extension and the operator's
// npm CLI session.
//
// The browser never holds registry credentials: it queues privileged
// mutations here, the operator approves them, and the connector executes
// them through the locally logged-in npm CLI, surfacing OTP step-up when
// the registry demands it.
package connector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/RegistryDeck/pkg/extensions"
	"github.com/AleutianAI/RegistryDeck/pkg/procman"
	"github.com/AleutianAI/RegistryDeck/services/connector/engine"
	"github.com/AleutianAI/RegistryDeck/services/connector/npmcli"
	"github.com/AleutianAI/RegistryDeck/services/connector/observability"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

// session is the connector's single logical session: one browser, one
// operator, one npm login.
type session struct {
	connected   bool
	npmUser     string
	connectedAt time.Time
}

// Service wires the store, engine, executor, OTP holder, and mirror
// behind the HTTP surface.
//
// # Thread Safety
//
// Safe for concurrent use. The session record has its own lock; queue
// state is guarded by the store; batch execution by the engine trylock.
type Service struct {
	cfg     Config
	log     *slog.Logger
	metrics *observability.ConnectorMetrics

	store    *store.Store
	executor *npmcli.Executor
	engine   *engine.Engine
	otp      *OtpHolder
	audit    extensions.AuditLogger

	sessionMu sync.Mutex
	session   session

	// stateChanged signals session/OTP mutations to WebSocket streams;
	// store mutations arrive through store.Watch.
	stateChanged *broadcaster

	stopWatcher func()
}

// New assembles a connector service.
//
// pm must not be nil; tests pass a procman.MockProcessManager, production
// callers procman.NewDefaultProcessManager(). logger falls back to
// slog.Default; metrics may be nil (nothing is recorded).
func New(cfg Config, opts extensions.ServiceOptions, pm procman.ProcessManager, logger *slog.Logger, metrics *observability.ConnectorMetrics) *Service {
	cfg = applyConfigDefaults(cfg)
	opts = opts.Normalize()
	if logger == nil {
		logger = slog.Default()
	}

	st := store.New()
	exec := npmcli.NewExecutor(pm, cfg.NpmBin, logger)

	return &Service{
		cfg:          cfg,
		log:          logger,
		metrics:      metrics,
		store:        st,
		executor:     exec,
		engine:       engine.New(st, exec, engine.NewMirror(), opts, logger, metrics),
		otp:          NewOtpHolder(),
		audit:        opts.AuditLogger,
		stateChanged: newBroadcaster(),
	}
}

// Config returns the effective configuration, defaults applied.
func (s *Service) Config() Config {
	return s.cfg
}

// Store exposes the queue for tests and the CLI's in-process mode.
func (s *Service) Store() *store.Store {
	return s.store
}

// Start launches background pieces (currently the credential watcher).
// Safe to skip in tests; Close undoes it.
func (s *Service) Start(ctx context.Context) {
	s.stopWatcher = s.startNpmrcWatcher(ctx)
}

// Close releases background resources and destroys the OTP buffer.
func (s *Service) Close() {
	if s.stopWatcher != nil {
		s.stopWatcher()
		s.stopWatcher = nil
	}
	s.otp.Clear()
}

// connect establishes the session after the token has been verified.
//
// whoami failure is not fatal: the session is established with an empty
// npmUser and the UI shows the logged-out registry state.
func (s *Service) connect(ctx context.Context) (npmUser string, connectedAt time.Time) {
	user, err := s.executor.Whoami(ctx)
	if err != nil {
		s.log.Warn("session connected but npm whoami failed; registry appears logged out",
			"error", err.Error(),
		)
		user = ""
	}

	s.sessionMu.Lock()
	s.session = session{
		connected:   true,
		npmUser:     user,
		connectedAt: time.Now().UTC(),
	}
	snap := s.session
	s.sessionMu.Unlock()

	s.auditSession(ctx, "session.connect", user, "success")
	s.stateChanged.notify()
	return snap.npmUser, snap.connectedAt
}

// currentSession returns a copy of the session record.
func (s *Service) currentSession() session {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	return s.session
}

// setNpmUser updates the resolved registry user (credential watcher).
func (s *Service) setNpmUser(user string) {
	s.sessionMu.Lock()
	changed := s.session.connected && s.session.npmUser != user
	if changed {
		s.session.npmUser = user
	}
	connected := s.session.connected
	s.sessionMu.Unlock()

	if !connected {
		return
	}
	if changed {
		s.log.Info("registry user changed", "npm_user", user)
		s.stateChanged.notify()
	}
}

// resetState wipes queue, session, OTP, and mirror. Test endpoint only.
func (s *Service) resetState() {
	s.store.Reset()
	s.otp.Clear()
	s.sessionMu.Lock()
	s.session = session{}
	s.sessionMu.Unlock()
	if m := s.engine.Mirror(); m != nil {
		m.Reset()
	}
	s.stateChanged.notify()
}

func (s *Service) auditSession(ctx context.Context, eventType, user, outcome string) {
	if user == "" {
		user = "anonymous"
	}
	_ = s.audit.Log(ctx, extensions.AuditEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		NpmUser:   user,
		Outcome:   outcome,
	})
}
