// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for enterprise functionality.
//
// This package provides extension points that allow enterprise deployments
// to add capabilities without modifying the core RegistryDeck codebase.
// The open source version uses no-op defaults for all interfaces.
//
// # Design Philosophy
//
// RegistryDeck is designed as a fully functional local utility that works
// without any external infrastructure. Enterprise features are implemented
// by providing concrete implementations of these interfaces and injecting
// them via ServiceOptions.
//
// # Extension Categories
//
//   - audit.go: Compliance audit logging (AuditLogger)
//   - policy.go: Pre-execution command veto (CommandPolicy)
//
// # Usage in RegistryDeck (Open Source)
//
// The open source version uses no-op implementations:
//
//	opts := extensions.DefaultOptions()
//	svc := connector.New(cfg, opts)
//
// # Usage in Enterprise Deployments
//
// Enterprise builds provide concrete implementations:
//
//	opts := extensions.ServiceOptions{
//	    AuditLogger:   enterprise.NewSplunkAuditor(cfg),
//	    CommandPolicy: enterprise.NewChangeWindowPolicy(cfg),
//	}
//	svc := connector.New(cfg, opts)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to service constructors to enable enterprise features.
// All fields are optional; nil values are replaced with no-op defaults
// when DefaultOptions() is called or when services check for nil.
type ServiceOptions struct {
	// AuditLogger records security-relevant events.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// CommandPolicy can veto a queued operation before execution.
	// Default: NopCommandPolicy (allows everything)
	CommandPolicy CommandPolicy
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the open source version:
// every operation is allowed and no audit trail is written.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuditLogger:   &NopAuditLogger{},
		CommandPolicy: &NopCommandPolicy{},
	}
}

// WithAudit returns a copy of opts with the given AuditLogger.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithPolicy returns a copy of opts with the given CommandPolicy.
func (opts ServiceOptions) WithPolicy(policy CommandPolicy) ServiceOptions {
	opts.CommandPolicy = policy
	return opts
}

// Normalize replaces nil fields with no-op defaults.
//
// Services call this once at construction so handler code never needs
// nil checks on extension points.
func (opts ServiceOptions) Normalize() ServiceOptions {
	if opts.AuditLogger == nil {
		opts.AuditLogger = &NopAuditLogger{}
	}
	if opts.CommandPolicy == nil {
		opts.CommandPolicy = &NopCommandPolicy{}
	}
	return opts
}
