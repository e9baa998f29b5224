// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	require.NotNil(t, opts.AuditLogger)
	require.NotNil(t, opts.CommandPolicy)

	assert.IsType(t, &NopAuditLogger{}, opts.AuditLogger)
	assert.IsType(t, &NopCommandPolicy{}, opts.CommandPolicy)
}

func TestNormalize_FillsNilFields(t *testing.T) {
	opts := ServiceOptions{}.Normalize()

	require.NotNil(t, opts.AuditLogger)
	require.NotNil(t, opts.CommandPolicy)
}

func TestNormalize_KeepsProvidedFields(t *testing.T) {
	audit := &recordingAuditLogger{}
	opts := ServiceOptions{AuditLogger: audit}.Normalize()

	assert.Same(t, audit, opts.AuditLogger)
	require.NotNil(t, opts.CommandPolicy)
}

func TestWithAudit_WithPolicy(t *testing.T) {
	audit := &recordingAuditLogger{}
	policy := &denyAllPolicy{}

	opts := DefaultOptions().WithAudit(audit).WithPolicy(policy)

	assert.Same(t, audit, opts.AuditLogger)
	assert.Same(t, policy, opts.CommandPolicy)
}

func TestNopAuditLogger(t *testing.T) {
	logger := &NopAuditLogger{}
	err := logger.Log(context.Background(), AuditEvent{EventType: "queue.enqueue"})
	assert.NoError(t, err)
}

func TestNopCommandPolicy_AllowsEverything(t *testing.T) {
	policy := &NopCommandPolicy{}

	decision := policy.Evaluate(context.Background(), CommandRequest{
		Type: "team:destroy",
		Args: []string{"team", "destroy", "@acme:publishers"},
	})

	assert.True(t, decision.Allow)
	assert.Empty(t, decision.Reason)
}

// =============================================================================
// Test Doubles
// =============================================================================

type recordingAuditLogger struct {
	events []AuditEvent
}

func (l *recordingAuditLogger) Log(_ context.Context, event AuditEvent) error {
	l.events = append(l.events, event)
	return nil
}

type denyAllPolicy struct{}

func (p *denyAllPolicy) Evaluate(_ context.Context, _ CommandRequest) PolicyDecision {
	return PolicyDecision{Allow: false, Reason: "denied by test policy"}
}
