// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import "time"

// =============================================================================
// Status State Machine
// =============================================================================

// Status is the lifecycle state of a queued operation.
//
// Legal transitions form a strict chain with one loop-back:
//
//	pending → approved → running → completed
//	                             → failed → approved (retry)
//
// Any other transition attempt is rejected by the store without mutation.
// Cancelled is a terminal state reserved for operator tooling; the engine
// never selects cancelled operations.
type Status string

const (
	// StatusPending is the initial state: enqueued, awaiting approval.
	StatusPending Status = "pending"

	// StatusApproved means the operator approved the operation; it is
	// eligible for the next execute batch.
	StatusApproved Status = "approved"

	// StatusRunning means the engine is currently driving the operation
	// through the npm CLI. Running operations cannot be removed.
	StatusRunning Status = "running"

	// StatusCompleted means the CLI invocation exited zero.
	StatusCompleted Status = "completed"

	// StatusFailed means the CLI invocation exited nonzero or was vetoed.
	// Failed operations may be retried back to approved.
	StatusFailed Status = "failed"

	// StatusCancelled is terminal; set by operator tooling only.
	StatusCancelled Status = "cancelled"
)

// =============================================================================
// Operation Types
// =============================================================================

// The fixed enumeration of registry mutation kinds the connector queues.
// The npmcli catalog maps each to its concrete argument vector.
const (
	TypeOrgAddUser       = "org:add-user"
	TypeOrgRemoveUser    = "org:remove-user"
	TypeOrgSetRole       = "org:set-role"
	TypeTeamCreate       = "team:create"
	TypeTeamDestroy      = "team:destroy"
	TypeTeamAddMember    = "team:add-member"
	TypeTeamRemoveMember = "team:remove-member"
	TypeAccessGrant      = "access:grant"
	TypeAccessRevoke     = "access:revoke"
	TypeOwnerAdd         = "owner:add"
	TypeOwnerRemove      = "owner:remove"
)

// KnownTypes lists every operation type the connector accepts, in display
// order. Enqueue validation checks membership here so typos surface at
// enqueue time rather than as failed executions.
var KnownTypes = []string{
	TypeOrgAddUser,
	TypeOrgRemoveUser,
	TypeOrgSetRole,
	TypeTeamCreate,
	TypeTeamDestroy,
	TypeTeamAddMember,
	TypeTeamRemoveMember,
	TypeAccessGrant,
	TypeAccessRevoke,
	TypeOwnerAdd,
	TypeOwnerRemove,
}

// IsKnownType reports whether t is one of the fixed operation types.
func IsKnownType(t string) bool {
	for _, k := range KnownTypes {
		if k == t {
			return true
		}
	}
	return false
}

// =============================================================================
// Data Types
// =============================================================================

// Result is the outcome of one CLI invocation, recorded on the operation
// once execution has been attempted.
type Result struct {
	// Stdout is the captured standard output, trailing whitespace trimmed.
	Stdout string `json:"stdout"`

	// Stderr is the captured standard error, trailing whitespace trimmed.
	Stderr string `json:"stderr"`

	// ExitCode is 0 on success; -1 for spawn failure or timeout.
	ExitCode int `json:"exitCode"`

	// RequiresOtp is true when stderr indicates registry OTP step-up.
	RequiresOtp bool `json:"requiresOtp,omitempty"`

	// AuthFailure is true when stderr indicates a login problem.
	AuthFailure bool `json:"authFailure,omitempty"`
}

// Operation is the unit of queued work: a single privileged registry
// mutation with its own lifecycle.
type Operation struct {
	// ID is a UUID assigned at enqueue time. Immutable.
	ID string `json:"id"`

	// Type is one of the Type* constants.
	Type string `json:"type"`

	// Params maps parameter names to values; semantics depend on Type
	// (org name, username, role, scope:team, package, permission).
	Params map[string]string `json:"params"`

	// Description is a caller-supplied human-readable summary. Opaque.
	Description string `json:"description"`

	// Command is a caller-supplied display rendering of the invocation.
	// Opaque and display-only: the engine derives the real argv from
	// Type+Params and never executes this string.
	Command string `json:"command"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// CreatedAt is the enqueue timestamp.
	CreatedAt time.Time `json:"createdAt"`

	// DependsOn optionally names another operation's ID. The operation
	// will not run until the referenced operation is completed. Not
	// validated for existence at enqueue time — the referent may arrive
	// later in a batch.
	DependsOn string `json:"dependsOn,omitempty"`

	// Result is set once execution has been attempted.
	Result *Result `json:"result,omitempty"`
}

// Input is the caller-facing shape for enqueueing an operation.
type Input struct {
	Type        string            `json:"type" binding:"required,optype"`
	Params      map[string]string `json:"params" binding:"required"`
	Description string            `json:"description"`
	Command     string            `json:"command"`
	DependsOn   string            `json:"dependsOn"`
}

// clone returns a deep copy of the operation so callers can never mutate
// store-internal state through a returned pointer.
func (op *Operation) clone() *Operation {
	cp := *op
	if op.Params != nil {
		cp.Params = make(map[string]string, len(op.Params))
		for k, v := range op.Params {
			cp.Params[k] = v
		}
	}
	if op.Result != nil {
		res := *op.Result
		cp.Result = &res
	}
	return &cp
}
