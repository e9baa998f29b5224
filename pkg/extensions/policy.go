// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import "context"

// CommandRequest describes an operation about to be executed, as seen by
// a CommandPolicy. Fields are copies; a policy cannot mutate the queue.
type CommandRequest struct {
	// OperationID is the queue id of the operation.
	OperationID string

	// Type is the operation type, e.g. "org:add-user".
	Type string

	// Params are the operation parameters (org, user, role, ...).
	Params map[string]string

	// Args is the resolved npm argument vector, without the OTP flag.
	Args []string
}

// PolicyDecision is the outcome of a policy evaluation.
type PolicyDecision struct {
	// Allow is true when the operation may proceed.
	Allow bool

	// Reason explains a veto. Recorded in the operation's failed result
	// so the operator can see why nothing was executed.
	Reason string
}

// CommandPolicy can veto a queued operation immediately before execution.
//
// The execution engine consults the policy after approval and dependency
// checks but before spawning the npm CLI. A veto records a failed result
// on the operation; it never aborts the rest of the batch.
//
// Enterprise implementations gate on change windows, protected orgs, or
// four-eyes rules. The open source version allows everything.
//
// # Thread Safety
//
// Evaluate may be called concurrently and must not block for long; it sits
// on the execution path of every operation.
type CommandPolicy interface {
	// Evaluate returns the decision for a single operation.
	Evaluate(ctx context.Context, req CommandRequest) PolicyDecision
}

// NopCommandPolicy allows every operation. Open source default.
type NopCommandPolicy struct{}

// Evaluate always allows.
func (p *NopCommandPolicy) Evaluate(_ context.Context, _ CommandRequest) PolicyDecision {
	return PolicyDecision{Allow: true}
}

// Ensure NopCommandPolicy implements CommandPolicy.
var _ CommandPolicy = (*NopCommandPolicy)(nil)
