// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine executes approved queue operations against the npm CLI.
//
// # Description
//
// The engine is the connector's only writer of running/completed/failed
// statuses. An execute batch:
//
//  1. Snapshots the approved operations and orders them by dependsOn,
//     excluding operations on a dependency cycle.
//  2. Re-checks each operation live (still present, still approved) and
//     gates on its dependency having completed.
//  3. Consults the command policy, then runs the resolved invocation.
//  4. Records the terminal result, or — on an OTP step-up with no OTP in
//     hand — releases the operation back to approved and halts the batch.
//
// The store lock is never held across a subprocess; the engine works from
// snapshots and commits transitions through the store's state machine.
//
// # Thread Safety
//
// Execute is serialized with a trylock: a second caller gets
// ErrExecuteInProgress immediately rather than queueing behind a batch
// that may be waiting on a 60-second npm timeout.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/RegistryDeck/pkg/extensions"
	"github.com/AleutianAI/RegistryDeck/services/connector/npmcli"
	"github.com/AleutianAI/RegistryDeck/services/connector/observability"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

// Runner abstracts the npm executor so engine tests can script outcomes
// without a process manager.
type Runner interface {
	// Run executes one invocation and returns its result as data.
	Run(ctx context.Context, inv npmcli.Invocation, otp string) store.Result
}

// OperationResult is one operation's outcome within a batch, as reported
// to the caller of POST /execute.
type OperationResult struct {
	ID     string       `json:"id"`
	Type   string       `json:"type"`
	Status store.Status `json:"status"`
	Result store.Result `json:"result"`
}

// BatchOutcome is the aggregate result of one execute batch.
//
// When OtpRequired is set, Results holds only the operations that reached
// a terminal status before the halt; the operation that triggered the
// step-up was released back to approved and is NOT in Results — it will
// run first in the retried batch.
type BatchOutcome struct {
	Results     []OperationResult `json:"results"`
	OtpRequired bool              `json:"otpRequired"`
}

// Engine runs approved operations in dependency order.
type Engine struct {
	store   *store.Store
	runner  Runner
	mirror  *Mirror
	policy  extensions.CommandPolicy
	audit   extensions.AuditLogger
	log     *slog.Logger
	metrics *observability.ConnectorMetrics

	running atomic.Bool
}

// New creates an engine.
//
// mirror may be nil (no projection); opts fields may be nil (nop policy
// and audit); logger falls back to slog.Default; metrics may be nil.
func New(st *store.Store, runner Runner, mirror *Mirror, opts extensions.ServiceOptions, logger *slog.Logger, metrics *observability.ConnectorMetrics) *Engine {
	opts = opts.Normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   st,
		runner:  runner,
		mirror:  mirror,
		policy:  opts.CommandPolicy,
		audit:   opts.AuditLogger,
		log:     logger,
		metrics: metrics,
	}
}

// Execute runs every approved operation, in dependency order, with the
// given OTP ("" for none).
//
// # Inputs
//
//   - ctx: request-scoped context, passed through to each invocation
//   - otp: one-time password forwarded to every command in the batch
//
// # Outputs
//
//   - BatchOutcome: per-operation results and the OTP halt flag
//   - error: ErrExecuteInProgress when another batch is running
//
// # Edge Cases
//
//   - An operation approved at snapshot time but removed or re-statused
//     before its turn is silently skipped.
//   - An operation whose dependency is absent or not completed is skipped
//     and stays approved; it becomes runnable once the dependency lands.
//   - A non-OTP failure records a failed result and the batch continues.
func (e *Engine) Execute(ctx context.Context, otp string) (BatchOutcome, error) {
	if !e.running.CompareAndSwap(false, true) {
		return BatchOutcome{}, ErrExecuteInProgress
	}
	defer e.running.Store(false)

	e.metrics.BatchStarted()

	var selected []*store.Operation
	for _, op := range e.store.List() {
		if op.Status == store.StatusApproved {
			selected = append(selected, op)
		}
	}

	ordered, cyclic := orderByDependency(selected)
	if len(cyclic) > 0 {
		ids := make([]string, len(cyclic))
		for i, op := range cyclic {
			ids[i] = op.ID
		}
		e.metrics.CyclesDetected(len(cyclic))
		e.log.Warn("dependency cycle detected; operations excluded from batch",
			"operation_ids", ids,
		)
	}

	outcome := BatchOutcome{Results: []OperationResult{}}

	for _, snap := range ordered {
		// Re-check live state: the queue may have changed under us while a
		// previous command ran.
		op, err := e.store.Get(snap.ID)
		if err != nil || op.Status != store.StatusApproved {
			continue
		}

		if op.DependsOn != "" {
			dep, err := e.store.Get(op.DependsOn)
			if err != nil || dep.Status != store.StatusCompleted {
				e.log.Info("skipping operation with unmet dependency",
					"operation_id", op.ID,
					"depends_on", op.DependsOn,
				)
				continue
			}
		}

		inv := npmcli.Resolve(op.Type, op.Params)
		if !inv.Fail {
			decision := e.policy.Evaluate(ctx, extensions.CommandRequest{
				OperationID: op.ID,
				Type:        op.Type,
				Params:      op.Params,
				Args:        inv.Args,
			})
			if !decision.Allow {
				inv = npmcli.Invocation{
					Fail:   true,
					Reason: "blocked by command policy: " + decision.Reason,
				}
				e.auditEvent(ctx, "queue.execute", op, "blocked")
			}
		}

		if err := e.store.MarkRunning(op.ID); err != nil {
			continue
		}

		res := e.runInvocation(ctx, inv, otp)

		if res.RequiresOtp && otp == "" {
			// Step-up: put the operation back and let the caller retry the
			// whole batch with an OTP. No result is recorded — the attempt
			// never happened as far as the queue is concerned.
			if err := e.store.Release(op.ID); err != nil {
				e.log.Error("failed to release operation after OTP halt",
					"operation_id", op.ID,
					"error", err.Error(),
				)
			}
			e.metrics.OtpHalt()
			e.log.Info("batch halted awaiting one-time password",
				"operation_id", op.ID,
				"completed_before_halt", len(outcome.Results),
			)
			outcome.OtpRequired = true
			return outcome, nil
		}

		updated, err := e.store.ApplyResult(op.ID, res)
		if err != nil {
			// The operation vanished mid-flight (reset). Drop its result.
			e.log.Warn("could not record result", "operation_id", op.ID, "error", err.Error())
			continue
		}

		e.metrics.Executed(string(updated.Status))
		e.auditEvent(ctx, "queue.execute", updated, string(updated.Status))

		if updated.Status == store.StatusCompleted && e.mirror != nil {
			e.mirror.Apply(updated)
		}

		outcome.Results = append(outcome.Results, OperationResult{
			ID:     updated.ID,
			Type:   updated.Type,
			Status: updated.Status,
			Result: *updated.Result,
		})
	}

	return outcome, nil
}

// Running reports whether a batch is currently executing.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Mirror returns the engine's projection, or nil when none was configured.
func (e *Engine) Mirror() *Mirror {
	return e.mirror
}

// runInvocation wraps the runner with timing and a panic guard. A panic
// inside a runner (mocks included) becomes a failed result rather than
// tearing down the batch with operations stuck in running.
func (e *Engine) runInvocation(ctx context.Context, inv npmcli.Invocation, otp string) (res store.Result) {
	start := time.Now()
	defer func() {
		e.metrics.ObserveCommandDuration(time.Since(start).Seconds())
		if r := recover(); r != nil {
			e.log.Error("runner panicked", "panic", fmt.Sprint(r))
			res = store.Result{
				Stderr:   fmt.Sprintf("internal error: %v", r),
				ExitCode: -1,
			}
		}
	}()
	return e.runner.Run(ctx, inv, otp)
}

func (e *Engine) auditEvent(ctx context.Context, eventType string, op *store.Operation, outcome string) {
	_ = e.audit.Log(ctx, extensions.AuditEvent{
		EventType:   eventType,
		Timestamp:   time.Now().UTC(),
		OperationID: op.ID,
		Outcome:     outcome,
		Metadata: map[string]any{
			"type": op.Type,
		},
	})
}
