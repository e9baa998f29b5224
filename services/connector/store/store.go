// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store holds the connector's in-memory operations queue.
//
// The store owns every queued operation and is the single authority on the
// lifecycle state machine: all transitions go through its methods, which
// reject illegal moves with sentinel errors rather than mutating. Nothing
// here is durable — the queue lives and dies with the connector process.
//
// # Thread Safety
//
// All methods are safe for concurrent use. A single mutex guards the
// queue; methods never block on anything but that mutex, so the store is
// safe to call from HTTP handlers while an execution batch is in flight.
// Returned operations are deep copies — callers cannot mutate store state
// through them.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the in-memory operations queue.
//
// Construct with New. The zero value is not usable.
type Store struct {
	mu sync.Mutex

	// ops preserves insertion order, which is the default listing order.
	ops []*Operation

	// byID indexes the same *Operation values for O(1) lookup.
	byID map[string]*Operation

	// watchers receive a non-blocking signal after every mutation.
	watchers  map[int]chan struct{}
	nextWatch int

	// now is the clock, swappable in tests.
	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		byID:     make(map[string]*Operation),
		watchers: make(map[int]chan struct{}),
		now:      time.Now,
	}
}

// =============================================================================
// Enqueue
// =============================================================================

// Add enqueues a single operation.
//
// # Description
//
// Assigns a fresh UUID, initializes status to pending and createdAt to
// now, and appends the operation in insertion order.
//
// # Outputs
//
//   - *Operation: a copy of the created operation
//   - error: ErrValidation when the input's type is unknown or params nil
func (s *Store) Add(input Input) (*Operation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.addLocked(input)
	s.notifyLocked()
	return op.clone(), nil
}

// AddBatch enqueues many operations atomically.
//
// Every entry is validated before anything is enqueued; one bad entry
// rejects the entire batch. On success the created operations are
// returned in input order.
func (s *Store) AddBatch(inputs []Input) ([]*Operation, error) {
	for i, input := range inputs {
		if err := validateInput(input); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	created := make([]*Operation, 0, len(inputs))
	for _, input := range inputs {
		created = append(created, s.addLocked(input).clone())
	}
	s.notifyLocked()
	return created, nil
}

// addLocked creates and appends the operation. Caller holds s.mu.
func (s *Store) addLocked(input Input) *Operation {
	op := &Operation{
		ID:          uuid.NewString(),
		Type:        input.Type,
		Params:      input.Params,
		Description: input.Description,
		Command:     input.Command,
		Status:      StatusPending,
		CreatedAt:   s.now(),
		DependsOn:   input.DependsOn,
	}
	s.ops = append(s.ops, op)
	s.byID[op.ID] = op
	return op
}

// validateInput rejects unknown types and nil param bags at enqueue time.
// Missing per-type params are deliberately NOT checked here: the catalog
// resolves them to a failing invocation at execution, per the contract
// that a malformed operation fails, never crashes.
func validateInput(input Input) error {
	if !IsKnownType(input.Type) {
		return fmt.Errorf("%w: unknown operation type %q", ErrValidation, input.Type)
	}
	if input.Params == nil {
		return fmt.Errorf("%w: params must not be null", ErrValidation)
	}
	return nil
}

// =============================================================================
// Read
// =============================================================================

// Get returns a copy of the operation, or ErrNotFound.
func (s *Store) Get(id string) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return op.clone(), nil
}

// List returns copies of all operations in insertion order.
func (s *Store) List() []*Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Operation, 0, len(s.ops))
	for _, op := range s.ops {
		out = append(out, op.clone())
	}
	return out
}

// =============================================================================
// Operator Mutations
// =============================================================================

// Remove deletes one operation.
//
// Fails with ErrNotFound for unknown ids and ErrInvalidState for running
// operations — an in-flight subprocess cannot be abandoned by deleting
// its queue entry.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if op.Status == StatusRunning {
		return fmt.Errorf("%w: cannot remove a running operation", ErrInvalidState)
	}
	s.deleteLocked(id)
	s.notifyLocked()
	return nil
}

// ClearAll deletes every non-running operation and returns the count
// removed. Running operations are preserved untouched.
func (s *Store) ClearAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.ops[:0]
	removed := 0
	for _, op := range s.ops {
		if op.Status == StatusRunning {
			kept = append(kept, op)
			continue
		}
		delete(s.byID, op.ID)
		removed++
	}
	s.ops = kept
	if removed > 0 {
		s.notifyLocked()
	}
	return removed
}

// Approve transitions a pending operation to approved.
//
// Fails with ErrNotFound for unknown ids and ErrInvalidState when the
// operation is in any state but pending.
func (s *Store) Approve(id string) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if op.Status != StatusPending {
		return nil, fmt.Errorf("%w: only pending operations can be approved (current: %s)", ErrInvalidState, op.Status)
	}
	op.Status = StatusApproved
	s.notifyLocked()
	return op.clone(), nil
}

// ApproveAll approves every currently-pending operation and returns the
// count transitioned. Operations added concurrently with this call are
// not retroactively included.
func (s *Store) ApproveAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, op := range s.ops {
		if op.Status == StatusPending {
			op.Status = StatusApproved
			count++
		}
	}
	if count > 0 {
		s.notifyLocked()
	}
	return count
}

// Retry transitions a failed operation back to approved and clears its
// previous result, making it eligible for the next execute batch.
func (s *Store) Retry(id string) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if op.Status != StatusFailed {
		return nil, fmt.Errorf("%w: only failed operations can be retried (current: %s)", ErrInvalidState, op.Status)
	}
	op.Status = StatusApproved
	op.Result = nil
	s.notifyLocked()
	return op.clone(), nil
}

// Reset wipes the entire queue regardless of state. Test-endpoint only.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
	s.byID = make(map[string]*Operation)
	s.notifyLocked()
}

// =============================================================================
// Engine Transitions
// =============================================================================

// MarkRunning transitions an approved operation to running. Called by the
// execution engine immediately before spawning the CLI, under no other
// lock, so the state machine itself is what keeps operator mutations and
// the engine from clashing.
func (s *Store) MarkRunning(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if op.Status != StatusApproved {
		return fmt.Errorf("%w: only approved operations can run (current: %s)", ErrInvalidState, op.Status)
	}
	op.Status = StatusRunning
	s.notifyLocked()
	return nil
}

// ApplyResult records an execution result on a running operation and
// moves it to completed or failed according to the exit code.
func (s *Store) ApplyResult(id string, res Result) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if op.Status != StatusRunning {
		return nil, fmt.Errorf("%w: result applies only to running operations (current: %s)", ErrInvalidState, op.Status)
	}
	resCopy := res
	op.Result = &resCopy
	if res.ExitCode == 0 {
		op.Status = StatusCompleted
	} else {
		op.Status = StatusFailed
	}
	s.notifyLocked()
	return op.clone(), nil
}

// Release returns a running operation to approved with no result
// recorded. Used by the engine's OTP halt: the operation stays
// unresolved — not failed — and the next execute picks it up.
func (s *Store) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if op.Status != StatusRunning {
		return fmt.Errorf("%w: only running operations can be released (current: %s)", ErrInvalidState, op.Status)
	}
	op.Status = StatusApproved
	op.Result = nil
	s.notifyLocked()
	return nil
}

// =============================================================================
// Change Notification
// =============================================================================

// Watch registers a change subscriber.
//
// The returned channel receives a coalesced signal after any mutation; a
// slow consumer never blocks the store because sends are non-blocking
// against a buffer of one. The cancel func unregisters the subscriber
// and must be called to avoid leaks.
func (s *Store) Watch() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatch
	s.nextWatch++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
	return ch, cancel
}

// notifyLocked signals every watcher without blocking. Caller holds s.mu.
func (s *Store) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// deleteLocked removes the id from both collections. Caller holds s.mu.
func (s *Store) deleteLocked(id string) {
	delete(s.byID, id)
	for i, op := range s.ops {
		if op.ID == id {
			s.ops = append(s.ops[:i], s.ops[i+1:]...)
			return
		}
	}
}
