// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"time"
)

// AuditEvent represents a security-relevant event for compliance logging.
//
// The connector emits one event per privileged action it takes on behalf
// of the browser: session establishment, enqueue, approval, execution,
// and removal. Registry mutations are exactly the kind of action a
// compliance team wants a trail for.
//
// # Event Types
//
//   - "session.connect", "session.connect_failed"
//   - "queue.enqueue", "queue.approve", "queue.remove", "queue.clear"
//   - "queue.execute", "queue.retry"
//
// Example:
//
//	event := AuditEvent{
//	    EventType:   "queue.execute",
//	    Timestamp:   time.Now().UTC(),
//	    NpmUser:     session.NpmUser,
//	    OperationID: op.ID,
//	    Outcome:     "completed",
//	    Metadata: map[string]any{
//	        "type": op.Type,
//	        "org":  op.Params["org"],
//	    },
//	}
type AuditEvent struct {
	// EventType categorizes the event for filtering and alerting.
	// Format: "category.action" (e.g., "session.connect", "queue.execute")
	EventType string

	// Timestamp is when the event occurred (always use UTC).
	// If zero, implementations should set it to time.Now().UTC().
	Timestamp time.Time

	// NpmUser is the resolved registry username of the session, or
	// "anonymous" when no session is connected.
	NpmUser string

	// OperationID is the affected queue operation, if any.
	OperationID string

	// Outcome indicates the result of the action.
	// Values: "success", "failure", "blocked", "completed", "failed"
	Outcome string

	// Metadata holds additional event-specific data.
	// Never put the shared token or an OTP value in here.
	Metadata map[string]any
}

// AuditLogger records audit events for compliance and investigation.
//
// # Implementation Requirements
//
//  1. Log must be non-blocking or fast: it is called on the request path.
//  2. Failures must not propagate; auditing never breaks the connector.
//  3. Implementations must be safe for concurrent use.
//
// This is an extension point for enterprise builds. The open source
// version uses NopAuditLogger.
type AuditLogger interface {
	// Log records a single audit event.
	//
	// Errors are returned for the implementation's own bookkeeping but
	// callers ignore them by design.
	Log(ctx context.Context, event AuditEvent) error
}

// NopAuditLogger discards all audit events. Open source default.
type NopAuditLogger struct{}

// Log discards the event.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error { return nil }

// Ensure NopAuditLogger implements AuditLogger.
var _ AuditLogger = (*NopAuditLogger)(nil)
