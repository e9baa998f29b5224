// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package store

import "errors"

// Sentinel errors for store operations. The HTTP layer maps these to
// status codes with errors.Is: ErrNotFound → 404, the rest → 400.
var (
	// ErrNotFound indicates the operation id is unknown to the store.
	ErrNotFound = errors.New("operation not found")

	// ErrInvalidState indicates the operation exists but is not in the
	// state the mutation requires (e.g. approving a non-pending
	// operation, removing a running one).
	ErrInvalidState = errors.New("operation is not in a valid state for this action")

	// ErrValidation indicates a rejected enqueue input (unknown type,
	// missing params, unsafe identifier).
	ErrValidation = errors.New("invalid operation input")
)
