// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "errors"

// ErrExecuteInProgress is returned when Execute is called while another
// batch is still running. The HTTP layer maps it to 409 Conflict; the
// caller retries after the current batch drains.
var ErrExecuteInProgress = errors.New("an execute batch is already in progress")
