// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test output goes through a pipe, so IsTTY is false and every helper
// must degrade to plain text. The assertions below pin that behavior.

func TestStatusBadge_PlainWhenNotTTY(t *testing.T) {
	for _, status := range []string{"pending", "approved", "running", "completed", "failed", "cancelled"} {
		assert.Equal(t, status, StatusBadge(status))
	}
}

func TestStatusBadge_UnknownStatusPassesThrough(t *testing.T) {
	assert.Equal(t, "quarantined", StatusBadge("quarantined"))
}

func TestIconRender_PlainWhenNotTTY(t *testing.T) {
	assert.Equal(t, "✓", IconSuccess.Render())
	assert.Equal(t, "✗", IconError.Render())
	assert.Equal(t, "→", IconArrow.Render())
}

func TestIsTTY_FalseUnderTestRunner(t *testing.T) {
	assert.False(t, IsTTY())
}
