// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOtpHolder(t *testing.T) {
	h := NewOtpHolder()

	assert.False(t, h.HasOTP())
	assert.Empty(t, h.Peek())

	h.Set("123456")
	assert.True(t, h.HasOTP())
	assert.Equal(t, "123456", h.Peek())
	assert.Equal(t, "123456", h.Peek(), "peek does not clear")

	h.Set("654321")
	assert.Equal(t, "654321", h.Peek(), "set replaces the held value")

	h.Clear()
	assert.False(t, h.HasOTP())
	assert.Empty(t, h.Peek())
	h.Clear() // idempotent
}

func TestOtpHolder_SetEmptyClears(t *testing.T) {
	h := NewOtpHolder()
	h.Set("123456")
	h.Set("")
	assert.False(t, h.HasOTP())
}

func TestBroadcaster(t *testing.T) {
	b := newBroadcaster()
	ch, cancel := b.subscribe()
	defer cancel()

	b.notify()
	b.notify() // coalesces with the pending signal

	select {
	case <-ch:
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-ch:
		t.Fatal("signals must coalesce, not queue")
	default:
	}

	cancel()
	b.notify() // no subscriber left; must not panic or block
}
