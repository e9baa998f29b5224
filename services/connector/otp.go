// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package connector

import (
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// minOtpMlockKB is the mlock headroom we expect for the OTP buffer.
// An OTP is tiny; the limit check exists to log a clear warning on
// containers that ship with RLIMIT_MEMLOCK=0.
const minOtpMlockKB = 64

var (
	otpMlockOnce       sync.Once
	otpMlockSufficient bool
)

// OtpHolder keeps the operator's one-time password in mlocked memory
// between the moment the browser posts it and the execute batch that
// consumes it.
//
// # Description
//
// The value lives in a memguard LockedBuffer: locked against swap, guard
// pages on both sides, wiped on Clear. Peek does not clear — the engine
// may spend the same OTP on several operations within one batch; TOTP
// codes are valid for a window, not a single use.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type OtpHolder struct {
	mu  sync.Mutex
	buf *memguard.LockedBuffer
}

// NewOtpHolder creates an empty holder and logs once when the platform
// cannot mlock.
func NewOtpHolder() *OtpHolder {
	otpMlockOnce.Do(func() {
		otpMlockSufficient = checkOtpMlockLimit()
		if !otpMlockSufficient {
			slog.Warn("mlock limit too low for secure OTP storage; OTP may be swappable",
				"required_kb", minOtpMlockKB,
			)
		}
	})
	return &OtpHolder{}
}

// Set stores a new OTP, destroying any previous one.
func (h *OtpHolder) Set(otp string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buf != nil {
		h.buf.Destroy()
		h.buf = nil
	}
	if otp == "" {
		return
	}
	h.buf = memguard.NewBufferFromBytes([]byte(otp))
}

// Peek returns the held OTP without clearing it, or "" when empty.
func (h *OtpHolder) Peek() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buf == nil {
		return ""
	}
	// Copy out: memguard's String() aliases the locked region, and the
	// caller's copy must survive a later Clear.
	return string(h.buf.Bytes())
}

// HasOTP reports whether an OTP is held. The state endpoint exposes this
// so the UI can show "OTP armed" without ever seeing the value.
func (h *OtpHolder) HasOTP() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf != nil
}

// Clear destroys the held OTP. Idempotent.
func (h *OtpHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buf != nil {
		h.buf.Destroy()
		h.buf = nil
	}
}

// checkOtpMlockLimit queries RLIMIT_MEMLOCK; errs on the side of "fine"
// when the kernel will not say.
func checkOtpMlockLimit() bool {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		return true
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true
	}
	return int64(rlimit.Cur/1024) >= minOtpMlockKB
}
