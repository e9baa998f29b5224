// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the connector service.
//
// # Authentication Model
//
// The connector is a localhost service guarding a privileged npm session,
// so its auth is a single shared token, not an identity system. The
// browser extension learns the token out of band (the CLI prints it) and
// presents it on every request:
//
//	Authorization: Bearer <token>
//
// WebSocket upgrades cannot set headers from a browser, so /state/ws
// additionally accepts the token as a query parameter:
//
//	GET /state/ws?token=<token>
//
// # Rejection Shape
//
// Failures abort with 401 and the connector's standard envelope:
//
//	{"success": false, "error": "unauthorized"}
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenAuth creates a Gin middleware that requires the shared token.
//
// # Description
//
// Extracts a bearer token from the Authorization header, falling back to
// the "token" query parameter for WebSocket clients, and compares it to
// the expected token in constant time. Mismatch or absence aborts with
// 401; the comparison never short-circuits on length, so response timing
// leaks nothing about the token.
//
// # Inputs
//
//   - expected: the shared token. Must not be empty — the connector
//     refuses to start without one, so an empty expected token here is a
//     programming error and rejects every request.
//
// # Outputs
//
//   - gin.HandlerFunc: middleware ready for use on a route group
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func TokenAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if expected == "" || !tokensEqual(token, expected) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
			})
			return
		}
		c.Next()
	}
}

// extractToken pulls the client token from the request.
//
// A well-formed Authorization header wins; otherwise the "token" query
// parameter is consulted, so a WebSocket client behind a proxy that
// injects its own non-bearer Authorization header can still connect.
// Returns empty string when neither yields a token. The "Bearer" prefix
// is case-insensitive per RFC 7235.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Query("token")
}

// tokensEqual compares tokens in constant time.
func tokensEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
