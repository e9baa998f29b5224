// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newAuthRouter(expected string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TokenAuth(expected))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r
}

func TestTokenAuth(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{
			name:       "valid bearer token",
			header:     "Bearer secret-token",
			wantStatus: http.StatusOK,
		},
		{
			name:       "case insensitive scheme",
			header:     "bearer secret-token",
			wantStatus: http.StatusOK,
		},
		{
			name:       "query parameter fallback",
			query:      "secret-token",
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing credentials",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong token",
			header:     "Bearer nope",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header falls back to query",
			header:     "secret-token",
			query:      "secret-token",
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed header without query",
			header:     "secret-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "basic scheme rejected",
			header:     "Basic c2VjcmV0",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "non-bearer scheme falls back to query",
			header:     "Basic c2VjcmV0",
			query:      "secret-token",
			wantStatus: http.StatusOK,
		},
	}

	router := newAuthRouter("secret-token")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "/ping"
			if tt.query != "" {
				url += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.JSONEq(t, `{"success": false, "error": "unauthorized"}`, w.Body.String())
			}
		})
	}
}

func TestTokenAuth_EmptyExpectedRejectsEverything(t *testing.T) {
	router := newAuthRouter("")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
