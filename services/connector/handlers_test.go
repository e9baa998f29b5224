// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/RegistryDeck/pkg/extensions"
	"github.com/AleutianAI/RegistryDeck/pkg/procman"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

const testToken = "test-token"

// loggedInMock answers whoami with a fixed user and succeeds every
// mutation command.
func loggedInMock(user string) *procman.MockProcessManager {
	return &procman.MockProcessManager{
		RunFunc: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return []byte(user + "\n"), nil
		},
		CaptureRunFunc: func(_ context.Context, _ string, args ...string) (procman.Capture, error) {
			return procman.Capture{Stdout: []byte("+ " + strings.Join(args, " "))}, nil
		},
	}
}

func newTestService(t *testing.T, pm procman.ProcessManager) (*Service, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := Config{
		Token:         testToken,
		NpmBin:        "npm",
		NpmrcPath:     "-", // keep the watcher off the real home dir
		TestEndpoints: true,
	}
	svc := New(cfg, extensions.ServiceOptions{}, pm,
		slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	router := gin.New()
	RegisterRoutes(router, svc)
	return svc, router
}

func doJSON(router *gin.Engine, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, "expected success envelope, got: %s", w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func enqueue(t *testing.T, router *gin.Engine, input store.Input) store.Operation {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/operations", input, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var op store.Operation
	decodeData(t, w, &op)
	return op
}

// =============================================================================
// Session
// =============================================================================

func TestConnect(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	w := doJSON(router, http.MethodPost, "/connect", gin.H{"token": testToken}, false)

	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		NpmUser     string `json:"npmUser"`
		ConnectedAt string `json:"connectedAt"`
	}
	decodeData(t, w, &data)
	assert.Equal(t, "bob", data.NpmUser)
	assert.NotEmpty(t, data.ConnectedAt)
}

func TestConnect_WrongToken(t *testing.T) {
	svc, router := newTestService(t, loggedInMock("bob"))

	w := doJSON(router, http.MethodPost, "/connect", gin.H{"token": "wrong"}, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, svc.currentSession().connected, "failed connect must not mutate session")
}

func TestConnect_WhoamiFailureStillConnects(t *testing.T) {
	pm := &procman.MockProcessManager{
		RunFunc: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return nil, errors.New("npm ERR! code ENEEDAUTH")
		},
	}
	svc, router := newTestService(t, pm)

	w := doJSON(router, http.MethodPost, "/connect", gin.H{"token": testToken}, false)

	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		NpmUser string `json:"npmUser"`
	}
	decodeData(t, w, &data)
	assert.Empty(t, data.NpmUser, "logged-out registry yields empty npmUser")
	assert.True(t, svc.currentSession().connected)
}

// =============================================================================
// Auth Gate
// =============================================================================

func TestAuthRequired(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	protected := []struct {
		method, path string
	}{
		{http.MethodGet, "/state"},
		{http.MethodPost, "/operations"},
		{http.MethodPost, "/operations/batch"},
		{http.MethodPost, "/otp"},
		{http.MethodPost, "/approve"},
		{http.MethodPost, "/approve-all"},
		{http.MethodPost, "/retry"},
		{http.MethodPost, "/execute"},
		{http.MethodDelete, "/operations"},
		{http.MethodDelete, "/operations/all"},
		{http.MethodGet, "/mirror"},
	}
	for _, ep := range protected {
		w := doJSON(router, ep.method, ep.path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", ep.method, ep.path)
	}

	// Open endpoints stay open.
	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/health", nil, false).Code)
	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodGet, "/metrics", nil, false).Code)
	assert.Equal(t, http.StatusOK, doJSON(router, http.MethodPost, "/reset", nil, false).Code)
}

func TestResetDisabledWithoutTestEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := New(Config{Token: testToken, NpmrcPath: "-"}, extensions.ServiceOptions{},
		loggedInMock("bob"), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	router := gin.New()
	RegisterRoutes(router, svc)

	w := doJSON(router, http.MethodPost, "/reset", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// Queue Endpoints
// =============================================================================

func TestEnqueueAndState(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	op := enqueue(t, router, store.Input{
		Type:        store.TypeOrgAddUser,
		Params:      map[string]string{"org": "@acme", "user": "carol", "role": "developer"},
		Description: "Add carol to @acme",
	})
	assert.Equal(t, store.StatusPending, op.Status)
	assert.NotEmpty(t, op.ID)

	w := doJSON(router, http.MethodGet, "/state", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var state struct {
		NpmUser    string            `json:"npmUser"`
		Operations []store.Operation `json:"operations"`
		HasOtp     bool              `json:"hasOtp"`
	}
	decodeData(t, w, &state)
	require.Len(t, state.Operations, 1)
	assert.Equal(t, op.ID, state.Operations[0].ID)
	assert.False(t, state.HasOtp)
}

func TestEnqueue_UnknownTypeRejected(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	w := doJSON(router, http.MethodPost, "/operations", store.Input{
		Type:   "org:explode",
		Params: map[string]string{},
	}, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decodeEnvelope(t, w).Success)
}

func TestBatchEnqueue_Atomic(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	w := doJSON(router, http.MethodPost, "/operations/batch", gin.H{
		"operations": []store.Input{
			{Type: store.TypeTeamCreate, Params: map[string]string{"team": "@acme:web"}},
			{Type: "bogus", Params: map[string]string{}},
		},
	}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	state := doJSON(router, http.MethodGet, "/state", nil, true)
	var data struct {
		Operations []store.Operation `json:"operations"`
	}
	decodeData(t, state, &data)
	assert.Empty(t, data.Operations, "a bad entry rejects the whole batch")
}

func TestApproveExecuteRoundTrip(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	op := enqueue(t, router, store.Input{
		Type:   store.TypeTeamCreate,
		Params: map[string]string{"team": "@acme:web"},
	})

	w := doJSON(router, http.MethodPost, "/approve?id="+op.ID, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var approved store.Operation
	decodeData(t, w, &approved)
	assert.Equal(t, store.StatusApproved, approved.Status)

	w = doJSON(router, http.MethodPost, "/execute", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var outcome struct {
		Results []struct {
			ID     string       `json:"id"`
			Status store.Status `json:"status"`
		} `json:"results"`
		OtpRequired bool `json:"otpRequired"`
	}
	decodeData(t, w, &outcome)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, op.ID, outcome.Results[0].ID)
	assert.Equal(t, store.StatusCompleted, outcome.Results[0].Status)
	assert.False(t, outcome.OtpRequired)
}

func TestApprove_UnknownIDIs404(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	w := doJSON(router, http.MethodPost, "/approve?id=nope", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApproveAllAndClearAll(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	enqueue(t, router, store.Input{Type: store.TypeTeamCreate, Params: map[string]string{"team": "@acme:a"}})
	enqueue(t, router, store.Input{Type: store.TypeTeamCreate, Params: map[string]string{"team": "@acme:b"}})

	w := doJSON(router, http.MethodPost, "/approve-all", nil, true)
	var approveData struct {
		Approved int `json:"approved"`
	}
	decodeData(t, w, &approveData)
	assert.Equal(t, 2, approveData.Approved)

	w = doJSON(router, http.MethodDelete, "/operations/all", nil, true)
	var clearData struct {
		Removed int `json:"removed"`
	}
	decodeData(t, w, &clearData)
	assert.Equal(t, 2, clearData.Removed)
}

func TestRetryEndpoint(t *testing.T) {
	pm := loggedInMock("bob")
	pm.CaptureRunFunc = func(_ context.Context, _ string, _ ...string) (procman.Capture, error) {
		return procman.Capture{Stderr: []byte("npm ERR! code E403"), ExitCode: 1}, nil
	}
	_, router := newTestService(t, pm)

	op := enqueue(t, router, store.Input{
		Type:   store.TypeTeamCreate,
		Params: map[string]string{"team": "@acme:web"},
	})
	doJSON(router, http.MethodPost, "/approve?id="+op.ID, nil, true)
	doJSON(router, http.MethodPost, "/execute", nil, true)

	w := doJSON(router, http.MethodPost, "/retry?id="+op.ID, nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var retried store.Operation
	decodeData(t, w, &retried)
	assert.Equal(t, store.StatusApproved, retried.Status)
	assert.Nil(t, retried.Result, "retry clears the previous result")
}

func TestRetry_PendingIs400(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	op := enqueue(t, router, store.Input{
		Type:   store.TypeTeamCreate,
		Params: map[string]string{"team": "@acme:web"},
	})

	w := doJSON(router, http.MethodPost, "/retry?id="+op.ID, nil, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// OTP Flow
// =============================================================================

func TestOtpFlow(t *testing.T) {
	pm := loggedInMock("bob")
	pm.CaptureRunFunc = func(_ context.Context, _ string, args ...string) (procman.Capture, error) {
		for _, a := range args {
			if a == "--otp" {
				return procman.Capture{Stdout: []byte("+ ok")}, nil
			}
		}
		return procman.Capture{Stderr: []byte("npm ERR! code EOTP"), ExitCode: 1}, nil
	}
	svc, router := newTestService(t, pm)

	op := enqueue(t, router, store.Input{
		Type:   store.TypeOwnerAdd,
		Params: map[string]string{"user": "carol", "package": "lodash"},
	})
	doJSON(router, http.MethodPost, "/approve?id="+op.ID, nil, true)

	// First execute: registry demands OTP, operation is released.
	w := doJSON(router, http.MethodPost, "/execute", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var outcome struct {
		Results     []json.RawMessage `json:"results"`
		OtpRequired bool              `json:"otpRequired"`
	}
	decodeData(t, w, &outcome)
	assert.True(t, outcome.OtpRequired)
	assert.Empty(t, outcome.Results)

	got, err := svc.Store().Get(op.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, got.Status)

	// Arm the holder, re-execute without a body OTP.
	w = doJSON(router, http.MethodPost, "/otp", gin.H{"otp": "123456"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	state := doJSON(router, http.MethodGet, "/state", nil, true)
	var stateData struct {
		HasOtp bool `json:"hasOtp"`
	}
	decodeData(t, state, &stateData)
	assert.True(t, stateData.HasOtp)

	w = doJSON(router, http.MethodPost, "/execute", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		Results []struct {
			Status store.Status `json:"status"`
		} `json:"results"`
		OtpRequired bool `json:"otpRequired"`
	}
	decodeData(t, w, &second)
	assert.False(t, second.OtpRequired)
	require.Len(t, second.Results, 1)
	assert.Equal(t, store.StatusCompleted, second.Results[0].Status)
}

func TestExecute_BodyOtpWinsOverHolder(t *testing.T) {
	var seenOtp string
	pm := loggedInMock("bob")
	pm.CaptureRunFunc = func(_ context.Context, _ string, args ...string) (procman.Capture, error) {
		for i, a := range args {
			if a == "--otp" && i+1 < len(args) {
				seenOtp = args[i+1]
			}
		}
		return procman.Capture{Stdout: []byte("+ ok")}, nil
	}
	_, router := newTestService(t, pm)

	op := enqueue(t, router, store.Input{
		Type:   store.TypeTeamCreate,
		Params: map[string]string{"team": "@acme:web"},
	})
	doJSON(router, http.MethodPost, "/approve?id="+op.ID, nil, true)
	doJSON(router, http.MethodPost, "/otp", gin.H{"otp": "held"}, true)

	w := doJSON(router, http.MethodPost, "/execute", gin.H{"otp": "from-body"}, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-body", seenOtp)
}

func TestExecute_ChunkedBodyOtpIsHonored(t *testing.T) {
	var seenOtp string
	pm := loggedInMock("bob")
	pm.CaptureRunFunc = func(_ context.Context, _ string, args ...string) (procman.Capture, error) {
		for i, a := range args {
			if a == "--otp" && i+1 < len(args) {
				seenOtp = args[i+1]
			}
		}
		return procman.Capture{Stdout: []byte("+ ok")}, nil
	}
	_, router := newTestService(t, pm)

	op := enqueue(t, router, store.Input{
		Type:   store.TypeTeamCreate,
		Params: map[string]string{"team": "@acme:web"},
	})
	doJSON(router, http.MethodPost, "/approve?id="+op.ID, nil, true)

	// A chunked request has ContentLength -1; its body must still bind.
	body := io.MultiReader(strings.NewReader(`{"otp":"chunked-otp"}`))
	req := httptest.NewRequest(http.MethodPost, "/execute", body)
	require.Equal(t, int64(-1), req.ContentLength)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "chunked-otp", seenOtp)
}

// =============================================================================
// Mirror & Reset
// =============================================================================

func TestMirrorEndpoint(t *testing.T) {
	_, router := newTestService(t, loggedInMock("bob"))

	op := enqueue(t, router, store.Input{
		Type:   store.TypeOrgAddUser,
		Params: map[string]string{"org": "@acme", "user": "carol", "role": "developer"},
	})
	doJSON(router, http.MethodPost, "/approve?id="+op.ID, nil, true)
	doJSON(router, http.MethodPost, "/execute", nil, true)

	w := doJSON(router, http.MethodGet, "/mirror", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	var mirror struct {
		Orgs map[string]map[string]string `json:"orgs"`
	}
	decodeData(t, w, &mirror)
	assert.Equal(t, "developer", mirror.Orgs["@acme"]["carol"])
}

func TestReset(t *testing.T) {
	svc, router := newTestService(t, loggedInMock("bob"))

	doJSON(router, http.MethodPost, "/connect", gin.H{"token": testToken}, false)
	enqueue(t, router, store.Input{Type: store.TypeTeamCreate, Params: map[string]string{"team": "@acme:web"}})
	doJSON(router, http.MethodPost, "/otp", gin.H{"otp": "123456"}, true)

	w := doJSON(router, http.MethodPost, "/reset", nil, false)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Empty(t, svc.Store().List())
	assert.False(t, svc.otp.HasOTP())
	assert.False(t, svc.currentSession().connected)
}
