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
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/RegistryDeck/pkg/extensions"
	"github.com/AleutianAI/RegistryDeck/services/connector/engine"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
)

// =============================================================================
// Response Envelope
// =============================================================================

// respondOK wraps payload as {"success": true, "data": ...}.
func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// respondErr maps the sentinel taxonomy to status codes with the
// {"success": false, "error": ...} envelope.
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidState), errors.Is(err, store.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrExecuteInProgress):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
}

// =============================================================================
// Session
// =============================================================================

type connectRequest struct {
	Token string `json:"token" binding:"required"`
}

// handleConnect establishes the session.
//
// The token travels in the body, not the Authorization header, because
// this is the one call the extension makes before it has proven it holds
// the token. Mismatch is a 401 with no state mutation.
func (s *Service) handleConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Token), []byte(s.cfg.Token)) != 1 {
		s.auditSession(c.Request.Context(), "session.connect_failed", "", "failure")
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	npmUser, connectedAt := s.connect(c.Request.Context())
	respondOK(c, gin.H{
		"npmUser":     npmUser,
		"connectedAt": connectedAt.Format(time.RFC3339),
	})
}

// statePayload is the shared shape of GET /state and the WebSocket push.
func (s *Service) statePayload() gin.H {
	sess := s.currentSession()
	payload := gin.H{
		"npmUser":    sess.npmUser,
		"operations": s.store.List(),
		"hasOtp":     s.otp.HasOTP(),
	}
	if sess.connected {
		payload["connectedAt"] = sess.connectedAt.Format(time.RFC3339)
	} else {
		payload["connectedAt"] = nil
	}
	return payload
}

func (s *Service) handleState(c *gin.Context) {
	respondOK(c, s.statePayload())
}

// =============================================================================
// Queue Mutations
// =============================================================================

func (s *Service) handleAddOperation(c *gin.Context) {
	var input store.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		respondValidation(c, err)
		return
	}

	op, err := s.store.Add(input)
	if err != nil {
		respondErr(c, err)
		return
	}

	s.metrics.Enqueued(op.Type, 1)
	s.updateQueueGauge()
	s.auditQueue(c, "queue.enqueue", op.ID, op.Type, "success")
	respondOK(c, op)
}

type batchRequest struct {
	Operations []store.Input `json:"operations" binding:"required"`
}

func (s *Service) handleAddBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	ops, err := s.store.AddBatch(req.Operations)
	if err != nil {
		respondErr(c, err)
		return
	}

	for _, op := range ops {
		s.metrics.Enqueued(op.Type, 1)
		s.auditQueue(c, "queue.enqueue", op.ID, op.Type, "success")
	}
	s.updateQueueGauge()
	respondOK(c, ops)
}

func (s *Service) handleApprove(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		respondValidation(c, errors.New("missing id query parameter"))
		return
	}

	op, err := s.store.Approve(id)
	if err != nil {
		respondErr(c, err)
		return
	}

	s.auditQueue(c, "queue.approve", op.ID, op.Type, "success")
	respondOK(c, op)
}

func (s *Service) handleApproveAll(c *gin.Context) {
	count := s.store.ApproveAll()
	s.auditQueue(c, "queue.approve", "", "", "success")
	respondOK(c, gin.H{"approved": count})
}

func (s *Service) handleRetry(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		respondValidation(c, errors.New("missing id query parameter"))
		return
	}

	op, err := s.store.Retry(id)
	if err != nil {
		respondErr(c, err)
		return
	}

	s.auditQueue(c, "queue.retry", op.ID, op.Type, "success")
	respondOK(c, op)
}

func (s *Service) handleRemoveOperation(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		respondValidation(c, errors.New("missing id query parameter"))
		return
	}

	if err := s.store.Remove(id); err != nil {
		respondErr(c, err)
		return
	}

	s.updateQueueGauge()
	s.auditQueue(c, "queue.remove", id, "", "success")
	respondOK(c, gin.H{"success": true})
}

func (s *Service) handleClearAll(c *gin.Context) {
	removed := s.store.ClearAll()
	s.updateQueueGauge()
	s.auditQueue(c, "queue.clear", "", "", "success")
	respondOK(c, gin.H{"removed": removed})
}

// =============================================================================
// OTP & Execution
// =============================================================================

type otpRequest struct {
	Otp string `json:"otp" binding:"required"`
}

func (s *Service) handleSetOtp(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	s.otp.Set(req.Otp)
	s.stateChanged.notify()
	respondOK(c, gin.H{"success": true})
}

type executeRequest struct {
	Otp string `json:"otp"`
}

// handleExecute runs the approved queue.
//
// The effective OTP is the request body's when present, else the OTP
// holder's. OTP step-up is not an error — it comes back as data
// (otpRequired:true) in a success envelope.
func (s *Service) handleExecute(c *gin.Context) {
	var req executeRequest
	// ContentLength is -1 for chunked bodies, which still carry a
	// payload; only a definitively empty body (0) skips binding.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidation(c, err)
			return
		}
	}

	otp := req.Otp
	if otp == "" {
		otp = s.otp.Peek()
	}

	outcome, err := s.engine.Execute(c.Request.Context(), otp)
	if err != nil {
		respondErr(c, err)
		return
	}

	s.updateQueueGauge()
	respondOK(c, outcome)
}

// =============================================================================
// Mirror, Health, Reset
// =============================================================================

func (s *Service) handleMirror(c *gin.Context) {
	respondOK(c, s.engine.Mirror().Snapshot())
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleReset wipes all state. Registered only when
// CONNECTOR_TEST_ENDPOINTS is set; unauthenticated so test drivers can
// reset between cases without plumbing the token.
func (s *Service) handleReset(c *gin.Context) {
	s.resetState()
	s.updateQueueGauge()
	respondOK(c, gin.H{"success": true})
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Service) updateQueueGauge() {
	s.metrics.SetQueueLength(len(s.store.List()))
}

func (s *Service) auditQueue(c *gin.Context, eventType, opID, opType, outcome string) {
	sess := s.currentSession()
	user := sess.npmUser
	if user == "" {
		user = "anonymous"
	}
	event := extensions.AuditEvent{
		EventType:   eventType,
		Timestamp:   time.Now().UTC(),
		NpmUser:     user,
		OperationID: opID,
		Outcome:     outcome,
	}
	if opType != "" {
		event.Metadata = map[string]any{"type": opType}
	}
	_ = s.audit.Log(c.Request.Context(), event)
}
