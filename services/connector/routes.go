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
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/RegistryDeck/services/connector/middleware"
)

// RegisterRoutes registers the connector's endpoints on the router.
//
// Open endpoints (no token):
//
//	POST /connect  - establish session (token travels in the body)
//	GET  /health   - liveness
//	GET  /metrics  - Prometheus exposition
//	POST /reset    - wipe state; registered only when TestEndpoints is set
//
// Token-gated endpoints:
//
//	GET    /state            - session + queue snapshot
//	GET    /state/ws         - WebSocket state stream (?token=)
//	POST   /operations       - enqueue one operation
//	POST   /operations/batch - enqueue many atomically
//	POST   /otp              - arm the OTP holder
//	POST   /approve?id=      - approve one pending operation
//	POST   /approve-all      - approve all pending operations
//	POST   /retry?id=        - re-approve one failed operation
//	POST   /execute          - run the approved queue
//	DELETE /operations?id=   - remove one (not while running)
//	DELETE /operations/all   - clear all non-running
//	GET    /mirror           - org mirror snapshot
func RegisterRoutes(router *gin.Engine, svc *Service) {
	router.POST("/connect", svc.handleConnect)
	router.GET("/health", svc.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if svc.cfg.TestEndpoints {
		router.POST("/reset", svc.handleReset)
	}

	authed := router.Group("/")
	authed.Use(middleware.TokenAuth(svc.cfg.Token))
	{
		authed.GET("/state", svc.handleState)
		authed.GET("/state/ws", svc.handleStateWS)
		authed.POST("/operations", svc.handleAddOperation)
		authed.POST("/operations/batch", svc.handleAddBatch)
		authed.POST("/otp", svc.handleSetOtp)
		authed.POST("/approve", svc.handleApprove)
		authed.POST("/approve-all", svc.handleApproveAll)
		authed.POST("/retry", svc.handleRetry)
		authed.POST("/execute", svc.handleExecute)
		authed.DELETE("/operations", svc.handleRemoveOperation)
		authed.DELETE("/operations/all", svc.handleClearAll)
		authed.GET("/mirror", svc.handleMirror)
	}
}
