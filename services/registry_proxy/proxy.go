// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registryproxy serves cached, rate-limited npm registry
// metadata to the RegistryDeck browser extension.
//
// The proxy is pure data plane: public package documents, search, and
// download counts. It holds no connector state and no credentials, so
// its endpoints are unauthenticated. Caching exists to keep a busy
// browsing session from hammering the public registry.
package registryproxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache TTLs per data class. Package metadata moves slowly; search
// results are ranking-sensitive; download counts update daily upstream.
const (
	packageTTL   = 15 * time.Minute
	searchTTL    = 5 * time.Minute
	downloadsTTL = time.Hour
)

// Service is the registry proxy.
type Service struct {
	cfg      Config
	log      *slog.Logger
	cache    *Cache
	upstream *upstreamClient
	metrics  *ProxyMetrics
}

// New assembles a proxy service. logger falls back to slog.Default;
// metrics may be nil.
func New(cfg Config, logger *slog.Logger, metrics *ProxyMetrics) (*Service, error) {
	cfg = applyConfigDefaults(cfg)
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := NewCache(cfg.CacheDir, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:      cfg,
		log:      logger,
		cache:    cache,
		upstream: newUpstreamClient(cfg),
		metrics:  metrics,
	}, nil
}

// Config returns the effective configuration, defaults applied.
func (s *Service) Config() Config {
	return s.cfg
}

// Close releases the cache.
func (s *Service) Close() error {
	return s.cache.Close()
}

// RegisterRoutes registers the proxy's endpoints:
//
//	GET  /v1/package/*name          - package metadata (+ latestStable)
//	GET  /v1/search?q=&size=&from=  - registry search passthrough
//	GET  /v1/downloads/:period/*name - download counts
//	POST /v1/packages/batch         - fan-out metadata for many names
//	GET  /health                    - liveness
//	GET  /metrics                   - Prometheus exposition
func RegisterRoutes(router *gin.Engine, svc *Service) {
	router.GET("/health", svc.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/package/*name", svc.handlePackage)
		v1.GET("/search", svc.handleSearch)
		v1.GET("/downloads/:period/*name", svc.handleDownloads)
		v1.POST("/packages/batch", svc.handleBatch)
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Service) handlePackage(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if name == "" {
		respondProxyErr(c, http.StatusBadRequest, "missing package name")
		return
	}

	doc, err := s.getPackage(c.Request.Context(), name)
	if err != nil {
		s.respondUpstreamErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": json.RawMessage(doc)})
}

func (s *Service) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		respondProxyErr(c, http.StatusBadRequest, "missing q query parameter")
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "0"))
	from, _ := strconv.Atoi(c.DefaultQuery("from", "0"))

	key := "search:" + q + ":" + strconv.Itoa(size) + ":" + strconv.Itoa(from)
	body, hit := s.cache.Get(key)
	s.metrics.CacheLookup(hit)
	if !hit {
		start := time.Now()
		var err error
		body, err = s.upstream.Search(c.Request.Context(), q, size, from)
		s.metrics.UpstreamRequest("search", time.Since(start).Seconds())
		if err != nil {
			s.respondUpstreamErr(c, err)
			return
		}
		s.cache.Set(key, body, searchTTL)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": json.RawMessage(body)})
}

func (s *Service) handleDownloads(c *gin.Context) {
	period := c.Param("period")
	name := strings.TrimPrefix(c.Param("name"), "/")
	if period == "" || name == "" {
		respondProxyErr(c, http.StatusBadRequest, "missing period or package name")
		return
	}

	key := "dl:" + period + ":" + name
	body, hit := s.cache.Get(key)
	s.metrics.CacheLookup(hit)
	if !hit {
		start := time.Now()
		var err error
		body, err = s.upstream.Downloads(c.Request.Context(), period, name)
		s.metrics.UpstreamRequest("downloads", time.Since(start).Seconds())
		if err != nil {
			s.respondUpstreamErr(c, err)
			return
		}
		s.cache.Set(key, body, downloadsTTL)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": json.RawMessage(body)})
}

type batchRequest struct {
	Names []string `json:"names" binding:"required"`
}

func (s *Service) handleBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondProxyErr(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Names) == 0 {
		respondProxyErr(c, http.StatusBadRequest, "names must not be empty")
		return
	}
	if len(req.Names) > maxBatchNames {
		respondProxyErr(c, http.StatusBadRequest, "too many names in one batch")
		return
	}

	results := fetchBatch(c.Request.Context(), req.Names, func(ctx context.Context, name string) ([]byte, error) {
		return s.getPackage(ctx, name)
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "data": results})
}

// =============================================================================
// Package Metadata
// =============================================================================

// getPackage returns the (possibly cached) metadata document for a
// package, decorated with a derived latestStable field.
func (s *Service) getPackage(ctx context.Context, name string) ([]byte, error) {
	key := "pkg:" + name
	if doc, hit := s.cache.Get(key); hit {
		s.metrics.CacheLookup(true)
		return doc, nil
	}
	s.metrics.CacheLookup(false)

	start := time.Now()
	raw, err := s.upstream.FetchPackage(ctx, name)
	s.metrics.UpstreamRequest("package", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	doc := decorateLatestStable(raw)
	s.cache.Set(key, doc, packageTTL)
	return doc, nil
}

// decorateLatestStable injects a "latestStable" field derived from the
// document's versions map. dist-tags.latest can point at a prerelease
// during a beta cycle; latestStable never does. Returns the document
// unchanged when it does not parse as an object.
func decorateLatestStable(raw []byte) []byte {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}

	var versions map[string]json.RawMessage
	if err := json.Unmarshal(doc["versions"], &versions); err != nil {
		return raw
	}
	names := make([]string, 0, len(versions))
	for v := range versions {
		names = append(names, v)
	}

	stable, err := json.Marshal(latestStable(names))
	if err != nil {
		return raw
	}
	doc["latestStable"] = stable

	out, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	return out
}

// =============================================================================
// Error Mapping
// =============================================================================

func respondProxyErr(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// respondUpstreamErr passes upstream HTTP statuses through (a 404
// package is a 404 here) and folds transport failures into 502.
func (s *Service) respondUpstreamErr(c *gin.Context, err error) {
	var ue *upstreamError
	if errors.As(err, &ue) {
		respondProxyErr(c, ue.Status, ue.Error())
		return
	}
	s.log.Warn("upstream fetch failed", "error", err.Error())
	respondProxyErr(c, http.StatusBadGateway, "upstream registry unavailable")
}
