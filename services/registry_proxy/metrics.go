// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registryproxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "registrydeck"
	proxySubsystem   = "proxy"
)

// ProxyMetrics holds the Prometheus metrics for the registry proxy.
//
// A nil *ProxyMetrics is safe to call, so tests need no registry.
type ProxyMetrics struct {
	// CacheHitsTotal counts cache lookups by outcome.
	// Labels: outcome (hit, miss)
	CacheHitsTotal *prometheus.CounterVec

	// UpstreamRequestsTotal counts upstream fetches by endpoint.
	// Labels: endpoint (package, search, downloads)
	UpstreamRequestsTotal *prometheus.CounterVec

	// UpstreamDurationSeconds measures upstream fetch latency.
	UpstreamDurationSeconds prometheus.Histogram
}

// DefaultProxyMetrics is the singleton, initialized by InitProxyMetrics.
var DefaultProxyMetrics *ProxyMetrics

var proxyInitOnce sync.Once

// InitProxyMetrics registers the proxy metrics once against the default
// registry.
func InitProxyMetrics() *ProxyMetrics {
	proxyInitOnce.Do(func() {
		DefaultProxyMetrics = &ProxyMetrics{
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: proxySubsystem,
					Name:      "cache_lookups_total",
					Help:      "Cache lookups by outcome",
				},
				[]string{"outcome"},
			),

			UpstreamRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: proxySubsystem,
					Name:      "upstream_requests_total",
					Help:      "Upstream registry fetches by endpoint",
				},
				[]string{"endpoint"},
			),

			UpstreamDurationSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: proxySubsystem,
					Name:      "upstream_duration_seconds",
					Help:      "Upstream fetch duration in seconds",
					Buckets:   prometheus.DefBuckets,
				},
			),
		}
	})
	return DefaultProxyMetrics
}

// CacheLookup records one cache lookup.
func (m *ProxyMetrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheHitsTotal.WithLabelValues(outcome).Inc()
}

// UpstreamRequest records one upstream fetch.
func (m *ProxyMetrics) UpstreamRequest(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(endpoint).Inc()
	m.UpstreamDurationSeconds.Observe(seconds)
}
