// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the connector.
//
// # Description
//
// Metrics cover the queue and the execution engine:
//   - Enqueue/approval/removal counters
//   - Executed operation counters by terminal status
//   - OTP halt and dependency-cycle counters
//   - Queue length gauge and command duration histogram
//
// # Integration
//
// Metrics are exposed via the connector's /metrics endpoint. All metric
// operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "registrydeck"

// Subsystem for connector metrics
const connectorSubsystem = "connector"

// ConnectorMetrics holds all Prometheus metrics for the connector service.
//
// Initialize once at startup via InitMetrics(). Components receive the
// instance by reference; a nil *ConnectorMetrics is safe to call, so unit
// tests need no registry.
type ConnectorMetrics struct {
	// OperationsEnqueuedTotal counts queue insertions.
	// Labels: type (org:add-user, team:create, ...)
	OperationsEnqueuedTotal *prometheus.CounterVec

	// OperationsExecutedTotal counts operations reaching a terminal
	// status in an execute batch.
	// Labels: status (completed, failed)
	OperationsExecutedTotal *prometheus.CounterVec

	// ExecuteBatchesTotal counts calls to the execution engine.
	ExecuteBatchesTotal prometheus.Counter

	// OtpHaltsTotal counts batches halted by OTP step-up.
	OtpHaltsTotal prometheus.Counter

	// DependencyCyclesTotal counts operations excluded from a batch
	// because their dependsOn edges form a cycle.
	DependencyCyclesTotal prometheus.Counter

	// QueueLength tracks the current number of queued operations.
	QueueLength prometheus.Gauge

	// CommandDurationSeconds measures npm CLI invocation latency.
	CommandDurationSeconds prometheus.Histogram
}

// DefaultMetrics is the singleton instance, initialized by InitMetrics().
var DefaultMetrics *ConnectorMetrics

var initOnce sync.Once

// InitMetrics initializes and registers the default metrics instance.
//
// Idempotent: promauto registers against the default registry, so the
// sync.Once guard makes repeated calls (service restarts inside one test
// binary) safe.
func InitMetrics() *ConnectorMetrics {
	initOnce.Do(func() {
		DefaultMetrics = &ConnectorMetrics{
			OperationsEnqueuedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectorSubsystem,
					Name:      "operations_enqueued_total",
					Help:      "Total operations enqueued by type",
				},
				[]string{"type"},
			),

			OperationsExecutedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectorSubsystem,
					Name:      "operations_executed_total",
					Help:      "Total operations reaching a terminal status",
				},
				[]string{"status"},
			),

			ExecuteBatchesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectorSubsystem,
					Name:      "execute_batches_total",
					Help:      "Total execution engine batch runs",
				},
			),

			OtpHaltsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectorSubsystem,
					Name:      "otp_halts_total",
					Help:      "Total batches halted awaiting a one-time password",
				},
			),

			DependencyCyclesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: metricsNamespace,
					Subsystem: connectorSubsystem,
					Name:      "dependency_cycles_total",
					Help:      "Total operations excluded from batches by dependency cycles",
				},
			),

			QueueLength: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: metricsNamespace,
					Subsystem: connectorSubsystem,
					Name:      "queue_length",
					Help:      "Current number of queued operations",
				},
			),

			CommandDurationSeconds: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: metricsNamespace,
					Subsystem: connectorSubsystem,
					Name:      "command_duration_seconds",
					Help:      "npm CLI invocation duration in seconds",
					Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
				},
			),
		}
	})
	return DefaultMetrics
}

// =============================================================================
// Nil-safe Helpers
// =============================================================================

// Enqueued records n enqueued operations of the given type.
func (m *ConnectorMetrics) Enqueued(opType string, n int) {
	if m == nil {
		return
	}
	m.OperationsEnqueuedTotal.WithLabelValues(opType).Add(float64(n))
}

// Executed records one operation reaching a terminal status.
func (m *ConnectorMetrics) Executed(status string) {
	if m == nil {
		return
	}
	m.OperationsExecutedTotal.WithLabelValues(status).Inc()
}

// BatchStarted records one engine batch run.
func (m *ConnectorMetrics) BatchStarted() {
	if m == nil {
		return
	}
	m.ExecuteBatchesTotal.Inc()
}

// OtpHalt records one OTP-gated batch halt.
func (m *ConnectorMetrics) OtpHalt() {
	if m == nil {
		return
	}
	m.OtpHaltsTotal.Inc()
}

// CyclesDetected records n operations excluded by a dependency cycle.
func (m *ConnectorMetrics) CyclesDetected(n int) {
	if m == nil {
		return
	}
	m.DependencyCyclesTotal.Add(float64(n))
}

// SetQueueLength updates the queue length gauge.
func (m *ConnectorMetrics) SetQueueLength(n int) {
	if m == nil {
		return
	}
	m.QueueLength.Set(float64(n))
}

// ObserveCommandDuration records one npm invocation duration.
func (m *ConnectorMetrics) ObserveCommandDuration(seconds float64) {
	if m == nil {
		return
	}
	m.CommandDurationSeconds.Observe(seconds)
}
