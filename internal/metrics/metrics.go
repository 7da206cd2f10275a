// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cycle Metrics
	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fingersync_cycle_duration_seconds",
			Help:    "Duration of scheduled cycles and one-shot operations in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	CycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingersync_cycle_total",
			Help: "Total number of operation runs by final status",
		},
		[]string{"operation", "status"}, // "success", "partial", "failed", "skipped"
	)

	// Terminal Metrics
	DeviceOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingersync_device_operations_total",
			Help: "Per-device work paths by outcome",
		},
		[]string{"device_id", "outcome"}, // "success", "failed", "unreachable", "circuit_open"
	)

	DeviceOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fingersync_device_operation_duration_seconds",
			Help:    "Duration of one device session from open to close",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"device_id"},
	)

	DeviceCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fingersync_device_circuit_state",
			Help: "Per-device circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"device_id"},
	)

	// Lifecycle Metrics
	LifecycleActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingersync_lifecycle_actions_total",
			Help: "Left-employee cleanup actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	// Attendance Metrics
	AttendanceSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingersync_attendance_submissions_total",
			Help: "Attendance events by submission outcome",
		},
		[]string{"outcome"}, // "processed", "duplicate", "ignored", "ledger_skip", "failed"
	)

	// Overtime Metrics
	OvertimeRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingersync_overtime_registrations_total",
			Help: "Overtime registrations by outcome",
		},
		[]string{"outcome"}, // "created", "exists", "conflict", "failed"
	)

	// HR Client Metrics
	HRRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingersync_hr_requests_total",
			Help: "Requests sent to the HR system by endpoint and HTTP status",
		},
		[]string{"endpoint", "status"},
	)

	HRRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fingersync_hr_request_duration_seconds",
			Help:    "HR request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	HRCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fingersync_hr_circuit_state",
			Help: "HR client circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingersync_api_requests_total",
			Help: "Total number of operator API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fingersync_api_request_duration_seconds",
			Help:    "Operator API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordCycle records one operation run.
func RecordCycle(operation, status string, duration time.Duration) {
	CycleDuration.WithLabelValues(operation).Observe(duration.Seconds())
	CycleTotal.WithLabelValues(operation, status).Inc()
}

// RecordDeviceOperation records one per-device work path.
func RecordDeviceOperation(deviceID, outcome string, duration time.Duration) {
	DeviceOperationsTotal.WithLabelValues(deviceID, outcome).Inc()
	if duration > 0 {
		DeviceOperationDuration.WithLabelValues(deviceID).Observe(duration.Seconds())
	}
}

// RecordLifecycleAction records the outcome of one employee's cleanup.
func RecordLifecycleAction(action, outcome string) {
	LifecycleActionsTotal.WithLabelValues(action, outcome).Inc()
}

// RecordAttendance adds n events with the given outcome.
func RecordAttendance(outcome string, n int) {
	if n > 0 {
		AttendanceSubmissionsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordOvertime adds n registrations with the given outcome.
func RecordOvertime(outcome string, n int) {
	if n > 0 {
		OvertimeRegistrationsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordHRRequest records one HR call. status is the HTTP status code, or
// "error" when no response was received.
func RecordHRRequest(endpoint, status string, duration time.Duration) {
	HRRequestsTotal.WithLabelValues(endpoint, status).Inc()
	HRRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAPIRequest records an operator API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
