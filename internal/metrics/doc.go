// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

/*
Package metrics provides Prometheus instrumentation for FingerSync.

All collectors are registered on the default registry through promauto and
exposed at /metrics by the operator HTTP server:

	curl http://localhost:8480/metrics

# Available Metrics

Cycles:
  - fingersync_cycle_duration_seconds{operation}
  - fingersync_cycle_total{operation,status}

Terminals:
  - fingersync_device_operations_total{device_id,outcome}
  - fingersync_device_operation_duration_seconds{device_id}
  - fingersync_device_circuit_state{device_id}

Sync results:
  - fingersync_lifecycle_actions_total{action,outcome}
  - fingersync_attendance_submissions_total{outcome}
  - fingersync_overtime_registrations_total{outcome}

HR system:
  - fingersync_hr_requests_total{endpoint,status}
  - fingersync_hr_request_duration_seconds{endpoint}
  - fingersync_hr_circuit_state

A device stuck at circuit state 2 across several cycles is the usual signal
that a terminal needs a site visit.
*/
package metrics
