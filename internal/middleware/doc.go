// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package middleware holds the HTTP middleware shared by the operator API:
// request ids that double as log correlation ids, and Prometheus request
// instrumentation keyed by chi route pattern.
package middleware
