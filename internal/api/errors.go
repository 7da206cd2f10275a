// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package api

// Error codes carried in models.APIError.Code.
const (
	codeValidation    = "VALIDATION_ERROR"
	codeNotFound      = "NOT_FOUND"
	codeConflict      = "CONFLICT"
	codeBusy          = "CYCLE_RUNNING"
	codeHRUnavailable = "HR_UNAVAILABLE"
	codeRateLimited   = "RATE_LIMITED"
	codeInternal      = "INTERNAL_ERROR"
)
