// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package audit records operator actions that change terminal or HR state.
//
// Every manual cycle trigger and every on-demand employee cleanup issued
// through the HTTP API produces one Event carrying the caller's address,
// the request ID and the outcome. Events are written asynchronously through
// a buffered channel so a slow store never delays the API response.
//
// # Event Types
//
//   - cycle.triggered: POST /api/v1/cycles/trigger
//   - employee.cleanup: POST /api/v1/employees/{id}/cleanup
//   - employee.cleanup_dry_run: the same with dry_run=true
//
// # Storage
//
// MemoryStore keeps the most recent events in process memory. When it is
// full the oldest tenth is discarded. The trail is exposed at
// GET /api/v1/audit as JSON, or as Common Event Format lines with
// format=cef for forwarding to a SIEM.
//
// # Usage
//
//	logger := audit.NewLogger(audit.NewMemoryStore(5000), nil)
//	defer logger.Close()
//	logger.LogCycleTrigger(ctx, audit.SourceFromRequest(r), "ok", nil)
package audit
