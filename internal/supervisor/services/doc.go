// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package services adapts long-running components to suture.Service.
//
//   - CycleService wraps a Start/Stop manager (cycle.Manager).
//   - CompactorService runs periodic ledger garbage collection.
//   - HTTPServerService wraps an *http.Server with graceful shutdown.
//
// Each wrapper implements fmt.Stringer so supervisor events name the service.
package services
