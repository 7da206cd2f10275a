// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package cycle

import (
	"context"
	"time"

	"github.com/tomtom215/fingersync/internal/attendance"
	"github.com/tomtom215/fingersync/internal/eventsource"
	"github.com/tomtom215/fingersync/internal/fleet"
	"github.com/tomtom215/fingersync/internal/lifecycle"
	"github.com/tomtom215/fingersync/internal/overtime"
	"github.com/tomtom215/fingersync/internal/usersync"
)

// HR is every HR call the operations make. *hrclient.Client satisfies it.
type HR interface {
	lifecycle.HRClient
	usersync.HRClient
	attendance.HRClient
	overtime.HRClient
	Ping(ctx context.Context) error
}

// Env holds the process-lifetime collaborators.
type Env struct {
	HR    HR
	Fleet *fleet.Orchestrator
	// Events is nil when no event store is configured.
	Events eventsource.Source
	// Ledger is nil when attendance outcomes are not remembered.
	Ledger attendance.Ledger
	Now    func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
