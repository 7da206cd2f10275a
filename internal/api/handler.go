// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package api

import (
	"context"
	"time"

	"github.com/tomtom215/fingersync/internal/audit"
	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/cycle"
	"github.com/tomtom215/fingersync/internal/lifecycle"
)

// CycleController is the part of *cycle.Manager the API drives.
type CycleController interface {
	Trigger(ctx context.Context) (cycle.Result, error)
	Last() (cycle.Result, error)
	Snapshot() *config.Config
	Do(ctx context.Context, fn func(ctx context.Context, cfg *config.Config) error) error
}

// EmployeeCleaner cleans one Left employee. main binds cycle.CleanupEmployee
// to the process Env.
type EmployeeCleaner func(ctx context.Context, cfg *config.Config, employeeID string, dryRun bool) (lifecycle.Report, error)

// Pinger checks HR reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the operator endpoints.
type Handler struct {
	cycles    CycleController
	cleanup   EmployeeCleaner
	hr        Pinger
	audit     *audit.Logger
	startTime time.Time
}

// NewHandler returns a Handler.
func NewHandler(cycles CycleController, hr Pinger, cleanup EmployeeCleaner) *Handler {
	return &Handler{cycles: cycles, hr: hr, cleanup: cleanup, startTime: time.Now()}
}

// WithAudit records triggers and cleanups to l and serves the trail at
// GET /api/v1/audit.
func (h *Handler) WithAudit(l *audit.Logger) *Handler {
	h.audit = l
	return h
}
