// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fingersync/internal/attendance"
	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/device"
	"github.com/tomtom215/fingersync/internal/fleet"
	"github.com/tomtom215/fingersync/internal/lifecycle"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/models"
	"github.com/tomtom215/fingersync/internal/overtime"
	"github.com/tomtom215/fingersync/internal/schedule"
	"github.com/tomtom215/fingersync/internal/tracking"
	"github.com/tomtom215/fingersync/internal/usersync"
)

// Operation names.
const (
	OpCleanupLeft    = "cleanup-left"
	OpSyncUsers      = "sync-users"
	OpSyncAttendance = "sync-attendance"
	OpSyncOvertime   = "sync-overtime"
	OpSyncTime       = "sync-time"
	OpCycle          = "cycle"
)

// ErrNotLeft is returned for an on-demand cleanup of an employee who is
// still active.
var ErrNotLeft = errors.New("employee is not Left")

func policyOf(cfg *config.Config) lifecycle.Policy {
	return lifecycle.Policy{
		ClearDelayDays: cfg.Lifecycle.ClearDelayDays,
		PurgeAfterDays: cfg.Lifecycle.PurgeAfterDays,
	}
}

// CleanupLeft clears or purges Left employees across the fleet, at most
// once per calendar day unless forced.
type CleanupLeft struct {
	Env    *Env
	DryRun bool
	Force  bool
}

func (o *CleanupLeft) Name() string { return OpCleanupLeft }

func (o *CleanupLeft) Run(ctx context.Context, cfg *config.Config) (Result, error) {
	if !cfg.Lifecycle.Enabled {
		return skipped("lifecycle cleanup disabled"), nil
	}
	now := o.Env.now()
	guard := schedule.NewDailyGuard(cfg.Schedule.StateDir, "cleanup_left")
	if !o.Force && !o.DryRun && !guard.Due(now) {
		return skipped("already ran today"), nil
	}

	engine := lifecycle.NewEngine(o.Env.Fleet, tracking.NewStore(cfg.Lifecycle.TrackingFile), o.Env.HR)
	rep, err := engine.Run(ctx, cfg.Devices, policyOf(cfg), lifecycle.Options{
		DryRun:               o.DryRun,
		DeleteHRFingerprints: cfg.Lifecycle.DeleteHRFingerprints,
		Grain:                lifecycle.GrainBatch,
	})
	res := Result{Report: rep}
	if err != nil {
		return res, err
	}
	res.Status = statusOf(rep.Processed, rep.Failed)
	if !o.DryRun {
		if err := guard.Mark(now); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to write cleanup day marker")
		}
	}
	return res, nil
}

// CleanupEmployee runs the cleanup for one Left employee with one session
// per device. Tracking is honoured: an already recorded employee is a no-op.
func CleanupEmployee(ctx context.Context, env *Env, cfg *config.Config, employeeID string, dryRun bool) (lifecycle.Report, error) {
	emp, err := env.HR.GetEmployee(ctx, employeeID)
	if err != nil {
		return lifecycle.Report{DryRun: dryRun}, err
	}
	if emp.ID == "" {
		emp.ID = employeeID
	}
	if emp.Status != models.StatusLeft {
		return lifecycle.Report{DryRun: dryRun}, fmt.Errorf("%w: %s has status %q", ErrNotLeft, employeeID, emp.Status)
	}
	engine := lifecycle.NewEngine(env.Fleet, tracking.NewStore(cfg.Lifecycle.TrackingFile), env.HR)
	return engine.RunFor(ctx, cfg.Devices, []models.Employee{emp}, policyOf(cfg), lifecycle.Options{
		DryRun:               dryRun,
		DeleteHRFingerprints: cfg.Lifecycle.DeleteHRFingerprints,
		Grain:                lifecycle.GrainPair,
	})
}

// SyncUsers writes HR users and templates to terminals.
type SyncUsers struct {
	Env    *Env
	DryRun bool
	// Mode overrides usersync.mode when set.
	Mode usersync.Mode
}

func (o *SyncUsers) Name() string { return OpSyncUsers }

func (o *SyncUsers) Run(ctx context.Context, cfg *config.Config) (Result, error) {
	if !cfg.UserSync.Enabled {
		return skipped("user sync disabled"), nil
	}
	mode := o.Mode
	if mode == "" {
		mode = usersync.Mode(cfg.UserSync.Mode)
	}
	s := usersync.New(o.Env.Fleet, o.Env.HR, usersync.NewMarker(cfg.UserSync.MarkerFile))
	rep, err := s.Run(ctx, cfg.Devices, usersync.Options{Mode: mode, DryRun: o.DryRun})
	res := Result{Report: rep}
	if err != nil {
		return res, err
	}
	if rep.Employees == 0 || o.DryRun {
		res.Status = StatusOK
		return res, nil
	}
	res.Status = statusOf(rep.Fleet.Succeeded, rep.Fleet.Failed+rep.Fleet.Unreachable+rep.Fleet.Skipped)
	return res, nil
}

// SyncAttendance pushes raw punches to HR checkins.
type SyncAttendance struct {
	Env    *Env
	DryRun bool
	// From and To override the lookback range when From is set.
	From time.Time
	To   time.Time
}

func (o *SyncAttendance) Name() string { return OpSyncAttendance }

func (o *SyncAttendance) Run(ctx context.Context, cfg *config.Config) (Result, error) {
	if !cfg.Attendance.Enabled {
		return skipped("attendance ingestion disabled"), nil
	}
	if o.Env.Events == nil {
		return skipped("event store not configured"), nil
	}
	opts := attendance.OptionsFromConfig(&cfg.Attendance, o.Env.now())
	if !o.From.IsZero() {
		opts.From, opts.To = o.From, o.To
		if opts.To.IsZero() {
			opts.To = opts.From
		}
	}
	opts.DryRun = o.DryRun

	sum, err := attendance.New(o.Env.Events, o.Env.HR, o.Env.Ledger).Run(ctx, opts)
	res := Result{Report: sum, Status: statusOf(sum.Processed+sum.Duplicates, sum.Failed)}
	return res, err
}

// SyncOvertime registers new OT requests in HR.
type SyncOvertime struct {
	Env    *Env
	DryRun bool
	// StartDate overrides overtime.start_date when set.
	StartDate time.Time
}

func (o *SyncOvertime) Name() string { return OpSyncOvertime }

func (o *SyncOvertime) Run(ctx context.Context, cfg *config.Config) (Result, error) {
	if !cfg.Overtime.Enabled {
		return skipped("overtime sync disabled"), nil
	}
	if o.Env.Events == nil {
		return skipped("event store not configured"), nil
	}
	start := o.StartDate
	if start.IsZero() && cfg.Overtime.StartDate != "" {
		t, err := time.Parse(attendance.DateLayout, cfg.Overtime.StartDate)
		if err != nil {
			return Result{Status: StatusFailed}, fmt.Errorf("overtime start_date: %w", err)
		}
		start = t
	}
	if start.IsZero() {
		start = o.Env.now()
	}

	s := overtime.NewSyncer(o.Env.Events, o.Env.HR, overtime.NewCursor(cfg.Overtime.CursorFile))
	sum, err := s.Run(ctx, overtime.Options{StartDate: start, DryRun: o.DryRun})
	res := Result{Report: sum, Status: statusOf(sum.Created+sum.SkippedExists+sum.SkippedConflicts, sum.Failed)}
	return res, err
}

// SyncTime pushes the server clock to every terminal.
type SyncTime struct {
	Env *Env
}

func (o *SyncTime) Name() string { return OpSyncTime }

func (o *SyncTime) Run(ctx context.Context, cfg *config.Config) (Result, error) {
	results := o.Env.Fleet.RunBatch(ctx, cfg.Devices, func(ctx context.Context, _ models.DeviceDescriptor, s device.Session) error {
		return s.SetTime(ctx, o.Env.now())
	})
	sum := fleet.Summarize(results)
	logging.Ctx(ctx).Info().EmbedObject(sum).Msg("Terminal clock sync completed")
	return Result{Report: sum, Status: statusOf(sum.Succeeded, sum.Devices-sum.Succeeded)}, nil
}
