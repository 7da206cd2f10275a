// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package cycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/schedule"
)

// CycleReport lists the steps one cycle ran, in order.
type CycleReport struct {
	Resync     string   `json:"resync_slot,omitempty"`
	Steps      []Result `json:"steps"`
	Bypassed   []string `json:"bypassed,omitempty"`
	CleanupDue bool     `json:"cleanup_due"`
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (r CycleReport) MarshalZerologObject(e *zerolog.Event) {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.Operation+"="+string(s.Status))
	}
	e.Str("resync_slot", r.Resync).
		Strs("steps", names).
		Strs("bypassed", r.Bypassed).
		Bool("cleanup_due", r.CleanupDue)
}

// Runner is the "cycle" operation: one pass of every scheduled step.
//
// During a resync slot it pulls today's attendance and OT ignoring the log
// sync bypass, then runs the user sync and Left cleanup as a normal cycle
// would, and finally pushes the server clock to terminals when configured.
// Outside a slot it ingests attendance and OT unless log sync is bypassed,
// syncs users unless user sync is bypassed, and runs the Left cleanup once
// per day.
type Runner struct {
	Env    *Env
	DryRun bool
}

func (r *Runner) Name() string { return OpCycle }

func (r *Runner) Run(ctx context.Context, cfg *config.Config) (Result, error) {
	log := logging.Ctx(ctx)
	if err := r.Env.HR.Ping(ctx); err != nil {
		return Result{Status: StatusFailed, Reason: "hr unreachable"}, fmt.Errorf("hr health check: %w", err)
	}

	now := r.Env.now()
	var rep CycleReport

	if cfg.Schedule.ResyncEnabled {
		if slot, ok := schedule.ResyncSlot(cfg.Schedule.ResyncTimes, cfg.Schedule.ResyncWindowMinutes, now); ok {
			guard := schedule.NewDailyGuard(cfg.Schedule.StateDir, "resync_"+strings.ReplaceAll(slot, ":", ""))
			if guard.Due(now) {
				rep.Resync = slot
				log.Info().Str("slot", slot).Msg("Running resync slot")
				err := r.resync(ctx, cfg, &rep)
				if err == nil && !r.DryRun {
					if merr := guard.Mark(now); merr != nil {
						log.Warn().Err(merr).Msg("Failed to write resync day marker")
					}
				}
				return r.finish(rep), err
			}
		}
	}

	if d := schedule.ShouldBypass(cfg.Schedule.LogSyncBypass, now); d.Bypass {
		log.Info().Str("reason", d.Reason()).Msg("Log sync bypassed")
		rep.Bypassed = append(rep.Bypassed, OpSyncAttendance, OpSyncOvertime)
	} else {
		if err := r.step(ctx, cfg, &rep, &SyncAttendance{Env: r.Env, DryRun: r.DryRun}); err != nil {
			return r.finish(rep), err
		}
		if err := r.step(ctx, cfg, &rep, &SyncOvertime{Env: r.Env, DryRun: r.DryRun}); err != nil {
			return r.finish(rep), err
		}
	}

	err := r.maintain(ctx, cfg, &rep, now)
	return r.finish(rep), err
}

// maintain runs user sync unless bypassed and the Left cleanup when it has
// not run today.
func (r *Runner) maintain(ctx context.Context, cfg *config.Config, rep *CycleReport, now time.Time) error {
	log := logging.Ctx(ctx)
	if d := schedule.ShouldBypass(cfg.Schedule.UserSyncBypass, now); d.Bypass {
		log.Info().Str("reason", d.Reason()).Msg("User sync bypassed")
		rep.Bypassed = append(rep.Bypassed, OpSyncUsers)
	} else if err := r.step(ctx, cfg, rep, &SyncUsers{Env: r.Env, DryRun: r.DryRun}); err != nil {
		return err
	}

	if cfg.Lifecycle.Enabled && schedule.NewDailyGuard(cfg.Schedule.StateDir, "cleanup_left").Due(now) {
		rep.CleanupDue = true
		if err := r.step(ctx, cfg, rep, &CleanupLeft{Env: r.Env, DryRun: r.DryRun}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) resync(ctx context.Context, cfg *config.Config, rep *CycleReport) error {
	today := r.Env.now()
	steps := []Operation{
		&SyncAttendance{Env: r.Env, DryRun: r.DryRun, From: today, To: today},
		&SyncOvertime{Env: r.Env, DryRun: r.DryRun},
	}
	for _, op := range steps {
		if err := r.step(ctx, cfg, rep, op); err != nil {
			return err
		}
	}
	if err := r.maintain(ctx, cfg, rep, today); err != nil {
		return err
	}
	if cfg.Device.SyncTime && !r.DryRun {
		return r.step(ctx, cfg, rep, &SyncTime{Env: r.Env})
	}
	return nil
}

// step runs op and appends its result. Only an HR outage stops the cycle;
// any other step error is recorded and the next step runs.
func (r *Runner) step(ctx context.Context, cfg *config.Config, rep *CycleReport, op Operation) error {
	res, err := runOperation(ctx, op, cfg)
	rep.Steps = append(rep.Steps, res)
	if err != nil && hrUnavailable(err) {
		return fmt.Errorf("%s: %w", op.Name(), err)
	}
	return nil
}

func (r *Runner) finish(rep CycleReport) Result {
	var ok, failed int
	for _, s := range rep.Steps {
		switch s.Status {
		case StatusOK, StatusSkipped:
			ok++
		case StatusPartial:
			ok++
			failed++
		default:
			failed++
		}
	}
	return Result{Report: rep, Status: statusOf(ok, failed)}
}
