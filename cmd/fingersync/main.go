// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Command fingersync keeps a fleet of biometric attendance terminals in step
// with the HR system of record.
//
// One-shot operations run once and exit:
//
//	fingersync -op cleanup-left [-dry-run] [-force] [-employee HR-EMP-0001]
//	fingersync -op sync-users [-dry-run]
//	fingersync -op sync-attendance [-from 20260101 -to 20260107] [-dry-run]
//	fingersync -op sync-overtime [-from 20260101] [-dry-run]
//	fingersync -op sync-time
//	fingersync -op cycle [-dry-run]
//
// The serve operation runs the cycle loop under a supervisor tree together
// with the operator HTTP API:
//
//	fingersync -op serve -config /etc/fingersync/config.yaml
//
// Exit status is 0 on full or partial success, 1 when the HR system cannot
// be reached, and 2 on usage or configuration errors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/fingersync/internal/attendance"
	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/cycle"
	"github.com/tomtom215/fingersync/internal/device"
	"github.com/tomtom215/fingersync/internal/eventsource"
	"github.com/tomtom215/fingersync/internal/fleet"
	"github.com/tomtom215/fingersync/internal/hrclient"
	"github.com/tomtom215/fingersync/internal/ledger"
	"github.com/tomtom215/fingersync/internal/logging"
)

const (
	exitOK            = 0
	exitHRUnreachable = 1
	exitUsage         = 2

	opServe = "serve"
)

type options struct {
	configPath string
	op         string
	dryRun     bool
	force      bool
	from       string
	to         string
	employee   string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("fingersync", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "path to config.yaml (default: search ./config.yaml, /etc/fingersync)")
	fs.StringVar(&o.op, "op", cycle.OpCycle, "operation: cleanup-left, sync-users, sync-attendance, sync-overtime, sync-time, cycle, serve")
	fs.BoolVar(&o.dryRun, "dry-run", false, "report planned changes without touching terminals or HR")
	fs.BoolVar(&o.force, "force", false, "ignore the once-per-day guard")
	fs.StringVar(&o.from, "from", "", "first day (YYYYMMDD) for sync-attendance, start date for sync-overtime")
	fs.StringVar(&o.to, "to", "", "last day (YYYYMMDD) for sync-attendance; defaults to -from")
	fs.StringVar(&o.employee, "employee", "", "clean up a single Left employee (cleanup-left only)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.to != "" && o.from == "" {
		return o, errors.New("-to requires -from")
	}
	if o.employee != "" && o.op != cycle.OpCleanupLeft {
		return o, errors.New("-employee only applies to -op cleanup-left")
	}
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, "fingersync:", err)
		return exitUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return exitUsage
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, closeEnv, err := buildEnv(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to initialize")
		return exitUsage
	}
	defer closeEnv()

	if opts.op == opServe {
		if err := serve(ctx, opts.configPath, cfg, env); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor stopped with error")
			return exitUsage
		}
		return exitOK
	}
	return runOnce(ctx, opts, cfg, env)
}

// buildEnv creates the process-lifetime collaborators. The returned func
// releases them.
func buildEnv(ctx context.Context, cfg *config.Config) (*cycle.Env, func(), error) {
	dialer, err := device.NewDialer(cfg.Device.Driver, device.DriverOptions{
		ConnectTimeout: cfg.Device.ConnectTimeout,
		ProbeTimeout:   cfg.Device.ProbeTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	env := &cycle.Env{
		HR:    hrclient.New(&cfg.HR),
		Fleet: fleet.New(dialer, fleet.OptionsFromConfig(cfg.Device)),
	}
	var closers []func()

	if cfg.MongoEnabled() {
		src, err := eventsource.Dial(ctx, &cfg.Mongo)
		if err != nil {
			// Attendance and OT are skipped; user sync and cleanup still run.
			logging.Warn().Err(err).Msg("Event store unavailable, attendance and overtime sync disabled")
		} else {
			env.Events = src
			closers = append(closers, func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := src.Close(closeCtx); err != nil {
					logging.Warn().Err(err).Msg("Failed to close event store")
				}
			})
		}
	}

	if cfg.Attendance.Enabled {
		led, err := ledger.Open(cfg.Attendance.LedgerPath, cfg.Attendance.LedgerTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("open attendance ledger: %w", err)
		}
		env.Ledger = led
		closers = append(closers, func() {
			if err := led.Close(); err != nil {
				logging.Warn().Err(err).Msg("Failed to close attendance ledger")
			}
		})
	}

	return env, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

func runOnce(ctx context.Context, opts options, cfg *config.Config, env *cycle.Env) int {
	if err := env.HR.Ping(ctx); err != nil {
		logging.Error().Err(err).Str("hr_url", cfg.HR.URL).Msg("HR system unreachable")
		return exitHRUnreachable
	}

	if opts.employee != "" {
		rep, err := cycle.CleanupEmployee(ctx, env, cfg, opts.employee, opts.dryRun)
		if err != nil {
			logging.Error().Err(err).Str("employee_id", opts.employee).Msg("Cleanup failed")
			return exitCode(err)
		}
		logging.Info().
			Str("employee_id", opts.employee).
			Int("processed", rep.Processed).
			Int("failed", rep.Failed).
			Int("already_tracked", rep.Selection.AlreadyTracked).
			Bool("dry_run", rep.DryRun).
			Msg("Employee cleanup finished")
		return exitOK
	}

	op, err := operationFor(opts, env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fingersync:", err)
		return exitUsage
	}
	res, err := cycle.NewDispatcher(op).Dispatch(ctx, op.Name(), cfg)
	if err != nil {
		return exitCode(err)
	}
	if res.Status == cycle.StatusFailed {
		logging.Warn().Str("operation", res.Operation).Msg("Operation completed with no successful work")
	}
	return exitOK
}

func operationFor(opts options, env *cycle.Env) (cycle.Operation, error) {
	switch opts.op {
	case cycle.OpCleanupLeft:
		return &cycle.CleanupLeft{Env: env, DryRun: opts.dryRun, Force: opts.force}, nil
	case cycle.OpSyncUsers:
		return &cycle.SyncUsers{Env: env, DryRun: opts.dryRun}, nil
	case cycle.OpSyncAttendance:
		op := &cycle.SyncAttendance{Env: env, DryRun: opts.dryRun}
		if opts.from != "" {
			from, to, err := attendance.ParseRange(opts.from, opts.to)
			if err != nil {
				return nil, err
			}
			op.From, op.To = from, to
		}
		return op, nil
	case cycle.OpSyncOvertime:
		op := &cycle.SyncOvertime{Env: env, DryRun: opts.dryRun}
		if opts.from != "" {
			start, err := time.Parse(attendance.DateLayout, opts.from)
			if err != nil {
				return nil, fmt.Errorf("invalid -from %q: %w", opts.from, err)
			}
			op.StartDate = start
		}
		return op, nil
	case cycle.OpSyncTime:
		return &cycle.SyncTime{Env: env}, nil
	case cycle.OpCycle:
		return &cycle.Runner{Env: env, DryRun: opts.dryRun}, nil
	default:
		return nil, fmt.Errorf("%w: %s", cycle.ErrUnknownOperation, opts.op)
	}
}

// exitCode maps an operation error to the process exit status. Only an HR
// outage is non-zero; device failures are partial success.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, hrclient.ErrUnavailable):
		return exitHRUnreachable
	case errors.Is(err, cycle.ErrUnknownOperation), errors.Is(err, cycle.ErrNotLeft), errors.Is(err, hrclient.ErrNotFound):
		return exitUsage
	default:
		return exitOK
	}
}
