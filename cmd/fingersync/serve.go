// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/fingersync/internal/api"
	"github.com/tomtom215/fingersync/internal/audit"
	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/cycle"
	"github.com/tomtom215/fingersync/internal/lifecycle"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/supervisor"
	"github.com/tomtom215/fingersync/internal/supervisor/services"
)

// serve runs the cycle loop and, when enabled, the HTTP API under the
// supervisor tree until ctx is canceled. Configuration is reloaded from
// configPath at the start of every cycle.
func serve(ctx context.Context, configPath string, cfg *config.Config, env *cycle.Env) error {
	if err := env.HR.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("HR system unreachable at startup, cycles will retry")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	manager := cycle.NewManager(config.FileLoader(configPath), cfg, &cycle.Runner{Env: env})
	tree.AddSyncService(services.NewCycleService(manager))

	if c, ok := env.Ledger.(services.Compacter); ok && cfg.Attendance.LedgerPath != "" {
		tree.AddDataService(services.NewCompactorService(c, services.DefaultCompactInterval))
	}

	if cfg.Server.Enabled {
		cleaner := func(ctx context.Context, cfg *config.Config, employeeID string, dryRun bool) (lifecycle.Report, error) {
			return cycle.CleanupEmployee(ctx, env, cfg, employeeID, dryRun)
		}
		handler := api.NewHandler(manager, env.HR, cleaner)
		if cfg.Server.AuditEvents > 0 {
			trail := audit.NewLogger(audit.NewMemoryStore(cfg.Server.AuditEvents), nil)
			defer func() { _ = trail.Close() }()
			handler.WithAudit(trail)
		}
		server := &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           api.NewRouter(handler, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", cfg.Server.ListenAddr).Msg("Operator API enabled")
	}

	logging.Info().
		Int("devices", len(cfg.Devices)).
		Dur("pull_frequency", cfg.Schedule.PullFrequency).
		Msg("Starting fingersync")

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Services did not stop within the shutdown timeout")
	}
	return err
}
