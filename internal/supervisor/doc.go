// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

/*
Package supervisor runs the long-lived parts of the serve mode under a
suture v4 supervision tree.

	RootSupervisor ("fingersync")
	├── DataSupervisor ("data-layer")
	│   └── CompactorService (attendance ledger value-log GC)
	├── SyncSupervisor ("sync-layer")
	│   └── CycleService (cycle.Manager)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer restarts independently with suture's backoff. Supervisor events
are logged through log/slog via sutureslog; main bridges slog to zerolog
with logging.NewSlogLogger.

Typical wiring:

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewCycleService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err := tree.Serve(ctx)

The services subpackage holds the adapters from Start/Stop and
ListenAndServe lifecycles to suture.Service.
*/
package supervisor
