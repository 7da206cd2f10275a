// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

/*
Package config loads FingerSync configuration with koanf.

Sources, lowest to highest precedence:
  - built-in defaults (defaultConfig)
  - a YAML file: the -config flag, CONFIG_PATH, ./config.yaml or /etc/fingersync/config.yaml
  - environment variables listed in envMappings

A minimal file:

	hr:
	  url: https://hr.example.com
	  api_key: xxxx
	  api_secret: yyyy
	devices:
	  - device_id: gate-1
	    ip: 10.0.1.21
	  - device_id: canteen
	    ip: 10.0.1.22
	    port: 4370
	schedule:
	  log_sync_bypass:
	    - {start: "07:30", end: "08:15", reason: "morning shift change"}
	    - {start: "23:50", end: "00:20", reason: "night shift change"}

Environment variables:
  - HR_URL, HR_API_KEY, HR_API_SECRET, HR_VERSION, HR_TIMEOUT, HR_RATE_LIMIT
  - DEVICE_DRIVER, DEVICE_CONNECT_TIMEOUT, DEVICE_PROBE_TIMEOUT, DEVICE_OPERATION_TIMEOUT, DEVICE_SYNC_TIME
  - LIFECYCLE_ENABLED, CLEAR_DELAY_DAYS, PURGE_AFTER_DAYS, DELETE_HR_FINGERPRINTS, TRACKING_FILE
  - PULL_FREQUENCY, RESYNC_ENABLED, RESYNC_TIMES, RESYNC_WINDOW_MINUTES, STATE_DIR
  - ATTENDANCE_ENABLED, ATTENDANCE_WORKERS, ATTENDANCE_RATE_PER_SECOND, ATTENDANCE_IGNORED_USER_IDS (comma separated),
    ATTENDANCE_ONLY_MACHINE_ZERO, ATTENDANCE_LOOKBACK_DAYS, ATTENDANCE_LEDGER_PATH
  - OVERTIME_ENABLED, OVERTIME_START_DATE, OVERTIME_CURSOR_FILE
  - USERSYNC_ENABLED, USERSYNC_MODE
  - MONGO_URI, MONGO_DATABASE
  - SERVER_ENABLED, LISTEN_ADDR, AUDIT_EVENTS (0 disables the audit trail)
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

A loaded *Config is treated as read-only. The scheduled service reloads the
file at the start of every cycle, so edits take effect on the next cycle
without a restart.
*/
package config
