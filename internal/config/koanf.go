// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no explicit path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fingersync/config.yaml",
	"/etc/fingersync/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		HR: HRConfig{
			Version:   15,
			Timeout:   30 * time.Second,
			RateLimit: 0,
			RateBurst: 10,
		},
		Device: DeviceConfig{
			Driver:           "simulator",
			ConnectTimeout:   10 * time.Second,
			ProbeTimeout:     3 * time.Second,
			OperationTimeout: 2 * time.Minute,
			SyncTime:         false,
			BreakerFailures:  3,
			BreakerCooldown:  10 * time.Minute,
		},
		Lifecycle: LifecycleConfig{
			Enabled:              true,
			ClearDelayDays:       7,
			PurgeAfterDays:       0,
			DeleteHRFingerprints: false,
			TrackingFile:         "logs/clean_data_employee_left/processed_left_employees.json",
		},
		Schedule: ScheduleConfig{
			PullFrequency:       2 * time.Minute,
			ResyncEnabled:       false,
			ResyncTimes:         []string{"23:30"},
			ResyncWindowMinutes: 10,
			StateDir:            "state",
		},
		Attendance: AttendanceConfig{
			Enabled:        false,
			Workers:        200,
			RequestTimeout: 10 * time.Second,
			LookbackDays:   7,
			LedgerPath:     "state/attendance-ledger",
			LedgerTTL:      30 * 24 * time.Hour,
		},
		Overtime: OvertimeConfig{
			Enabled:    false,
			CursorFile: "logs/ot_sync/last_synced_ot_id.txt",
		},
		UserSync: UserSyncConfig{
			Enabled:    false,
			Mode:       "auto",
			MarkerFile: "state/last_sync_global.json",
		},
		Mongo: MongoConfig{
			Database:             "tiqn",
			AttendanceCollection: "AttLog",
			OvertimeCollection:   "OtRegister",
			Timeout:              30 * time.Second,
		},
		Server: ServerConfig{
			Enabled:           false,
			ListenAddr:        ":8480",
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
			ShutdownTimeout:   10 * time.Second,
			AuditEvents:       5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers configuration sources:
//  1. built-in defaults
//  2. YAML file (path, CONFIG_PATH, or DefaultConfigPaths)
//  3. mapped environment variables
//
// Devices and bypass windows are lists of objects and come from the file only.
func LoadWithKoanf(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as env strings.
var sliceConfigPaths = []string{
	"attendance.ignored_user_ids",
	"schedule.resync_times",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps accepted environment variables (lowercased) to koanf paths.
// Anything not listed is ignored so unrelated variables cannot leak into config.
var envMappings = map[string]string{
	"hr_url":        "hr.url",
	"hr_api_key":    "hr.api_key",
	"hr_api_secret": "hr.api_secret",
	"hr_version":    "hr.version",
	"hr_timeout":    "hr.timeout",
	"hr_rate_limit": "hr.rate_limit",

	"device_driver":            "device.driver",
	"device_connect_timeout":   "device.connect_timeout",
	"device_probe_timeout":     "device.probe_timeout",
	"device_operation_timeout": "device.operation_timeout",
	"device_sync_time":         "device.sync_time",

	"lifecycle_enabled":      "lifecycle.enabled",
	"clear_delay_days":       "lifecycle.clear_delay_days",
	"purge_after_days":       "lifecycle.purge_after_days",
	"delete_hr_fingerprints": "lifecycle.delete_hr_fingerprints",
	"tracking_file":          "lifecycle.tracking_file",

	"pull_frequency":        "schedule.pull_frequency",
	"resync_enabled":        "schedule.resync_enabled",
	"resync_times":          "schedule.resync_times",
	"resync_window_minutes": "schedule.resync_window_minutes",
	"state_dir":             "schedule.state_dir",

	"attendance_enabled":           "attendance.enabled",
	"attendance_workers":           "attendance.workers",
	"attendance_rate_per_second":   "attendance.rate_per_second",
	"attendance_ignored_user_ids":  "attendance.ignored_user_ids",
	"attendance_only_machine_zero": "attendance.only_machine_zero",
	"attendance_lookback_days":     "attendance.lookback_days",
	"attendance_ledger_path":       "attendance.ledger_path",

	"overtime_enabled":     "overtime.enabled",
	"overtime_start_date":  "overtime.start_date",
	"overtime_cursor_file": "overtime.cursor_file",

	"usersync_enabled": "usersync.enabled",
	"usersync_mode":    "usersync.mode",

	"mongo_uri":      "mongo.uri",
	"mongo_database": "mongo.database",

	"server_enabled": "server.enabled",
	"listen_addr":    "server.listen_addr",
	"audit_events":   "server.audit_events",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
