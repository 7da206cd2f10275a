// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package config

import (
	"time"

	"github.com/tomtom215/fingersync/internal/models"
	"github.com/tomtom215/fingersync/internal/schedule"
)

// Config is one immutable configuration snapshot. The cycle runner loads a
// fresh snapshot at the start of every cycle and hands the same pointer to
// every component for the rest of that cycle; nothing writes to it afterwards.
type Config struct {
	HR         HRConfig                  `koanf:"hr"`
	Devices    []models.DeviceDescriptor `koanf:"devices" validate:"required,min=1,unique=ID,dive"`
	Device     DeviceConfig              `koanf:"device"`
	Lifecycle  LifecycleConfig           `koanf:"lifecycle"`
	Schedule   ScheduleConfig            `koanf:"schedule"`
	Attendance AttendanceConfig          `koanf:"attendance"`
	Overtime   OvertimeConfig            `koanf:"overtime"`
	UserSync   UserSyncConfig            `koanf:"usersync"`
	Mongo      MongoConfig               `koanf:"mongo"`
	Server     ServerConfig              `koanf:"server"`
	Logging    LoggingConfig             `koanf:"logging"`
}

// HRConfig points at the HR system of record.
type HRConfig struct {
	URL       string        `koanf:"url" validate:"required,url"`
	APIKey    string        `koanf:"api_key" validate:"required"`
	APISecret string        `koanf:"api_secret" validate:"required"`
	Version   int           `koanf:"version" validate:"min=10"` // <= 13 uses the legacy checkin method path
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst int           `koanf:"rate_burst"`
}

// DeviceConfig tunes terminal sessions.
type DeviceConfig struct {
	Driver           string        `koanf:"driver" validate:"required"`
	ConnectTimeout   time.Duration `koanf:"connect_timeout"`
	ProbeTimeout     time.Duration `koanf:"probe_timeout"`
	OperationTimeout time.Duration `koanf:"operation_timeout"` // whole per-device work path
	SyncTime         bool          `koanf:"sync_time"`         // push server clock during the end-of-day cycle
	BreakerFailures  uint32        `koanf:"breaker_failures"`  // consecutive failures before a device is skipped
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// LifecycleConfig drives the left-employee cleanup.
type LifecycleConfig struct {
	Enabled              bool   `koanf:"enabled"`
	ClearDelayDays       int    `koanf:"clear_delay_days" validate:"min=0"`
	PurgeAfterDays       int    `koanf:"purge_after_days" validate:"min=0"` // 0 disables purge
	DeleteHRFingerprints bool   `koanf:"delete_hr_fingerprints"`
	TrackingFile         string `koanf:"tracking_file" validate:"required"`
}

// ScheduleConfig controls the cycle loop and its time gates.
type ScheduleConfig struct {
	PullFrequency       time.Duration     `koanf:"pull_frequency"`
	LogSyncBypass       []schedule.Window `koanf:"log_sync_bypass" validate:"dive"`
	UserSyncBypass      []schedule.Window `koanf:"user_sync_bypass" validate:"dive"`
	ResyncEnabled       bool              `koanf:"resync_enabled"`
	ResyncTimes         []string          `koanf:"resync_times" validate:"dive,hhmm"`
	ResyncWindowMinutes int               `koanf:"resync_window_minutes" validate:"min=0"`
	StateDir            string            `koanf:"state_dir" validate:"required"`
}

// AttendanceConfig controls ingestion of raw punches into HR.
type AttendanceConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Workers         int           `koanf:"workers" validate:"min=1,max=1000"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	RatePerSecond   float64       `koanf:"rate_per_second"`
	IgnoredUserIDs  []string      `koanf:"ignored_user_ids"`
	OnlyMachineZero bool          `koanf:"only_machine_zero"`
	LookbackDays    int           `koanf:"lookback_days" validate:"min=1"`
	LedgerPath      string        `koanf:"ledger_path"` // empty keeps the ledger in memory
	LedgerTTL       time.Duration `koanf:"ledger_ttl"`
}

// OvertimeConfig controls OT registration sync.
type OvertimeConfig struct {
	Enabled    bool   `koanf:"enabled"`
	StartDate  string `koanf:"start_date" validate:"omitempty,yyyymmdd"` // empty means today
	CursorFile string `koanf:"cursor_file" validate:"required"`
}

// UserSyncConfig controls HR -> terminal user/template sync.
type UserSyncConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Mode       string `koanf:"mode" validate:"oneof=auto full changed"`
	MarkerFile string `koanf:"marker_file" validate:"required"`
}

// MongoConfig locates the raw event store.
type MongoConfig struct {
	URI                  string        `koanf:"uri"`
	Database             string        `koanf:"database"`
	AttendanceCollection string        `koanf:"attendance_collection"`
	OvertimeCollection   string        `koanf:"overtime_collection"`
	Timeout              time.Duration `koanf:"timeout"`
}

// ServerConfig controls the operator HTTP endpoint.
type ServerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	ListenAddr        string        `koanf:"listen_addr"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	// AuditEvents is how many operator actions GET /api/v1/audit keeps.
	// Zero disables the audit trail.
	AuditEvents int `koanf:"audit_events" validate:"min=0"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Loader produces a fresh snapshot. The cycle runner calls it once per cycle.
type Loader func() (*Config, error)

// Load reads configuration from path (or the default search paths when
// path is empty), the environment, and built-in defaults.
func Load(path string) (*Config, error) {
	return LoadWithKoanf(path)
}

// FileLoader returns a Loader bound to path.
func FileLoader(path string) Loader {
	return func() (*Config, error) {
		return Load(path)
	}
}

// Static returns a Loader that always yields cfg. Used by one-shot commands and tests.
func Static(cfg *Config) Loader {
	return func() (*Config, error) {
		return cfg, nil
	}
}

// MongoEnabled reports whether a raw event store is configured.
func (c *Config) MongoEnabled() bool {
	return c.Mongo.URI != ""
}
