// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/validation"
)

// Validate checks struct tags first, then the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if err := c.validateHR(); err != nil {
		return err
	}
	if err := c.validateDevices(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateEventSource(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateHR() error {
	if !strings.HasPrefix(c.HR.URL, "http://") && !strings.HasPrefix(c.HR.URL, "https://") {
		return fmt.Errorf("HR_URL must start with http:// or https://, got %q", c.HR.URL)
	}
	if c.HR.RateLimit < 0 {
		return fmt.Errorf("HR_RATE_LIMIT must be >= 0, got %v", c.HR.RateLimit)
	}
	return nil
}

func (c *Config) validateDevices() error {
	seen := make(map[string]string, len(c.Devices))
	for _, d := range c.Devices {
		addr := d.Addr()
		if other, ok := seen[addr]; ok {
			return fmt.Errorf("devices %q and %q share address %s", other, d.ID, addr)
		}
		seen[addr] = d.ID
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	if c.Device.ConnectTimeout <= 0 || c.Device.ProbeTimeout <= 0 {
		return fmt.Errorf("device connect and probe timeouts must be positive")
	}
	if c.Device.OperationTimeout < c.Device.ConnectTimeout {
		return fmt.Errorf("DEVICE_OPERATION_TIMEOUT (%v) must be at least DEVICE_CONNECT_TIMEOUT (%v)",
			c.Device.OperationTimeout, c.Device.ConnectTimeout)
	}
	if c.Schedule.PullFrequency <= 0 {
		return fmt.Errorf("PULL_FREQUENCY must be positive, got %v", c.Schedule.PullFrequency)
	}
	if c.Attendance.RequestTimeout <= 0 {
		return fmt.Errorf("attendance request timeout must be positive")
	}
	return nil
}

func (c *Config) validateEventSource() error {
	if (c.Attendance.Enabled || c.Overtime.Enabled) && !c.MongoEnabled() {
		return fmt.Errorf("MONGO_URI is required when attendance or overtime sync is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	return nil
}

// DeviceIDs returns the configured device ids in configuration order.
func (c *Config) DeviceIDs() []string {
	ids := make([]string, len(c.Devices))
	for i, d := range c.Devices {
		ids[i] = d.ID
	}
	return ids
}
