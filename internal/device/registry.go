// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package device

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DriverOptions are passed to a driver factory.
type DriverOptions struct {
	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration
}

// Driver builds a Dialer. Networked drivers get a TCP probe in front.
type Driver struct {
	New       func(opts DriverOptions) Dialer
	Networked bool
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// Register makes a driver available under name. Vendor protocol packages call
// it from init.
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("device: Register called twice for driver " + name)
	}
	drivers[name] = d
}

// Drivers lists registered driver names.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewDialer returns the Dialer for the named driver.
func NewDialer(name string, opts DriverOptions) (Dialer, error) {
	driversMu.RLock()
	d, ok := drivers[name]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown device driver %q (registered: %v)", name, Drivers())
	}
	dialer := d.New(opts)
	if d.Networked {
		dialer = &ProbingDialer{Next: dialer, ProbeTimeout: opts.ProbeTimeout, ConnectTimeout: opts.ConnectTimeout}
	}
	return dialer, nil
}
