// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package models

import (
	"net"
	"strconv"
)

// DefaultDevicePort is the vendor protocol port terminals listen on.
const DefaultDevicePort = 4370

// DeviceDescriptor is the static description of one terminal. It is read
// once from configuration and never mutated at runtime.
type DeviceDescriptor struct {
	ID                     string  `koanf:"device_id" json:"device_id" validate:"required"`
	IP                     string  `koanf:"ip" json:"ip" validate:"required,ip"`
	Port                   int     `koanf:"port" json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	PunchDirection         string  `koanf:"punch_direction" json:"punch_direction,omitempty" validate:"omitempty,oneof=IN OUT AUTO"`
	ClearFromDeviceOnFetch bool    `koanf:"clear_from_device_on_fetch" json:"clear_from_device_on_fetch"`
	Latitude               float64 `koanf:"latitude" json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude              float64 `koanf:"longitude" json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Addr returns ip:port, falling back to DefaultDevicePort.
func (d DeviceDescriptor) Addr() string {
	port := d.Port
	if port == 0 {
		port = DefaultDevicePort
	}
	return net.JoinHostPort(d.IP, strconv.Itoa(port))
}
