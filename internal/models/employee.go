// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package models

import "time"

// EmployeeStatus is the HR employment status.
type EmployeeStatus string

const (
	StatusActive EmployeeStatus = "Active"
	StatusLeft   EmployeeStatus = "Left"
)

// MaxFingerSlots is the number of finger slots (0-9) a terminal user record holds.
const MaxFingerSlots = 10

// Terminal privilege levels.
const (
	PrivilegeDefault = 0
	PrivilegeAdmin   = 14
)

// PrivilegeFromHR maps the HR custom_privilege value to a terminal privilege.
func PrivilegeFromHR(s string) int {
	if s == "USER_ADMIN" {
		return PrivilegeAdmin
	}
	return PrivilegeDefault
}

// FingerprintTemplate is one enrolled finger as stored in HR.
// Data is the opaque vendor template; HR transports it base64-encoded,
// which encoding/json style decoders map onto []byte directly.
type FingerprintTemplate struct {
	Name        string `json:"name,omitempty"`
	FingerIndex int    `json:"finger_index"`
	FingerName  string `json:"finger_name,omitempty"`
	Quality     int    `json:"quality_score,omitempty"`
	Data        []byte `json:"template_data"`
}

// Empty reports whether the slot carries no template data.
func (f FingerprintTemplate) Empty() bool {
	return len(f.Data) == 0
}

// Employee is the HR identity shared by HR and the terminal fleet.
// ID is the HR primary key; DeviceUserID is the key used in terminal user
// tables and is a separate namespace.
type Employee struct {
	ID            string                `json:"employee_id"`
	Code          string                `json:"employee"`
	DisplayName   string                `json:"employee_name"`
	DeviceUserID  string                `json:"attendance_device_id"`
	Status        EmployeeStatus        `json:"status"`
	RelievingDate string                `json:"relieving_date,omitempty"`
	Privilege     int                   `json:"privilege"`
	Password      string                `json:"password,omitempty"`
	Templates     []FingerprintTemplate `json:"fingerprints,omitempty"`
	Modified      time.Time             `json:"modified,omitempty"`
}

// HasTemplates reports whether at least one non-empty template is enrolled.
func (e *Employee) HasTemplates() bool {
	for _, t := range e.Templates {
		if !t.Empty() {
			return true
		}
	}
	return false
}
