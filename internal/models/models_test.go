// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package models

import (
	"testing"
	"time"
)

func TestSequenceIDLess(t *testing.T) {
	tests := []struct {
		a, b SequenceID
		want bool
	}{
		{"5", "9", true},
		{"9", "10", true},
		{"20", "10", false},
		{"10", "10", false},
		{"65a0000000000000000000a1", "65a0000000000000000000b0", true},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%q.Less(%q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMaxSequenceID(t *testing.T) {
	if got := MaxSequenceID(); got != "" {
		t.Errorf("MaxSequenceID() = %q, want empty", got)
	}
	if got := MaxSequenceID("9", "12", "100", "99"); got != "100" {
		t.Errorf("MaxSequenceID = %q, want 100", got)
	}
}

func TestDeviceDescriptorAddr(t *testing.T) {
	d := DeviceDescriptor{ID: "d1", IP: "10.0.0.5"}
	if got := d.Addr(); got != "10.0.0.5:4370" {
		t.Errorf("Addr() = %q", got)
	}
	d.Port = 5005
	if got := d.Addr(); got != "10.0.0.5:5005" {
		t.Errorf("Addr() = %q", got)
	}
}

func TestAttendanceEventKeyAndLabel(t *testing.T) {
	e := AttendanceEvent{
		FingerID:  "123",
		Timestamp: time.Date(2026, 3, 4, 7, 58, 9, 0, time.UTC),
		MachineNo: 3,
	}
	if got := e.Key(); got != "123|20260304075809|3" {
		t.Errorf("Key() = %q", got)
	}
	if got := e.DeviceLabel(); got != "Machine 3" {
		t.Errorf("DeviceLabel() = %q", got)
	}
}

func TestEmployeeHasTemplates(t *testing.T) {
	e := Employee{Templates: []FingerprintTemplate{{FingerIndex: 0}}}
	if e.HasTemplates() {
		t.Error("empty slot should not count as a template")
	}
	e.Templates = append(e.Templates, FingerprintTemplate{FingerIndex: 6, Data: []byte{1, 2}})
	if !e.HasTemplates() {
		t.Error("expected HasTemplates to be true")
	}
}

func TestPrivilegeFromHR(t *testing.T) {
	if PrivilegeFromHR("USER_ADMIN") != PrivilegeAdmin {
		t.Error("USER_ADMIN should map to admin")
	}
	if PrivilegeFromHR("USER_DEFAULT") != PrivilegeDefault || PrivilegeFromHR("") != PrivilegeDefault {
		t.Error("other values should map to default")
	}
}
