// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package models

import (
	"fmt"
	"time"
)

// AttendanceEvent is one raw punch read from the event store.
// FingerID is the terminal-scoped user id, not the HR employee id.
type AttendanceEvent struct {
	SequenceID SequenceID
	FingerID   string
	Timestamp  time.Time
	MachineNo  int
}

// Key identifies the punch independently of its storage sequence id, so the
// same punch re-read in a later run maps to the same ledger entry.
func (e AttendanceEvent) Key() string {
	return fmt.Sprintf("%s|%s|%d", e.FingerID, e.Timestamp.Format("20060102150405"), e.MachineNo)
}

// DeviceLabel returns the HR device id for the punch's machine number.
func (e AttendanceEvent) DeviceLabel() string {
	return fmt.Sprintf("Machine %d", e.MachineNo)
}
