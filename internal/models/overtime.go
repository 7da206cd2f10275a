// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package models

import "time"

// OTEvent is one raw overtime request row from the event store.
type OTEvent struct {
	SequenceID  SequenceID
	RequestNo   string
	RequestDate time.Time
	EmployeeID  string
	Date        time.Time
	BeginTime   string
	EndTime     string
}

// OTDetail is one deduplicated (employee, date, begin, end) row of a registration.
type OTDetail struct {
	EmployeeID string     `json:"employee"`
	Date       string     `json:"date"`
	BeginTime  string     `json:"begin_time"`
	EndTime    string     `json:"end_time"`
	SequenceID SequenceID `json:"-"`
}

// OTRegistration is the canonical aggregate for one request number.
type OTRegistration struct {
	RequestNo   string
	RequestDate string
	Details     []OTDetail
}
