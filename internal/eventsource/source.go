// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

/*
Package eventsource reads raw attendance punches and overtime requests from
the terminal middleware's event store.

Two implementations satisfy Source: Mongo, backed by the AttLog and
OtRegister collections, and Memory for tests and offline runs.

Timestamps in the store are terminal wall-clock values saved without a zone.
They are returned in UTC so that formatting them yields the original wall
clock reading.
*/
package eventsource

import (
	"context"
	"time"

	"github.com/tomtom215/fingersync/internal/models"
)

// AttendanceQuery selects punches by calendar day, inclusive on both ends.
type AttendanceQuery struct {
	From            time.Time
	To              time.Time
	OnlyMachineZero bool
}

// Bounds returns the first and last instant covered by the query.
func (q AttendanceQuery) Bounds() (time.Time, time.Time) {
	fy, fm, fd := q.From.Date()
	ty, tm, td := q.To.Date()
	return time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC),
		time.Date(ty, tm, td, 23, 59, 59, 0, time.UTC)
}

// Match reports whether e falls inside the query.
func (q AttendanceQuery) Match(e models.AttendanceEvent) bool {
	start, end := q.Bounds()
	if e.Timestamp.Before(start) || e.Timestamp.After(end) {
		return false
	}
	return !q.OnlyMachineZero || e.MachineNo == 0
}

// OvertimeQuery selects OT requests dated on or after StartDate whose
// sequence id is greater than After. An empty After means from the start.
type OvertimeQuery struct {
	StartDate time.Time
	After     models.SequenceID
}

// Match reports whether e falls inside the query.
func (q OvertimeQuery) Match(e models.OTEvent) bool {
	y, m, d := q.StartDate.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if !e.Date.IsZero() && e.Date.Before(start) {
		return false
	}
	return q.After == "" || q.After.Less(e.SequenceID)
}

// Source yields raw events.
type Source interface {
	// StreamAttendance calls fn for each punch in timestamp order. A non-nil
	// error from fn stops the stream and is returned.
	StreamAttendance(ctx context.Context, q AttendanceQuery, fn func(models.AttendanceEvent) error) error

	// OvertimeEvents returns OT events in ascending sequence order.
	// Documents missing fields are returned with those fields empty.
	OvertimeEvents(ctx context.Context, q OvertimeQuery) ([]models.OTEvent, error)

	Close(ctx context.Context) error
}
