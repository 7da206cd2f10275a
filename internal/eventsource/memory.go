// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package eventsource

import (
	"context"
	"slices"
	"sync"

	"github.com/tomtom215/fingersync/internal/models"
)

// Memory is an in-process Source.
type Memory struct {
	mu         sync.Mutex
	attendance []models.AttendanceEvent
	overtime   []models.OTEvent
}

// NewMemory returns an empty Memory source.
func NewMemory() *Memory {
	return &Memory{}
}

// AddAttendance appends punches.
func (m *Memory) AddAttendance(events ...models.AttendanceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attendance = append(m.attendance, events...)
}

// AddOvertime appends OT events.
func (m *Memory) AddOvertime(events ...models.OTEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overtime = append(m.overtime, events...)
}

// StreamAttendance implements Source.
func (m *Memory) StreamAttendance(ctx context.Context, q AttendanceQuery, fn func(models.AttendanceEvent) error) error {
	m.mu.Lock()
	events := slices.Clone(m.attendance)
	m.mu.Unlock()

	slices.SortStableFunc(events, func(a, b models.AttendanceEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !q.Match(e) {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// OvertimeEvents implements Source.
func (m *Memory) OvertimeEvents(ctx context.Context, q OvertimeQuery) ([]models.OTEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.OTEvent
	for _, e := range m.overtime {
		if q.Match(e) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b models.OTEvent) int {
		switch {
		case a.SequenceID.Less(b.SequenceID):
			return -1
		case b.SequenceID.Less(a.SequenceID):
			return 1
		}
		return 0
	})
	return out, nil
}

// Close implements Source.
func (m *Memory) Close(context.Context) error { return nil }
