// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package tracking is the durable idempotency ledger for Left-employee
// cleanup. Once an employee is recorded here, later cycles skip it.
//
// The ledger is a small JSON file with two disjoint maps keyed by HR
// employee id:
//
//	{"cleared": {"HR-EMP-0001": {...}}, "deleted": {...}}
//
// Writes go through atomicfile so a concurrent reader, including another
// FingerSync process, sees either the old or the new file. A reader that
// still catches a transiently empty or unparseable file retries briefly and
// then falls back to empty state. Record moves a file that stays unparseable
// aside before writing, so its entries can be recovered by hand.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fingersync/internal/atomicfile"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/models"
)

// DefaultPath is used when lifecycle.tracking_file is not configured.
const DefaultPath = "logs/clean_data_employee_left/processed_left_employees.json"

const (
	loadAttempts   = 3
	loadRetryDelay = 100 * time.Millisecond
)

// ErrCorrupt is returned by Load when the file stayed unparseable across all
// attempts. The accompanying State is empty and usable.
var ErrCorrupt = errors.New("tracking file corrupt")

// State is the in-memory form of the tracking file.
type State struct {
	Cleared map[string]models.TrackingRecord `json:"cleared"`
	Deleted map[string]models.TrackingRecord `json:"deleted"`
}

// NewState returns an empty State.
func NewState() State {
	return State{
		Cleared: make(map[string]models.TrackingRecord),
		Deleted: make(map[string]models.TrackingRecord),
	}
}

func (s *State) normalize() {
	if s.Cleared == nil {
		s.Cleared = make(map[string]models.TrackingRecord)
	}
	if s.Deleted == nil {
		s.Deleted = make(map[string]models.TrackingRecord)
	}
}

// Lookup returns the record for employeeID from either map.
func (s State) Lookup(employeeID string) (models.TrackingRecord, bool) {
	if r, ok := s.Cleared[employeeID]; ok {
		return r, true
	}
	r, ok := s.Deleted[employeeID]
	return r, ok
}

// Contains reports whether employeeID was already processed.
func (s State) Contains(employeeID string) bool {
	_, ok := s.Lookup(employeeID)
	return ok
}

// Put stores rec under employeeID in the map matching its action, removing
// it from the other map so the two stay disjoint.
func (s *State) Put(employeeID string, rec models.TrackingRecord) {
	s.normalize()
	switch rec.Action {
	case models.ActionPermanentlyDeleted:
		delete(s.Cleared, employeeID)
		s.Deleted[employeeID] = rec
	default:
		delete(s.Deleted, employeeID)
		s.Cleared[employeeID] = rec
	}
}

// Len returns the number of tracked employees.
func (s State) Len() int {
	return len(s.Cleared) + len(s.Deleted)
}

// Store reads and writes the tracking file at one path.
type Store struct {
	path string

	// mu serializes read-modify-write within this process. Other processes
	// are only protected by the atomic replace.
	mu sync.Mutex

	now func() time.Time
}

// NewStore returns a Store for path, or DefaultPath when path is empty.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, now: time.Now}
}

// Path returns the tracking file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the tracking file. A missing or empty file is empty state. An
// unparseable file is re-read up to three times, 100ms apart; if it never
// parses Load returns empty state together with ErrCorrupt.
func (s *Store) Load(ctx context.Context) (State, error) {
	log := logging.Ctx(ctx)

	for attempt := 1; ; attempt++ {
		data, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return NewState(), nil
		}
		if err != nil {
			return NewState(), fmt.Errorf("read tracking file: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			log.Warn().Str("path", s.path).Msg("Tracking file is empty, treating as no processed employees")
			return NewState(), nil
		}

		var st State
		perr := json.Unmarshal(data, &st)
		if perr == nil {
			st.normalize()
			return st, nil
		}

		log.Error().Err(perr).
			Int("attempt", attempt).
			Int("max_attempts", loadAttempts).
			Str("path", s.path).
			Msg("Tracking file parse failed")
		if attempt >= loadAttempts {
			return NewState(), fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, perr)
		}

		select {
		case <-ctx.Done():
			return NewState(), ctx.Err()
		case <-time.After(loadRetryDelay):
		}
	}
}

// quarantine moves an unreadable tracking file aside as
// <path>.corrupt-<timestamp> so the next Save does not destroy it.
func (s *Store) quarantine(ctx context.Context) {
	dst := s.path + ".corrupt-" + s.now().Format("20060102T150405")
	log := logging.Ctx(ctx)
	if err := os.Rename(s.path, dst); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to move corrupt tracking file aside")
		return
	}
	log.Warn().
		Str("path", s.path).
		Str("moved_to", dst).
		Msg("Corrupt tracking file moved aside; starting from empty state")
}

// Save atomically replaces the tracking file with st.
func (s *Store) Save(st State) error {
	st.normalize()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tracking state: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("save tracking file: %w", err)
	}
	return nil
}

// Record re-reads the file, adds one employee and writes it back. Re-reading
// keeps entries another process added since this cycle started.
func (s *Store) Record(ctx context.Context, emp models.Employee, action models.TrackingAction) (models.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.Load(ctx)
	if errors.Is(err, ErrCorrupt) {
		s.quarantine(ctx)
	} else if err != nil {
		return models.TrackingRecord{}, err
	}

	code := emp.Code
	if code == "" {
		code = emp.ID
	}
	rec := models.TrackingRecord{
		Employee:      code,
		Name:          emp.DisplayName,
		DeviceUserID:  emp.DeviceUserID,
		ProcessedDate: s.now().Format(models.TrackingDateLayout),
		Action:        action,
	}
	st.Put(emp.ID, rec)

	if err := s.Save(st); err != nil {
		return models.TrackingRecord{}, err
	}
	logging.Ctx(ctx).Debug().
		Str("employee_id", emp.ID).
		Str("action", string(action)).
		Msg("Recorded employee in tracking file")
	return rec, nil
}
