// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package schedule

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/fingersync/internal/atomicfile"
)

const dayLayout = "2006-01-02"

// DailyGuard remembers the last calendar day a job ran, in a one-line file
// under the state directory, so a restart does not re-run it the same day.
type DailyGuard struct {
	path string
}

// NewDailyGuard returns a guard for job stored under stateDir.
func NewDailyGuard(stateDir, job string) *DailyGuard {
	return &DailyGuard{path: filepath.Join(stateDir, "last_"+job+".txt")}
}

// Path returns the marker file location.
func (g *DailyGuard) Path() string {
	return g.path
}

// LastRun returns the recorded day, or the zero time if the job never ran.
// An unreadable marker counts as never run.
func (g *DailyGuard) LastRun() (time.Time, error) {
	s, err := atomicfile.ReadString(g.path)
	if err != nil {
		return time.Time{}, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	day, err := time.ParseInLocation(dayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, nil
	}
	return day, nil
}

// Due reports whether the job has not yet run on now's calendar day.
func (g *DailyGuard) Due(now time.Time) bool {
	last, err := g.LastRun()
	if err != nil || last.IsZero() {
		return true
	}
	return last.Format(dayLayout) < now.Format(dayLayout)
}

// Mark records now's calendar day.
func (g *DailyGuard) Mark(now time.Time) error {
	if err := atomicfile.WriteFile(g.path, []byte(now.Format(dayLayout)), 0o644); err != nil {
		return fmt.Errorf("mark %s: %w", g.path, err)
	}
	return nil
}
