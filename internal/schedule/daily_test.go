// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package schedule

import (
	"os"
	"testing"
	"time"
)

func TestDailyGuard(t *testing.T) {
	g := NewDailyGuard(t.TempDir(), "clear_left")
	day1 := time.Date(2026, 5, 12, 9, 0, 0, 0, time.Local)

	if !g.Due(day1) {
		t.Fatal("a job that never ran should be due")
	}
	if err := g.Mark(day1); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if g.Due(day1.Add(10 * time.Hour)) {
		t.Error("job should not be due again the same day")
	}
	if !g.Due(day1.Add(24 * time.Hour)) {
		t.Error("job should be due the next day")
	}
}

func TestDailyGuardCorruptMarker(t *testing.T) {
	g := NewDailyGuard(t.TempDir(), "clear_left")
	if err := os.WriteFile(g.Path(), []byte("not a date"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !g.Due(time.Now()) {
		t.Error("unreadable marker should count as never run")
	}
}
