// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package schedule decides, once per cycle, which synchronization classes may
// run. Bypass windows keep the service off the terminals during shift-change
// rushes; the daily guard limits heavyweight jobs to one run per calendar day;
// resync windows select the end-of-day comprehensive cycle.
//
// The window functions are pure: they take the wall-clock time as an argument
// and never sleep or block.
package schedule

import (
	"time"
)

const clockLayout = "15:04"

// Window is a wall-clock interval [Start, End). When End is not after Start
// the window crosses midnight, so {23:50, 00:20} covers 23:50-23:59 and
// 00:00-00:19. A window whose Start equals End is empty.
type Window struct {
	Start  string `koanf:"start" json:"start" validate:"required,hhmm"`
	End    string `koanf:"end" json:"end" validate:"required,hhmm"`
	Reason string `koanf:"reason" json:"reason,omitempty"`
}

// Decision is the outcome of a bypass check.
type Decision struct {
	Bypass bool
	Window Window
}

// Reason returns the matched window's reason, with a generic fallback.
func (d Decision) Reason() string {
	if !d.Bypass {
		return ""
	}
	if d.Window.Reason != "" {
		return d.Window.Reason
	}
	return "time-based bypass " + d.Window.Start + "-" + d.Window.End
}

// minuteOfDay parses HH:MM into minutes since midnight.
func minuteOfDay(s string) (int, bool) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Contains reports whether now falls inside the window. Malformed windows
// never match; configuration validation rejects them before they get here.
func (w Window) Contains(now time.Time) bool {
	start, ok1 := minuteOfDay(w.Start)
	end, ok2 := minuteOfDay(w.End)
	if !ok1 || !ok2 || start == end {
		return false
	}
	m := now.Hour()*60 + now.Minute()
	if start < end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

// ShouldBypass returns the first window containing now.
func ShouldBypass(windows []Window, now time.Time) Decision {
	for _, w := range windows {
		if w.Contains(now) {
			return Decision{Bypass: true, Window: w}
		}
	}
	return Decision{}
}

// ResyncSlot returns the configured HH:MM resync time whose window contains
// now. A window spans windowMinutes centred on the slot, wrapping midnight.
func ResyncSlot(times []string, windowMinutes int, now time.Time) (string, bool) {
	half := windowMinutes / 2
	m := now.Hour()*60 + now.Minute()
	for _, slot := range times {
		s, ok := minuteOfDay(slot)
		if !ok {
			continue
		}
		d := m - s
		if d < 0 {
			d = -d
		}
		if d > 720 {
			d = 1440 - d
		}
		if d <= half {
			return slot, true
		}
	}
	return "", false
}
