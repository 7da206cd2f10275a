// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package fleet

import (
	"github.com/rs/zerolog"
)

// Summary aggregates device results for the end-of-cycle log line.
type Summary struct {
	Devices     int
	Succeeded   int
	Failed      int
	Unreachable int
	Skipped     int
	PerDevice   map[string]Outcome
}

// Summarize counts results by outcome.
func Summarize(results []DeviceResult) Summary {
	s := Summary{Devices: len(results), PerDevice: make(map[string]Outcome, len(results))}
	for _, r := range results {
		s.PerDevice[r.DeviceID] = r.Outcome
		switch r.Outcome {
		case OutcomeSuccess:
			s.Succeeded++
		case OutcomeUnreachable:
			s.Unreachable++
		case OutcomeCircuitOpen:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// AnySucceeded reports whether at least one device completed.
func (s Summary) AnySucceeded() bool {
	return s.Succeeded > 0
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("devices", s.Devices).
		Int("succeeded", s.Succeeded).
		Int("failed", s.Failed).
		Int("unreachable", s.Unreachable).
		Int("skipped", s.Skipped)
	per := zerolog.Dict()
	for id, o := range s.PerDevice {
		per.Str(id, string(o))
	}
	e.Dict("per_device", per)
}
