// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package models

// SequenceID is the monotonically increasing identifier of a raw event
// document. It is used as a dedup tiebreak and as the incremental-fetch
// cursor. MongoDB ObjectIDs (24 hex digits) and plain decimal counters are
// both ordered correctly by Less.
type SequenceID string

// Less orders shorter IDs first, then lexically. For fixed-width hex and for
// decimal integers without leading zeros this equals numeric order.
func (s SequenceID) Less(o SequenceID) bool {
	if len(s) != len(o) {
		return len(s) < len(o)
	}
	return s < o
}

// MaxSequenceID returns the greatest ID in ids, or "" when ids is empty.
func MaxSequenceID(ids ...SequenceID) SequenceID {
	var max SequenceID
	for _, id := range ids {
		if max == "" || max.Less(id) {
			max = id
		}
	}
	return max
}
