// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package overtime turns the raw overtime request log into HR Overtime
// Registrations.
//
// The log is append-only and noisy: users re-submit identical requests, so
// the same (date, employee, begin, end) appears under several sequence ids.
// Dedup keeps the earliest submission; Group then builds one registration per
// request number. Per-employee conflicts against HR are checked row by row by
// the Syncer, since one request can mix new and already-synced employees.
package overtime

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/fingersync/internal/models"
)

// ErrIncompleteEvent marks an event missing one of the fields needed to
// register it.
var ErrIncompleteEvent = errors.New("incomplete overtime event")

const (
	keyDateLayout    = "20060102"
	detailDateLayout = "2006-01-02"
)

// Check returns ErrIncompleteEvent naming the first missing field.
func Check(e models.OTEvent) error {
	switch {
	case e.RequestNo == "":
		return fmt.Errorf("%w: request_no", ErrIncompleteEvent)
	case e.EmployeeID == "":
		return fmt.Errorf("%w: employee", ErrIncompleteEvent)
	case e.Date.IsZero():
		return fmt.Errorf("%w: date", ErrIncompleteEvent)
	case e.BeginTime == "":
		return fmt.Errorf("%w: begin_time", ErrIncompleteEvent)
	case e.EndTime == "":
		return fmt.Errorf("%w: end_time", ErrIncompleteEvent)
	}
	return nil
}

// Key identifies one employee's overtime slot.
type Key struct {
	Date       string
	EmployeeID string
	BeginTime  string
	EndTime    string
}

// KeyOf returns the dedup key of e.
func KeyOf(e models.OTEvent) Key {
	return Key{
		Date:       e.Date.Format(keyDateLayout),
		EmployeeID: e.EmployeeID,
		BeginTime:  e.BeginTime,
		EndTime:    e.EndTime,
	}
}

// DedupResult is the outcome of Dedup.
type DedupResult struct {
	// Events holds one event per key, in ascending sequence order.
	Events []models.OTEvent
	// Duplicates holds every discarded later submission.
	Duplicates []models.OTEvent
	// Incomplete holds events rejected by Check.
	Incomplete []models.OTEvent
}

// Dedup keeps the event with the lowest sequence id for each key. Input
// order does not matter.
func Dedup(events []models.OTEvent) DedupResult {
	var res DedupResult
	kept := make(map[Key]int)
	for _, e := range events {
		if Check(e) != nil {
			res.Incomplete = append(res.Incomplete, e)
			continue
		}
		k := KeyOf(e)
		i, seen := kept[k]
		if !seen {
			kept[k] = len(res.Events)
			res.Events = append(res.Events, e)
			continue
		}
		if e.SequenceID.Less(res.Events[i].SequenceID) {
			res.Duplicates = append(res.Duplicates, res.Events[i])
			res.Events[i] = e
		} else {
			res.Duplicates = append(res.Duplicates, e)
		}
	}
	slices.SortStableFunc(res.Events, compareSeq)
	return res
}

func compareSeq(a, b models.OTEvent) int {
	switch {
	case a.SequenceID.Less(b.SequenceID):
		return -1
	case b.SequenceID.Less(a.SequenceID):
		return 1
	}
	return 0
}

// Group is the surviving events of one request number.
type Group struct {
	RequestNo   string
	RequestDate time.Time
	Events      []models.OTEvent
}

// GroupByRequest groups deduplicated events by request number. Groups are
// ordered by their lowest sequence id; RequestDate comes from the first
// event of each group.
func GroupByRequest(events []models.OTEvent) []Group {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, compareSeq)

	idx := make(map[string]int)
	var groups []Group
	for _, e := range sorted {
		i, ok := idx[e.RequestNo]
		if !ok {
			idx[e.RequestNo] = len(groups)
			groups = append(groups, Group{RequestNo: e.RequestNo, RequestDate: e.RequestDate})
			i = len(groups) - 1
		}
		groups[i].Events = append(groups[i].Events, e)
	}
	return groups
}

// NormalizeTime pads HH:MM to HH:MM:SS.
func NormalizeTime(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 5 {
		return s + ":00"
	}
	return s
}

// Registration builds the HR document for g. A zero request date falls back
// to today.
func (g Group) Registration(today time.Time) models.OTRegistration {
	reqDate := g.RequestDate
	if reqDate.IsZero() {
		reqDate = today
	}
	reg := models.OTRegistration{
		RequestNo:   g.RequestNo,
		RequestDate: reqDate.Format(detailDateLayout),
		Details:     make([]models.OTDetail, 0, len(g.Events)),
	}
	for _, e := range g.Events {
		reg.Details = append(reg.Details, models.OTDetail{
			EmployeeID: e.EmployeeID,
			Date:       e.Date.Format(detailDateLayout),
			BeginTime:  NormalizeTime(e.BeginTime),
			EndTime:    NormalizeTime(e.EndTime),
			SequenceID: e.SequenceID,
		})
	}
	return reg
}

// Build runs Dedup and GroupByRequest and returns one registration per
// request number.
func Build(events []models.OTEvent, today time.Time) ([]models.OTRegistration, DedupResult) {
	d := Dedup(events)
	groups := GroupByRequest(d.Events)
	regs := make([]models.OTRegistration, 0, len(groups))
	for _, g := range groups {
		regs = append(regs, g.Registration(today))
	}
	return regs, d
}
