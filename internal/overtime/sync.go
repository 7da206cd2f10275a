// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package overtime

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fingersync/internal/eventsource"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/metrics"
	"github.com/tomtom215/fingersync/internal/models"
)

// HRClient is the overtime part of the HR system.
type HRClient interface {
	OTExists(ctx context.Context, requestNo string) (bool, error)
	OTConflict(ctx context.Context, d models.OTDetail) (bool, error)
	CreateOT(ctx context.Context, reg models.OTRegistration) error
}

// Status is the outcome of one registration.
type Status string

const (
	StatusCreated         Status = "created"
	StatusSkippedExists   Status = "skipped_exists"
	StatusSkippedConflict Status = "skipped_conflicts"
	StatusFailed          Status = "failed"
	StatusPlanned         Status = "planned"
)

// Result describes one registration.
type Result struct {
	RequestNo string
	Status    Status
	Created   []models.OTDetail
	Conflicts []models.OTDetail
	Err       error
}

// Summary is the outcome of one sync run.
type Summary struct {
	DryRun           bool
	Fetched          int
	Incomplete       int
	Duplicates       int
	Requests         int
	Created          int
	SkippedExists    int
	SkippedConflicts int
	SkippedEmployees int
	Failed           int
	Cursor           models.SequenceID
	Results          []Result
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("dry_run", s.DryRun).
		Int("fetched", s.Fetched).
		Int("incomplete", s.Incomplete).
		Int("duplicates", s.Duplicates).
		Int("requests", s.Requests).
		Int("created", s.Created).
		Int("skipped_exists", s.SkippedExists).
		Int("skipped_conflicts", s.SkippedConflicts).
		Int("skipped_employees", s.SkippedEmployees).
		Int("failed", s.Failed).
		Str("cursor", string(s.Cursor))
}

// Options controls one run.
type Options struct {
	// StartDate is the earliest OT date fetched. Zero means today.
	StartDate time.Time
	DryRun    bool
}

// Syncer pushes new OT requests from the event source to HR.
type Syncer struct {
	src    eventsource.Source
	hr     HRClient
	cursor *Cursor
	now    func() time.Time
}

// NewSyncer returns a Syncer.
func NewSyncer(src eventsource.Source, hr HRClient, cursor *Cursor) *Syncer {
	return &Syncer{src: src, hr: hr, cursor: cursor, now: time.Now}
}

// Run fetches events after the stored cursor, registers them, and advances
// the cursor. The cursor never moves past the first event of a failed
// registration, so failures are fetched again on the next run.
func (s *Syncer) Run(ctx context.Context, opts Options) (Summary, error) {
	log := logging.Ctx(ctx).With().Str("component", "overtime").Logger()
	sum := Summary{DryRun: opts.DryRun}

	after, err := s.cursor.Load()
	if err != nil {
		return sum, fmt.Errorf("load cursor: %w", err)
	}
	sum.Cursor = after

	start := opts.StartDate
	if start.IsZero() {
		start = s.now()
	}
	events, err := s.src.OvertimeEvents(ctx, eventsource.OvertimeQuery{StartDate: start, After: after})
	if err != nil {
		return sum, fmt.Errorf("fetch overtime events: %w", err)
	}
	sum.Fetched = len(events)
	if len(events) == 0 {
		log.Info().Str("after", string(after)).Msg("No new overtime events")
		return sum, nil
	}

	regs, d := Build(events, s.now())
	sum.Incomplete = len(d.Incomplete)
	sum.Duplicates = len(d.Duplicates)
	sum.Requests = len(regs)
	for _, e := range d.Incomplete {
		log.Warn().Err(Check(e)).Str("sequence_id", string(e.SequenceID)).Msg("Skipping incomplete overtime event")
	}

	failed := make(map[string]bool)
	for _, reg := range regs {
		res := s.register(ctx, reg, opts.DryRun)
		sum.Results = append(sum.Results, res)
		sum.SkippedEmployees += len(res.Conflicts)
		switch res.Status {
		case StatusCreated, StatusPlanned:
			sum.Created++
		case StatusSkippedExists:
			sum.SkippedExists++
		case StatusSkippedConflict:
			sum.SkippedConflicts++
		case StatusFailed:
			sum.Failed++
			failed[reg.RequestNo] = true
			log.Error().Err(res.Err).Str("request_no", reg.RequestNo).Msg("Overtime registration failed")
		}
		if !opts.DryRun {
			metrics.RecordOvertime(string(res.Status), 1)
		}
		if err := ctx.Err(); err != nil {
			failed[reg.RequestNo] = true
			break
		}
	}

	next := advance(after, events, failed)
	if !opts.DryRun && next != after {
		if err := s.cursor.Save(next); err != nil {
			return sum, fmt.Errorf("save cursor: %w", err)
		}
	}
	sum.Cursor = next

	log.Info().EmbedObject(sum).Msg("Overtime sync completed")
	return sum, ctx.Err()
}

func (s *Syncer) register(ctx context.Context, reg models.OTRegistration, dryRun bool) Result {
	res := Result{RequestNo: reg.RequestNo}

	exists, err := s.hr.OTExists(ctx, reg.RequestNo)
	if err != nil {
		res.Status, res.Err = StatusFailed, fmt.Errorf("check %s: %w", reg.RequestNo, err)
		return res
	}
	if exists {
		res.Status = StatusSkippedExists
		return res
	}

	var valid []models.OTDetail
	for _, d := range reg.Details {
		conflict, err := s.hr.OTConflict(ctx, d)
		if err != nil {
			res.Status, res.Err = StatusFailed, fmt.Errorf("conflict check %s/%s: %w", reg.RequestNo, d.EmployeeID, err)
			return res
		}
		if conflict {
			res.Conflicts = append(res.Conflicts, d)
			continue
		}
		valid = append(valid, d)
	}

	if len(valid) == 0 {
		if len(res.Conflicts) > 0 {
			res.Status = StatusSkippedConflict
			return res
		}
		res.Status, res.Err = StatusFailed, fmt.Errorf("%s: no valid detail rows", reg.RequestNo)
		return res
	}

	res.Created = valid
	if dryRun {
		res.Status = StatusPlanned
		return res
	}
	reg.Details = valid
	if err := s.hr.CreateOT(ctx, reg); err != nil {
		res.Status, res.Err = StatusFailed, fmt.Errorf("create %s: %w", reg.RequestNo, err)
		return res
	}
	res.Status = StatusCreated
	return res
}

// advance returns the highest sequence id such that no event at or below it
// belongs to a failed request.
func advance(prev models.SequenceID, events []models.OTEvent, failed map[string]bool) models.SequenceID {
	next := prev
	for _, e := range sortedBySeq(events) {
		if e.RequestNo != "" && failed[e.RequestNo] {
			break
		}
		if next == "" || next.Less(e.SequenceID) {
			next = e.SequenceID
		}
	}
	return next
}

func sortedBySeq(events []models.OTEvent) []models.OTEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, compareSeq)
	return out
}
