// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package attendance streams raw punches from the event source into HR
// employee checkins.
//
// Submissions run on a bounded worker pool with an optional request rate.
// Each punch ends in exactly one outcome. Duplicates reported by HR are a
// normal skip, not a failure. Accepted and duplicate punches are remembered
// in the ledger so later runs over the same range skip them.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/eventsource"
	"github.com/tomtom215/fingersync/internal/hrclient"
	"github.com/tomtom215/fingersync/internal/ledger"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/metrics"
	"github.com/tomtom215/fingersync/internal/models"
)

// DateLayout is the format of explicit range bounds.
const DateLayout = "20060102"

const maxReportedFailures = 50

// HRClient submits checkins.
type HRClient interface {
	AddCheckin(ctx context.Context, deviceUserID string, ts time.Time, deviceLabel string) (string, error)
}

// Ledger remembers accepted punches. *ledger.Ledger satisfies it.
type Ledger interface {
	Lookup(ctx context.Context, key string) (ledger.Entry, bool, error)
	Record(ctx context.Context, key string, outcome ledger.Outcome, checkinID string) error
}

// Outcome of one punch.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeRecorded  Outcome = "already_recorded"
	OutcomePlanned   Outcome = "planned"
)

// Options controls one run.
type Options struct {
	From            time.Time
	To              time.Time
	Workers         int
	RequestTimeout  time.Duration
	RatePerSecond   float64
	IgnoredUserIDs  []string
	OnlyMachineZero bool
	DryRun          bool
}

// OptionsFromConfig covers the last LookbackDays days ending today.
func OptionsFromConfig(cfg *config.AttendanceConfig, today time.Time) Options {
	days := cfg.LookbackDays
	if days < 1 {
		days = 1
	}
	return Options{
		From:            today.AddDate(0, 0, -(days - 1)),
		To:              today,
		Workers:         cfg.Workers,
		RequestTimeout:  cfg.RequestTimeout,
		RatePerSecond:   cfg.RatePerSecond,
		IgnoredUserIDs:  cfg.IgnoredUserIDs,
		OnlyMachineZero: cfg.OnlyMachineZero,
	}
}

// ParseRange parses explicit YYYYMMDD bounds. An empty to means from.
func ParseRange(from, to string) (time.Time, time.Time, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	if to == "" {
		return f, f, nil
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	if t.Before(f) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date %s is before from date %s", to, from)
	}
	return f, t, nil
}

// Failure is one rejected punch.
type Failure struct {
	Key string
	Err error
}

// Summary is the outcome of one run.
type Summary struct {
	From       time.Time
	To         time.Time
	DryRun     bool
	Total      int
	Processed  int
	Duplicates int
	Failed     int
	Ignored    int
	Invalid    int
	Recorded   int
	Duration   time.Duration
	Failures   []Failure
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (s Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Str("from", s.From.Format(DateLayout)).
		Str("to", s.To.Format(DateLayout)).
		Bool("dry_run", s.DryRun).
		Int("total", s.Total).
		Int("processed", s.Processed).
		Int("duplicates", s.Duplicates).
		Int("failed", s.Failed).
		Int("ignored", s.Ignored).
		Int("invalid", s.Invalid).
		Int("already_recorded", s.Recorded).
		Dur("duration", s.Duration)
}

type counters struct {
	total, processed, duplicates, failed, ignored, invalid, recorded atomic.Int64

	mu       sync.Mutex
	failures []Failure
}

func (c *counters) add(o Outcome) {
	switch o {
	case OutcomeProcessed, OutcomePlanned:
		c.processed.Add(1)
	case OutcomeDuplicate:
		c.duplicates.Add(1)
	case OutcomeFailed:
		c.failed.Add(1)
	case OutcomeIgnored:
		c.ignored.Add(1)
	case OutcomeInvalid:
		c.invalid.Add(1)
	case OutcomeRecorded:
		c.recorded.Add(1)
	}
}

func (c *counters) fail(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.failures) < maxReportedFailures {
		c.failures = append(c.failures, Failure{Key: key, Err: err})
	}
}

// Pipeline wires the event source to HR.
type Pipeline struct {
	src    eventsource.Source
	hr     HRClient
	ledger Ledger
}

// New returns a Pipeline. led may be nil.
func New(src eventsource.Source, hr HRClient, led Ledger) *Pipeline {
	return &Pipeline{src: src, hr: hr, ledger: led}
}

// Run submits every punch in the range. Per-punch failures are counted, not
// returned; the error is non-nil only when the source itself fails or ctx
// ends.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	log := logging.Ctx(ctx).With().Str("component", "attendance").Logger()
	start := time.Now()

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	limiter := rate.NewLimiter(limit, workers)

	ignored := make(map[string]struct{}, len(opts.IgnoredUserIDs))
	for _, id := range opts.IgnoredUserIDs {
		ignored[id] = struct{}{}
	}

	log.Info().
		Str("from", opts.From.Format(DateLayout)).
		Str("to", opts.To.Format(DateLayout)).
		Int("workers", workers).
		Bool("dry_run", opts.DryRun).
		Msg("Attendance ingestion started")

	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	q := eventsource.AttendanceQuery{From: opts.From, To: opts.To, OnlyMachineZero: opts.OnlyMachineZero}
	streamErr := p.src.StreamAttendance(gctx, q, func(e models.AttendanceEvent) error {
		c.total.Add(1)
		if o, ok := p.prefilter(gctx, e, ignored); ok {
			c.add(o)
			metrics.RecordAttendance(string(o), 1)
			return nil
		}
		g.Go(func() error {
			o, err := p.submit(gctx, e, limiter, opts)
			c.add(o)
			metrics.RecordAttendance(string(o), 1)
			if err != nil {
				c.fail(e.Key(), err)
				log.Debug().Err(err).Str("finger_id", e.FingerID).Time("timestamp", e.Timestamp).Msg("Checkin failed")
			}
			return nil
		})
		return nil
	})
	_ = g.Wait()

	sum := Summary{
		From:       opts.From,
		To:         opts.To,
		DryRun:     opts.DryRun,
		Total:      int(c.total.Load()),
		Processed:  int(c.processed.Load()),
		Duplicates: int(c.duplicates.Load()),
		Failed:     int(c.failed.Load()),
		Ignored:    int(c.ignored.Load()),
		Invalid:    int(c.invalid.Load()),
		Recorded:   int(c.recorded.Load()),
		Duration:   time.Since(start),
		Failures:   c.failures,
	}
	for _, f := range sum.Failures {
		log.Warn().Err(f.Err).Str("key", f.Key).Msg("Checkin rejected")
	}
	log.Info().EmbedObject(sum).Msg("Attendance ingestion completed")

	if streamErr != nil {
		return sum, fmt.Errorf("stream attendance: %w", streamErr)
	}
	return sum, ctx.Err()
}

// prefilter classifies punches that never reach HR.
func (p *Pipeline) prefilter(ctx context.Context, e models.AttendanceEvent, ignored map[string]struct{}) (Outcome, bool) {
	if e.FingerID == "" || e.Timestamp.IsZero() {
		return OutcomeInvalid, true
	}
	if _, ok := ignored[e.FingerID]; ok {
		return OutcomeIgnored, true
	}
	if p.ledger != nil {
		_, seen, err := p.ledger.Lookup(ctx, e.Key())
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("key", e.Key()).Msg("Ledger lookup failed")
		}
		if seen {
			return OutcomeRecorded, true
		}
	}
	return "", false
}

func (p *Pipeline) submit(ctx context.Context, e models.AttendanceEvent, limiter *rate.Limiter, opts Options) (Outcome, error) {
	if opts.DryRun {
		return OutcomePlanned, nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return OutcomeFailed, err
	}

	reqCtx := ctx
	if opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, opts.RequestTimeout)
		defer cancel()
	}

	name, err := p.hr.AddCheckin(reqCtx, e.FingerID, e.Timestamp, e.DeviceLabel())
	var outcome Outcome
	var led ledger.Outcome
	switch {
	case err == nil:
		outcome, led = OutcomeProcessed, ledger.OutcomeProcessed
	case errors.Is(err, hrclient.ErrDuplicate):
		outcome, led = OutcomeDuplicate, ledger.OutcomeDuplicate
	default:
		return OutcomeFailed, err
	}

	if p.ledger != nil {
		if err := p.ledger.Record(ctx, e.Key(), led, name); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("key", e.Key()).Msg("Ledger record failed")
		}
	}
	return outcome, nil
}
