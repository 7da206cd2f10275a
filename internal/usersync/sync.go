// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package usersync writes HR employees and their fingerprint templates to
// every terminal.
//
// Full mode rewrites every active employee that has templates. Changed mode
// only touches employees modified since the last successful run and clears
// templates of changed employees that no longer have any. Auto picks full
// when no marker exists.
package usersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/fingersync/internal/device"
	"github.com/tomtom215/fingersync/internal/fleet"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/models"
)

// Mode selects which employees are synced.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeFull    Mode = "full"
	ModeChanged Mode = "changed"
)

// templateFetchers bounds concurrent per-employee HR lookups.
const templateFetchers = 16

// HRClient is the part of HR the sync reads.
type HRClient interface {
	ListActiveEmployees(ctx context.Context, since time.Time) ([]models.Employee, error)
	GetEmployee(ctx context.Context, employeeID string) (models.Employee, error)
}

// DeviceCounts is the per-terminal outcome.
type DeviceCounts struct {
	Synced  int
	Cleared int
	Skipped int
	Failed  int
}

// Report is the outcome of one run.
type Report struct {
	Mode          Mode
	Since         time.Time
	DryRun        bool
	Employees     int
	WithTemplates int
	HRErrors      int
	Fleet         fleet.Summary
	PerDevice     map[string]DeviceCounts
	MarkerUpdated bool
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (r Report) MarshalZerologObject(e *zerolog.Event) {
	e.Str("mode", string(r.Mode)).
		Bool("dry_run", r.DryRun).
		Int("employees", r.Employees).
		Int("with_templates", r.WithTemplates).
		Int("hr_errors", r.HRErrors).
		Bool("marker_updated", r.MarkerUpdated).
		Object("fleet", r.Fleet)
	if !r.Since.IsZero() {
		e.Time("since", r.Since)
	}
	d := zerolog.Dict()
	for id, c := range r.PerDevice {
		d.Dict(id, zerolog.Dict().
			Int("synced", c.Synced).
			Int("cleared", c.Cleared).
			Int("skipped", c.Skipped).
			Int("failed", c.Failed))
	}
	e.Dict("per_device", d)
}

// Options controls one run.
type Options struct {
	Mode   Mode
	DryRun bool
}

// Syncer pushes HR users to terminals.
type Syncer struct {
	fleet  *fleet.Orchestrator
	hr     HRClient
	marker *Marker
	now    func() time.Time
}

// New returns a Syncer.
func New(orch *fleet.Orchestrator, hr HRClient, marker *Marker) *Syncer {
	return &Syncer{fleet: orch, hr: hr, marker: marker, now: time.Now}
}

// Run syncs users to every device. The marker is advanced to the run's start
// time when at least one device succeeded.
func (s *Syncer) Run(ctx context.Context, devices []models.DeviceDescriptor, opts Options) (Report, error) {
	log := logging.Ctx(ctx).With().Str("component", "usersync").Logger()
	started := s.now()
	rep := Report{Mode: opts.Mode, DryRun: opts.DryRun, PerDevice: make(map[string]DeviceCounts)}

	last, haveMarker, err := s.marker.Load()
	if err != nil {
		return rep, err
	}
	switch opts.Mode {
	case ModeAuto, "":
		if haveMarker {
			rep.Mode, rep.Since = ModeChanged, last
		} else {
			rep.Mode = ModeFull
		}
	case ModeChanged:
		rep.Since = last
		if !haveMarker {
			rep.Since = started.Add(-24 * time.Hour)
		}
	case ModeFull:
	default:
		return rep, fmt.Errorf("unknown sync mode %q", opts.Mode)
	}

	employees, err := s.hr.ListActiveEmployees(ctx, rep.Since)
	if err != nil {
		return rep, fmt.Errorf("list employees: %w", err)
	}
	employees, rep.HRErrors = s.loadTemplates(ctx, employees)

	var work []models.Employee
	for _, emp := range employees {
		if emp.DeviceUserID == "" {
			continue
		}
		if emp.HasTemplates() {
			rep.WithTemplates++
		} else if rep.Mode == ModeFull {
			continue
		}
		work = append(work, emp)
	}
	rep.Employees = len(work)

	log.Info().
		Str("mode", string(rep.Mode)).
		Int("employees", rep.Employees).
		Int("devices", len(devices)).
		Msg("User sync started")

	if len(work) == 0 || opts.DryRun {
		log.Info().EmbedObject(rep).Msg("User sync completed")
		return rep, nil
	}

	index := make(map[string]int, len(devices))
	for i, d := range devices {
		index[d.ID] = i
	}
	counts := make([]DeviceCounts, len(devices))
	results := s.fleet.RunBatch(ctx, devices, func(ctx context.Context, d models.DeviceDescriptor, sess device.Session) error {
		return syncDevice(ctx, sess, work, &counts[index[d.ID]])
	})
	rep.Fleet = fleet.Summarize(results)
	for i, d := range devices {
		rep.PerDevice[d.ID] = counts[i]
	}

	if rep.Fleet.AnySucceeded() {
		if err := s.marker.Save(started); err != nil {
			log.Error().Err(err).Msg("Failed to save user sync marker")
		} else {
			rep.MarkerUpdated = true
		}
	}

	log.Info().EmbedObject(rep).Msg("User sync completed")
	return rep, nil
}

// loadTemplates fetches fingerprints for each employee. Employees whose
// lookup fails are dropped and counted.
func (s *Syncer) loadTemplates(ctx context.Context, employees []models.Employee) ([]models.Employee, int) {
	full := make([]models.Employee, len(employees))
	ok := make([]bool, len(employees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(templateFetchers)
	for i, emp := range employees {
		if emp.DeviceUserID == "" {
			continue
		}
		g.Go(func() error {
			got, err := s.hr.GetEmployee(gctx, emp.ID)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("employee_id", emp.ID).Msg("Failed to load fingerprints")
				return nil
			}
			// The list carries the authoritative status fields; only templates
			// come from the detail call.
			emp.Templates = got.Templates
			full[i], ok[i] = emp, true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.Employee, 0, len(employees))
	failed := 0
	for i, emp := range employees {
		switch {
		case emp.DeviceUserID == "":
		case ok[i]:
			out = append(out, full[i])
		default:
			failed++
		}
	}
	return out, failed
}

func syncDevice(ctx context.Context, s device.Session, employees []models.Employee, c *DeviceCounts) error {
	log := logging.Ctx(ctx)
	users, err := s.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, emp := range employees {
		err := syncOne(ctx, s, users, emp, c)
		if err == nil {
			continue
		}
		c.Failed++
		if fatal(err) {
			return err
		}
		log.Warn().Err(err).Str("employee_id", emp.ID).Str("device_user_id", emp.DeviceUserID).Msg("User sync failed for employee")
	}
	if c.Failed > 0 && c.Synced+c.Cleared+c.Skipped == 0 {
		return fmt.Errorf("%w: all %d employees failed", device.ErrProtocol, c.Failed)
	}
	return nil
}

func syncOne(ctx context.Context, s device.Session, users []device.UserRecord, emp models.Employee, c *DeviceCounts) error {
	slots := device.TemplatesFromModel(emp.Templates)
	if len(slots) == 0 {
		existing, ok := device.FindUser(users, emp.DeviceUserID)
		if !ok {
			c.Skipped++
			return nil
		}
		if _, err := device.ClearTemplates(ctx, s, existing); err != nil {
			return err
		}
		c.Cleared++
		return nil
	}

	u := device.UserRecord{
		UserID:    emp.DeviceUserID,
		Name:      device.ShortName(emp.DisplayName),
		Privilege: emp.Privilege,
		Password:  emp.Password,
	}
	if _, err := device.ReplaceUser(ctx, s, users, u, slots); err != nil {
		return err
	}
	c.Synced++
	return nil
}

func fatal(err error) bool {
	return errors.Is(err, device.ErrUnreachable) ||
		errors.Is(err, device.ErrSessionClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
