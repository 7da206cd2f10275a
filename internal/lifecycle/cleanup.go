// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fingersync/internal/device"
	"github.com/tomtom215/fingersync/internal/fleet"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/metrics"
	"github.com/tomtom215/fingersync/internal/models"
	"github.com/tomtom215/fingersync/internal/tracking"
)

// HRClient is the part of the HR system the cleanup needs.
type HRClient interface {
	ListLeftEmployees(ctx context.Context) ([]models.Employee, error)
	DeleteFingerprints(ctx context.Context, employeeID string) (int, error)
}

// Grain selects how work is fanned out to terminals.
type Grain int

const (
	// GrainBatch opens one session per device for all candidates.
	GrainBatch Grain = iota
	// GrainPair opens one session per (employee, device).
	GrainPair
)

// Candidate is a Left employee with a decided, non-trivial action.
type Candidate struct {
	Employee models.Employee
	Action   Action
}

// Selection is the result of filtering Left employees.
type Selection struct {
	Candidates     []Candidate
	AlreadyTracked int
	NotReady       int
	InvalidDate    int
}

// Select filters Left employees against the tracking state and classifies
// the rest. Tracked employees are dropped before classification, so nothing
// downstream ever touches them.
func Select(ctx context.Context, employees []models.Employee, state tracking.State, today time.Time, p Policy) Selection {
	log := logging.Ctx(ctx)
	var sel Selection
	for _, emp := range employees {
		if state.Contains(emp.ID) {
			sel.AlreadyTracked++
			continue
		}
		action, err := Classify(emp, today, p)
		if err != nil {
			sel.InvalidDate++
			log.Warn().Err(err).
				Str("employee_id", emp.ID).
				Str("relieving_date", emp.RelievingDate).
				Msg("Skipping Left employee with invalid relieving date")
			continue
		}
		if action == NoAction {
			sel.NotReady++
			continue
		}
		sel.Candidates = append(sel.Candidates, Candidate{Employee: emp, Action: action})
	}
	return sel
}

// DeviceOutcome is what happened to one employee on one terminal.
type DeviceOutcome string

const (
	OutcomeCleared  DeviceOutcome = "cleared"
	OutcomePurged   DeviceOutcome = "purged"
	OutcomeNotFound DeviceOutcome = "not_found"
	OutcomeFailed   DeviceOutcome = "failed"
)

// reached reports whether the terminal is in the desired end state.
func (o DeviceOutcome) reached() bool {
	return o == OutcomeCleared || o == OutcomePurged || o == OutcomeNotFound
}

// EmployeeResult is the fleet-wide result for one candidate.
type EmployeeResult struct {
	Employee models.Employee
	Action   Action
	Devices  map[string]DeviceOutcome
	Errors   map[string]error

	Mutated  int // devices where the user was cleared or purged
	NotFound int // devices without the user; counted as done
	Failed   int

	HRFingerprintsDeleted int

	// Recorded is true when the tracking file was written for this employee.
	Recorded bool
	// AssumedClean is true when no terminal had the user. The employee is
	// still recorded, although nothing distinguishes "never enrolled" from
	// "cleared by an earlier interrupted run".
	AssumedClean bool
	RecordErr    error
}

// Report summarizes one cleanup run.
type Report struct {
	DryRun    bool
	Selection Selection
	Results   []EmployeeResult
	Fleet     []fleet.DeviceResult

	Processed int // employees recorded in the tracking file
	Failed    int // employees no terminal could be reached for
}

// Options controls one Execute call.
type Options struct {
	DryRun               bool
	DeleteHRFingerprints bool
	Grain                Grain
}

// Engine runs Left-employee cleanup against the fleet.
type Engine struct {
	fleet *fleet.Orchestrator
	store *tracking.Store
	hr    HRClient
	now   func() time.Time
}

// NewEngine wires an Engine. hr is only needed by Run and by
// Options.DeleteHRFingerprints.
func NewEngine(orch *fleet.Orchestrator, store *tracking.Store, hr HRClient) *Engine {
	return &Engine{fleet: orch, store: store, hr: hr, now: time.Now}
}

// Run fetches Left employees from HR, filters and classifies them, and
// executes the cleanup. An HR error aborts before any terminal is touched.
func (e *Engine) Run(ctx context.Context, devices []models.DeviceDescriptor, p Policy, opts Options) (Report, error) {
	employees, err := e.hr.ListLeftEmployees(ctx)
	if err != nil {
		return Report{DryRun: opts.DryRun}, fmt.Errorf("list left employees: %w", err)
	}
	return e.RunFor(ctx, devices, employees, p, opts)
}

// RunFor is Run with a caller-supplied employee list.
func (e *Engine) RunFor(ctx context.Context, devices []models.DeviceDescriptor, employees []models.Employee, p Policy, opts Options) (Report, error) {
	state, err := e.store.Load(ctx)
	if err != nil && !errors.Is(err, tracking.ErrCorrupt) {
		return Report{DryRun: opts.DryRun}, fmt.Errorf("load tracking file: %w", err)
	}

	sel := Select(ctx, employees, state, e.now(), p)
	logging.Ctx(ctx).Info().
		Int("left_employees", len(employees)).
		Int("ready", len(sel.Candidates)).
		Int("already_tracked", sel.AlreadyTracked).
		Int("not_ready", sel.NotReady).
		Int("invalid_date", sel.InvalidDate).
		Bool("dry_run", opts.DryRun).
		Msg("Left employees filtered")

	rep := e.Execute(ctx, devices, sel.Candidates, opts)
	rep.Selection = sel
	return rep, nil
}

// Execute applies each candidate's action to every device and then writes
// exactly one tracking record per employee, provided at least one terminal
// was reached. Candidates must already exclude tracked employees.
func (e *Engine) Execute(ctx context.Context, devices []models.DeviceDescriptor, candidates []Candidate, opts Options) Report {
	log := logging.Ctx(ctx)
	rep := Report{DryRun: opts.DryRun, Results: make([]EmployeeResult, len(candidates))}

	for i, c := range candidates {
		rep.Results[i] = EmployeeResult{
			Employee: c.Employee,
			Action:   c.Action,
			Devices:  make(map[string]DeviceOutcome, len(devices)),
			Errors:   make(map[string]error),
		}
	}

	if opts.DryRun {
		for _, c := range candidates {
			log.Info().
				Str("employee_id", c.Employee.ID).
				Str("employee", c.Employee.Code).
				Str("device_user_id", c.Employee.DeviceUserID).
				Str("relieving_date", c.Employee.RelievingDate).
				Str("action", c.Action.String()).
				Msg("Dry run: would apply action")
		}
		return rep
	}
	if len(candidates) == 0 {
		return rep
	}

	if opts.DeleteHRFingerprints && e.hr != nil {
		for i, c := range candidates {
			n, err := e.hr.DeleteFingerprints(ctx, c.Employee.ID)
			if err != nil {
				log.Error().Err(err).Str("employee_id", c.Employee.ID).Msg("Failed to delete HR fingerprints")
				continue
			}
			rep.Results[i].HRFingerprintsDeleted = n
		}
	}

	// outcomes[device][candidate]; each device goroutine owns its row.
	outcomes := make([][]DeviceOutcome, len(devices))
	errs := make([][]error, len(devices))
	index := make(map[string]int, len(devices))
	for di, d := range devices {
		index[d.ID] = di
		outcomes[di] = make([]DeviceOutcome, len(candidates))
		errs[di] = make([]error, len(candidates))
	}

	switch opts.Grain {
	case GrainPair:
		units := make([]string, len(candidates))
		byUnit := make(map[string]int, len(candidates))
		for i, c := range candidates {
			units[i] = c.Employee.ID
			byUnit[c.Employee.ID] = i
		}
		pairs := e.fleet.RunPairs(ctx, devices, units, func(ctx context.Context, unit string, d models.DeviceDescriptor, s device.Session) error {
			di, ci := index[d.ID], byUnit[unit]
			return applyBatch(ctx, s, candidates[ci:ci+1], outcomes[di][ci:ci+1], errs[di][ci:ci+1])
		})
		for _, p := range pairs {
			rep.Fleet = append(rep.Fleet, p.Devices...)
			ci := byUnit[p.Unit]
			for _, r := range p.Devices {
				markUnreached(r, outcomes[index[r.DeviceID]][ci:ci+1], errs[index[r.DeviceID]][ci:ci+1])
			}
		}
	default:
		rep.Fleet = e.fleet.RunBatch(ctx, devices, func(ctx context.Context, d models.DeviceDescriptor, s device.Session) error {
			di := index[d.ID]
			return applyBatch(ctx, s, candidates, outcomes[di], errs[di])
		})
		for _, r := range rep.Fleet {
			di := index[r.DeviceID]
			markUnreached(r, outcomes[di], errs[di])
		}
	}

	for i := range candidates {
		res := &rep.Results[i]
		for di, d := range devices {
			o := outcomes[di][i]
			res.Devices[d.ID] = o
			switch o {
			case OutcomeCleared, OutcomePurged:
				res.Mutated++
			case OutcomeNotFound:
				res.NotFound++
			default:
				res.Failed++
				if errs[di][i] != nil {
					res.Errors[d.ID] = errs[di][i]
				}
			}
		}
		e.finish(ctx, res)
		if res.Recorded {
			rep.Processed++
		} else {
			rep.Failed++
		}
	}

	log.Info().
		Int("candidates", len(candidates)).
		Int("processed", rep.Processed).
		Int("failed", rep.Failed).
		Object("fleet", fleet.Summarize(rep.Fleet)).
		Msg("Left employee cleanup completed")
	return rep
}

// finish logs the per-device lines and writes the tracking record.
func (e *Engine) finish(ctx context.Context, res *EmployeeResult) {
	log := logging.Ctx(ctx).With().
		Str("employee_id", res.Employee.ID).
		Str("employee", res.Employee.Code).
		Str("device_user_id", res.Employee.DeviceUserID).
		Str("relieving_date", res.Employee.RelievingDate).
		Str("action", res.Action.String()).
		Logger()

	for id, o := range res.Devices {
		ev := log.Info()
		if o == OutcomeFailed {
			ev = log.Warn().AnErr("error", res.Errors[id])
		}
		ev.Str("device_id", id).Str("outcome", string(o)).Msg("Left employee device result")
	}

	if res.Mutated+res.NotFound == 0 {
		metrics.RecordLifecycleAction(res.Action.String(), "failed")
		log.Warn().Msg("No terminal reached, employee will be retried next cycle")
		return
	}
	res.AssumedClean = res.Mutated == 0
	if res.AssumedClean {
		log.Info().Msg("User absent on every reached terminal, recording as done")
	}

	if _, err := e.store.Record(ctx, res.Employee, res.Action.TrackingAction()); err != nil {
		res.RecordErr = err
		metrics.RecordLifecycleAction(res.Action.String(), "record_failed")
		log.Error().Err(err).Msg("Failed to write tracking record")
		return
	}
	res.Recorded = true
	outcome := "success"
	if res.Failed > 0 {
		outcome = "partial"
	}
	metrics.RecordLifecycleAction(res.Action.String(), outcome)
}

// applyBatch runs candidates' actions within one session. It records an
// outcome for every candidate it gets to; a connectivity error stops the
// batch and leaves the rest for markUnreached.
func applyBatch(ctx context.Context, s device.Session, candidates []Candidate, out []DeviceOutcome, errs []error) error {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	var failed []error
	for i, c := range candidates {
		o, err := applyOne(ctx, s, users, c)
		out[i], errs[i] = o, err
		if err == nil {
			continue
		}
		failed = append(failed, err)
		if fatalForSession(err) {
			break
		}
	}
	return errors.Join(failed...)
}

func applyOne(ctx context.Context, s device.Session, users []device.UserRecord, c Candidate) (DeviceOutcome, error) {
	u, ok := device.FindUser(users, c.Employee.DeviceUserID)
	if !ok {
		return OutcomeNotFound, nil
	}

	switch c.Action {
	case Purge:
		if err := s.DeleteUser(ctx, u.UserID); err != nil {
			if errors.Is(err, device.ErrUserNotFound) {
				return OutcomeNotFound, nil
			}
			return OutcomeFailed, fmt.Errorf("purge %s: %w", u.UserID, err)
		}
		return OutcomePurged, nil
	default:
		if _, err := device.ClearTemplates(ctx, s, u); err != nil {
			if errors.Is(err, device.ErrUserNotFound) {
				return OutcomeNotFound, nil
			}
			return OutcomeFailed, err
		}
		return OutcomeCleared, nil
	}
}

func fatalForSession(err error) bool {
	return errors.Is(err, device.ErrUnreachable) ||
		errors.Is(err, device.ErrSessionClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// markUnreached fills in candidates a device never got to.
func markUnreached(r fleet.DeviceResult, out []DeviceOutcome, errs []error) {
	for i := range out {
		if out[i] != "" {
			continue
		}
		out[i] = OutcomeFailed
		if r.Err != nil {
			errs[i] = r.Err
		} else {
			errs[i] = errors.New("not attempted")
		}
	}
}
