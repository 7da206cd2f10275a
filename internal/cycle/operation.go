// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

/*
Package cycle runs FingerSync's named operations and the scheduled loop
that drives them.

Every entry point, from the scheduled service to a manual one-shot run, is
an Operation. The Dispatcher looks operations up by name and wraps each run
with a correlation ID, metrics and a single summary log line. The Runner is
itself an Operation ("cycle") that decides which other operations a
scheduled pass should run, from the wall clock and the configured bypass
windows. The Manager repeats the Runner at the pull frequency and
serializes it with manual triggers, so two cycles never overlap.

Each cycle reloads configuration once and passes that snapshot to every
step. Connection-level collaborators (HR client, terminal dialer, event
store) live in Env for the life of the process.
*/
package cycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/hrclient"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/metrics"
)

// ErrUnknownOperation is returned by Dispatch for an unregistered name.
var ErrUnknownOperation = errors.New("unknown operation")

// Status is the overall outcome of one operation run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is what an operation reports. Report holds the operation-specific
// summary and is rendered as JSON by the API.
type Result struct {
	Operation string        `json:"operation"`
	Status    Status        `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration_ns"`
	Report    any           `json:"report,omitempty"`
}

func skipped(reason string) Result {
	return Result{Status: StatusSkipped, Reason: reason}
}

// Operation is one named unit of work.
type Operation interface {
	Name() string
	Run(ctx context.Context, cfg *config.Config) (Result, error)
}

// Dispatcher runs registered operations by name.
type Dispatcher struct {
	ops map[string]Operation
}

// NewDispatcher registers ops. A duplicate name panics.
func NewDispatcher(ops ...Operation) *Dispatcher {
	d := &Dispatcher{ops: make(map[string]Operation, len(ops))}
	for _, op := range ops {
		d.Register(op)
	}
	return d
}

// Register adds op.
func (d *Dispatcher) Register(op Operation) {
	if _, dup := d.ops[op.Name()]; dup {
		panic("cycle: operation registered twice: " + op.Name())
	}
	d.ops[op.Name()] = op
}

// Names lists registered operations in sorted order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.ops))
	for n := range d.ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named operation against cfg.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, cfg *config.Config) (Result, error) {
	op, ok := d.ops[name]
	if !ok {
		return Result{Operation: name, Status: StatusFailed}, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	return runOperation(ctx, op, cfg)
}

// runOperation wraps one run with a correlation id, metrics and the summary
// log line.
func runOperation(ctx context.Context, op Operation, cfg *config.Config) (Result, error) {
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	ctx = logging.ContextWithOperation(ctx, op.Name())

	start := time.Now()
	res, err := op.Run(ctx, cfg)
	res.Operation = op.Name()
	res.Started = start
	res.Duration = time.Since(start)
	if err != nil && (res.Status == "" || res.Status == StatusOK) {
		res.Status = StatusFailed
	}
	if res.Status == "" {
		res.Status = StatusOK
	}
	metrics.RecordCycle(op.Name(), string(res.Status), res.Duration)

	ev := logging.Ctx(ctx).Info()
	if err != nil {
		ev = logging.Ctx(ctx).Error().Err(err)
	}
	ev.Str("status", string(res.Status)).
		Str("reason", res.Reason).
		Dur("duration", res.Duration).
		Msg("Operation finished")
	return res, err
}

// statusOf maps success and failure counts to a Status.
func statusOf(succeeded, failed int) Status {
	switch {
	case failed == 0:
		return StatusOK
	case succeeded > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// hrUnavailable reports whether err means HR could not be reached at all.
func hrUnavailable(err error) bool {
	return errors.Is(err, hrclient.ErrUnavailable)
}
