// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package fleet fans terminal work out across every configured device.
//
// Two grains are offered:
//
//   - RunBatch opens one session per device and hands it the whole batch.
//     Connect, disable and enable are paid once per device. Used by
//     scheduled cycles.
//   - RunPairs opens one session per (unit, device) pair. Units run one
//     after another, devices in parallel. Used for on-demand
//     single-employee requests where latency matters more than throughput.
//
// In both grains a device never has more than one open session, including
// across concurrent calls on the same Orchestrator; each device path gets
// its own timeout; and a failure on one device never stops another. Every
// device produces a DeviceResult.
package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/device"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/metrics"
	"github.com/tomtom215/fingersync/internal/models"
)

// Outcome classifies one device work path.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailed      Outcome = "failed"
	OutcomeUnreachable Outcome = "unreachable"
	OutcomeCircuitOpen Outcome = "circuit_open"
)

// DeviceResult is the outcome of one device work path.
type DeviceResult struct {
	DeviceID string
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// OK reports whether the work path completed without error.
func (r DeviceResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Work runs inside an open session with intake disabled.
type Work func(ctx context.Context, d models.DeviceDescriptor, s device.Session) error

// PairWork is Work for one unit of a RunPairs call.
type PairWork func(ctx context.Context, unit string, d models.DeviceDescriptor, s device.Session) error

// PairResult groups the device results of one unit.
type PairResult struct {
	Unit    string
	Devices []DeviceResult
}

// Options tunes the orchestrator.
type Options struct {
	// OperationTimeout bounds one device work path, open to close.
	OperationTimeout time.Duration
	// BreakerFailures is the number of consecutive unreachable results after
	// which a device is skipped until BreakerCooldown passes. Zero disables.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// OptionsFromConfig maps the device config section to Options.
func OptionsFromConfig(c config.DeviceConfig) Options {
	return Options{
		OperationTimeout: c.OperationTimeout,
		BreakerFailures:  c.BreakerFailures,
		BreakerCooldown:  c.BreakerCooldown,
	}
}

// Orchestrator runs Work across devices. It is safe for concurrent use and
// meant to live for the whole process so breaker state spans cycles.
type Orchestrator struct {
	dialer device.Dialer
	opts   Options

	mu       sync.Mutex
	slots    map[string]chan struct{}
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

// New returns an Orchestrator dialing through dialer.
func New(dialer device.Dialer, opts Options) *Orchestrator {
	return &Orchestrator{
		dialer:   dialer,
		opts:     opts,
		slots:    make(map[string]chan struct{}),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// RunBatch runs work once per device, all devices in parallel. Results are
// in the order of devices.
func (o *Orchestrator) RunBatch(ctx context.Context, devices []models.DeviceDescriptor, work Work) []DeviceResult {
	results := make([]DeviceResult, len(devices))
	if len(devices) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(len(devices))
	for i, d := range devices {
		g.Go(func() error {
			results[i] = o.runDevice(ctx, d, work)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RunPairs runs work for each unit across all devices, one unit at a time.
func (o *Orchestrator) RunPairs(ctx context.Context, devices []models.DeviceDescriptor, units []string, work PairWork) []PairResult {
	out := make([]PairResult, 0, len(units))
	for _, unit := range units {
		res := o.RunBatch(ctx, devices, func(ctx context.Context, d models.DeviceDescriptor, s device.Session) error {
			return work(ctx, unit, d, s)
		})
		out = append(out, PairResult{Unit: unit, Devices: res})
	}
	return out
}

func (o *Orchestrator) slot(deviceID string) chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.slots[deviceID]
	if !ok {
		ch = make(chan struct{}, 1)
		o.slots[deviceID] = ch
	}
	return ch
}

func (o *Orchestrator) breaker(deviceID string) *gobreaker.CircuitBreaker[struct{}] {
	if o.opts.BreakerFailures == 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	cb, ok := o.breakers[deviceID]
	if !ok {
		cb = newDeviceBreaker(deviceID, o.opts.BreakerFailures, o.opts.BreakerCooldown)
		o.breakers[deviceID] = cb
	}
	return cb
}

func (o *Orchestrator) runDevice(ctx context.Context, d models.DeviceDescriptor, work Work) DeviceResult {
	log := logging.ForDevice(ctx, d.ID)
	res := DeviceResult{DeviceID: d.ID}

	slot := o.slot(d.ID)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		res.Outcome, res.Err = OutcomeFailed, ctx.Err()
		return res
	}
	defer func() { <-slot }()

	start := time.Now()
	session := func() error {
		dctx := ctx
		if o.opts.OperationTimeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(ctx, o.opts.OperationTimeout)
			defer cancel()
		}
		return device.Run(dctx, o.dialer, d, func(ctx context.Context, s device.Session) error {
			return work(ctx, d, s)
		})
	}

	var err error
	if cb := o.breaker(d.ID); cb != nil {
		_, err = cb.Execute(func() (struct{}, error) {
			return struct{}{}, session()
		})
	} else {
		err = session()
	}
	res.Duration = time.Since(start)
	res.Err = err

	switch {
	case err == nil:
		res.Outcome = OutcomeSuccess
		log.Debug().Dur("duration", res.Duration).Msg("Device work completed")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		res.Outcome = OutcomeCircuitOpen
		res.Duration = 0
		log.Warn().Msg("Device skipped, circuit open after repeated connection failures")
	case errors.Is(err, device.ErrUnreachable), errors.Is(err, context.DeadlineExceeded):
		res.Outcome = OutcomeUnreachable
		log.Warn().Err(err).Str("ip", d.IP).Msg("Device unreachable")
	default:
		res.Outcome = OutcomeFailed
		log.Error().Err(err).Msg("Device work failed")
	}

	metrics.RecordDeviceOperation(d.ID, string(res.Outcome), res.Duration)
	return res
}
