// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/logging"
)

// DefaultPullFrequency is used when schedule.pull_frequency is unset.
const DefaultPullFrequency = 5 * time.Minute

// ErrBusy is returned by Trigger while another cycle is running.
var ErrBusy = errors.New("a cycle is already running")

// Manager runs the cycle on a timer. The next cycle is scheduled only after
// the previous one returns, and manual triggers share the same lock.
type Manager struct {
	loader config.Loader
	runner *Runner

	mu       sync.RWMutex
	running  bool
	snapshot *config.Config
	last     Result
	lastErr  error
	stopChan chan struct{}
	wg       sync.WaitGroup

	runMu sync.Mutex
}

// NewManager returns a Manager. initial is used until the first successful
// reload and whenever a reload fails.
func NewManager(loader config.Loader, initial *config.Config, runner *Runner) *Manager {
	return &Manager{loader: loader, runner: runner, snapshot: initial}
}

// Start launches the loop. The first cycle runs immediately.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("cycle manager is already running")
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	logging.Info().Msg("Starting cycle manager")
	m.wg.Add(1)
	go m.loop(ctx)
	return nil
}

// Stop ends the loop and waits for an in-flight cycle to return.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("cycle manager is not running")
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Cycle manager stopped")
	return nil
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-timer.C:
			m.runMu.Lock()
			cfg := m.run(ctx)
			m.runMu.Unlock()
			timer.Reset(pullFrequency(cfg))
		}
	}
}

// Trigger runs one cycle now unless one is already in flight.
func (m *Manager) Trigger(ctx context.Context) (Result, error) {
	if !m.runMu.TryLock() {
		return Result{Operation: OpCycle, Status: StatusSkipped, Reason: ErrBusy.Error()}, ErrBusy
	}
	defer m.runMu.Unlock()
	m.run(ctx)
	return m.Last()
}

// Do runs fn with a freshly loaded snapshot while holding the cycle lock, so
// on-demand work never overlaps a cycle.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context, cfg *config.Config) error) error {
	if !m.runMu.TryLock() {
		return ErrBusy
	}
	defer m.runMu.Unlock()
	cfg := m.reload()
	if cfg == nil {
		return errors.New("no configuration snapshot")
	}
	return fn(ctx, cfg)
}

// run reloads configuration and executes one cycle. It returns the snapshot
// that was used. Callers hold runMu.
func (m *Manager) run(ctx context.Context) *config.Config {
	cfg := m.reload()
	if cfg == nil {
		m.mu.Lock()
		m.last = Result{Operation: OpCycle, Status: StatusFailed, Reason: "no configuration"}
		m.lastErr = errors.New("no configuration snapshot")
		m.mu.Unlock()
		return nil
	}
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	res, err := runOperation(ctx, m.runner, cfg)

	m.mu.Lock()
	m.last, m.lastErr = res, err
	m.mu.Unlock()
	return cfg
}

func (m *Manager) reload() *config.Config {
	cfg, err := m.loader()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		logging.Error().Err(err).Msg("Configuration reload failed, keeping previous snapshot")
		return m.snapshot
	}
	m.snapshot = cfg
	return cfg
}

// Snapshot returns the configuration the latest cycle used.
func (m *Manager) Snapshot() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Last returns the latest cycle result and its error.
func (m *Manager) Last() (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.lastErr
}

func pullFrequency(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.Schedule.PullFrequency <= 0 {
		return DefaultPullFrequency
	}
	return cfg.Schedule.PullFrequency
}
