// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package cycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/hrclient"
)

func TestManagerTriggerWhileBusy(t *testing.T) {
	h := newHarness(t, nil)
	m := NewManager(config.Static(h.cfg), h.cfg, &Runner{Env: h.env})

	m.runMu.Lock()
	_, err := m.Trigger(context.Background())
	m.runMu.Unlock()
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Trigger() error = %v, want ErrBusy", err)
	}

	res, err := m.Trigger(context.Background())
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if res.Operation != OpCycle {
		t.Errorf("operation = %q", res.Operation)
	}
}

func TestManagerKeepsSnapshotWhenReloadFails(t *testing.T) {
	h := newHarness(t, nil)
	h.hr.pingErr = hrclient.ErrUnavailable
	loader := func() (*config.Config, error) { return nil, errors.New("bad yaml") }
	m := NewManager(loader, h.cfg, &Runner{Env: h.env})

	_, err := m.Trigger(context.Background())
	if !errors.Is(err, hrclient.ErrUnavailable) {
		t.Fatalf("Trigger() error = %v", err)
	}
	if m.Snapshot() != h.cfg {
		t.Error("snapshot replaced after failed reload")
	}
}

func TestManagerStartStop(t *testing.T) {
	h := newHarness(t, nil)
	h.hr.pingErr = hrclient.ErrUnavailable
	h.cfg.Schedule.PullFrequency = time.Hour
	m := NewManager(config.Static(h.cfg), h.cfg, &Runner{Env: h.env})

	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start() succeeded")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if res, _ := m.Last(); res.Operation == OpCycle {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first cycle never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(); err == nil {
		t.Error("second Stop() succeeded")
	}
}

func TestPullFrequency(t *testing.T) {
	if got := pullFrequency(nil); got != DefaultPullFrequency {
		t.Errorf("nil config = %v", got)
	}
	cfg := &config.Config{Schedule: config.ScheduleConfig{PullFrequency: time.Minute}}
	if got := pullFrequency(cfg); got != time.Minute {
		t.Errorf("configured = %v", got)
	}
}
