// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/fingersync/internal/models"
)

func init() {
	RecreatePause = 0
}

var testDevice = models.DeviceDescriptor{ID: "dev-1", IP: "10.0.0.1"}

func TestRun_ReleasesOnEveryPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fn      func(ctx context.Context, s Session) error
		wantErr bool
	}{
		{name: "success", fn: func(context.Context, Session) error { return nil }},
		{name: "callback error", fn: func(context.Context, Session) error { return ErrProtocol }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sim := NewSimulator()
			var intakeDuring bool
			err := Run(context.Background(), sim, testDevice, func(ctx context.Context, s Session) error {
				intakeDuring = sim.IntakeEnabled(testDevice.ID)
				return tt.fn(ctx, s)
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if intakeDuring {
				t.Error("intake should be disabled while the callback runs")
			}
			if !sim.IntakeEnabled(testDevice.ID) {
				t.Error("intake not re-enabled after Run")
			}
			if got := sim.MaxConcurrentSessions(testDevice.ID); got != 1 {
				t.Errorf("MaxConcurrentSessions = %d, want 1", got)
			}
		})
	}
}

func TestRun_PanicStillReleases(t *testing.T) {
	sim := NewSimulator()
	func() {
		defer func() { _ = recover() }()
		_ = Run(context.Background(), sim, testDevice, func(context.Context, Session) error {
			panic("boom")
		})
	}()
	if !sim.IntakeEnabled(testDevice.ID) {
		t.Error("intake not re-enabled after panic")
	}
	// A second session must open: the first was closed.
	if err := Run(context.Background(), sim, testDevice, func(context.Context, Session) error { return nil }); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := sim.MaxConcurrentSessions(testDevice.ID); got != 1 {
		t.Errorf("MaxConcurrentSessions = %d, want 1", got)
	}
}

func TestRun_CancelledContextStillReleases(t *testing.T) {
	sim := NewSimulator()
	ctx, cancel := context.WithCancel(context.Background())
	err := Run(ctx, sim, testDevice, func(context.Context, Session) error {
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if !sim.IntakeEnabled(testDevice.ID) {
		t.Error("intake not re-enabled after cancellation")
	}
}

func TestRun_Unreachable(t *testing.T) {
	sim := NewSimulator()
	sim.SetUnreachable(testDevice.ID, true)
	called := false
	err := Run(context.Background(), sim, testDevice, func(context.Context, Session) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("Run() error = %v, want ErrUnreachable", err)
	}
	if called {
		t.Error("callback must not run when open fails")
	}
}

func TestRun_EnableFailureJoined(t *testing.T) {
	sim := NewSimulator()
	sim.FailNext(testDevice.ID, OpEnableIntake, ErrProtocol)
	err := Run(context.Background(), sim, testDevice, func(context.Context, Session) error { return nil })
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Run() error = %v, want ErrProtocol", err)
	}
}

func TestClearTemplates_KeepsIdentity(t *testing.T) {
	sim := NewSimulator()
	u := UserRecord{UID: 7, UserID: "123", Name: "Jane Doe", Privilege: models.PrivilegeAdmin, Password: "42", Card: 9001}
	sim.SeedUser(testDevice.ID, u,
		TemplateSlot{FingerIndex: 0, Data: []byte{1, 2, 3}},
		TemplateSlot{FingerIndex: 6, Data: []byte{4, 5}})

	err := Run(context.Background(), sim, testDevice, func(ctx context.Context, s Session) error {
		users, err := s.ListUsers(ctx)
		if err != nil {
			return err
		}
		found, ok := FindUser(users, "123")
		if !ok {
			t.Fatal("seeded user not listed")
		}
		_, err = ClearTemplates(ctx, s, found)
		return err
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, slots, ok := sim.User(testDevice.ID, "123")
	if !ok {
		t.Fatal("user 123 missing after clear")
	}
	if got != u {
		t.Errorf("user after clear = %+v, want %+v", got, u)
	}
	if len(slots) != 0 {
		t.Errorf("slots after clear = %d, want 0", len(slots))
	}
}

func TestClearTemplates_RecreateFailureIsUserLost(t *testing.T) {
	sim := NewSimulator()
	u := UserRecord{UserID: "55", Name: "X"}
	sim.SeedUser(testDevice.ID, u)
	sim.FailNext(testDevice.ID, OpCreateUser, ErrUnreachable)

	err := Run(context.Background(), sim, testDevice, func(ctx context.Context, s Session) error {
		_, err := ClearTemplates(ctx, s, u)
		return err
	})
	if !errors.Is(err, ErrUserLost) {
		t.Fatalf("error = %v, want ErrUserLost", err)
	}
	if _, _, ok := sim.User(testDevice.ID, "55"); ok {
		t.Error("user should be absent after failed recreate")
	}
}

// cancelOnDelete cancels the work context right after a successful delete,
// as a SIGTERM or an expired per-device deadline would.
type cancelOnDelete struct {
	Session
	cancel context.CancelFunc
}

func (c cancelOnDelete) DeleteUser(ctx context.Context, userID string) error {
	err := c.Session.DeleteUser(ctx, userID)
	c.cancel()
	return err
}

func TestClearTemplates_CancelAfterDeleteStillRecreates(t *testing.T) {
	sim := NewSimulator()
	u := UserRecord{UID: 3, UserID: "123", Name: "Jane Doe", Card: 77}
	sim.SeedUser(testDevice.ID, u, TemplateSlot{FingerIndex: 1, Data: []byte{9}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := Run(ctx, sim, testDevice, func(ctx context.Context, s Session) error {
		_, err := clearTemplates(ctx, cancelOnDelete{Session: s, cancel: cancel}, u, 50*time.Millisecond)
		return err
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatal("context was not cancelled during the clear")
	}

	got, slots, ok := sim.User(testDevice.ID, "123")
	if !ok {
		t.Fatal("user 123 missing: cancelled clear left the terminal without the user")
	}
	if got != u {
		t.Errorf("user after clear = %+v, want %+v", got, u)
	}
	if len(slots) != 0 {
		t.Errorf("slots after clear = %d, want 0", len(slots))
	}
	if !sim.IntakeEnabled(testDevice.ID) {
		t.Error("intake left disabled")
	}
}

func TestReplaceUser(t *testing.T) {
	sim := NewSimulator()
	sim.SeedUser(testDevice.ID, UserRecord{UID: 3, UserID: "9", Name: "Old"}, TemplateSlot{FingerIndex: 1, Data: []byte{9}})

	err := Run(context.Background(), sim, testDevice, func(ctx context.Context, s Session) error {
		users, err := s.ListUsers(ctx)
		if err != nil {
			return err
		}
		_, err = ReplaceUser(ctx, s, users, UserRecord{UserID: "9", Name: "New"}, []TemplateSlot{{FingerIndex: 2, Data: []byte{7}}})
		return err
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, slots, _ := sim.User(testDevice.ID, "9")
	if got.UID != 3 || got.Name != "New" {
		t.Errorf("user = %+v, want UID 3 name New", got)
	}
	if len(slots) != 1 || slots[0].FingerIndex != 2 {
		t.Errorf("slots = %+v, want only finger 2", slots)
	}
}

func TestTemplatesFromModel(t *testing.T) {
	fps := []models.FingerprintTemplate{
		{FingerIndex: 0, Data: []byte{1}},
		{FingerIndex: 1},
		{FingerIndex: 12, Data: []byte{1}},
		{FingerIndex: 9, Data: []byte{2}},
	}
	slots := TemplatesFromModel(fps)
	if len(slots) != 2 {
		t.Fatalf("len = %d, want 2", len(slots))
	}
	if slots[0].FingerIndex != 0 || slots[1].FingerIndex != 9 {
		t.Errorf("slots = %+v", slots)
	}
}
