// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/fingersync/internal/models"
)

// SimulatorDriver is the registry name of the in-memory terminal driver.
const SimulatorDriver = "simulator"

// Op names a session operation for fault injection and mutation records.
type Op string

const (
	OpOpen           Op = "open"
	OpDisableIntake  Op = "disable_intake"
	OpEnableIntake   Op = "enable_intake"
	OpListUsers      Op = "list_users"
	OpDeleteUser     Op = "delete_user"
	OpCreateUser     Op = "create_user"
	OpWriteTemplates Op = "write_templates"
	OpListTemplates  Op = "list_templates"
	OpSetTime        Op = "set_time"
	OpClose          Op = "close"
)

// Mutation is one state-changing call recorded by the simulator.
type Mutation struct {
	DeviceID string
	Op       Op
	UserID   string
}

type simUser struct {
	rec   UserRecord
	slots map[int][]byte
}

type terminal struct {
	users       map[string]*simUser
	nextUID     int
	intake      bool
	unreachable bool
	faults      map[Op]error
	open        int
	maxOpen     int
	opens       int
	clock       time.Time
}

// Simulator is an in-memory fleet of terminals implementing Dialer. It
// enforces the single-session rule per terminal, records every mutation and
// supports fault injection. Unknown device ids get an empty terminal on
// first use.
type Simulator struct {
	// Latency is added to every session call. Tests use it to overlap sessions.
	Latency time.Duration

	mu        sync.Mutex
	terminals map[string]*terminal
	mutations []Mutation
}

// NewSimulator returns an empty simulated fleet.
func NewSimulator() *Simulator {
	return &Simulator{terminals: make(map[string]*terminal)}
}

var defaultSimulator = NewSimulator()

// DefaultSimulator is the fleet behind the "simulator" driver.
func DefaultSimulator() *Simulator { return defaultSimulator }

func init() {
	Register(SimulatorDriver, Driver{
		New: func(DriverOptions) Dialer { return defaultSimulator },
	})
}

func (s *Simulator) terminal(id string) *terminal {
	t, ok := s.terminals[id]
	if !ok {
		t = &terminal{users: make(map[string]*simUser), nextUID: 1, intake: true, faults: make(map[Op]error)}
		s.terminals[id] = t
	}
	return t
}

// SeedUser installs a user with templates on a terminal without recording a mutation.
func (s *Simulator) SeedUser(deviceID string, u UserRecord, slots ...TemplateSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.terminal(deviceID)
	if u.UID == 0 {
		u.UID = t.nextUID
	}
	if u.UID >= t.nextUID {
		t.nextUID = u.UID + 1
	}
	su := &simUser{rec: u, slots: make(map[int][]byte)}
	for _, sl := range slots {
		if !sl.Empty() {
			su.slots[sl.FingerIndex] = append([]byte(nil), sl.Data...)
		}
	}
	t.users[u.UserID] = su
}

// SetUnreachable makes Open fail with ErrUnreachable for deviceID.
func (s *Simulator) SetUnreachable(deviceID string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminal(deviceID).unreachable = down
}

// FailNext makes the next call of op on deviceID return err.
func (s *Simulator) FailNext(deviceID string, op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminal(deviceID).faults[op] = err
}

// User returns the user record and non-empty template slots for userID.
func (s *Simulator) User(deviceID, userID string) (UserRecord, []TemplateSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	su, ok := s.terminal(deviceID).users[userID]
	if !ok {
		return UserRecord{}, nil, false
	}
	return su.rec, su.sortedSlots(), true
}

// Mutations returns every recorded mutation across the fleet in call order.
func (s *Simulator) Mutations() []Mutation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Mutation(nil), s.mutations...)
}

// Opens returns how many sessions were opened on deviceID.
func (s *Simulator) Opens(deviceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal(deviceID).opens
}

// MaxConcurrentSessions returns the highest number of simultaneously open
// sessions observed on deviceID.
func (s *Simulator) MaxConcurrentSessions(deviceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal(deviceID).maxOpen
}

// IntakeEnabled reports the intake state of deviceID.
func (s *Simulator) IntakeEnabled(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal(deviceID).intake
}

// Clock returns the last time written by SetTime.
func (s *Simulator) Clock(deviceID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal(deviceID).clock
}

// Open implements Dialer.
func (s *Simulator) Open(ctx context.Context, d models.DeviceDescriptor) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.terminal(d.ID)
	if t.unreachable {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, d.Addr())
	}
	if err := t.takeFault(OpOpen); err != nil {
		return nil, err
	}
	t.opens++
	t.open++
	if t.open > t.maxOpen {
		t.maxOpen = t.open
	}
	return &simSession{sim: s, id: d.ID}, nil
}

func (t *terminal) takeFault(op Op) error {
	if err, ok := t.faults[op]; ok {
		delete(t.faults, op)
		return err
	}
	return nil
}

func (u *simUser) sortedSlots() []TemplateSlot {
	out := make([]TemplateSlot, 0, len(u.slots))
	for idx, data := range u.slots {
		out = append(out, TemplateSlot{FingerIndex: idx, Data: append([]byte(nil), data...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FingerIndex < out[j].FingerIndex })
	return out
}

type simSession struct {
	sim    *Simulator
	id     string
	closed bool
}

// call serializes fn under the simulator lock after latency and fault checks.
func (ss *simSession) call(ctx context.Context, op Op, fn func(t *terminal) error) error {
	if ss.sim.Latency > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnreachable, ctx.Err())
		case <-time.After(ss.sim.Latency):
		}
	}
	ss.sim.mu.Lock()
	defer ss.sim.mu.Unlock()
	if ss.closed {
		return ErrSessionClosed
	}
	t := ss.sim.terminal(ss.id)
	if err := t.takeFault(op); err != nil {
		return err
	}
	return fn(t)
}

func (ss *simSession) record(op Op, userID string) {
	ss.sim.mutations = append(ss.sim.mutations, Mutation{DeviceID: ss.id, Op: op, UserID: userID})
}

func (ss *simSession) DisableIntake(ctx context.Context) error {
	return ss.call(ctx, OpDisableIntake, func(t *terminal) error {
		t.intake = false
		return nil
	})
}

func (ss *simSession) EnableIntake(ctx context.Context) error {
	return ss.call(ctx, OpEnableIntake, func(t *terminal) error {
		t.intake = true
		return nil
	})
}

func (ss *simSession) ListUsers(ctx context.Context) ([]UserRecord, error) {
	var out []UserRecord
	err := ss.call(ctx, OpListUsers, func(t *terminal) error {
		out = make([]UserRecord, 0, len(t.users))
		for _, u := range t.users {
			out = append(out, u.rec)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
		return nil
	})
	return out, err
}

func (ss *simSession) DeleteUser(ctx context.Context, userID string) error {
	return ss.call(ctx, OpDeleteUser, func(t *terminal) error {
		if _, ok := t.users[userID]; !ok {
			return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		delete(t.users, userID)
		ss.record(OpDeleteUser, userID)
		return nil
	})
}

func (ss *simSession) CreateUser(ctx context.Context, u UserRecord) (UserRecord, error) {
	err := ss.call(ctx, OpCreateUser, func(t *terminal) error {
		if _, ok := t.users[u.UserID]; ok {
			return fmt.Errorf("%w: user %s already exists", ErrProtocol, u.UserID)
		}
		if u.UID == 0 {
			u.UID = t.nextUID
		}
		if u.UID >= t.nextUID {
			t.nextUID = u.UID + 1
		}
		t.users[u.UserID] = &simUser{rec: u, slots: make(map[int][]byte)}
		ss.record(OpCreateUser, u.UserID)
		return nil
	})
	if err != nil {
		return UserRecord{}, err
	}
	return u, nil
}

func (ss *simSession) WriteTemplates(ctx context.Context, u UserRecord, slots []TemplateSlot) error {
	return ss.call(ctx, OpWriteTemplates, func(t *terminal) error {
		su, ok := t.users[u.UserID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUserNotFound, u.UserID)
		}
		for _, sl := range slots {
			if sl.FingerIndex < 0 || sl.FingerIndex >= models.MaxFingerSlots {
				return fmt.Errorf("%w: finger index %d out of range", ErrProtocol, sl.FingerIndex)
			}
			if sl.Empty() {
				delete(su.slots, sl.FingerIndex)
				continue
			}
			su.slots[sl.FingerIndex] = append([]byte(nil), sl.Data...)
		}
		ss.record(OpWriteTemplates, u.UserID)
		return nil
	})
}

func (ss *simSession) ListTemplates(ctx context.Context, u UserRecord) ([]TemplateSlot, error) {
	var out []TemplateSlot
	err := ss.call(ctx, OpListTemplates, func(t *terminal) error {
		su, ok := t.users[u.UserID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUserNotFound, u.UserID)
		}
		out = su.sortedSlots()
		return nil
	})
	return out, err
}

func (ss *simSession) SetTime(ctx context.Context, ts time.Time) error {
	return ss.call(ctx, OpSetTime, func(t *terminal) error {
		t.clock = ts
		ss.record(OpSetTime, "")
		return nil
	})
}

func (ss *simSession) Close() error {
	ss.sim.mu.Lock()
	defer ss.sim.mu.Unlock()
	if ss.closed {
		return nil
	}
	ss.closed = true
	t := ss.sim.terminal(ss.id)
	t.open--
	return t.takeFault(OpClose)
}
