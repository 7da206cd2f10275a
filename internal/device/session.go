// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package device wraps one biometric terminal connection.
//
// A Session exposes the small set of primitives FingerSync needs from the
// vendor protocol: intake control, user CRUD, template writes and the clock.
// Sessions contain no business logic and never retry; retry policy belongs
// to callers (in practice: the next scheduled cycle).
//
// Use Run rather than Dialer.Open directly. Run disables intake, hands the
// session to a callback, and on every exit path re-enables intake and closes
// the connection.
package device

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/fingersync/internal/models"
)

var (
	// ErrUnreachable is a connectivity failure: probe, dial or I/O timeout.
	ErrUnreachable = errors.New("terminal unreachable")

	// ErrProtocol is an unexpected terminal response.
	ErrProtocol = errors.New("terminal protocol error")

	// ErrUserNotFound is returned when the device_user_id is not in the terminal's user table.
	ErrUserNotFound = errors.New("user not found on terminal")

	// ErrSessionClosed is returned by any call on a closed session.
	ErrSessionClosed = errors.New("terminal session closed")

	// ErrUserLost means a clear deleted the user and the recreate failed.
	// The terminal now has no record for the user, which is the same end
	// state as a purge.
	ErrUserLost = errors.New("user deleted but not recreated")
)

// UserRecord is one entry of a terminal's user table.
type UserRecord struct {
	UID       int    // terminal-internal slot number
	UserID    string // device_user_id
	Name      string
	Privilege int
	Password  string
	GroupID   string
	Card      int64
}

// TemplateSlot is one finger slot of a user record.
type TemplateSlot struct {
	FingerIndex int
	Data        []byte
}

// Empty reports whether the slot holds no template.
func (t TemplateSlot) Empty() bool {
	return len(t.Data) == 0
}

// Session is an open connection to one terminal. Operations on one session
// are strictly sequential; a Session is not safe for concurrent use.
type Session interface {
	DisableIntake(ctx context.Context) error
	EnableIntake(ctx context.Context) error
	ListUsers(ctx context.Context) ([]UserRecord, error)
	DeleteUser(ctx context.Context, userID string) error
	// CreateUser adds a user. UID may be zero to let the terminal choose.
	CreateUser(ctx context.Context, u UserRecord) (UserRecord, error)
	WriteTemplates(ctx context.Context, u UserRecord, slots []TemplateSlot) error
	ListTemplates(ctx context.Context, u UserRecord) ([]TemplateSlot, error)
	SetTime(ctx context.Context, t time.Time) error
	Close() error
}

// Dialer opens sessions. Implementations must honour ctx for the connect.
type Dialer interface {
	Open(ctx context.Context, d models.DeviceDescriptor) (Session, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, d models.DeviceDescriptor) (Session, error)

// Open implements Dialer.
func (f DialerFunc) Open(ctx context.Context, d models.DeviceDescriptor) (Session, error) {
	return f(ctx, d)
}

// FindUser returns the record for userID from users.
func FindUser(users []UserRecord, userID string) (UserRecord, bool) {
	for _, u := range users {
		if u.UserID == userID {
			return u, true
		}
	}
	return UserRecord{}, false
}

// TemplatesFromModel converts HR templates into slots, dropping empty ones.
func TemplatesFromModel(fps []models.FingerprintTemplate) []TemplateSlot {
	slots := make([]TemplateSlot, 0, len(fps))
	for _, fp := range fps {
		if fp.Empty() || fp.FingerIndex < 0 || fp.FingerIndex >= models.MaxFingerSlots {
			continue
		}
		slots = append(slots, TemplateSlot{FingerIndex: fp.FingerIndex, Data: fp.Data})
	}
	return slots
}
