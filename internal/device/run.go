// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/models"
)

// releaseTimeout bounds the enable+close sequence. It uses its own context so
// a cancelled or expired work context still lets the terminal be released.
const releaseTimeout = 10 * time.Second

// Run opens a session to d, disables intake, and calls fn. Intake is
// re-enabled and the session closed on every exit path, including when fn
// fails or panics. Release errors are joined with fn's error.
func Run(ctx context.Context, dialer Dialer, d models.DeviceDescriptor, fn func(ctx context.Context, s Session) error) (err error) {
	log := logging.ForDevice(ctx, d.ID)

	s, err := dialer.Open(ctx, d)
	if err != nil {
		return fmt.Errorf("open %s: %w", d.ID, err)
	}

	disabled := false
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()

		var relErr error
		if disabled {
			if e := s.EnableIntake(relCtx); e != nil {
				log.Error().Err(e).Msg("Failed to re-enable terminal intake")
				relErr = fmt.Errorf("enable intake on %s: %w", d.ID, e)
			}
		}
		if e := s.Close(); e != nil {
			log.Warn().Err(e).Msg("Failed to close terminal session")
			relErr = errors.Join(relErr, fmt.Errorf("close %s: %w", d.ID, e))
		}
		err = errors.Join(err, relErr)
	}()

	if err = s.DisableIntake(ctx); err != nil {
		return fmt.Errorf("disable intake on %s: %w", d.ID, err)
	}
	disabled = true

	return fn(ctx, s)
}

// RecreatePause is the delay between delete and recreate in ClearTemplates.
// Some firmware rejects a create issued immediately after a delete of the same uid.
var RecreatePause = 100 * time.Millisecond

// ClearTemplates removes every template of u while keeping its identity.
//
// Terminals have no "clear templates" primitive, so this deletes the user and
// recreates it with the same uid, user id, name, privilege, password, group
// and card. The two steps are not atomic. Once the delete has succeeded the
// recreate runs on a detached context bounded by releaseTimeout, so caller
// cancellation cannot turn a clear into a purge. If the recreate still fails,
// or the process dies between the steps, the terminal is left without the
// user; the returned error wraps ErrUserLost. A later run that finds the user
// absent treats the clear as complete.
func ClearTemplates(ctx context.Context, s Session, u UserRecord) (UserRecord, error) {
	return clearTemplates(ctx, s, u, RecreatePause)
}

func clearTemplates(ctx context.Context, s Session, u UserRecord, pause time.Duration) (UserRecord, error) {
	if err := s.DeleteUser(ctx, u.UserID); err != nil {
		return UserRecord{}, fmt.Errorf("delete user %s: %w", u.UserID, err)
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if pause > 0 {
		timer := time.NewTimer(pause)
		select {
		case <-recCtx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	rec, err := s.CreateUser(recCtx, u)
	if err != nil {
		return UserRecord{}, fmt.Errorf("recreate user %s: %w: %w", u.UserID, ErrUserLost, err)
	}
	return rec, nil
}

// ReplaceUser deletes any existing record for u.UserID, creates u and writes
// slots. Used by HR -> terminal sync where the HR copy is authoritative.
func ReplaceUser(ctx context.Context, s Session, existing []UserRecord, u UserRecord, slots []TemplateSlot) (UserRecord, error) {
	if old, ok := FindUser(existing, u.UserID); ok {
		if err := s.DeleteUser(ctx, old.UserID); err != nil && !errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, fmt.Errorf("delete user %s: %w", u.UserID, err)
		}
		if u.UID == 0 {
			u.UID = old.UID
		}
	}
	rec, err := s.CreateUser(ctx, u)
	if err != nil {
		return UserRecord{}, fmt.Errorf("create user %s: %w", u.UserID, err)
	}
	if len(slots) > 0 {
		if err := s.WriteTemplates(ctx, rec, slots); err != nil {
			return rec, fmt.Errorf("write templates for %s: %w", u.UserID, err)
		}
	}
	return rec, nil
}
