// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package lifecycle decides what happens to a Left employee's terminal
// identity and carries the decision out across the fleet.
//
// Classification is a pure function of the relieving date:
//
//	purge_after_days > 0 && days > purge_after_days  -> Purge
//	days >= clear_delay_days                         -> ClearTemplates
//	otherwise                                        -> NoAction
//
// Purge is checked first so a long-gone employee never lingers on the
// terminals as a template-less record.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/fingersync/internal/models"
)

// ErrInvalidRelievingDate marks a Left employee whose relieving date is
// missing or unparseable. The employee is skipped, never guessed.
var ErrInvalidRelievingDate = errors.New("invalid relieving date")

// RelievingDateLayout is the HR date format.
const RelievingDateLayout = "2006-01-02"

// Action is the lifecycle decision for one employee.
type Action int

const (
	NoAction Action = iota
	ClearTemplates
	Purge
)

func (a Action) String() string {
	switch a {
	case ClearTemplates:
		return "clear_templates"
	case Purge:
		return "purge"
	default:
		return "no_action"
	}
}

// TrackingAction maps the decision to its tracking file value.
func (a Action) TrackingAction() models.TrackingAction {
	if a == Purge {
		return models.ActionPermanentlyDeleted
	}
	return models.ActionClearedTemplates
}

// Policy holds the day thresholds. PurgeAfterDays == 0 disables purging.
type Policy struct {
	ClearDelayDays int
	PurgeAfterDays int
}

// DaysSince returns whole calendar days from the relieving date to today.
func DaysSince(relievingDate string, today time.Time) (int, error) {
	s := strings.TrimSpace(relievingDate)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidRelievingDate)
	}
	rel, err := time.Parse(RelievingDateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRelievingDate, relievingDate)
	}
	y, m, d := today.Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(t.Sub(rel).Hours() / 24), nil
}

// Classify returns the action for emp on today. A bad relieving date
// yields NoAction together with ErrInvalidRelievingDate.
func Classify(emp models.Employee, today time.Time, p Policy) (Action, error) {
	days, err := DaysSince(emp.RelievingDate, today)
	if err != nil {
		return NoAction, err
	}
	switch {
	case p.PurgeAfterDays > 0 && days > p.PurgeAfterDays:
		return Purge, nil
	case days >= p.ClearDelayDays:
		return ClearTemplates, nil
	default:
		return NoAction, nil
	}
}
