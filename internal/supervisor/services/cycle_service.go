// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package services

import (
	"context"
	"fmt"
)

// StartStopManager is the lifecycle of cycle.Manager.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// CycleService runs the cycle manager under supervision: Start, wait for
// cancellation, then Stop, which waits for an in-flight cycle.
type CycleService struct {
	manager StartStopManager
	name    string
}

// NewCycleService wraps manager.
func NewCycleService(manager StartStopManager) *CycleService {
	return &CycleService{manager: manager, name: "cycle-manager"}
}

// Serve implements suture.Service.
func (s *CycleService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("cycle manager start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("cycle manager stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *CycleService) String() string {
	return s.name
}
