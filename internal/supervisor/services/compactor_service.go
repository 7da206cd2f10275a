// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/fingersync/internal/logging"
)

// DefaultCompactInterval is used when the interval passed to
// NewCompactorService is not positive.
const DefaultCompactInterval = time.Hour

// Compacter is satisfied by *ledger.Ledger.
type Compacter interface {
	Compact() error
}

// CompactorService calls Compact on a fixed interval. A failed compaction
// is logged and retried on the next tick; it never restarts the service.
type CompactorService struct {
	target   Compacter
	interval time.Duration
	name     string
}

// NewCompactorService returns a service compacting target every interval.
func NewCompactorService(target Compacter, interval time.Duration) *CompactorService {
	if interval <= 0 {
		interval = DefaultCompactInterval
	}
	return &CompactorService{target: target, interval: interval, name: "ledger-compactor"}
}

// Serve implements suture.Service.
func (s *CompactorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.target.Compact(); err != nil {
				logging.Warn().Err(err).Str("service", s.name).Msg("Ledger compaction failed")
			}
		}
	}
}

func (s *CompactorService) String() string {
	return s.name
}
