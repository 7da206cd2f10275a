// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package device

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/tomtom215/fingersync/internal/models"
)

// Probe checks TCP reachability of addr within timeout.
func Probe(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, err)
	}
	return conn.Close()
}

// ProbingDialer runs a cheap TCP probe before handing off to the protocol
// dialer, so a powered-off terminal costs ProbeTimeout instead of the full
// protocol connect timeout.
type ProbingDialer struct {
	Next           Dialer
	ProbeTimeout   time.Duration
	ConnectTimeout time.Duration
}

// Open implements Dialer.
func (p *ProbingDialer) Open(ctx context.Context, d models.DeviceDescriptor) (Session, error) {
	if err := Probe(ctx, d.Addr(), p.ProbeTimeout); err != nil {
		return nil, err
	}
	if p.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.ConnectTimeout)
		defer cancel()
	}
	return p.Next.Open(ctx, d)
}
