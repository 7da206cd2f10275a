// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package usersync

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fingersync/internal/atomicfile"
	"github.com/tomtom215/fingersync/internal/hrclient"
)

type markerFile struct {
	LastSync  string `json:"last_sync"`
	UpdatedAt string `json:"updated_at"`
}

// Marker stores the time of the last successful user sync.
type Marker struct {
	path string
}

// NewMarker returns a marker stored at path.
func NewMarker(path string) *Marker {
	return &Marker{path: path}
}

// Load returns the stored time. ok is false when no marker exists or it
// cannot be parsed; an unreadable marker is treated as a first run.
func (m *Marker) Load() (t time.Time, ok bool, err error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read marker: %w", err)
	}
	var f markerFile
	if err := json.Unmarshal(data, &f); err != nil || strings.TrimSpace(f.LastSync) == "" {
		return time.Time{}, false, nil
	}
	t, err = time.ParseInLocation(hrclient.ModifiedLayout, f.LastSync, time.Local)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// Save records t as the last sync time.
func (m *Marker) Save(t time.Time) error {
	data, err := json.MarshalIndent(markerFile{
		LastSync:  t.Format(hrclient.ModifiedLayout),
		UpdatedAt: time.Now().Format(hrclient.ModifiedLayout),
	}, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(m.path, data, 0o644)
}
