// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package overtime

import (
	"strings"

	"github.com/tomtom215/fingersync/internal/atomicfile"
	"github.com/tomtom215/fingersync/internal/models"
)

// Cursor persists the last processed sequence id in a one-line file.
type Cursor struct {
	path string
}

// NewCursor returns a cursor stored at path.
func NewCursor(path string) *Cursor {
	return &Cursor{path: path}
}

// Path returns the cursor file location.
func (c *Cursor) Path() string { return c.path }

// Load returns the stored id, or "" when none is stored.
func (c *Cursor) Load() (models.SequenceID, error) {
	s, err := atomicfile.ReadString(c.path)
	if err != nil {
		return "", err
	}
	return models.SequenceID(strings.TrimSpace(s)), nil
}

// Save replaces the stored id.
func (c *Cursor) Save(id models.SequenceID) error {
	return atomicfile.WriteFile(c.path, []byte(string(id)+"\n"), 0o644)
}
