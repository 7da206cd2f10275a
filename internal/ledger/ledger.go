// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

// Package ledger remembers which attendance punches the HR system has already
// accepted, so a re-run over the same date range does not resubmit them.
//
// Entries live in BadgerDB under the "att:" prefix with a native TTL. Only
// accepted and duplicate outcomes are stored; failures are always retried.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fingersync/internal/logging"
)

const prefixAttendance = "att:"

// ErrClosed is returned after Close.
var ErrClosed = errors.New("ledger closed")

// Outcome is the remembered HR response for one punch.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
)

// Entry is the stored value.
type Entry struct {
	Outcome    Outcome   `json:"outcome"`
	CheckinID  string    `json:"checkin_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Ledger is safe for concurrent use.
type Ledger struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the ledger at path. An empty path keeps it in
// memory for the life of the process. ttl <= 0 keeps entries forever.
func Open(path string, ttl time.Duration) (*Ledger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	logging.Info().Str("path", path).Bool("in_memory", path == "").Dur("ttl", ttl).Msg("Attendance ledger opened")
	return &Ledger{db: db, ttl: ttl, inMemory: path == ""}, nil
}

func (l *Ledger) check() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return nil
}

// Lookup returns the entry for key, if any.
func (l *Ledger) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	if err := l.check(); err != nil {
		return Entry{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	var e Entry
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixAttendance + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("ledger lookup %s: %w", key, err)
	}
	return e, true, nil
}

// Record stores an outcome for key.
func (l *Ledger) Record(ctx context.Context, key string, outcome Outcome, checkinID string) error {
	if err := l.check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(Entry{Outcome: outcome, CheckinID: checkinID, RecordedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(prefixAttendance+key), data)
		if l.ttl > 0 {
			e = e.WithTTL(l.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("ledger record %s: %w", key, err)
	}
	return nil
}

// Count returns the number of live entries.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	if err := l.check(); err != nil {
		return 0, err
	}
	n := 0
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixAttendance)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// Compact reclaims value-log space left by expired entries.
func (l *Ledger) Compact() error {
	if err := l.check(); err != nil {
		return err
	}
	if l.inMemory {
		return nil
	}
	for {
		err := l.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ledger gc: %w", err)
		}
	}
}

// Close flushes and closes the database. It is safe to call twice.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}
