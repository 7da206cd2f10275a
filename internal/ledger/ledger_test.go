// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openMemory(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open("", 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndLookup(t *testing.T) {
	ctx := context.Background()
	l := openMemory(t)

	if _, ok, err := l.Lookup(ctx, "42|20261015080000|1"); err != nil || ok {
		t.Fatalf("Lookup on empty ledger = %v, %v", ok, err)
	}
	if err := l.Record(ctx, "42|20261015080000|1", OutcomeProcessed, "EMP-CKIN-1"); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, "43|20261015080000|1", OutcomeDuplicate, ""); err != nil {
		t.Fatal(err)
	}

	e, ok, err := l.Lookup(ctx, "42|20261015080000|1")
	if err != nil || !ok {
		t.Fatalf("Lookup = %v, %v", ok, err)
	}
	if e.Outcome != OutcomeProcessed || e.CheckinID != "EMP-CKIN-1" || e.RecordedAt.IsZero() {
		t.Errorf("entry = %+v", e)
	}

	n, err := l.Count(ctx)
	if err != nil || n != 2 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	l, err := Open(dir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, "k", OutcomeDuplicate, ""); err != nil {
		t.Fatal(err)
	}
	if err := l.Compact(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	l, err = Open(dir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if e, ok, err := l.Lookup(ctx, "k"); err != nil || !ok || e.Outcome != OutcomeDuplicate {
		t.Errorf("after reopen: %+v, %v, %v", e, ok, err)
	}
}

func TestClosed(t *testing.T) {
	l, err := Open("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := l.Record(context.Background(), "k", OutcomeProcessed, ""); !errors.Is(err, ErrClosed) {
		t.Errorf("Record after Close = %v", err)
	}
}
