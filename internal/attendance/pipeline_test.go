// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/eventsource"
	"github.com/tomtom215/fingersync/internal/hrclient"
	"github.com/tomtom215/fingersync/internal/ledger"
	"github.com/tomtom215/fingersync/internal/models"
)

var day = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

type fakeHR struct {
	delay      time.Duration
	duplicates map[string]bool
	reject     map[string]bool

	mu       sync.Mutex
	calls    []string
	labels   []string
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeHR) AddCheckin(ctx context.Context, id string, ts time.Time, label string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.labels = append(f.labels, label)
	f.mu.Unlock()

	switch {
	case f.duplicates[id]:
		return "", fmt.Errorf("%w: already has a log", hrclient.ErrDuplicate)
	case f.reject[id]:
		return "", errors.New("No Employee found")
	}
	return "CKIN-" + id, nil
}

func punch(id string, hour, machine int) models.AttendanceEvent {
	return models.AttendanceEvent{FingerID: id, Timestamp: day.Add(time.Duration(hour) * time.Hour), MachineNo: machine}
}

func TestPipelineClassifiesOutcomes(t *testing.T) {
	src := eventsource.NewMemory()
	src.AddAttendance(
		punch("1", 8, 1),
		punch("2", 8, 2),
		punch("3", 9, 1),
		punch("99", 9, 1),
		models.AttendanceEvent{Timestamp: day.Add(10 * time.Hour)},
	)
	hr := &fakeHR{duplicates: map[string]bool{"2": true}, reject: map[string]bool{"3": true}}
	p := New(src, hr, nil)

	sum, err := p.Run(context.Background(), Options{From: day, To: day, Workers: 4, IgnoredUserIDs: []string{"99"}})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 5 || sum.Processed != 1 || sum.Duplicates != 1 || sum.Failed != 1 || sum.Ignored != 1 || sum.Invalid != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Failures) != 1 || sum.Failures[0].Key != punch("3", 9, 1).Key() {
		t.Errorf("failures = %+v", sum.Failures)
	}
	for _, id := range hr.calls {
		if id == "99" {
			t.Error("ignored user reached HR")
		}
	}
}

func TestPipelineDeviceLabel(t *testing.T) {
	src := eventsource.NewMemory()
	src.AddAttendance(punch("1", 8, 4))
	hr := &fakeHR{}
	if _, err := New(src, hr, nil).Run(context.Background(), Options{From: day, To: day, Workers: 1}); err != nil {
		t.Fatal(err)
	}
	if len(hr.labels) != 1 || hr.labels[0] != "Machine 4" {
		t.Errorf("labels = %v", hr.labels)
	}
}

func TestPipelineLedgerSkipsAcceptedPunches(t *testing.T) {
	led, err := ledger.Open("", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer led.Close()

	src := eventsource.NewMemory()
	src.AddAttendance(punch("1", 8, 1), punch("2", 8, 1), punch("3", 8, 1))
	hr := &fakeHR{duplicates: map[string]bool{"2": true}, reject: map[string]bool{"3": true}}
	p := New(src, hr, led)
	ctx := context.Background()
	opts := Options{From: day, To: day, Workers: 2}

	if _, err := p.Run(ctx, opts); err != nil {
		t.Fatal(err)
	}
	hr.calls = nil

	sum, err := p.Run(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Recorded != 2 || sum.Failed != 1 {
		t.Errorf("second run summary = %+v", sum)
	}
	if len(hr.calls) != 1 || hr.calls[0] != "3" {
		t.Errorf("second run calls = %v, want only the failed punch", hr.calls)
	}
}

func TestPipelineBoundedWorkers(t *testing.T) {
	src := eventsource.NewMemory()
	for i := range 40 {
		src.AddAttendance(models.AttendanceEvent{FingerID: fmt.Sprint(i), Timestamp: day.Add(time.Duration(i) * time.Minute), MachineNo: 1})
	}
	hr := &fakeHR{delay: 5 * time.Millisecond}

	sum, err := New(src, hr, nil).Run(context.Background(), Options{From: day, To: day, Workers: 5})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 40 {
		t.Errorf("processed = %d", sum.Processed)
	}
	if got := hr.maxSeen.Load(); got > 5 {
		t.Errorf("max in-flight = %d, want <= 5", got)
	}
	if got := hr.maxSeen.Load(); got < 2 {
		t.Errorf("max in-flight = %d, want parallel submissions", got)
	}
}

func TestPipelineDryRun(t *testing.T) {
	src := eventsource.NewMemory()
	src.AddAttendance(punch("1", 8, 1))
	hr := &fakeHR{}
	sum, err := New(src, hr, nil).Run(context.Background(), Options{From: day, To: day, Workers: 1, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(hr.calls) != 0 || sum.Processed != 1 {
		t.Errorf("calls=%v summary=%+v", hr.calls, sum)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		from, to string
		wantErr  bool
		days     int
	}{
		{"20261001", "20261007", false, 6},
		{"20261001", "", false, 0},
		{"20261007", "20261001", true, 0},
		{"2026-10-01", "", true, 0},
	}
	for _, tt := range tests {
		f, to, err := ParseRange(tt.from, tt.to)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRange(%q, %q) err = %v", tt.from, tt.to, err)
			continue
		}
		if err == nil && int(to.Sub(f).Hours()/24) != tt.days {
			t.Errorf("ParseRange(%q, %q) span = %v", tt.from, tt.to, to.Sub(f))
		}
	}
}

func TestOptionsFromConfigLookback(t *testing.T) {
	opts := OptionsFromConfig(&config.AttendanceConfig{LookbackDays: 7, Workers: 200}, day)
	if !opts.To.Equal(day) || !opts.From.Equal(day.AddDate(0, 0, -6)) {
		t.Errorf("range = %s..%s", opts.From, opts.To)
	}
}
