// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package cycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/device"
	"github.com/tomtom215/fingersync/internal/eventsource"
	"github.com/tomtom215/fingersync/internal/fleet"
	"github.com/tomtom215/fingersync/internal/hrclient"
	"github.com/tomtom215/fingersync/internal/models"
	"github.com/tomtom215/fingersync/internal/schedule"
	"github.com/tomtom215/fingersync/internal/tracking"
)

func init() {
	device.RecreatePause = 0
}

type fakeHR struct {
	mu       sync.Mutex
	pingErr  error
	left     []models.Employee
	active   []models.Employee
	details  map[string]models.Employee
	checkins []string
	ots      map[string]bool
	created  []string
}

func newFakeHR() *fakeHR {
	return &fakeHR{details: map[string]models.Employee{}, ots: map[string]bool{}}
}

func (f *fakeHR) Ping(context.Context) error { return f.pingErr }

func (f *fakeHR) ListLeftEmployees(context.Context) ([]models.Employee, error) {
	return f.left, f.pingErr
}

func (f *fakeHR) DeleteFingerprints(context.Context, string) (int, error) { return 0, nil }

func (f *fakeHR) ListActiveEmployees(context.Context, time.Time) ([]models.Employee, error) {
	return f.active, f.pingErr
}

func (f *fakeHR) GetEmployee(_ context.Context, id string) (models.Employee, error) {
	if e, ok := f.details[id]; ok {
		return e, nil
	}
	return models.Employee{}, fmt.Errorf("%w: %s", hrclient.ErrNotFound, id)
}

func (f *fakeHR) AddCheckin(_ context.Context, deviceUserID string, ts time.Time, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkins = append(f.checkins, deviceUserID)
	return "CHK-" + deviceUserID, nil
}

func (f *fakeHR) OTExists(_ context.Context, requestNo string) (bool, error) {
	return f.ots[requestNo], nil
}

func (f *fakeHR) OTConflict(context.Context, models.OTDetail) (bool, error) { return false, nil }

func (f *fakeHR) CreateOT(_ context.Context, reg models.OTRegistration) error {
	f.ots[reg.RequestNo] = true
	f.created = append(f.created, reg.RequestNo)
	return nil
}

type harness struct {
	sim    *device.Simulator
	hr     *fakeHR
	events *eventsource.Memory
	env    *Env
	cfg    *config.Config
}

func newHarness(t *testing.T, now func() time.Time) *harness {
	t.Helper()
	dir := t.TempDir()
	sim := device.NewSimulator()
	hr := newFakeHR()
	events := eventsource.NewMemory()
	cfg := &config.Config{
		Devices: []models.DeviceDescriptor{{ID: "A", IP: "10.0.0.1"}, {ID: "B", IP: "10.0.0.2"}},
		Lifecycle: config.LifecycleConfig{
			Enabled:        true,
			ClearDelayDays: 7,
			TrackingFile:   filepath.Join(dir, "processed_left.json"),
		},
		Schedule:   config.ScheduleConfig{StateDir: dir},
		Attendance: config.AttendanceConfig{Enabled: true, Workers: 2, LookbackDays: 1},
		Overtime:   config.OvertimeConfig{Enabled: true, CursorFile: filepath.Join(dir, "ot_cursor.txt")},
		UserSync:   config.UserSyncConfig{Enabled: true, Mode: "auto", MarkerFile: filepath.Join(dir, "last_sync.json")},
	}
	return &harness{
		sim:    sim,
		hr:     hr,
		events: events,
		cfg:    cfg,
		env: &Env{
			HR:     hr,
			Fleet:  fleet.New(sim, fleet.Options{OperationTimeout: 5 * time.Second}),
			Events: events,
			Now:    now,
		},
	}
}

func stepNames(r CycleReport) []string {
	out := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		out = append(out, s.Operation)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCycleRunsEveryStep(t *testing.T) {
	h := newHarness(t, nil)
	now := time.Now()
	y, m, d := now.Date()
	noon := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)

	h.events.AddAttendance(models.AttendanceEvent{SequenceID: "1", FingerID: "101", Timestamp: noon})
	h.events.AddOvertime(models.OTEvent{
		SequenceID: "1", RequestNo: "R1", RequestDate: noon, EmployeeID: "E1",
		Date: noon, BeginTime: "17:00", EndTime: "19:00",
	})

	active := models.Employee{ID: "E1", DeviceUserID: "101", DisplayName: "Active One", Status: models.StatusActive}
	h.hr.active = []models.Employee{active}
	active.Templates = []models.FingerprintTemplate{{FingerIndex: 1, Data: []byte("template")}}
	h.hr.details["E1"] = active

	h.hr.left = []models.Employee{{
		ID: "E9", DeviceUserID: "900", Status: models.StatusLeft,
		RelievingDate: now.AddDate(0, 0, -40).Format("2006-01-02"),
	}}
	for _, dev := range []string{"A", "B"} {
		h.sim.SeedUser(dev, device.UserRecord{UserID: "900", Name: "Gone"}, device.TemplateSlot{FingerIndex: 2, Data: []byte{1}})
	}

	res, err := runOperation(context.Background(), &Runner{Env: h.env}, h.cfg)
	if err != nil {
		t.Fatalf("cycle error = %v", err)
	}
	rep := res.Report.(CycleReport)
	want := []string{OpSyncAttendance, OpSyncOvertime, OpSyncUsers, OpCleanupLeft}
	if got := stepNames(rep); !equalStrings(got, want) {
		t.Fatalf("steps = %v, want %v", got, want)
	}
	if res.Status != StatusOK {
		t.Errorf("status = %s, report = %+v", res.Status, rep)
	}
	if len(h.hr.checkins) != 1 || h.hr.checkins[0] != "101" {
		t.Errorf("checkins = %v", h.hr.checkins)
	}
	if len(h.hr.created) != 1 || h.hr.created[0] != "R1" {
		t.Errorf("created OT = %v", h.hr.created)
	}
	for _, dev := range []string{"A", "B"} {
		if _, _, ok := h.sim.User(dev, "101"); !ok {
			t.Errorf("%s: active user not written", dev)
		}
		if _, slots, ok := h.sim.User(dev, "900"); !ok || len(slots) != 0 {
			t.Errorf("%s: left user ok=%v slots=%v", dev, ok, slots)
		}
	}
	state, err := tracking.NewStore(h.cfg.Lifecycle.TrackingFile).Load(context.Background())
	if err != nil || !state.Contains("E9") {
		t.Errorf("tracking state = %+v, err = %v", state, err)
	}

	// Cleanup already ran today.
	res, err = runOperation(context.Background(), &Runner{Env: h.env}, h.cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := stepNames(res.Report.(CycleReport)); len(got) != 3 {
		t.Errorf("second cycle steps = %v", got)
	}
}

func TestCycleAbortsWhenHRUnreachable(t *testing.T) {
	h := newHarness(t, nil)
	h.hr.pingErr = fmt.Errorf("%w: connection refused", hrclient.ErrUnavailable)

	res, err := runOperation(context.Background(), &Runner{Env: h.env}, h.cfg)
	if !errors.Is(err, hrclient.ErrUnavailable) {
		t.Fatalf("error = %v", err)
	}
	if res.Status != StatusFailed {
		t.Errorf("status = %s", res.Status)
	}
	if n := len(h.sim.Mutations()); n != 0 {
		t.Errorf("%d terminal mutations after HR outage", n)
	}
}

func TestCycleBypassWindows(t *testing.T) {
	fixed := time.Date(2026, 3, 10, 10, 0, 0, 0, time.Local)
	tests := []struct {
		name     string
		logs     []schedule.Window
		users    []schedule.Window
		wantRun  []string
		bypassed int
	}{
		{"no windows", nil, nil, []string{OpSyncAttendance, OpSyncOvertime, OpSyncUsers}, 0},
		{"log sync bypassed", []schedule.Window{{Start: "09:00", End: "11:00"}}, nil, []string{OpSyncUsers}, 2},
		{"user sync bypassed", nil, []schedule.Window{{Start: "09:30", End: "10:30", Reason: "shift change"}}, []string{OpSyncAttendance, OpSyncOvertime}, 1},
		{"window elsewhere", []schedule.Window{{Start: "22:00", End: "02:00"}}, nil, []string{OpSyncAttendance, OpSyncOvertime, OpSyncUsers}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func() time.Time { return fixed })
			h.cfg.Lifecycle.Enabled = false
			h.cfg.Schedule.LogSyncBypass = tt.logs
			h.cfg.Schedule.UserSyncBypass = tt.users

			res, err := runOperation(context.Background(), &Runner{Env: h.env}, h.cfg)
			if err != nil {
				t.Fatal(err)
			}
			rep := res.Report.(CycleReport)
			if got := stepNames(rep); !equalStrings(got, tt.wantRun) {
				t.Errorf("steps = %v, want %v", got, tt.wantRun)
			}
			if len(rep.Bypassed) != tt.bypassed {
				t.Errorf("bypassed = %v", rep.Bypassed)
			}
		})
	}
}

func TestResyncSlotRunsOncePerDay(t *testing.T) {
	fixed := time.Date(2026, 3, 10, 12, 2, 0, 0, time.Local)
	h := newHarness(t, func() time.Time { return fixed })
	h.cfg.Lifecycle.Enabled = false
	h.cfg.Device.SyncTime = true
	h.cfg.Schedule.ResyncEnabled = true
	h.cfg.Schedule.ResyncTimes = []string{"12:00"}
	h.cfg.Schedule.ResyncWindowMinutes = 10
	h.events.AddAttendance(models.AttendanceEvent{
		SequenceID: "1", FingerID: "101",
		Timestamp: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	})

	res, err := runOperation(context.Background(), &Runner{Env: h.env}, h.cfg)
	if err != nil {
		t.Fatal(err)
	}
	rep := res.Report.(CycleReport)
	if rep.Resync != "12:00" {
		t.Fatalf("resync slot = %q", rep.Resync)
	}
	if got, want := stepNames(rep), []string{OpSyncAttendance, OpSyncOvertime, OpSyncUsers, OpSyncTime}; !equalStrings(got, want) {
		t.Errorf("resync steps = %v, want %v", got, want)
	}
	if !h.sim.Clock("A").Equal(fixed) || !h.sim.Clock("B").Equal(fixed) {
		t.Errorf("terminal clocks = %v, %v", h.sim.Clock("A"), h.sim.Clock("B"))
	}
	if len(h.hr.checkins) != 1 {
		t.Errorf("checkins = %v", h.hr.checkins)
	}

	res, err = runOperation(context.Background(), &Runner{Env: h.env}, h.cfg)
	if err != nil {
		t.Fatal(err)
	}
	rep = res.Report.(CycleReport)
	if rep.Resync != "" {
		t.Errorf("resync ran twice in one day")
	}
	if got, want := stepNames(rep), []string{OpSyncAttendance, OpSyncOvertime, OpSyncUsers}; !equalStrings(got, want) {
		t.Errorf("normal steps = %v, want %v", got, want)
	}
}

func TestResyncSlotRunsUserSyncAndDueCleanup(t *testing.T) {
	fixed := time.Date(2026, 3, 10, 21, 2, 0, 0, time.Local)
	tests := []struct {
		name     string
		users    []schedule.Window
		want     []string
		bypassed []string
	}{
		{"user sync allowed", nil, []string{OpSyncAttendance, OpSyncOvertime, OpSyncUsers, OpCleanupLeft, OpSyncTime}, nil},
		{
			"user sync bypassed",
			[]schedule.Window{{Start: "20:30", End: "21:30", Reason: "evening shift change"}},
			[]string{OpSyncAttendance, OpSyncOvertime, OpCleanupLeft, OpSyncTime},
			[]string{OpSyncUsers},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func() time.Time { return fixed })
			h.cfg.Device.SyncTime = true
			h.cfg.Schedule.ResyncEnabled = true
			h.cfg.Schedule.ResyncTimes = []string{"21:00"}
			h.cfg.Schedule.ResyncWindowMinutes = 10
			h.cfg.Schedule.UserSyncBypass = tt.users

			res, err := runOperation(context.Background(), &Runner{Env: h.env}, h.cfg)
			if err != nil {
				t.Fatal(err)
			}
			rep := res.Report.(CycleReport)
			if rep.Resync != "21:00" {
				t.Fatalf("resync slot = %q", rep.Resync)
			}
			if got := stepNames(rep); !equalStrings(got, tt.want) {
				t.Errorf("steps = %v, want %v", got, tt.want)
			}
			if !equalStrings(rep.Bypassed, tt.bypassed) {
				t.Errorf("bypassed = %v, want %v", rep.Bypassed, tt.bypassed)
			}
			if !rep.CleanupDue {
				t.Error("cleanup not marked due")
			}
			if schedule.NewDailyGuard(h.cfg.Schedule.StateDir, "cleanup_left").Due(fixed) {
				t.Error("cleanup ran during the slot but was not marked for today")
			}
		})
	}
}

func TestCleanupLeftDailyGuard(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := runOperation(ctx, &CleanupLeft{Env: h.env}, h.cfg)
	if err != nil || res.Status != StatusOK {
		t.Fatalf("first run = %+v, %v", res, err)
	}
	res, _ = runOperation(ctx, &CleanupLeft{Env: h.env}, h.cfg)
	if res.Status != StatusSkipped {
		t.Errorf("second run status = %s", res.Status)
	}
	res, _ = runOperation(ctx, &CleanupLeft{Env: h.env, Force: true}, h.cfg)
	if res.Status != StatusOK {
		t.Errorf("forced run status = %s", res.Status)
	}

	h.cfg.Lifecycle.Enabled = false
	res, _ = runOperation(ctx, &CleanupLeft{Env: h.env, Force: true}, h.cfg)
	if res.Status != StatusSkipped {
		t.Errorf("disabled run status = %s", res.Status)
	}
}

func TestCleanupEmployee(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.hr.details["E1"] = models.Employee{ID: "E1", DeviceUserID: "101", Status: models.StatusActive}
	h.hr.details["E9"] = models.Employee{
		ID: "E9", DeviceUserID: "900", Status: models.StatusLeft,
		RelievingDate: time.Now().AddDate(0, 0, -30).Format("2006-01-02"),
	}
	h.sim.SeedUser("A", device.UserRecord{UserID: "900", Name: "Gone"}, device.TemplateSlot{FingerIndex: 0, Data: []byte{1}})

	if _, err := CleanupEmployee(ctx, h.env, h.cfg, "E1", false); !errors.Is(err, ErrNotLeft) {
		t.Errorf("active employee error = %v", err)
	}
	if _, err := CleanupEmployee(ctx, h.env, h.cfg, "nope", false); !errors.Is(err, hrclient.ErrNotFound) {
		t.Errorf("unknown employee error = %v", err)
	}

	rep, err := CleanupEmployee(ctx, h.env, h.cfg, "E9", false)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Processed != 1 {
		t.Errorf("processed = %d", rep.Processed)
	}
	if _, slots, ok := h.sim.User("A", "900"); !ok || len(slots) != 0 {
		t.Errorf("user 900 ok=%v slots=%v", ok, slots)
	}
}

func TestSyncTimeReportsUnreachable(t *testing.T) {
	h := newHarness(t, nil)
	h.sim.SetUnreachable("B", true)

	res, err := runOperation(context.Background(), &SyncTime{Env: h.env}, h.cfg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusPartial {
		t.Errorf("status = %s", res.Status)
	}
	sum := res.Report.(fleet.Summary)
	if sum.Succeeded != 1 || sum.Unreachable != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestOperationsSkipWithoutEventStore(t *testing.T) {
	h := newHarness(t, nil)
	h.env.Events = nil
	for _, op := range []Operation{&SyncAttendance{Env: h.env}, &SyncOvertime{Env: h.env}} {
		res, err := runOperation(context.Background(), op, h.cfg)
		if err != nil || res.Status != StatusSkipped {
			t.Errorf("%s = %+v, %v", op.Name(), res, err)
		}
	}
}

func TestDispatcher(t *testing.T) {
	h := newHarness(t, nil)
	d := NewDispatcher(&SyncTime{Env: h.env}, &SyncUsers{Env: h.env})

	if got := d.Names(); !equalStrings(got, []string{OpSyncTime, OpSyncUsers}) {
		t.Errorf("Names() = %v", got)
	}
	if _, err := d.Dispatch(context.Background(), "bogus", h.cfg); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Dispatch(bogus) error = %v", err)
	}
	res, err := d.Dispatch(context.Background(), OpSyncTime, h.cfg)
	if err != nil || res.Operation != OpSyncTime {
		t.Errorf("Dispatch(sync-time) = %+v, %v", res, err)
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration did not panic")
		}
	}()
	d.Register(&SyncTime{Env: h.env})
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		ok, failed int
		want       Status
	}{
		{0, 0, StatusOK},
		{3, 0, StatusOK},
		{2, 1, StatusPartial},
		{0, 2, StatusFailed},
	}
	for _, tt := range tests {
		if got := statusOf(tt.ok, tt.failed); got != tt.want {
			t.Errorf("statusOf(%d, %d) = %s, want %s", tt.ok, tt.failed, got, tt.want)
		}
	}
}
