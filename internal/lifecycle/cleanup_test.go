// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/fingersync/internal/device"
	"github.com/tomtom215/fingersync/internal/fleet"
	"github.com/tomtom215/fingersync/internal/models"
	"github.com/tomtom215/fingersync/internal/tracking"
)

func init() {
	device.RecreatePause = 0
}

type fakeHR struct {
	mu      sync.Mutex
	left    []models.Employee
	err     error
	deleted []string
}

func (f *fakeHR) ListLeftEmployees(context.Context) ([]models.Employee, error) {
	return f.left, f.err
}

func (f *fakeHR) DeleteFingerprints(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return 2, nil
}

type harness struct {
	sim     *device.Simulator
	store   *tracking.Store
	hr      *fakeHR
	engine  *Engine
	devices []models.DeviceDescriptor
}

func newHarness(t *testing.T, deviceIDs ...string) *harness {
	t.Helper()
	sim := device.NewSimulator()
	store := tracking.NewStore(filepath.Join(t.TempDir(), "processed.json"))
	hr := &fakeHR{}
	e := NewEngine(fleet.New(sim, fleet.Options{OperationTimeout: 5 * time.Second}), store, hr)
	e.now = func() time.Time { return today }

	h := &harness{sim: sim, store: store, hr: hr, engine: e}
	for _, id := range deviceIDs {
		h.devices = append(h.devices, models.DeviceDescriptor{ID: id, IP: "10.1.1.1"})
	}
	return h
}

func TestEndToEnd_ClearTemplates(t *testing.T) {
	h := newHarness(t, "Machine 1")
	orig := device.UserRecord{UID: 4, UserID: "123", Name: "Tran Van A", Privilege: models.PrivilegeDefault}
	h.sim.SeedUser("Machine 1", orig,
		device.TemplateSlot{FingerIndex: 0, Data: []byte("t0")},
		device.TemplateSlot{FingerIndex: 5, Data: []byte("t5")})

	emp := leftAgo(40)
	emp.DeviceUserID = "123"
	h.hr.left = []models.Employee{emp}

	rep, err := h.engine.Run(context.Background(), h.devices, Policy{ClearDelayDays: 7}, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rep.Results) != 1 || rep.Results[0].Action != ClearTemplates {
		t.Fatalf("results = %+v", rep.Results)
	}

	got, slots, ok := h.sim.User("Machine 1", "123")
	if !ok {
		t.Fatal("user 123 missing after clear")
	}
	if got.Name != orig.Name || got.Privilege != orig.Privilege || got.UID != orig.UID {
		t.Errorf("user = %+v, want identity of %+v", got, orig)
	}
	if len(slots) != 0 {
		t.Errorf("non-empty slots = %d, want 0", len(slots))
	}

	st, err := h.store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := st.Cleared["E"]
	if !ok {
		t.Fatalf("tracking state = %+v, want cleared[E]", st)
	}
	if rec.Action != models.ActionClearedTemplates || rec.DeviceUserID != "123" {
		t.Errorf("record = %+v", rec)
	}
}

func TestIdempotence_SecondRunTouchesNothing(t *testing.T) {
	h := newHarness(t, "A", "B")
	for _, d := range []string{"A", "B"} {
		h.sim.SeedUser(d, device.UserRecord{UserID: "7", Name: "X"}, device.TemplateSlot{FingerIndex: 1, Data: []byte{1}})
	}
	emp := leftAgo(30)
	emp.DeviceUserID = "7"
	h.hr.left = []models.Employee{emp}
	policy := Policy{ClearDelayDays: 7}

	if _, err := h.engine.Run(context.Background(), h.devices, policy, Options{}); err != nil {
		t.Fatal(err)
	}
	mutations := len(h.sim.Mutations())
	opens := h.sim.Opens("A") + h.sim.Opens("B")
	if mutations == 0 {
		t.Fatal("first run made no mutations")
	}

	rep, err := h.engine.Run(context.Background(), h.devices, policy, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := len(h.sim.Mutations()); got != mutations {
		t.Errorf("second run mutations = %d, want %d", got-mutations, 0)
	}
	if got := h.sim.Opens("A") + h.sim.Opens("B"); got != opens {
		t.Errorf("second run opened %d sessions, want none", got-opens)
	}
	if rep.Selection.AlreadyTracked != 1 {
		t.Errorf("AlreadyTracked = %d, want 1", rep.Selection.AlreadyTracked)
	}
}

func TestTrackedEmployeesNeverReachDevices(t *testing.T) {
	h := newHarness(t, "A")
	h.sim.SeedUser("A", device.UserRecord{UserID: "9"}, device.TemplateSlot{FingerIndex: 0, Data: []byte{1}})

	emp := leftAgo(100)
	emp.DeviceUserID = "9"
	if _, err := h.store.Record(context.Background(), emp, models.ActionClearedTemplates); err != nil {
		t.Fatal(err)
	}
	h.hr.left = []models.Employee{emp}

	for _, grain := range []Grain{GrainBatch, GrainPair} {
		if _, err := h.engine.Run(context.Background(), h.devices, Policy{}, Options{Grain: grain}); err != nil {
			t.Fatal(err)
		}
	}
	if n := h.sim.Opens("A"); n != 0 {
		t.Errorf("sessions opened = %d, want 0", n)
	}
	if _, slots, _ := h.sim.User("A", "9"); len(slots) != 1 {
		t.Error("tracked employee's templates were modified")
	}
}

func TestPurge(t *testing.T) {
	h := newHarness(t, "A", "B")
	h.sim.SeedUser("A", device.UserRecord{UserID: "50"})
	emp := leftAgo(2000)
	emp.DeviceUserID = "50"
	h.hr.left = []models.Employee{emp}

	rep, err := h.engine.Run(context.Background(), h.devices, Policy{ClearDelayDays: 7, PurgeAfterDays: 1400}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	res := rep.Results[0]
	if res.Devices["A"] != OutcomePurged || res.Devices["B"] != OutcomeNotFound {
		t.Errorf("devices = %v", res.Devices)
	}
	if _, _, ok := h.sim.User("A", "50"); ok {
		t.Error("user still on A after purge")
	}
	st, _ := h.store.Load(context.Background())
	if _, ok := st.Deleted["E"]; !ok {
		t.Errorf("tracking = %+v, want deleted[E]", st)
	}
}

func TestNotFoundEverywhereIsRecordedAsAssumedClean(t *testing.T) {
	h := newHarness(t, "A", "B")
	emp := leftAgo(10)
	emp.DeviceUserID = "404"
	h.hr.left = []models.Employee{emp}

	rep, err := h.engine.Run(context.Background(), h.devices, Policy{ClearDelayDays: 7}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	res := rep.Results[0]
	if !res.Recorded || !res.AssumedClean || res.Mutated != 0 || res.NotFound != 2 {
		t.Errorf("result = %+v", res)
	}
	st, _ := h.store.Load(context.Background())
	if _, ok := st.Cleared["E"]; !ok {
		t.Error("employee not recorded as cleared")
	}
}

func TestPartialFleetStillRecordsOnce(t *testing.T) {
	h := newHarness(t, "up", "down")
	h.sim.SetUnreachable("down", true)
	h.sim.SeedUser("up", device.UserRecord{UserID: "1"}, device.TemplateSlot{FingerIndex: 0, Data: []byte{1}})
	emp := leftAgo(10)
	emp.DeviceUserID = "1"
	h.hr.left = []models.Employee{emp}

	rep, err := h.engine.Run(context.Background(), h.devices, Policy{ClearDelayDays: 7}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	res := rep.Results[0]
	if res.Devices["down"] != OutcomeFailed || !errors.Is(res.Errors["down"], device.ErrUnreachable) {
		t.Errorf("down = %s (%v)", res.Devices["down"], res.Errors["down"])
	}
	if !res.Recorded || res.Mutated != 1 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestWholeFleetDownIsNotRecorded(t *testing.T) {
	h := newHarness(t, "A")
	h.sim.SetUnreachable("A", true)
	emp := leftAgo(10)
	emp.DeviceUserID = "1"
	h.hr.left = []models.Employee{emp}

	rep, err := h.engine.Run(context.Background(), h.devices, Policy{ClearDelayDays: 7}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Results[0].Recorded || rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	st, _ := h.store.Load(context.Background())
	if st.Len() != 0 {
		t.Error("employee recorded although no terminal was reached")
	}
}

func TestDryRunMakesNoChanges(t *testing.T) {
	h := newHarness(t, "A")
	h.sim.SeedUser("A", device.UserRecord{UserID: "1"}, device.TemplateSlot{FingerIndex: 0, Data: []byte{1}})
	emp := leftAgo(10)
	emp.DeviceUserID = "1"
	h.hr.left = []models.Employee{emp}

	rep, err := h.engine.Run(context.Background(), h.devices, Policy{ClearDelayDays: 7}, Options{DryRun: true, DeleteHRFingerprints: true})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.DryRun || len(rep.Selection.Candidates) != 1 {
		t.Errorf("report = %+v", rep)
	}
	if h.sim.Opens("A") != 0 || len(h.sim.Mutations()) != 0 {
		t.Error("dry run touched the device")
	}
	if len(h.hr.deleted) != 0 {
		t.Error("dry run deleted HR fingerprints")
	}
	st, _ := h.store.Load(context.Background())
	if st.Len() != 0 {
		t.Error("dry run wrote tracking file")
	}
}

func TestPairGrainMatchesBatchGrain(t *testing.T) {
	for _, grain := range []Grain{GrainBatch, GrainPair} {
		h := newHarness(t, "A", "B")
		var emps []models.Employee
		for _, id := range []string{"1", "2", "3"} {
			for _, d := range []string{"A", "B"} {
				h.sim.SeedUser(d, device.UserRecord{UserID: id}, device.TemplateSlot{FingerIndex: 0, Data: []byte{1}})
			}
			emp := leftAgo(10)
			emp.ID = "E" + id
			emp.DeviceUserID = id
			emps = append(emps, emp)
		}
		h.hr.left = emps

		rep, err := h.engine.Run(context.Background(), h.devices, Policy{ClearDelayDays: 7}, Options{Grain: grain, DeleteHRFingerprints: true})
		if err != nil {
			t.Fatal(err)
		}
		if rep.Processed != 3 {
			t.Errorf("grain %d: processed = %d, want 3", grain, rep.Processed)
		}
		wantOpens := 1
		if grain == GrainPair {
			wantOpens = 3
		}
		if got := h.sim.Opens("A"); got != wantOpens {
			t.Errorf("grain %d: opens on A = %d, want %d", grain, got, wantOpens)
		}
		if len(h.hr.deleted) != 3 {
			t.Errorf("grain %d: HR fingerprint deletions = %d, want 3", grain, len(h.hr.deleted))
		}
	}
}

func TestHRUnavailableAborts(t *testing.T) {
	h := newHarness(t, "A")
	h.hr.err = errors.New("connection refused")
	if _, err := h.engine.Run(context.Background(), h.devices, Policy{}, Options{}); err == nil {
		t.Fatal("Run() should fail when HR is unreachable")
	}
	if h.sim.Opens("A") != 0 {
		t.Error("device touched after HR failure")
	}
}

func TestSelect(t *testing.T) {
	st := tracking.NewState()
	st.Put("tracked", models.TrackingRecord{Action: models.ActionClearedTemplates})

	mk := func(id string, days int) models.Employee {
		e := leftAgo(days)
		e.ID = id
		return e
	}
	emps := []models.Employee{
		mk("tracked", 100),
		mk("recent", 1),
		mk("ready", 8),
		{ID: "nodate"},
	}
	sel := Select(context.Background(), emps, st, today, Policy{ClearDelayDays: 7})
	if sel.AlreadyTracked != 1 || sel.NotReady != 1 || sel.InvalidDate != 1 || len(sel.Candidates) != 1 {
		t.Errorf("Select = %+v", sel)
	}
	if sel.Candidates[0].Employee.ID != "ready" {
		t.Errorf("candidate = %s, want ready", sel.Candidates[0].Employee.ID)
	}
}
