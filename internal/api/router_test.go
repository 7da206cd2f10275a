// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fingersync/internal/audit"
	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/cycle"
	"github.com/tomtom215/fingersync/internal/hrclient"
	"github.com/tomtom215/fingersync/internal/lifecycle"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/models"
	"github.com/tomtom215/fingersync/internal/tracking"
)

type fakeCycles struct {
	cfg        *config.Config
	last       cycle.Result
	lastErr    error
	triggerErr error
	busy       bool
	during     func(ctx context.Context)
}

func (f *fakeCycles) Trigger(ctx context.Context) (cycle.Result, error) {
	if f.during != nil {
		f.during(ctx)
	}
	if f.busy {
		return cycle.Result{}, cycle.ErrBusy
	}
	return f.last, f.triggerErr
}

func (f *fakeCycles) Last() (cycle.Result, error) { return f.last, f.lastErr }

func (f *fakeCycles) Snapshot() *config.Config { return f.cfg }

func (f *fakeCycles) Do(ctx context.Context, fn func(context.Context, *config.Config) error) error {
	if f.during != nil {
		f.during(ctx)
	}
	if f.busy {
		return cycle.ErrBusy
	}
	return fn(ctx, f.cfg)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *models.APIError `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, env
}

func newTestRouter(t *testing.T, cycles *fakeCycles, hr Pinger, cleaner EmployeeCleaner) http.Handler {
	t.Helper()
	if cycles.cfg == nil {
		cycles.cfg = &config.Config{Lifecycle: config.LifecycleConfig{
			TrackingFile: filepath.Join(t.TempDir(), "processed.json"),
		}}
	}
	if cleaner == nil {
		cleaner = func(context.Context, *config.Config, string, bool) (lifecycle.Report, error) {
			return lifecycle.Report{}, nil
		}
	}
	return NewRouter(NewHandler(cycles, hr, cleaner), config.ServerConfig{RateLimitRequests: 100, RateLimitWindow: time.Minute})
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		hrErr  error
		status int
	}{
		{"live ignores HR", "/api/v1/health/live", hrclient.ErrUnavailable, http.StatusOK},
		{"ready with HR up", "/api/v1/health/ready", nil, http.StatusOK},
		{"not ready with HR down", "/api/v1/health/ready", hrclient.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, &fakeCycles{}, fakePinger{tt.hrErr}, nil)
			rec, _ := do(t, h, http.MethodGet, tt.path)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
			if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("missing security headers")
			}
		})
	}
}

func TestTriggerCycle(t *testing.T) {
	done := cycle.Result{
		Operation: cycle.OpCycle,
		Status:    cycle.StatusPartial,
		Started:   time.Now(),
		Report: cycle.CycleReport{
			Bypassed: []string{cycle.OpSyncUsers},
			Steps: []cycle.Result{
				{Operation: cycle.OpSyncAttendance, Status: cycle.StatusOK},
				{Operation: cycle.OpSyncOvertime, Status: cycle.StatusFailed, Reason: "boom"},
			},
		},
	}
	tests := []struct {
		name   string
		cycles *fakeCycles
		status int
		code   string
	}{
		{"runs", &fakeCycles{last: done}, http.StatusOK, ""},
		{"busy", &fakeCycles{busy: true}, http.StatusConflict, codeBusy},
		{"hr down", &fakeCycles{last: done, triggerErr: fmt.Errorf("ping: %w", hrclient.ErrUnavailable)}, http.StatusServiceUnavailable, codeHRUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, tt.cycles, fakePinger{}, nil)
			rec, env := do(t, h, http.MethodPost, "/api/v1/cycles/trigger")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.code != "" {
				if env.Error == nil || env.Error.Code != tt.code {
					t.Errorf("error = %+v, want code %s", env.Error, tt.code)
				}
				return
			}
			var v struct {
				Status   string     `json:"status"`
				Bypassed []string   `json:"bypassed"`
				Steps    []stepView `json:"steps"`
			}
			if err := json.Unmarshal(env.Data, &v); err != nil {
				t.Fatal(err)
			}
			if v.Status != string(cycle.StatusPartial) || len(v.Steps) != 2 || v.Steps[1].Reason != "boom" || len(v.Bypassed) != 1 {
				t.Errorf("cycle view = %+v", v)
			}
		})
	}

	t.Run("GET not allowed", func(t *testing.T) {
		h := newTestRouter(t, &fakeCycles{}, fakePinger{}, nil)
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/cycles/trigger"); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestClientDisconnectDoesNotCancelWork(t *testing.T) {
	for _, path := range []string{"/api/v1/cycles/trigger", "/api/v1/employees/E9/cleanup"} {
		t.Run(path, func(t *testing.T) {
			reqCtx, disconnect := context.WithCancel(context.Background())
			defer disconnect()

			var workErr error
			var correlationID string
			cycles := &fakeCycles{last: cycle.Result{Operation: cycle.OpCycle, Status: cycle.StatusOK, Started: time.Now()}}
			cycles.during = func(ctx context.Context) {
				disconnect()
				workErr = ctx.Err()
				correlationID = logging.CorrelationIDFromContext(ctx)
			}
			h := newTestRouter(t, cycles, fakePinger{}, nil)

			req := httptest.NewRequest(http.MethodPost, path, nil).WithContext(reqCtx)
			req.Header.Set("X-Request-ID", "req-42")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if reqCtx.Err() == nil {
				t.Fatal("request context was not cancelled")
			}
			if workErr != nil {
				t.Errorf("work context cancelled with the request: %v", workErr)
			}
			if correlationID != "req-42" {
				t.Errorf("correlation id = %q, want req-42", correlationID)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestLastCycle(t *testing.T) {
	h := newTestRouter(t, &fakeCycles{}, fakePinger{}, nil)
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/cycles/last"); rec.Code != http.StatusNotFound {
		t.Errorf("before first cycle: status = %d", rec.Code)
	}

	h = newTestRouter(t, &fakeCycles{last: cycle.Result{Operation: cycle.OpCycle, Status: cycle.StatusOK, Started: time.Now()}}, fakePinger{}, nil)
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/cycles/last"); rec.Code != http.StatusOK {
		t.Errorf("after cycle: status = %d", rec.Code)
	}
}

func TestCleanupEmployee(t *testing.T) {
	report := lifecycle.Report{
		DryRun:    true,
		Processed: 1,
		Results: []lifecycle.EmployeeResult{{
			Employee: models.Employee{ID: "E9", DeviceUserID: "900"},
			Action:   lifecycle.ClearTemplates,
			Devices:  map[string]lifecycle.DeviceOutcome{"A": lifecycle.OutcomeCleared, "B": lifecycle.OutcomeFailed},
			Errors:   map[string]error{"B": errors.New("timeout")},
			Recorded: true,
		}},
	}
	tests := []struct {
		name   string
		path   string
		err    error
		busy   bool
		status int
	}{
		{"dry run", "/api/v1/employees/E9/cleanup?dry_run=true", nil, false, http.StatusOK},
		{"bad flag", "/api/v1/employees/E9/cleanup?dry_run=maybe", nil, false, http.StatusBadRequest},
		{"unknown employee", "/api/v1/employees/E0/cleanup", hrclient.ErrNotFound, false, http.StatusNotFound},
		{"active employee", "/api/v1/employees/E1/cleanup", cycle.ErrNotLeft, false, http.StatusConflict},
		{"hr down", "/api/v1/employees/E9/cleanup", hrclient.ErrUnavailable, false, http.StatusServiceUnavailable},
		{"cycle running", "/api/v1/employees/E9/cleanup", nil, true, http.StatusConflict},
		{"unexpected", "/api/v1/employees/E9/cleanup", errors.New("disk full"), false, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID string
			var gotDry bool
			cleaner := func(_ context.Context, _ *config.Config, id string, dry bool) (lifecycle.Report, error) {
				gotID, gotDry = id, dry
				return report, tt.err
			}
			h := newTestRouter(t, &fakeCycles{busy: tt.busy}, fakePinger{}, cleaner)
			rec, env := do(t, h, http.MethodPost, tt.path)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body)
			}
			if tt.status != http.StatusOK {
				return
			}
			if gotID != "E9" || !gotDry {
				t.Errorf("cleaner called with %q, dry=%v", gotID, gotDry)
			}
			var v cleanupView
			if err := json.Unmarshal(env.Data, &v); err != nil {
				t.Fatal(err)
			}
			if len(v.Employees) != 1 || v.Employees[0].Devices["B"] != "failed" || v.Employees[0].Errors["B"] != "timeout" {
				t.Errorf("cleanup view = %+v", v)
			}
		})
	}
}

func TestTracking(t *testing.T) {
	cycles := &fakeCycles{}
	h := newTestRouter(t, cycles, fakePinger{}, nil)

	store := tracking.NewStore(cycles.cfg.Lifecycle.TrackingFile)
	for _, id := range []string{"E2", "E1"} {
		if _, err := store.Record(context.Background(), models.Employee{ID: id, DeviceUserID: "9" + id}, models.ActionClearedTemplates); err != nil {
			t.Fatal(err)
		}
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/tracking")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var v trackingView
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatal(err)
	}
	if v.Total != 2 || len(v.Cleared) != 2 || v.Cleared[0].EmployeeID != "E1" {
		t.Errorf("tracking view = %+v", v)
	}
}

func TestRateLimitOnActions(t *testing.T) {
	h := NewRouter(NewHandler(&fakeCycles{last: cycle.Result{Started: time.Now()}}, fakePinger{}, nil),
		config.ServerConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	var codes []int
	for i := 0; i < 3; i++ {
		rec, _ := do(t, h, http.MethodPost, "/api/v1/cycles/trigger")
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, &fakeCycles{}, fakePinger{}, nil)
	do(t, h, http.MethodGet, "/api/v1/health/live")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "fingersync_api_requests_total") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestAuditTrail(t *testing.T) {
	cycles := &fakeCycles{last: cycle.Result{Operation: cycle.OpCycle, Status: cycle.StatusOK, Started: time.Now()}}
	cycles.cfg = &config.Config{}
	trail := audit.NewLogger(audit.NewMemoryStore(100), &audit.Config{Enabled: true, BufferSize: 8})
	cleaner := func(context.Context, *config.Config, string, bool) (lifecycle.Report, error) {
		return lifecycle.Report{Processed: 1}, nil
	}
	h := NewRouter(NewHandler(cycles, fakePinger{}, cleaner).WithAudit(trail),
		config.ServerConfig{RateLimitRequests: 100, RateLimitWindow: time.Minute})

	do(t, h, http.MethodPost, "/api/v1/cycles/trigger")
	do(t, h, http.MethodPost, "/api/v1/employees/E9/cleanup")
	cycles.busy = true
	do(t, h, http.MethodPost, "/api/v1/employees/E9/cleanup")
	// Close flushes the async writer; the store stays queryable.
	_ = trail.Close()

	rec, env := do(t, h, http.MethodGet, "/api/v1/audit")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var v auditView
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatal(err)
	}
	// A cleanup refused while a cycle runs is not recorded.
	if v.Total != 2 || len(v.Events) != 2 {
		t.Fatalf("audit view = %+v", v)
	}
	if v.Events[0].Type != audit.EventTypeEmployeeCleanup || v.Events[0].Target.ID != "E9" {
		t.Errorf("newest event = %+v", v.Events[0])
	}
	if v.Events[0].RequestID == "" {
		t.Error("request id not recorded")
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/audit?type=cycle.triggered")
	if rec.Code != http.StatusOK {
		t.Errorf("filtered status = %d", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/audit?format=cef&limit=1")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "CEF:0|FingerSync|") {
		t.Errorf("cef export = %d %q", rec.Code, rec.Body.String())
	}

	if rec, _ := do(t, h, http.MethodGet, "/api/v1/audit?limit=0"); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d", rec.Code)
	}

	plain := newTestRouter(t, &fakeCycles{}, fakePinger{}, nil)
	if rec, _ := do(t, plain, http.MethodGet, "/api/v1/audit"); rec.Code != http.StatusNotFound {
		t.Errorf("disabled audit status = %d", rec.Code)
	}
}
