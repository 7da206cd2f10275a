// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fingersync/internal/audit"
	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/cycle"
	"github.com/tomtom215/fingersync/internal/hrclient"
	"github.com/tomtom215/fingersync/internal/lifecycle"
	"github.com/tomtom215/fingersync/internal/models"
	"github.com/tomtom215/fingersync/internal/tracking"
)

type cleanupEmployeeView struct {
	EmployeeID            string            `json:"employee_id"`
	DeviceUserID          string            `json:"attendance_device_id"`
	Action                string            `json:"action"`
	Devices               map[string]string `json:"devices"`
	Errors                map[string]string `json:"errors,omitempty"`
	Recorded              bool              `json:"recorded"`
	AssumedClean          bool              `json:"assumed_clean"`
	HRFingerprintsDeleted int               `json:"hr_fingerprints_deleted"`
}

type cleanupView struct {
	DryRun         bool                  `json:"dry_run"`
	AlreadyTracked bool                  `json:"already_tracked"`
	NotReady       bool                  `json:"not_ready"`
	Processed      int                   `json:"processed"`
	Failed         int                   `json:"failed"`
	Employees      []cleanupEmployeeView `json:"employees"`
}

func cleanupViewOf(rep lifecycle.Report) cleanupView {
	v := cleanupView{
		DryRun:         rep.DryRun,
		AlreadyTracked: rep.Selection.AlreadyTracked > 0,
		NotReady:       rep.Selection.NotReady > 0 || rep.Selection.InvalidDate > 0,
		Processed:      rep.Processed,
		Failed:         rep.Failed,
		Employees:      []cleanupEmployeeView{},
	}
	for _, res := range rep.Results {
		ev := cleanupEmployeeView{
			EmployeeID:            res.Employee.ID,
			DeviceUserID:          res.Employee.DeviceUserID,
			Action:                res.Action.String(),
			Devices:               make(map[string]string, len(res.Devices)),
			Recorded:              res.Recorded,
			AssumedClean:          res.AssumedClean,
			HRFingerprintsDeleted: res.HRFingerprintsDeleted,
		}
		for d, o := range res.Devices {
			ev.Devices[d] = string(o)
		}
		if len(res.Errors) > 0 {
			ev.Errors = make(map[string]string, len(res.Errors))
			for d, err := range res.Errors {
				ev.Errors[d] = err.Error()
			}
		}
		v.Employees = append(v.Employees, ev)
	}
	return v
}

func cleanupSummaryOf(employeeID string, dryRun bool, rep lifecycle.Report) audit.CleanupSummary {
	sum := audit.CleanupSummary{
		EmployeeID: employeeID,
		DryRun:     dryRun,
		Processed:  rep.Processed,
		Failed:     rep.Failed,
	}
	for _, res := range rep.Results {
		sum.Action = res.Action.String()
		sum.HRFingerprintsDeleted += res.HRFingerprintsDeleted
	}
	return sum
}

// CleanupEmployee runs the Left cleanup for one employee, one session per
// device, holding the cycle lock.
func (h *Handler) CleanupEmployee(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	employeeID := chi.URLParam(r, "employeeID")
	if employeeID == "" {
		respondError(w, r, http.StatusBadRequest, codeValidation, "employeeID is required", nil)
		return
	}
	dryRun, err := boolParam(r, "dry_run")
	if err != nil {
		respondError(w, r, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	var rep lifecycle.Report
	err = h.cycles.Do(context.WithoutCancel(r.Context()), func(ctx context.Context, cfg *config.Config) error {
		var err error
		rep, err = h.cleanup(ctx, cfg, employeeID, dryRun)
		return err
	})
	if h.audit != nil && !errors.Is(err, cycle.ErrBusy) {
		h.audit.LogEmployeeCleanup(r.Context(), audit.SourceFromRequest(r), cleanupSummaryOf(employeeID, dryRun, rep), err)
	}
	switch {
	case err == nil:
		respondData(w, http.StatusOK, cleanupViewOf(rep), start)
	case errors.Is(err, cycle.ErrBusy):
		respondError(w, r, http.StatusConflict, codeBusy, "A cycle is running; retry shortly", nil)
	case errors.Is(err, hrclient.ErrNotFound):
		respondError(w, r, http.StatusNotFound, codeNotFound, "Employee not found", nil)
	case errors.Is(err, cycle.ErrNotLeft):
		respondError(w, r, http.StatusConflict, codeConflict, "Employee is not Left", nil)
	case errors.Is(err, hrclient.ErrUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, codeHRUnavailable, "HR system is unreachable", err)
	default:
		respondError(w, r, http.StatusInternalServerError, codeInternal, "Cleanup failed", err)
	}
}

type trackingEntry struct {
	EmployeeID string `json:"employee_id"`
	models.TrackingRecord
}

type trackingView struct {
	Total   int             `json:"total"`
	Cleared []trackingEntry `json:"cleared"`
	Deleted []trackingEntry `json:"deleted"`
}

func entriesOf(m map[string]models.TrackingRecord) []trackingEntry {
	out := make([]trackingEntry, 0, len(m))
	for id, rec := range m {
		out = append(out, trackingEntry{EmployeeID: id, TrackingRecord: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}

// Tracking lists every processed Left employee.
func (h *Handler) Tracking(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cfg := h.cycles.Snapshot()
	if cfg == nil {
		respondError(w, r, http.StatusServiceUnavailable, codeInternal, "No configuration loaded", nil)
		return
	}
	state, err := tracking.NewStore(cfg.Lifecycle.TrackingFile).Load(r.Context())
	if err != nil && !errors.Is(err, tracking.ErrCorrupt) {
		respondError(w, r, http.StatusInternalServerError, codeInternal, "Failed to read tracking file", err)
		return
	}
	respondData(w, http.StatusOK, trackingView{
		Total:   state.Len(),
		Cleared: entriesOf(state.Cleared),
		Deleted: entriesOf(state.Deleted),
	}, start)
}
