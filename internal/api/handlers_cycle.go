// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/fingersync/internal/audit"
	"github.com/tomtom215/fingersync/internal/cycle"
	"github.com/tomtom215/fingersync/internal/hrclient"
)

// stepView is one step of a cycle as rendered over HTTP. Operation reports
// stay in the logs.
type stepView struct {
	Operation string       `json:"operation"`
	Status    cycle.Status `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Started   time.Time    `json:"started"`
	Duration  string       `json:"duration"`
}

type cycleView struct {
	stepView
	Error      string     `json:"error,omitempty"`
	ResyncSlot string     `json:"resync_slot,omitempty"`
	Bypassed   []string   `json:"bypassed,omitempty"`
	Steps      []stepView `json:"steps,omitempty"`
}

func viewOf(res cycle.Result, err error) cycleView {
	v := cycleView{stepView: stepOf(res)}
	if err != nil {
		v.Error = err.Error()
	}
	if rep, ok := res.Report.(cycle.CycleReport); ok {
		v.ResyncSlot = rep.Resync
		v.Bypassed = rep.Bypassed
		for _, s := range rep.Steps {
			v.Steps = append(v.Steps, stepOf(s))
		}
	}
	return v
}

func stepOf(res cycle.Result) stepView {
	return stepView{
		Operation: res.Operation,
		Status:    res.Status,
		Reason:    res.Reason,
		Started:   res.Started,
		Duration:  res.Duration.String(),
	}
}

// TriggerCycle runs one cycle synchronously and returns its outcome. The
// cycle runs to completion even if the client disconnects.
func (h *Handler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.cycles.Trigger(context.WithoutCancel(r.Context()))
	if h.audit != nil {
		h.audit.LogCycleTrigger(r.Context(), audit.SourceFromRequest(r), string(res.Status), err)
	}
	switch {
	case errors.Is(err, cycle.ErrBusy):
		respondError(w, r, http.StatusConflict, codeBusy, "A cycle is already running", nil)
	case errors.Is(err, hrclient.ErrUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, codeHRUnavailable, "HR system is unreachable", err)
	default:
		respondData(w, http.StatusOK, viewOf(res, err), start)
	}
}

// LastCycle returns the most recent cycle outcome, or 404 before the first.
func (h *Handler) LastCycle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	res, err := h.cycles.Last()
	if res.Started.IsZero() {
		respondError(w, r, http.StatusNotFound, codeNotFound, "No cycle has run yet", nil)
		return
	}
	respondData(w, http.StatusOK, viewOf(res, err), start)
}
