// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/fingersync/internal/models"
)

const readyProbeTimeout = 5 * time.Second

// HealthLive reports that the process is up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// HealthReady returns 503 while HR is unreachable, since no cycle can
// make progress without it.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
	defer cancel()

	hrOK := h.hr != nil && h.hr.Ping(ctx) == nil
	data := map[string]interface{}{
		"hr_connected": hrOK,
		"uptime":       time.Since(h.startTime).Seconds(),
	}
	if last, _ := h.cycles.Last(); !last.Started.IsZero() {
		data["last_cycle_status"] = last.Status
		data["last_cycle_started"] = last.Started
	}

	status, code := "ready", http.StatusOK
	if !hrOK {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	respondJSON(w, code, &models.APIResponse{
		Status: status,
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:  time.Now(),
			DurationMS: time.Since(start).Milliseconds(),
		},
	})
}
