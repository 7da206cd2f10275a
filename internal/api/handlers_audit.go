// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/fingersync/internal/audit"
)

const maxAuditLimit = 1000

type auditView struct {
	Total  int64         `json:"total"`
	Events []audit.Event `json:"events"`
}

// AuditEvents lists recorded operator actions, newest first.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.audit == nil {
		respondError(w, r, http.StatusNotFound, codeNotFound, "Audit trail is disabled", nil)
		return
	}

	q := r.URL.Query()
	filter := audit.DefaultQueryFilter()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxAuditLimit {
			respondError(w, r, http.StatusBadRequest, codeValidation, "limit must be between 1 and 1000", nil)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("type"); v != "" {
		filter.Types = []audit.EventType{audit.EventType(v)}
	}
	filter.TargetID = q.Get("target")

	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, codeInternal, "Failed to query audit trail", err)
		return
	}

	if q.Get("format") == "cef" {
		out, err := audit.NewCEFExporter().Export(events)
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, codeInternal, "Failed to export audit trail", err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
		return
	}

	filter.Limit = 0
	total, err := h.audit.Count(r.Context(), filter)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, codeInternal, "Failed to count audit events", err)
		return
	}
	respondData(w, http.StatusOK, auditView{Total: total, Events: events}, start)
}
