// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/middleware"
)

// NewRouter builds the chi router for h.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(rateLimit(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	actions := RateLimitAction
	if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
		actions = RateLimitConfig{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/cycles/last", h.LastCycle)
		r.Get("/tracking", h.Tracking)
		r.Get("/audit", h.AuditEvents)

		r.Group(func(r chi.Router) {
			r.Use(rateLimit(actions))
			r.Post("/cycles/trigger", h.TriggerCycle)
			r.Post("/employees/{employeeID}/cleanup", h.CleanupEmployee)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}
