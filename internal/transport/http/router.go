// Package http exposes the telemetry admin surface: the settings document,
// pipeline stats, and the operational endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fidotel/internal/platform/middleware"
	"fidotel/internal/telemetry/pipeline"
	"fidotel/internal/telemetry/settings"
)

// Refresher re-reads the settings cache so a committed update is visible to
// the pipeline without waiting for the next refresh tick.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// NewRouter assembles the admin API. Settings reads are open to any
// authenticated operator; writes require the admin role.
func NewRouter(
	store settings.Store,
	provider settings.Provider,
	recorder *pipeline.Recorder,
	validator middleware.TokenValidator,
	logger *slog.Logger,
) http.Handler {
	h := &handler{
		store:    store,
		provider: provider,
		recorder: recorder,
		logger:   logger,
	}
	if refresher, ok := provider.(Refresher); ok {
		h.refresher = refresher
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/telemetry", func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))

		r.Get("/config", h.getSettings)
		r.Get("/stats", h.getStats)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Put("/config", h.putSettings)
		})
	})

	return r
}
