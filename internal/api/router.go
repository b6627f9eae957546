package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the operator API. Everything except /health requires a bearer token.
func NewRouter(h *Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(h.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(5 * time.Minute))

	router.Get("/health", h.Health)

	router.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		// The sync records its own audit event with the run outcome.
		r.Post("/accounts/{id}/sync", h.SyncAccount)

		r.Group(func(r chi.Router) {
			r.Use(h.auditRequests)

			r.Get("/accounts/{id}/status", h.AccountStatus)
			r.Put("/accounts/{id}/credential", h.RegisterCredential)
			r.Post("/accounts/{id}/deactivate", h.DeactivateAccount)
			r.Put("/resources/{id}/monitoring", h.SetMonitoring)
			r.Post("/alerts/{id}/resolve", h.ResolveAlert)
			r.Get("/audit/risk/{actor}", h.RiskScore)
			r.Post("/auth/logout", h.Logout)
		})
	})

	return router
}

