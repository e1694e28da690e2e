// Package httptransport is the thin HTTP layer. It decodes requests, calls
// the identity service, and maps domain error codes to statuses. No business
// logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keyward/internal/platform/middleware"
)

// NewRouter wires the public endpoints. Everything under /api requires a
// valid bearer token.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.identity, logger))
		r.Get("/me", h.handleMe)
		r.Post("/change_password", h.handleChangePassword)
		r.Post("/change_username", h.handleChangeUsername)
	})

	return r
}
