package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Health status values.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusNotFound, ErrCodeNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		fail(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

// handleHealth reports 200 while the broker connection is up and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := healthDegraded, http.StatusServiceUnavailable
	if s.mqtt != nil && s.mqtt.IsConnected() {
		status, code = healthOK, http.StatusOK
	}

	respond(w, code, map[string]any{
		"status":  status,
		"version": s.version,
	})
}
