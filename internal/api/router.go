package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check on /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Monitoring endpoints are exempt from rate limiting.
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)

			r.Get("/status", s.handleStatus)
			r.Post("/scan", s.handleScan)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{address}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Put("/power", s.handleSetPower)
				})
			})

			r.Get("/commands", s.handleListCommands)
			r.Get("/sightings", s.handleListSightings)

			r.Get("/schedules", s.handleListSchedules)
			r.Post("/schedules/{name}/run", s.handleRunSchedule)

			r.Get(s.wsPath(), s.handleWebSocket)
		})
	})

	return r
}

// wsPath returns the WebSocket route relative to /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports the engine and every optional component. It answers
// 503 when any of them is unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.checks)+1)
	healthy := true

	check := func(name string, hc HealthChecker) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := hc.HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			healthy = false
			return
		}
		components[name] = "ok"
	}

	check("engine", s.engine)
	for name, hc := range s.checks {
		if hc != nil {
			check(name, hc)
		}
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
