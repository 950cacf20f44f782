package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public.
	r.Get("/health", g.handleHealth())
	if g.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.metrics.Registry, promhttp.HandlerOpts{}))
	}

	// Webhooks carry their own HMAC auth per source.
	r.Post("/webhooks/{source}", g.webhooks.ServeHTTP)

	// Control endpoints are not mounted without auth.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.audit, g.limiter))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Post("/tasks", g.handleSubmitTask())
				r.Post("/tasks/{id}/deactivate", g.handleDeactivateTask())
				r.Post("/cycles", g.handleRunCycle())
				r.Get("/modules", g.handleListModules())
			})
		})
	}

	return r
}
