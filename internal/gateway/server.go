package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", g.metricsHandler())

	// Inspection endpoints are not mounted without auth.
	if g.config.Auth.IsConfigured() {
		r.Route("/api", func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Get("/conversations", g.handleListLanes())
			r.Get("/fragments", g.handleListFragments())
			r.Get("/indices", g.handleListIndices())
			r.Get("/usage", g.handleUsage())
			r.Get("/modules", g.handleGetAllModules())
		})
	}

	return r
}
