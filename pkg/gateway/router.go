package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/openfidc/gateway/internal/breaker"
	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/pkg/config"
	"github.com/openfidc/gateway/pkg/gateway/metrics"
	"github.com/openfidc/gateway/pkg/gateway/middleware"
)

// NewRouter builds the gateway's request pipeline.
//
// Middleware order matters: correlation runs first so every later
// component (metrics, validation, error mapping) sees the id; metrics
// wraps everything below it so it observes the final status; the
// session validator is route-scoped and only mounts on protected
// routes.
//
// Routes:
//   - GET /health        - liveness probe (unauthenticated)
//   - GET /health/ready  - readiness probe (unauthenticated)
//   - each config route  - validated and proxied to its upstream
func NewRouter(
	cfg *config.Config,
	validator *middleware.Validator,
	httpMetrics *metrics.HTTPMetrics,
	store Pinger,
	redisBreaker *breaker.Breaker,
	routeHandlers map[string]http.Handler,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Correlation)
	r.Use(middleware.Metrics(httpMetrics))
	r.Use(middleware.Recoverer)

	healthHandler := NewHealthHandler(store, redisBreaker)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	for _, route := range cfg.Routes {
		handler, ok := routeHandlers[route.ID]
		if !ok {
			continue
		}
		route := route
		r.Route(route.Path, func(r chi.Router) {
			if route.Public {
				r.Use(middleware.PublicHeaders)
			} else {
				r.Use(validator.Middleware(route.ID, route.RequiredPermissions))
			}
			r.Mount("/", handler)
		})
		logger.Info("route mounted",
			logger.KeyRouteID, route.ID,
			logger.KeyPath, route.Path,
			"public", route.Public,
			"required_permissions", len(route.RequiredPermissions))
	}

	return r
}

// writeJSON renders a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
