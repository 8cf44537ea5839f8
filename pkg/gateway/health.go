// Package gateway assembles the FIDC session gateway: the chi router
// with its validation pipeline, the reverse proxies from the route
// table, the Redis-backed session store, and the HTTP servers that
// host them.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openfidc/gateway/internal/breaker"
)

// HealthCheckTimeout bounds the readiness probe's Redis ping so a slow
// store cannot hang the probe.
const HealthCheckTimeout = 1 * time.Second

// Pinger is the slice of the Redis client the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// healthResponse is the body of both probes.
type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// HealthHandler serves the unauthenticated liveness and readiness
// probes.
//
//   - Liveness: is the gateway process running?
//   - Readiness: can the gateway validate sessions (Redis reachable)?
type HealthHandler struct {
	store        Pinger
	redisBreaker *breaker.Breaker
	startTime    time.Time
}

// NewHealthHandler creates a health handler. store may be nil, in
// which case readiness always reports unhealthy. redisBreaker is
// optional; when set, an open breaker reports degraded without
// touching Redis.
func NewHealthHandler(store Pinger, redisBreaker *breaker.Breaker) *HealthHandler {
	return &HealthHandler{store: store, redisBreaker: redisBreaker, startTime: time.Now()}
}

// Liveness handles GET /health.
// Always succeeds while the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"service":    "fidc-gateway",
			"started_at": h.startTime.UTC().Format(time.RFC3339),
			"uptime":     uptime.Round(time.Second).String(),
			"uptime_sec": int64(uptime.Seconds()),
		},
	})
}

// Readiness handles GET /health/ready.
// Reports unhealthy when the session store does not answer a ping: a
// gateway that cannot validate sessions cannot serve protected routes.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Error:     "session store not configured",
		})
		return
	}

	if h.redisBreaker != nil && h.redisBreaker.State() == breaker.StateOpen {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "degraded",
			Timestamp: time.Now().UTC(),
			Error:     "session store circuit open",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.store.Ping(ctx).Err(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Error:     "session store unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}
