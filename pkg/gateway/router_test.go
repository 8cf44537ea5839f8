package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfidc/gateway/internal/breaker"
	"github.com/openfidc/gateway/internal/workpool"
	"github.com/openfidc/gateway/pkg/config"
	"github.com/openfidc/gateway/pkg/gateway/headers"
	"github.com/openfidc/gateway/pkg/gateway/middleware"
	"github.com/openfidc/gateway/pkg/gateway/proxy"
	"github.com/openfidc/gateway/pkg/gateway/session"
)

// memoryRedis answers GET and PING from memory.
type memoryRedis struct {
	records map[string]string
	pingErr error
}

func (m *memoryRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	val, ok := m.records[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (m *memoryRedis) Ping(ctx context.Context) *redis.StatusCmd {
	if m.pingErr != nil {
		return redis.NewStatusResult("", m.pingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func routerFixture(t *testing.T, backend *httptest.Server, store *memoryRedis) http.Handler {
	t.Helper()

	cfg := &config.Config{Routes: []config.RouteConfig{
		{
			ID:                  "simulation",
			Path:                "/api/simulation",
			Upstream:            backend.URL,
			RequiredPermissions: []string{"VIEW_SIMULATION_RESULTS"},
		},
		{
			ID:       "catalog",
			Path:     "/api/catalog",
			Upstream: backend.URL,
			Public:   true,
		},
	}}

	registry := breaker.NewRegistry(breaker.DefaultPolicies(), nil)
	pool := workpool.New(1)
	sessStore := session.NewStore(store, registry.Breaker(breaker.RedisName), pool, 0)
	validator := middleware.NewValidator(sessStore, pool, true)

	routeHandlers := make(map[string]http.Handler)
	for _, route := range cfg.Routes {
		p, err := proxy.New(route.ID, route.Upstream, registry.Breaker(breaker.DownstreamName), route.Timeout)
		require.NoError(t, err)
		routeHandlers[route.ID] = p
	}

	return NewRouter(cfg, validator, nil, store, registry.Breaker(breaker.RedisName), routeHandlers)
}

func gatewaySession(t *testing.T) (record string, token string) {
	t.Helper()
	s := &session.Session{
		SessionID:            "s-1",
		Partner:              "prevcom",
		SessionSecret:        "shh",
		UserInfo:             session.UserInfo{DocumentNumber: "123"},
		RelationshipSelected: &session.Relationship{ID: "REL001", ContractNumber: "c-1"},
		Permissions:          []string{"VIEW_SIMULATION_RESULTS"},
	}
	b, err := json.Marshal(s)
	require.NoError(t, err)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.MapClaims{"sessionId": "s-1"}).SignedString([]byte("shh"))
	require.NoError(t, err)
	return string(b), tok
}

func TestRouterHealthEndpoints(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()
	store := &memoryRedis{records: map[string]string{}}
	router := routerFixture(t, backend, store)

	t.Run("liveness", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"healthy"`)
	})

	t.Run("readiness healthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readiness unhealthy when redis down", func(t *testing.T) {
		store.pingErr = errors.New("connection refused")
		defer func() { store.pingErr = nil }()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("readiness degraded when redis breaker open", func(t *testing.T) {
		registry := breaker.NewRegistry(breaker.DefaultPolicies(), nil)
		br := registry.Breaker(breaker.RedisName)
		for i := 0; i < 25; i++ {
			_ = br.Do(context.Background(), func(context.Context) error {
				return errors.New("connection refused")
			})
		}
		require.Equal(t, breaker.StateOpen, br.State())

		h := NewHealthHandler(store, br)
		rec := httptest.NewRecorder()
		h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "circuit open")
	})

	t.Run("health carries correlation id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.NotEmpty(t, rec.Header().Get(headers.Correlation))
	})
}

func TestRouterProtectedRouteEndToEnd(t *testing.T) {
	var upstreamHeader http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	record, token := gatewaySession(t)
	store := &memoryRedis{records: map[string]string{
		"fidc:session:prevcom:s-1": record,
	}}
	router := routerFixture(t, backend, store)

	t.Run("rejects without credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/simulation/42/validate", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("proxies with envelope when session valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/simulation/42/validate", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("partner", "prevcom")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "s-1", upstreamHeader.Get(headers.SessionID))
		assert.Equal(t, "REL001", upstreamHeader.Get(headers.RelationshipID))
		assert.Empty(t, upstreamHeader.Get("Authorization"))
	})
}

func TestRouterPublicRouteSkipsValidation(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("catalog"))
	}))
	defer backend.Close()
	store := &memoryRedis{records: map[string]string{}}
	router := routerFixture(t, backend, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/catalog/list", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "catalog", rec.Body.String())
}

func TestRouterPublicRouteFiltersHeaders(t *testing.T) {
	var upstreamHeader http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()
	store := &memoryRedis{records: map[string]string{}}
	router := routerFixture(t, backend, store)

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/list", nil)
	req.Header.Set("Authorization", "Bearer client-token")
	req.Header.Set("X-Evil", "smuggled")
	req.Header.Set(headers.SessionID, "s-forged")
	req.Header.Set(headers.UserDocumentNumber, "00000000000")
	req.Header.Set(headers.UserPermissions, "VIEW_SIMULATION_RESULTS")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// No session means no envelope: credentials, arbitrary headers and
	// client-supplied envelope names must never reach the upstream.
	assert.Empty(t, upstreamHeader.Get("Authorization"))
	assert.Empty(t, upstreamHeader.Get("X-Evil"))
	assert.Empty(t, upstreamHeader.Get(headers.SessionID))
	assert.Empty(t, upstreamHeader.Get(headers.UserDocumentNumber))
	assert.Empty(t, upstreamHeader.Get(headers.UserPermissions))

	// Allow-listed headers survive the filter.
	assert.Equal(t, "application/json", upstreamHeader.Get("Accept"))
	assert.NotEmpty(t, upstreamHeader.Get(headers.Correlation))
}

func TestBreakerPoliciesMergeOverrides(t *testing.T) {
	cfg := &config.Config{Breakers: map[string]config.BreakerConfig{
		"redis": {
			FailureRateThreshold: 80,
			OpenStateWait:        20 * time.Second,
		},
		"custom": {
			WindowSize: 42,
		},
	}}

	policies := breakerPolicies(cfg)

	// Overridden fields change, the rest keep the redis defaults.
	assert.Equal(t, float64(80), policies["redis"].FailureRateThreshold)
	assert.Equal(t, 20*time.Second, policies["redis"].OpenStateWait)
	assert.Equal(t, 20, policies["redis"].WindowSize)
	assert.Equal(t, 10, policies["redis"].MinCalls)

	// Unknown names start from the default baseline.
	assert.Equal(t, 42, policies["custom"].WindowSize)
	assert.Equal(t, float64(50), policies["custom"].FailureRateThreshold)

	// Untouched policies keep their built-ins.
	assert.Equal(t, float64(60), policies["downstream"].FailureRateThreshold)
}
