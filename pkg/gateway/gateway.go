package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/openfidc/gateway/internal/breaker"
	"github.com/openfidc/gateway/internal/logger"
	"github.com/openfidc/gateway/internal/workpool"
	"github.com/openfidc/gateway/pkg/config"
	"github.com/openfidc/gateway/pkg/gateway/metrics"
	"github.com/openfidc/gateway/pkg/gateway/middleware"
	"github.com/openfidc/gateway/pkg/gateway/proxy"
	"github.com/openfidc/gateway/pkg/gateway/session"
)

// Gateway owns the assembled pipeline and its servers.
type Gateway struct {
	cfg     *config.Config
	redis   *redis.Client
	main    *httpServer
	metrics *httpServer
}

// New wires the whole gateway from configuration: Redis client, breaker
// registry, worker pool, session store, validator, one reverse proxy
// per route, the router, and the HTTP servers.
func New(cfg *config.Config) (*Gateway, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		PoolSize:    cfg.Redis.PoolSize,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})

	var httpMetrics *metrics.HTTPMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry("fidc-gateway")
		httpMetrics = metrics.NewHTTPMetrics(
			metrics.NewNormalizer(metrics.PathMode(cfg.Metrics.PathMode), cfg.ServiceNames()))
	}

	registry := breaker.NewRegistry(breakerPolicies(cfg), func(name string, from, to breaker.State) {
		logger.Warn("circuit breaker state change",
			logger.KeyBreaker, name,
			"from", from.String(),
			"to", to.String())
		httpMetrics.OnBreakerStateChange(name, from, to)
	})

	pool := workpool.New(cfg.Workers.Multiplier)
	store := session.NewStore(redisClient, registry.Breaker(breaker.RedisName), pool, cfg.Redis.Timeout)
	validator := middleware.NewValidator(store, pool, cfg.PartnerClaimCheckEnabled())

	routeHandlers := make(map[string]http.Handler, len(cfg.Routes))
	for _, route := range cfg.Routes {
		p, err := proxy.New(route.ID, route.Upstream, registry.Breaker(breaker.DownstreamName), route.Timeout)
		if err != nil {
			return nil, err
		}
		routeHandlers[route.ID] = p
	}

	router := NewRouter(cfg, validator, httpMetrics, redisClient, registry.Breaker(breaker.RedisName), routeHandlers)

	shutdownTimeout := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	}

	g := &Gateway{
		cfg:   cfg,
		redis: redisClient,
		main: newHTTPServer("gateway", &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}, shutdownTimeout),
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		g.metrics = newHTTPServer("metrics", &http.Server{
			Addr:        fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: time.Minute,
		}, shutdownTimeout)
	}

	return g, nil
}

// Run serves until the context is cancelled or a listener fails, then
// drains gracefully and closes the Redis client.
func (g *Gateway) Run(ctx context.Context) error {
	defer func() {
		if err := g.redis.Close(); err != nil {
			logger.Warn("closing redis client", logger.KeyError, err.Error())
		}
	}()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return g.main.Start(ctx) })
	if g.metrics != nil {
		eg.Go(func() error { return g.metrics.Start(ctx) })
	}
	return eg.Wait()
}

// breakerPolicies merges configured overrides onto the built-in
// policies. Config names not in the defaults create new policies from
// the default baseline.
func breakerPolicies(cfg *config.Config) map[string]breaker.Policy {
	policies := breaker.DefaultPolicies()
	for name, override := range cfg.Breakers {
		base, ok := policies[name]
		if !ok {
			base = policies[breaker.DefaultName]
		}
		if override.FailureRateThreshold > 0 {
			base.FailureRateThreshold = override.FailureRateThreshold
		}
		if override.SlowRateThreshold > 0 {
			base.SlowRateThreshold = override.SlowRateThreshold
		}
		if override.SlowCallDuration > 0 {
			base.SlowCallDuration = override.SlowCallDuration
		}
		if override.OpenStateWait > 0 {
			base.OpenStateWait = override.OpenStateWait
		}
		if override.WindowSize > 0 {
			base.WindowSize = override.WindowSize
		}
		if override.MinCalls > 0 {
			base.MinCalls = override.MinCalls
		}
		if override.HalfOpenProbes > 0 {
			base.HalfOpenProbes = override.HalfOpenProbes
		}
		policies[name] = base
	}
	return policies
}
