// Package metrics exposes the gateway's Prometheus instrumentation:
// request counters/timers with bounded path labels, error counters by
// kind, and circuit-breaker state gauges.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu         sync.RWMutex
	registry   *prometheus.Registry
	registerer prometheus.Registerer
	enabled    bool
)

// InitRegistry creates the process-wide registry. Every metric carries
// an `application` label so dashboards can split gateway fleets. Safe
// to call once at startup, before any collector is built.
func InitRegistry(application string) {
	mu.Lock()
	defer mu.Unlock()

	registry = prometheus.NewRegistry()
	registerer = prometheus.WrapRegistererWith(
		prometheus.Labels{"application": application},
		registry,
	)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	enabled = true
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Registerer returns the wrapped registerer collectors attach to.
func Registerer() prometheus.Registerer {
	mu.RLock()
	defer mu.RUnlock()
	return registerer
}

// Handler returns the scrape endpoint handler for the registry.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// reset is for tests only.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
	registerer = nil
	enabled = false
}
