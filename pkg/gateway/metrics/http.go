package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/openfidc/gateway/internal/breaker"
)

// HTTPMetrics instruments the request pipeline. All path label values
// pass through a Normalizer so cardinality stays bounded.
//
// A nil *HTTPMetrics is valid and records nothing, so callers never
// branch on whether metrics are enabled.
type HTTPMetrics struct {
	norm *Normalizer

	requestsTotal      *prometheus.CounterVec
	duration           *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
}

// NewHTTPMetrics creates the gateway's request collectors.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewHTTPMetrics(norm *Normalizer) *HTTPMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := Registerer()

	return &HTTPMetrics{
		norm: norm,
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Total number of requests handled, by normalized path, method and status",
			},
			[]string{"path", "method", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "Request latency from arrival to final byte, by normalized path and method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_request_errors_total",
				Help: "Total number of failed requests, by normalized path, method and error kind",
			},
			[]string{"path", "method", "error_kind"},
		),
		breakerState: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_circuit_breaker_state",
				Help: "Circuit breaker state per policy (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		breakerTransitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_circuit_breaker_transitions_total",
				Help: "Total number of circuit breaker state transitions, by policy and target state",
			},
			[]string{"name", "to"},
		),
	}
}

// ObserveRequest records one completed request.
func (m *HTTPMetrics) ObserveRequest(path, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	p := m.norm.Normalize(path)
	m.requestsTotal.WithLabelValues(p, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(p, method).Observe(elapsed.Seconds())
}

// ObserveError records one failed request by error kind (the stable
// external error code).
func (m *HTTPMetrics) ObserveError(path, method, errorKind string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(m.norm.Normalize(path), method, errorKind).Inc()
}

// OnBreakerStateChange publishes a breaker transition. It satisfies
// breaker.StateChangeFunc so it can be wired at registry construction.
func (m *HTTPMetrics) OnBreakerStateChange(name string, _, to breaker.State) {
	if m == nil {
		return
	}
	var v float64
	switch to {
	case breaker.StateOpen:
		v = 1
	case breaker.StateHalfOpen:
		v = 2
	}
	m.breakerState.WithLabelValues(name).Set(v)
	m.breakerTransitions.WithLabelValues(name, to.String()).Inc()
}
