package breaker

import "time"

// Well-known policy names. Breaker(name) falls back to DefaultName for
// anything unregistered.
const (
	DefaultName    = "default"
	RedisName      = "redis"
	DownstreamName = "downstream"
)

// DefaultPolicies returns the built-in per-dependency policies.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		DefaultName: {
			FailureRateThreshold: 50,
			OpenStateWait:        30 * time.Second,
			WindowSize:           10,
			MinCalls:             5,
			HalfOpenProbes:       3,
			SlowRateThreshold:    50,
			SlowCallDuration:     2 * time.Second,
		},
		RedisName: {
			FailureRateThreshold: 70,
			OpenStateWait:        15 * time.Second,
			WindowSize:           20,
			MinCalls:             10,
			HalfOpenProbes:       5,
			SlowRateThreshold:    60,
			SlowCallDuration:     1 * time.Second,
		},
		DownstreamName: {
			FailureRateThreshold: 60,
			OpenStateWait:        45 * time.Second,
			WindowSize:           15,
			MinCalls:             8,
			HalfOpenProbes:       4,
			SlowRateThreshold:    70,
			SlowCallDuration:     5 * time.Second,
		},
	}
}

// Registry holds the process-wide named breakers. It is populated once
// at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	breakers map[string]*Breaker
	def      *Breaker
}

// NewRegistry builds breakers for every named policy. A "default" policy
// is always present; missing entries fall back to DefaultPolicies().
func NewRegistry(policies map[string]Policy, onChange StateChangeFunc) *Registry {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if _, ok := policies[DefaultName]; !ok {
		policies[DefaultName] = DefaultPolicies()[DefaultName]
	}

	r := &Registry{breakers: make(map[string]*Breaker, len(policies))}
	for name, p := range policies {
		r.breakers[name] = New(name, p, onChange)
	}
	r.def = r.breakers[DefaultName]
	return r
}

// Breaker returns the breaker registered under name, or the default
// breaker when the name is unknown.
func (r *Registry) Breaker(name string) *Breaker {
	if b, ok := r.breakers[name]; ok {
		return b
	}
	return r.def
}

// Names returns the registered breaker names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}
