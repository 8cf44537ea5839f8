// Package breaker implements named circuit breakers with count-based
// sliding windows, failure-rate and slow-call-rate thresholds, and
// half-open probing.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the breaker state machine position.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// OpenError is returned when a call is rejected because the breaker is
// open or all half-open probe slots are taken. It carries the policy
// name so the error mapper can distinguish breakers.
type OpenError struct {
	Name string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// Policy is the tuple of thresholds and windows governing a breaker.
// Rates are percentages in [0,100].
type Policy struct {
	// FailureRateThreshold opens the breaker when the failure rate over
	// the window reaches it (after MinCalls).
	FailureRateThreshold float64

	// SlowRateThreshold opens the breaker when the share of calls slower
	// than SlowCallDuration reaches it (after MinCalls).
	SlowRateThreshold float64

	// SlowCallDuration is the latency above which a call counts as slow.
	SlowCallDuration time.Duration

	// OpenStateWait is how long the breaker stays open before allowing
	// half-open probes.
	OpenStateWait time.Duration

	// WindowSize is the number of most recent calls considered.
	WindowSize int

	// MinCalls is the minimum number of recorded calls before rates are
	// evaluated.
	MinCalls int

	// HalfOpenProbes is the number of trial calls permitted in half-open
	// state. All must succeed to close the breaker.
	HalfOpenProbes int
}

type outcome struct {
	failure bool
	slow    bool
}

// StateChangeFunc observes breaker transitions, for logging and metrics.
type StateChangeFunc func(name string, from, to State)

// Breaker is a single named circuit breaker. Safe for concurrent use.
type Breaker struct {
	name     string
	policy   Policy
	onChange StateChangeFunc
	now      func() time.Time

	mu       sync.Mutex
	state    State
	window   []outcome
	next     int
	filled   int
	openedAt time.Time

	// half-open bookkeeping
	probesInFlight int
	probesDone     int
}

// New creates a breaker with the given name and policy. onChange may be
// nil.
func New(name string, policy Policy, onChange StateChangeFunc) *Breaker {
	if policy.WindowSize <= 0 {
		policy.WindowSize = 10
	}
	if policy.MinCalls <= 0 {
		policy.MinCalls = 1
	}
	if policy.HalfOpenProbes <= 0 {
		policy.HalfOpenProbes = 1
	}
	return &Breaker{
		name:     name,
		policy:   policy,
		onChange: onChange,
		now:      time.Now,
		window:   make([]outcome, policy.WindowSize),
		state:    StateClosed,
	}
}

// Name returns the breaker's policy name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, promoting OPEN to HALF_OPEN when the
// open-state wait has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.policy.OpenStateWait {
		b.transition(StateHalfOpen)
	}
	return b.state
}

// Do runs fn under the breaker. It returns *OpenError without invoking
// fn when the breaker rejects the call; otherwise it records the
// outcome (error or slow call = failure signals) and returns fn's error
// unchanged.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}

	start := b.now()
	callErr := fn(ctx)
	elapsed := b.now().Sub(start)

	b.record(probe, callErr != nil, elapsed >= b.policy.SlowCallDuration && b.policy.SlowCallDuration > 0)
	return callErr
}

// acquire decides whether the call may proceed. The returned bool marks
// the call as a half-open probe.
func (b *Breaker) acquire() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.policy.OpenStateWait {
			return false, &OpenError{Name: b.name}
		}
		b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.probesInFlight+b.probesDone >= b.policy.HalfOpenProbes {
			return false, &OpenError{Name: b.name}
		}
		b.probesInFlight++
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(probe, failure, slow bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probesInFlight--
		if failure || slow {
			b.transition(StateOpen)
			return
		}
		b.probesDone++
		if b.probesDone >= b.policy.HalfOpenProbes {
			b.transition(StateClosed)
		}
		return
	}

	if b.state != StateClosed {
		// A non-probe call that raced a transition; ignore its outcome.
		return
	}

	b.window[b.next] = outcome{failure: failure, slow: slow}
	b.next = (b.next + 1) % len(b.window)
	if b.filled < len(b.window) {
		b.filled++
	}

	if b.filled < b.policy.MinCalls {
		return
	}

	var failures, slows int
	for i := 0; i < b.filled; i++ {
		if b.window[i].failure {
			failures++
		}
		if b.window[i].slow {
			slows++
		}
	}
	failureRate := float64(failures) * 100 / float64(b.filled)
	slowRate := float64(slows) * 100 / float64(b.filled)

	if failureRate >= b.policy.FailureRateThreshold || slowRate >= b.policy.SlowRateThreshold {
		b.transition(StateOpen)
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateOpen:
		b.openedAt = b.now()
		b.probesInFlight = 0
		b.probesDone = 0
	case StateHalfOpen:
		b.probesInFlight = 0
		b.probesDone = 0
	case StateClosed:
		for i := range b.window {
			b.window[i] = outcome{}
		}
		b.next = 0
		b.filled = 0
	}

	if b.onChange != nil {
		// Callback runs under the lock; keep observers cheap.
		b.onChange(b.name, from, to)
	}
}
