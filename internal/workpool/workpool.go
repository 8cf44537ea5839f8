// Package workpool bounds the gateway's CPU-bound work (JSON decode,
// HMAC verification) so the HTTP serving goroutines are never starved
// by a burst of expensive requests.
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// DefaultMultiplier is applied to GOMAXPROCS when sizing the pool.
const DefaultMultiplier = 4

// Pool is a weighted-semaphore admission gate. Saturation shows up as
// added latency (callers queue on Acquire) and cancellation aborts
// waiting callers; work is never dropped.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// New creates a pool sized GOMAXPROCS * multiplier. A multiplier <= 0
// uses DefaultMultiplier.
func New(multiplier int) *Pool {
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	size := int64(runtime.GOMAXPROCS(0) * multiplier)
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(size), size: size}
}

// Size returns the pool capacity.
func (p *Pool) Size() int64 { return p.size }

// Do runs fn once a slot is available. It returns the context error if
// ctx is cancelled while waiting, otherwise fn's error.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
