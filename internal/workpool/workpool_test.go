package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRunsFunction(t *testing.T) {
	p := New(1)

	ran := false
	err := p.Do(context.Background(), func() error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestDoReturnsFunctionError(t *testing.T) {
	p := New(1)
	want := errors.New("hmac mismatch")

	err := p.Do(context.Background(), func() error { return want })

	assert.ErrorIs(t, err, want)
}

func TestDoRespectsCancellation(t *testing.T) {
	p := New(1)

	// Fill every slot so the next caller has to wait.
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := int64(0); i < p.Size(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() error {
				<-release
				return nil
			})
		}()
	}

	// Give the holders time to acquire their slots.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, func() error {
		t.Error("function ran despite pool saturation and cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	wg.Wait()
}

func TestConcurrencyBounded(t *testing.T) {
	p := New(1)

	var active, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() error {
				n := active.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), p.Size())
}

func TestDefaultMultiplier(t *testing.T) {
	p := New(0)
	assert.Greater(t, p.Size(), int64(0))
}
