package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock records requested sleeps instead of waiting
type fakeClock struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays = append(c.delays, d)
	return c.err
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second}

	assert.Equal(t, 1000*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 2000*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 4000*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 8000*time.Millisecond, p.Backoff(4))
}

func TestRetryPolicy_Do(t *testing.T) {
	boom := errors.New("boom")

	t.Run("always failing makes max attempts with exponential delays", func(t *testing.T) {
		clock := &fakeClock{}
		p := RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, Sleep: clock.Sleep}

		calls := 0
		attempts, err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
			calls++
			assert.Equal(t, calls, attempt)
			return boom
		})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 4, attempts)
		assert.Equal(t, 4, calls)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.delays)
	})

	t.Run("success on attempt k makes exactly k attempts", func(t *testing.T) {
		for k := 1; k <= 3; k++ {
			clock := &fakeClock{}
			p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: clock.Sleep}

			calls := 0
			attempts, err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
				calls++
				if attempt < k {
					return boom
				}
				return nil
			})

			require.NoError(t, err)
			assert.Equal(t, k, attempts)
			assert.Equal(t, k, calls)
			assert.Len(t, clock.delays, k-1)
		}
	})

	t.Run("returns the last error unchanged", func(t *testing.T) {
		clock := &fakeClock{}
		p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: clock.Sleep}
		errs := []error{errors.New("first"), errors.New("second"), errors.New("third")}

		_, err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
			return errs[attempt-1]
		})
		assert.Same(t, errs[2], err)
	})

	t.Run("stops when sleep is interrupted", func(t *testing.T) {
		clock := &fakeClock{err: context.Canceled}
		p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, Sleep: clock.Sleep}

		attempts, err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, attempts)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		attempts, err := RetryPolicy{}.Do(context.Background(), func(ctx context.Context, attempt int) error {
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
}
