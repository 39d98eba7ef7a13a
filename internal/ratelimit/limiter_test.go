package ratelimit

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClock lets tests advance time manually.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(perMinute, perHour int) (*Limiter, *testClock) {
	clock := newTestClock()
	l := New(perMinute, perHour, slog.Default())
	l.now = clock.Now
	return l, clock
}

func TestLimiterExhaustion(t *testing.T) {
	t.Run("allows up to minute capacity then denies", func(t *testing.T) {
		l, _ := newTestLimiter(5, 1000)

		for i := 0; i < 5; i++ {
			d := l.Check("client-a", 1)
			require.True(t, d.Allowed, "request %d should be allowed", i+1)
		}

		d := l.Check("client-a", 1)
		assert.False(t, d.Allowed)
		assert.Greater(t, d.RetryAfter, time.Duration(0))
	})

	t.Run("keys are isolated", func(t *testing.T) {
		l, _ := newTestLimiter(2, 1000)

		require.True(t, l.Check("client-a", 1).Allowed)
		require.True(t, l.Check("client-a", 1).Allowed)
		require.False(t, l.Check("client-a", 1).Allowed)

		assert.True(t, l.Check("client-b", 1).Allowed)
	})

	t.Run("hour window denies even when minute window has capacity", func(t *testing.T) {
		l, clock := newTestLimiter(10, 15)

		// Drain the hour bucket across two minute windows.
		for i := 0; i < 10; i++ {
			require.True(t, l.Check("client-a", 1).Allowed)
		}
		clock.Advance(time.Minute)
		for i := 0; i < 5; i++ {
			require.True(t, l.Check("client-a", 1).Allowed)
		}

		d := l.Check("client-a", 1)
		assert.False(t, d.Allowed)
	})
}

func TestLimiterRefill(t *testing.T) {
	t.Run("tokens regenerate with elapsed time", func(t *testing.T) {
		l, clock := newTestLimiter(60, 3600)

		for i := 0; i < 60; i++ {
			require.True(t, l.Check("client-a", 1).Allowed)
		}
		require.False(t, l.Check("client-a", 1).Allowed)

		// 60/min refills one token per second.
		clock.Advance(time.Second)
		assert.True(t, l.Check("client-a", 1).Allowed)
	})

	t.Run("waiting retry_after makes a request admissible", func(t *testing.T) {
		l, clock := newTestLimiter(30, 3600)

		for i := 0; i < 30; i++ {
			require.True(t, l.Check("client-a", 1).Allowed)
		}

		d := l.Check("client-a", 1)
		require.False(t, d.Allowed)
		require.Greater(t, d.RetryAfter, time.Duration(0))

		clock.Advance(d.RetryAfter)
		assert.True(t, l.Check("client-a", 1).Allowed)
	})

	t.Run("tokens never exceed capacity", func(t *testing.T) {
		l, clock := newTestLimiter(10, 100)

		clock.Advance(24 * time.Hour)
		rem := l.GetRemaining("client-a")
		assert.Equal(t, 10, rem.Minute)
		assert.Equal(t, 100, rem.Hour)
	})
}

func TestLimiterAtomicDebit(t *testing.T) {
	t.Run("denied request leaves both buckets untouched", func(t *testing.T) {
		l, _ := newTestLimiter(10, 1000)

		// Minute bucket can cover cost 5 twice, no more.
		require.True(t, l.Check("client-a", 5).Allowed)
		before := l.GetRemaining("client-a")

		d := l.Check("client-a", 6)
		require.False(t, d.Allowed)

		after := l.GetRemaining("client-a")
		assert.Equal(t, before.Minute, after.Minute)
		assert.Equal(t, before.Hour, after.Hour)
	})

	t.Run("cost denied by hour bucket does not debit minute bucket", func(t *testing.T) {
		l, _ := newTestLimiter(100, 10)

		require.True(t, l.Check("client-a", 10).Allowed)

		d := l.Check("client-a", 1)
		require.False(t, d.Allowed)

		rem := l.GetRemaining("client-a")
		assert.Equal(t, 90, rem.Minute)
		assert.Equal(t, 0, rem.Hour)
	})
}

func TestLimiterRetryAfter(t *testing.T) {
	t.Run("retry_after reflects the slower constraint", func(t *testing.T) {
		l, _ := newTestLimiter(60, 60)

		for i := 0; i < 60; i++ {
			require.True(t, l.Check("client-a", 1).Allowed)
		}

		d := l.Check("client-a", 1)
		require.False(t, d.Allowed)

		// Minute bucket refills a token in 1s, hour bucket needs 60s.
		assert.InDelta(t, 60.0, d.RetryAfter.Seconds(), 0.01)
	})
}

func TestLimiterResetKey(t *testing.T) {
	l, _ := newTestLimiter(2, 1000)

	require.True(t, l.Check("client-a", 1).Allowed)
	require.True(t, l.Check("client-a", 1).Allowed)
	require.False(t, l.Check("client-a", 1).Allowed)

	l.ResetKey("client-a")
	assert.True(t, l.Check("client-a", 1).Allowed)
}

func TestLimiterDefaults(t *testing.T) {
	l := New(0, 0, nil)
	assert.Equal(t, defaultPerMinute, l.perMinute)
	assert.Equal(t, defaultPerHour, l.perHour)
}

func TestLimiterConcurrency(t *testing.T) {
	l, _ := newTestLimiter(100, 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", n%4)
			for j := 0; j < 50; j++ {
				if l.Check(key, 1).Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()

	// 4 keys, 100 tokens each, 250 attempts per key.
	assert.Equal(t, 400, allowed)
}
