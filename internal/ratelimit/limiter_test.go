package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loginPolicy = Policy{Name: "login", Limit: 5, Window: 60 * time.Second}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(clock.Now)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := l.Allow(ctx, "10.0.0.1", loginPolicy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i)
		assert.Equal(t, 5-i, d.Remaining)
		clock.Advance(time.Second)
	}

	d, err := l.Allow(ctx, "10.0.0.1", loginPolicy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 55*time.Second, d.RetryAfter)

	other, err := l.Allow(ctx, "10.0.0.2", loginPolicy)
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	checkout := Policy{Name: "checkout", Limit: 3, Window: time.Minute}
	d, err = l.Allow(ctx, "10.0.0.1", checkout)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "policies keep separate windows")

	clock.Advance(55 * time.Second)
	d, err = l.Allow(ctx, "10.0.0.1", loginPolicy)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window opens once the old one elapsed")
	assert.Equal(t, 4, d.Remaining)
}

func TestMemoryLimiter_ConcurrentCallersNeverExceedLimit(t *testing.T) {
	l := NewMemoryLimiter(nil)
	p := Policy{Name: "checkout", Limit: 10, Window: time.Hour}

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "client", p)
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowed.Load())
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(clock.Now)
	ctx := context.Background()

	_, _ = l.Allow(ctx, "a", loginPolicy)
	clock.Advance(30 * time.Second)
	_, _ = l.Allow(ctx, "b", loginPolicy)
	require.Equal(t, 2, l.Len())

	clock.Advance(31 * time.Second)
	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestMemoryLimiter_DisabledPolicy(t *testing.T) {
	l := NewMemoryLimiter(nil)
	for i := 0; i < 10; i++ {
		d, err := l.Allow(context.Background(), "k", Policy{Name: "off"})
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Equal(t, 0, l.Len())
}
