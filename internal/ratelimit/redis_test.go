package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, "test:")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := l.Allow(ctx, "10.0.0.1", loginPolicy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "attempt %d", i)
	}

	d, err := l.Allow(ctx, "10.0.0.1", loginPolicy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.True(t, mr.Exists("test:login:10.0.0.1"))

	mr.FastForward(61 * time.Second)

	d, err = l.Allow(ctx, "10.0.0.1", loginPolicy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 4, d.Remaining)
}

func TestRedisLimiter_BackendError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()

	_, err = NewRedisLimiter(client, "").Allow(context.Background(), "k", loginPolicy)
	assert.Error(t, err)
}
