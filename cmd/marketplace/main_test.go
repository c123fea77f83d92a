package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/config"
	"github.com/mmeshcher/marketplace/internal/ratelimit"
)

var testPolicy = ratelimit.Policy{Name: "login", Limit: 5, Window: time.Minute}

func TestOpenLimiter_RedisClientIsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	limiter, sweeper, closeLimiter, err := openLimiter(ctx, &config.Config{RedisAddress: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, sweeper)

	d, err := limiter.Allow(ctx, "127.0.0.1", testPolicy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	require.NoError(t, closeLimiter())

	_, err = limiter.Allow(ctx, "127.0.0.1", testPolicy)
	assert.Error(t, err, "limiter must not work after close")
}

func TestOpenLimiter_RedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, _, _, err = openLimiter(context.Background(), &config.Config{RedisAddress: addr}, zap.NewNop())
	assert.Error(t, err)
}

func TestOpenLimiter_MemoryWithSweeper(t *testing.T) {
	limiter, sweeper, closeLimiter, err := openLimiter(context.Background(),
		&config.Config{RateLimitSweep: "@every 1m"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, sweeper)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, limiter)
	assert.NoError(t, closeLimiter())

	_, _, _, err = openLimiter(context.Background(), &config.Config{RateLimitSweep: "not a schedule"}, zap.NewNop())
	assert.Error(t, err)
}
