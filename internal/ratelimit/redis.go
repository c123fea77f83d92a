package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Окно открывается первым INCR; PEXPIRE ставится только на первый запрос,
// поэтому окно фиксированное, а не скользящее.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisLimiter хранит окна в Redis и разделяет лимиты между экземплярами сервиса.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLimiter создаёт лимитер поверх клиента Redis.
func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "marketplace:rate_limit"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

// Allow учитывает запрос клиента key в рамках политики p одним Lua-скриптом.
func (r *RedisLimiter) Allow(ctx context.Context, key string, p Policy) (Decision, error) {
	if p.Limit <= 0 || p.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	windowMs := p.Window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}

	redisKey := fmt.Sprintf("%s:%s:%s", r.prefix, p.Name, key)
	raw, err := fixedWindowScript.Run(ctx, r.client, []string{redisKey}, windowMs).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("run limiter script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Decision{}, fmt.Errorf("unexpected limiter response shape: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected limiter count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected limiter ttl type: %T", values[1])
	}

	if int(count) > p.Limit {
		return Decision{Allowed: false, RetryAfter: time.Duration(ttlMs) * time.Millisecond}, nil
	}
	return Decision{Allowed: true, Remaining: p.Limit - int(count)}, nil
}
