package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/marketplace/internal/ratelimit"
)

// RateLimit ограничивает частоту запросов клиента по политике p.
// При ошибке хранилища лимитов запрос пропускается.
func RateLimit(limiter ratelimit.Limiter, p ratelimit.Policy, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			d, err := limiter.Allow(r.Context(), key, p)
			if err != nil {
				logger.Warn("rate limiter unavailable, request allowed",
					zap.String("policy", p.Name),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !d.Allowed {
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				logger.Debug("rate limited", zap.String("policy", p.Name), zap.String("client", key))
				http.Error(w, ratelimit.ErrRateLimited.Error(), http.StatusTooManyRequests)
				return
			}

			if p.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(p.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey возвращает сетевой адрес клиента без порта.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
