package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/backoffice/pkg/httputil"
	"github.com/platinummonkey/backoffice/pkg/observability"
)

// DistributedRateLimiter implements rate limiting using Redis so limits
// are shared across instances.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed using a Redis counter window.
// On Redis errors the limiter fails open so an outage never blocks the
// service.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// DistributedRateLimit limits requests per principal via Redis, failing
// open when Redis is unavailable.
func DistributedRateLimit(limiter *DistributedRateLimiter, metrics *observability.Metrics, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := rateLimitKey(r)

			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.WithError(err).Warn("rate limiter unavailable, failing open")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if metrics != nil {
					metrics.RateLimitRejectionsTotal.Inc()
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.config.WindowDuration.Seconds())))
				httputil.WriteTooManyRequests(w, "rate limit exceeded")
				return
			}

			if remaining, err := limiter.Remaining(ctx, key); err == nil {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ttl is unexported plumbing for tests asserting window expiry.
func (rl *DistributedRateLimiter) ttl(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Result()
}
