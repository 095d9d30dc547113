// ratelimit_redis.go provides a Redis-backed rate limiter for multi-replica
// deployments. The in-process token bucket in ratelimit.go counts per replica,
// so behind a load balancer the effective limit multiplies by the replica
// count; pointing security.rate_limiting.redis_url at a shared Redis makes the
// configured limit hold globally.
package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter enforces limits through redis_rate's sliding-window
// GCRA implementation, sharing counters across all portal replicas.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	client  *redis.Client
}

// NewRedisRateLimiter connects to the given Redis URL and returns a limiter
// enforcing the same per-minute budget as the in-process bucket.
func NewRedisRateLimiter(redisURL string, cfg RateLimitConfig) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Period: time.Minute,
			Burst:  cfg.BurstSize,
		},
		client: client,
	}, nil
}

// Close releases the underlying Redis connection pool.
func (rl *RedisRateLimiter) Close() error {
	return rl.client.Close()
}

// RedisRateLimitMiddleware creates a Gin middleware backed by the shared
// Redis limiter. Redis failures fail open: an unreachable Redis degrades
// rate limiting, it must never take the API down with it.
func RedisRateLimitMiddleware(limiter *RedisRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		res, err := limiter.limiter.Allow(c.Request.Context(), key, limiter.limit)
		if err != nil {
			slog.Warn("redis rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
