package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/response"
)

// Counter increments a windowed counter and returns the new value.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisCounter is a Counter shared by every server instance.
type RedisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter creates a RedisCounter.
func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// Incr bumps key and sets its expiry in one round trip.
func (r *RedisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter is a fixed-window limiter keyed by action and caller.
type RateLimiter struct {
	counter  Counter
	rate     int           // Requests per window
	interval time.Duration // Window length
	now      func() time.Time
	log      zerolog.Logger
}

// NewRateLimiter creates a RateLimiter (e.g., 30 requests per minute).
func NewRateLimiter(counter Counter, rate int, interval time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		counter:  counter,
		rate:     rate,
		interval: interval,
		now:      time.Now,
		log:      log.With().Str("component", "rate_limiter").Logger(),
	}
}

// Middleware returns a Gin middleware that limits action per token subject,
// or per client IP for anonymous callers. Counter failures let the request
// through.
func (rl *RateLimiter) Middleware(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		subject := GetSubject(c)
		if subject == "" {
			subject = c.ClientIP()
		}

		window := rl.now().UnixNano() / int64(rl.interval)
		key := config.CacheKey.RateLimitKey(action, subject, window)

		n, err := rl.counter.Incr(c.Request.Context(), key, rl.interval)
		if err != nil {
			rl.log.Error().Err(err).Str("key", key).Msg("Rate limit counter unavailable")
			c.Next()
			return
		}

		remaining := rl.rate - int(n)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if int(n) > rl.rate {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}

		c.Next()
	}
}
