package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every replica through
// Redis. Keys look like "<prefix>:<identity>:<window start unix>" and expire
// with the window. Redis failures fail open.
type RedisLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	keyFn  keyFunc
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per window per identity.
func NewRedisLimiter(client redis.Cmdable, limit int, window time.Duration, keyFn keyFunc) *RedisLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit",
		keyFn:  keyFn,
		now:    time.Now,
	}
}

// Allow counts one request for id and reports whether it fits in the
// current window, with the remaining budget and the window reset time.
func (rl *RedisLimiter) Allow(ctx context.Context, id string) (bool, int, time.Time, error) {
	windowStart := rl.now().Truncate(rl.window)
	key := fmt.Sprintf("%s:%s:%d", rl.prefix, id, windowStart.Unix())

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := int(incr.Val())
	remaining := rl.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.limit, remaining, windowStart.Add(rl.window), nil
}

// Handler enforces the limit and sets X-RateLimit-* headers. Replays skip it.
func (rl *RedisLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		allowed, remaining, reset, err := rl.Allow(c.Request.Context(), rl.keyFn(c))
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("rate limit check failed; allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !allowed {
			abortRateLimited(c, int(time.Until(reset).Seconds()+0.5))
			return
		}
		c.Next()
	}
}
