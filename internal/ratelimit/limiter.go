// Package ratelimit admits or rejects write actions per actor over a rolling time window.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"emojifeed/internal/middleware"
	"emojifeed/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether actorID may perform one more action now.
// A false result is final for the request; callers do not wait and retry.
type Limiter interface {
	TryAcquire(ctx context.Context, actorID string) (bool, error)
}

// Clock returns the current time. Tests replace it to step through windows.
type Clock func() time.Time

// slidingWindow keeps one sorted-set member per admitted action scored by its
// timestamp in milliseconds. Expired members are trimmed before counting.
// Rejected attempts are not recorded and do not extend the window.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter is a sliding-window limiter whose state lives in Redis,
// so every replica shares one budget per actor.
type RedisLimiter struct {
	rdb      redis.Scripter
	resource string
	limit    int
	window   time.Duration
	now      Clock
}

// NewRedisLimiter allows limit actions per actor in any trailing window.
// resource namespaces the keys, e.g. "posts" gives rl:posts:<actor>.
func NewRedisLimiter(rdb redis.Scripter, resource string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		rdb:      rdb,
		resource: resource,
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// WithClock replaces the limiter's time source.
func (l *RedisLimiter) WithClock(now Clock) *RedisLimiter {
	l.now = now
	return l
}

func (l *RedisLimiter) key(actorID string) string {
	return fmt.Sprintf("rl:%s:%s", l.resource, actorID)
}

func (l *RedisLimiter) TryAcquire(ctx context.Context, actorID string) (bool, error) {
	nowMs := l.now().UnixMilli()

	res, err := slidingWindow.Run(ctx, l.rdb,
		[]string{l.key(actorID)},
		nowMs,
		l.window.Milliseconds(),
		l.limit,
		fmt.Sprintf("%d-%s", nowMs, uuid.NewString()),
	).Int()
	if err != nil {
		observability.RateLimitDecisions.WithLabelValues("error").Inc()
		middleware.Logger.ErrorContext(ctx, "rate limit store failed",
			slog.String("resource", l.resource),
			slog.String("error", err.Error()),
		)
		return false, err
	}

	allowed := res == 1
	recordDecision(allowed)
	return allowed, nil
}

func recordDecision(allowed bool) {
	if allowed {
		observability.RateLimitDecisions.WithLabelValues("allowed").Inc()
	} else {
		observability.RateLimitDecisions.WithLabelValues("denied").Inc()
	}
}
