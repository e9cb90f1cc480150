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

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newRedisLimiter(t *testing.T, clock *fakeClock) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLimiter(rdb, "posts", 3, time.Minute).WithClock(clock.Now), mr
}

// limiterCases runs the shared window behavior against every implementation.
func limiterCases(t *testing.T, build func(t *testing.T, clock *fakeClock) Limiter) {
	ctx := context.Background()

	t.Run("fourth call in window is denied", func(t *testing.T) {
		clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
		l := build(t, clock)

		for i := 0; i < 3; i++ {
			ok, err := l.TryAcquire(ctx, "user_a")
			require.NoError(t, err)
			assert.True(t, ok, "call %d", i+1)
			clock.Advance(time.Second)
		}

		ok, err := l.TryAcquire(ctx, "user_a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("window slides", func(t *testing.T) {
		clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
		l := build(t, clock)

		// t=0, t=20s, t=40s
		for i := 0; i < 3; i++ {
			ok, err := l.TryAcquire(ctx, "user_a")
			require.NoError(t, err)
			require.True(t, ok)
			clock.Advance(20 * time.Second)
		}

		// t=60s: the t=0 action has left the window.
		ok, err := l.TryAcquire(ctx, "user_a")
		require.NoError(t, err)
		assert.True(t, ok)

		// t=61s: t=20s, t=40s, t=60s are still inside.
		clock.Advance(time.Second)
		ok, err = l.TryAcquire(ctx, "user_a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("denials do not extend the window", func(t *testing.T) {
		clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
		l := build(t, clock)

		for i := 0; i < 3; i++ {
			_, _ = l.TryAcquire(ctx, "user_a")
		}
		for i := 0; i < 5; i++ {
			clock.Advance(10 * time.Second)
			ok, err := l.TryAcquire(ctx, "user_a")
			require.NoError(t, err)
			assert.False(t, ok)
		}

		clock.Advance(11 * time.Second)
		ok, err := l.TryAcquire(ctx, "user_a")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("actors are independent", func(t *testing.T) {
		clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
		l := build(t, clock)

		for i := 0; i < 3; i++ {
			_, _ = l.TryAcquire(ctx, "user_a")
		}
		ok, err := l.TryAcquire(ctx, "user_b")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestRedisLimiter(t *testing.T) {
	limiterCases(t, func(t *testing.T, clock *fakeClock) Limiter {
		l, _ := newRedisLimiter(t, clock)
		return l
	})
}

func TestMemoryLimiter(t *testing.T) {
	limiterCases(t, func(_ *testing.T, clock *fakeClock) Limiter {
		return NewMemoryLimiter(3, time.Minute).WithClock(clock.Now)
	})
}

func TestMemoryLimiter_DropsIdleActors(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(3, time.Minute).WithClock(clock.Now)

	for _, actor := range []string{"user_a", "user_b", "user_c"} {
		ok, err := l.TryAcquire(ctx, actor)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Len(t, l.hits, 3)

	clock.Advance(time.Minute + time.Second)
	ok, err := l.TryAcquire(ctx, "user_d")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Len(t, l.hits, 1)
	assert.Contains(t, l.hits, "user_d")
}

func TestRedisLimiter_KeyLayout(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l, mr := newRedisLimiter(t, clock)

	ok, err := l.TryAcquire(context.Background(), "user_a")
	require.NoError(t, err)
	require.True(t, ok)

	members, err := mr.ZMembers("rl:posts:user_a")
	require.NoError(t, err)
	assert.Len(t, members, 1)
	assert.True(t, mr.TTL("rl:posts:user_a") > 0)
}

func TestRedisLimiter_StoreUnavailable(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l, mr := newRedisLimiter(t, clock)
	mr.Close()

	ok, err := l.TryAcquire(context.Background(), "user_a")
	assert.Error(t, err)
	assert.False(t, ok)
}
