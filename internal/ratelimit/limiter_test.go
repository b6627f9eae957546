package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisLimiter_QuotaWithinWindow(t *testing.T) {
	_, client := setupTestRedis(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewRedisLimiter(client, 5, time.Minute, zap.NewNop())
	limiter.Now = clock.Now
	ctx := context.Background()

	// ACT: five calls spread over the window
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(ctx, "acct-1"), "call %d should be allowed", i+1)
		clock.Advance(5 * time.Second)
	}

	// ASSERT: sixth call inside 60s of the first is denied
	assert.False(t, limiter.Allow(ctx, "acct-1"))

	// Denied calls are not recorded
	count, err := client.ZCard(ctx, windowKey("acct-1")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	_, client := setupTestRedis(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewRedisLimiter(client, 5, time.Minute, zap.NewNop())
	limiter.Now = clock.Now
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow(ctx, "acct-1"))
	}
	require.False(t, limiter.Allow(ctx, "acct-1"))

	clock.Advance(61 * time.Second)

	assert.True(t, limiter.Allow(ctx, "acct-1"))
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, 2, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.True(t, limiter.Allow(ctx, "acct-1"))
	require.True(t, limiter.Allow(ctx, "acct-1"))
	require.False(t, limiter.Allow(ctx, "acct-1"))

	assert.True(t, limiter.Allow(ctx, "acct-2"))
}

func TestRedisLimiter_SetsTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, 5, time.Minute, zap.NewNop())

	require.True(t, limiter.Allow(context.Background(), "acct-1"))

	ttl := mr.TTL(windowKey("acct-1"))
	assert.Equal(t, time.Minute, ttl)
}

func TestRedisLimiter_FailsClosed(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewRedisLimiter(client, 5, time.Minute, zap.NewNop())
	mr.Close()

	assert.False(t, limiter.Allow(context.Background(), "acct-1"))
}

func TestMemoryLimiter_QuotaAndSlide(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewMemoryLimiter(5, time.Minute)
	limiter.Now = clock.Now
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow(ctx, "acct-1"))
	}
	assert.False(t, limiter.Allow(ctx, "acct-1"))
	assert.True(t, limiter.Allow(ctx, "acct-2"))

	clock.Advance(time.Minute)
	assert.True(t, limiter.Allow(ctx, "acct-1"))
}

func TestMemoryLimiter_ConcurrentCallersNeverExceedQuota(t *testing.T) {
	limiter := NewMemoryLimiter(5, time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow(ctx, "acct-1") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted)
}

// Helper functions

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
