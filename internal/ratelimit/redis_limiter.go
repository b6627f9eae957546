package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const rateLimitKeyPrefix = "ratelimit:partner:"

// Trims the window, then admits and records the call only if under quota.
// KEYS[1] window zset; ARGV: now ms, cutoff ms, quota, member, window ms.
var slidingWindowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

type RedisLimiter struct {
	client redis.Scripter
	quota  int
	window time.Duration
	logger *zap.Logger

	Now func() time.Time
}

func NewRedisLimiter(client redis.Scripter, quota int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	if quota <= 0 {
		quota = DefaultQuota
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		client: client,
		quota:  quota,
		window: window,
		logger: logger,
		Now:    time.Now,
	}
}

// Allow fails closed: if Redis is unreachable the call is denied.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	now := l.Now().UnixMilli()
	cutoff := now - l.window.Milliseconds()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	allowed, err := slidingWindowScript.Run(ctx, l.client,
		[]string{windowKey(key)},
		strconv.FormatInt(now, 10),
		strconv.FormatInt(cutoff, 10),
		l.quota,
		member,
		l.window.Milliseconds(),
	).Int()
	if err != nil {
		l.logger.Error("rate limiter unavailable, denying call", zap.String("key", key), zap.Error(err))
		return false
	}

	if allowed == 0 {
		l.logger.Debug("rate limit exhausted", zap.String("key", key), zap.Int("quota", l.quota))
		return false
	}
	return true
}

// Helper: build Redis key for a rate window
func windowKey(key string) string {
	return rateLimitKeyPrefix + key
}
