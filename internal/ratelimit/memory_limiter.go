package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-process Limiter. Each key has its own lock.
type MemoryLimiter struct {
	quota   int
	window  time.Duration
	buckets sync.Map // string -> *bucket

	Now func() time.Time
}

type bucket struct {
	mu    sync.Mutex
	calls []time.Time
}

func NewMemoryLimiter(quota int, window time.Duration) *MemoryLimiter {
	if quota <= 0 {
		quota = DefaultQuota
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryLimiter{quota: quota, window: window, Now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	v, _ := l.buckets.LoadOrStore(key, &bucket{})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.Now()
	cutoff := now.Add(-l.window)
	kept := b.calls[:0]
	for _, at := range b.calls {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	b.calls = kept

	if len(b.calls) >= l.quota {
		return false
	}
	b.calls = append(b.calls, now)
	return true
}
