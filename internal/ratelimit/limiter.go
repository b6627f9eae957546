package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultQuota  = 5
	DefaultWindow = 60 * time.Second
)

// Limiter grants calls against a sliding window per key. Allow checks and
// records in one step and never blocks; a false result leaves no trace.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}
