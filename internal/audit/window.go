package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

const (
	auditKeyPrefix      = "audit:"
	riskNotifiedPrefix  = "audit:risk-notified:"
	RetentionWindow     = 24 * time.Hour
	anonymousActorLabel = "anonymous"
)

// Window is the short-lived per-actor event store used for scoring.
type Window interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	Events(ctx context.Context, actor string, since time.Time) ([]models.AuditEvent, error)
	// MarkNotified returns true only for the first call per actor within ttl.
	MarkNotified(ctx context.Context, actor string, ttl time.Duration) (bool, error)
}

// RedisWindow keeps one list per actor per UTC day, each expiring after RetentionWindow.
type RedisWindow struct {
	client redis.Cmdable
}

func NewRedisWindow(client redis.Cmdable) *RedisWindow {
	return &RedisWindow{client: client}
}

func (w *RedisWindow) Append(ctx context.Context, event *models.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	key := bucketKey(actorLabel(event.ActorID), event.OccurredAt)
	_, err = w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, RetentionWindow)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (w *RedisWindow) Events(ctx context.Context, actor string, since time.Time) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	for _, key := range []string{bucketKey(actor, since), bucketKey(actor, since.Add(RetentionWindow))} {
		raw, err := w.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read audit window: %w", err)
		}
		for _, item := range raw {
			var event models.AuditEvent
			if err := json.Unmarshal([]byte(item), &event); err != nil {
				continue
			}
			if event.OccurredAt.Before(since) {
				continue
			}
			events = append(events, event)
		}
	}
	return events, nil
}

func (w *RedisWindow) MarkNotified(ctx context.Context, actor string, ttl time.Duration) (bool, error) {
	ok, err := w.client.SetNX(ctx, riskNotifiedPrefix+actor, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark risk notification: %w", err)
	}
	return ok, nil
}

// Helper: build Redis key for an actor-day bucket
func bucketKey(actor string, at time.Time) string {
	return fmt.Sprintf("%s%s:%s", auditKeyPrefix, actor, at.UTC().Format("20060102"))
}

func actorLabel(actor *string) string {
	if actor == nil || *actor == "" {
		return anonymousActorLabel
	}
	return *actor
}
