package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

const sessionPrefix = "session:"
const operatorSessionsPrefix = "operator:%s:sessions"

type SessionRepository interface {
	Create(ctx context.Context, session *models.OperatorSession) error
	GetByID(ctx context.Context, id string) (*models.OperatorSession, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForOperator(ctx context.Context, operatorID string) (int, error)
}

type RedisSessionRepository struct {
	client redis.Cmdable
}

func NewRedisSessionRepository(client redis.Cmdable) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *models.OperatorSession) error {
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	operatorKey := fmt.Sprintf(operatorSessionsPrefix, session.OperatorID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionPrefix+session.ID, jsonData, ttl)
		pipe.SAdd(ctx, operatorKey, session.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id string) (*models.OperatorSession, error) {
	jsonData, err := r.client.Get(ctx, sessionPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.OperatorSession
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionPrefix+id)
		pipe.SRem(ctx, fmt.Sprintf(operatorSessionsPrefix, session.OperatorID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteAllForOperator revokes every token of the operator and returns how many were live.
func (r *RedisSessionRepository) DeleteAllForOperator(ctx context.Context, operatorID string) (int, error) {
	operatorKey := fmt.Sprintf(operatorSessionsPrefix, operatorID)
	ids, err := r.client.SMembers(ctx, operatorKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list operator sessions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionPrefix + id
	}
	var deleted *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.Del(ctx, operatorKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete operator sessions: %w", err)
	}
	return int(deleted.Val()), nil
}
