package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionPrefix = "session:"
const operatorSessionsPrefix = "operator:%s:sessions"

type RedisSessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisSessionRepository(client *redis.Client, logger *zap.Logger) *RedisSessionRepository {
	return &RedisSessionRepository{client: client, logger: logger}
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), jsonData, ttl)
	pipe.SAdd(ctx, fmt.Sprintf(operatorSessionsPrefix, session.OperatorID), session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	jsonData, err := r.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ListByOperatorID returns live sessions and lazily prunes expired ids from
// the operator index.
func (r *RedisSessionRepository) ListByOperatorID(ctx context.Context, operatorID uuid.UUID) ([]*models.Session, error) {
	operatorKey := fmt.Sprintf(operatorSessionsPrefix, operatorID)
	sessionIDs, err := r.client.SMembers(ctx, operatorKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get operator sessions: %w", err)
	}

	var sessions []*models.Session
	var expiredIDs []interface{}

	for _, id := range sessionIDs {
		session, err := r.GetByID(ctx, id)
		if err == ErrNotFound {
			expiredIDs = append(expiredIDs, id)
			continue
		}
		if err != nil {
			r.logger.Warn("skipping unreadable session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		sessions = append(sessions, session)
	}

	if len(expiredIDs) > 0 {
		if err := r.client.SRem(ctx, operatorKey, expiredIDs...).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove expired sessions: %w", err)
		}
	}
	return sessions, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, fmt.Sprintf(operatorSessionsPrefix, session.OperatorID), id)
	pipe.Del(ctx, sessionKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) DeleteAllForOperator(ctx context.Context, operatorID uuid.UUID) error {
	operatorKey := fmt.Sprintf(operatorSessionsPrefix, operatorID)
	sessionIDs, err := r.client.SMembers(ctx, operatorKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get operator sessions: %w", err)
	}
	for _, id := range sessionIDs {
		if err := r.Delete(ctx, id); err != nil {
			r.logger.Warn("failed to delete session", zap.String("session_id", id), zap.Error(err))
			continue
		}
	}
	return r.client.Del(ctx, operatorKey).Err()
}

func sessionKey(id string) string {
	return sessionPrefix + id
}
