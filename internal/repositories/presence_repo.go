package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/redis/go-redis/v9"
)

const presenceKeyPrefix = "presence:"

// RedisPresenceRepository stores the last displayed status of each account
// so a restarted process, or another instance, can read it back.
type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func (r *RedisPresenceRepository) SetPresence(ctx context.Context, change models.StatusChange, ttl time.Duration) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	if err := r.client.Set(ctx, presenceKey(change.AccountID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

// GetPresence returns an offline record when nothing is stored.
func (r *RedisPresenceRepository) GetPresence(ctx context.Context, accountID uuid.UUID) (*models.StatusChange, error) {
	data, err := r.client.Get(ctx, presenceKey(accountID)).Result()
	if err == redis.Nil {
		return offlinePresence(accountID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var change models.StatusChange
	if err := json.Unmarshal([]byte(data), &change); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return &change, nil
}

func (r *RedisPresenceRepository) DeletePresence(ctx context.Context, accountID uuid.UUID) error {
	if err := r.client.Del(ctx, presenceKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence: %w", err)
	}
	return nil
}

// GetBulkPresence reads several accounts in one round trip.
func (r *RedisPresenceRepository) GetBulkPresence(ctx context.Context, accountIDs []uuid.UUID) (map[uuid.UUID]models.StatusChange, error) {
	out := make(map[uuid.UUID]models.StatusChange, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(accountIDs))
	for i, id := range accountIDs {
		keys[i] = presenceKey(id)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	for i, result := range results {
		accountID := accountIDs[i]
		data, ok := result.(string)
		if !ok {
			out[accountID] = *offlinePresence(accountID)
			continue
		}

		var change models.StatusChange
		if err := json.Unmarshal([]byte(data), &change); err != nil {
			out[accountID] = *offlinePresence(accountID)
			continue
		}
		out[accountID] = change
	}
	return out, nil
}

func offlinePresence(accountID uuid.UUID) *models.StatusChange {
	return &models.StatusChange{
		AccountID:  accountID,
		Status:     models.StatusOffline,
		StatusText: models.StatusOffline.Text(),
	}
}

func presenceKey(accountID uuid.UUID) string {
	return presenceKeyPrefix + accountID.String()
}
