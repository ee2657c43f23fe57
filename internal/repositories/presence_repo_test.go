package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceRepository_SetAndGet(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisPresenceRepository(client)
	ctx := context.Background()
	defer cleanupKeys(t, client, "presence:*")

	accountID := uuid.New()
	change := models.StatusChange{
		AccountID:  accountID,
		Status:     models.StatusBusy,
		StatusText: models.StatusBusy.Text(),
		ChangedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, repo.SetPresence(ctx, change, time.Minute))

	got, err := repo.GetPresence(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBusy, got.Status)
	assert.True(t, change.ChangedAt.Equal(got.ChangedAt))
}

func TestPresenceRepository_MissingIsOffline(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisPresenceRepository(client)

	got, err := repo.GetPresence(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, got.Status)
}

func TestPresenceRepository_Bulk(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisPresenceRepository(client)
	ctx := context.Background()
	defer cleanupKeys(t, client, "presence:*")

	away, missing := uuid.New(), uuid.New()
	require.NoError(t, repo.SetPresence(ctx, models.StatusChange{AccountID: away, Status: models.StatusAway}, time.Minute))

	got, err := repo.GetBulkPresence(ctx, []uuid.UUID{away, missing})

	require.NoError(t, err)
	assert.Equal(t, models.StatusAway, got[away].Status)
	assert.Equal(t, models.StatusOffline, got[missing].Status)

	require.NoError(t, repo.DeletePresence(ctx, away))
	single, err := repo.GetPresence(ctx, away)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, single.Status)
}

func TestPresenceRepository_BulkEmpty(t *testing.T) {
	repo := NewRedisPresenceRepository(nil)

	got, err := repo.GetBulkPresence(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, got)
}
