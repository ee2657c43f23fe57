package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu      sync.Mutex
	changes []models.StatusChange
}

func (r *recordingSink) HandleStatusChange(ctx context.Context, change models.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func TestStatusDispatcher_FansOutDespiteFailingSink(t *testing.T) {
	source := make(chan models.StatusChange, 4)
	dispatcher := NewStatusDispatcher(source, zap.NewNop())
	recorder := &recordingSink{}
	dispatcher.Register("broken", StatusSinkFunc(func(ctx context.Context, change models.StatusChange) error {
		return errors.New("redis down")
	}))
	dispatcher.Register("recorder", recorder)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(done)
	}()

	source <- models.StatusChange{AccountID: uuid.New(), Status: models.StatusAway}
	source <- models.StatusChange{AccountID: uuid.New(), Status: models.StatusBusy}

	require.Eventually(t, func() bool { return recorder.len() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestPresenceStoreSink(t *testing.T) {
	repo := newMemoryPresenceRepo()
	sink := PresenceStoreSink(repo, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, sink.HandleStatusChange(ctx, models.StatusChange{AccountID: id, Status: models.StatusBusy}))
	got, _ := repo.GetPresence(ctx, id)
	assert.Equal(t, models.StatusBusy, got.Status)

	require.NoError(t, sink.HandleStatusChange(ctx, models.StatusChange{AccountID: id, Status: models.StatusOffline}))
	assert.Empty(t, repo.entries)
}

func TestAccountStatusSink(t *testing.T) {
	repo := newMemoryAccountRepo()
	sink := AccountStatusSink(repo)
	ctx := context.Background()
	account := &models.Account{OperatorID: uuid.New(), FirstName: "Alice"}
	require.NoError(t, repo.Create(ctx, account))

	require.NoError(t, sink.HandleStatusChange(ctx, models.StatusChange{AccountID: account.ID, Status: models.StatusAway}))
	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAway, got.Status)

	assert.NoError(t, sink.HandleStatusChange(ctx, models.StatusChange{AccountID: uuid.New(), Status: models.StatusAway}),
		"deleted accounts are ignored")
}

// End to end: presence transitions flow through the queue into a sink.
func TestStatusDispatcher_DrainsPresenceQueue(t *testing.T) {
	f := newPresenceFixture(t)
	dispatcher := NewStatusDispatcher(f.svc.Changes(), zap.NewNop())
	recorder := &recordingSink{}
	dispatcher.Register("recorder", recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	a := uuid.New()
	f.svc.Track(ctx, uuid.New(), a)
	f.svc.SetAway(ctx, a, true)

	require.Eventually(t, func() bool { return recorder.len() == 2 }, time.Second, 10*time.Millisecond)
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, models.StatusOnline, recorder.changes[0].Status)
	assert.Equal(t, models.StatusAway, recorder.changes[1].Status)
}

func TestStatusDispatcher_FlushesOnStop(t *testing.T) {
	source := make(chan models.StatusChange, 4)
	dispatcher := NewStatusDispatcher(source, zap.NewNop())
	recorder := &recordingSink{}
	dispatcher.Register("recorder", recorder)

	source <- models.StatusChange{AccountID: uuid.New(), Status: models.StatusOffline}
	source <- models.StatusChange{AccountID: uuid.New(), Status: models.StatusOffline}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Run(ctx)

	assert.Equal(t, 2, recorder.len())
}
