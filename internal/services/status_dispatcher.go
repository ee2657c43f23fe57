package services

import (
	"context"
	"errors"
	"time"

	"github.com/prudhvinik1/webradegast/internal/models"
	"github.com/prudhvinik1/webradegast/internal/repositories"
	"go.uber.org/zap"
)

const sinkTimeout = 5 * time.Second

// StatusSink receives every presence change drained from the presence queue.
type StatusSink interface {
	HandleStatusChange(ctx context.Context, change models.StatusChange) error
}

type StatusSinkFunc func(ctx context.Context, change models.StatusChange) error

func (f StatusSinkFunc) HandleStatusChange(ctx context.Context, change models.StatusChange) error {
	return f(ctx, change)
}

// StatusDispatcher fans presence changes out to the transport and stores.
type StatusDispatcher struct {
	source <-chan models.StatusChange
	sinks  map[string]StatusSink
	order  []string
	logger *zap.Logger
	// refill is called whenever the queue runs empty and reports how many
	// held-back changes it queued.
	refill func() int
}

func NewStatusDispatcher(source <-chan models.StatusChange, logger *zap.Logger) *StatusDispatcher {
	return &StatusDispatcher{
		source: source,
		sinks:  make(map[string]StatusSink),
		logger: logger,
	}
}

// Register adds a named sink. Sinks run in registration order.
func (d *StatusDispatcher) Register(name string, sink StatusSink) {
	if _, ok := d.sinks[name]; !ok {
		d.order = append(d.order, name)
	}
	d.sinks[name] = sink
}

// OnDrained sets the hook that refills the queue once it runs empty, such as
// PresenceService.FlushPending.
func (d *StatusDispatcher) OnDrained(refill func() int) {
	d.refill = refill
}

// Run drains the queue until ctx is done. Changes still queued at that point
// are delivered before Run returns.
func (d *StatusDispatcher) Run(ctx context.Context) {
	d.logger.Info("status dispatcher started", zap.Strings("sinks", d.order))
	for {
		select {
		case <-ctx.Done():
			flushed := d.flush()
			d.logger.Info("status dispatcher stopped", zap.Int("flushed", flushed))
			return
		case change := <-d.source:
			d.dispatch(ctx, change)
			if len(d.source) == 0 {
				d.refilled()
			}
		}
	}
}

func (d *StatusDispatcher) refilled() int {
	if d.refill == nil {
		return 0
	}
	return d.refill()
}

func (d *StatusDispatcher) flush() int {
	n := 0
	for {
		select {
		case change := <-d.source:
			d.dispatch(context.Background(), change)
			n++
		default:
			if d.refilled() == 0 {
				return n
			}
		}
	}
}

func (d *StatusDispatcher) dispatch(ctx context.Context, change models.StatusChange) {
	for _, name := range d.order {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := d.sinks[name].HandleStatusChange(sinkCtx, change)
		cancel()
		if err != nil {
			d.logger.Error("status sink failed",
				zap.String("sink", name),
				zap.String("account_id", change.AccountID.String()),
				zap.String("status", string(change.Status)),
				zap.Error(err))
		}
	}
}

// PresenceStoreSink keeps the Redis presence snapshot current. Offline
// accounts are removed rather than stored.
func PresenceStoreSink(repo repositories.PresenceRepository, ttl time.Duration) StatusSink {
	return StatusSinkFunc(func(ctx context.Context, change models.StatusChange) error {
		if change.Status == models.StatusOffline {
			return repo.DeletePresence(ctx, change.AccountID)
		}
		return repo.SetPresence(ctx, change, ttl)
	})
}

// AccountStatusSink mirrors the status into the accounts table. Accounts
// deleted in the meantime are ignored.
func AccountStatusSink(repo repositories.AccountRepository) StatusSink {
	return StatusSinkFunc(func(ctx context.Context, change models.StatusChange) error {
		err := repo.UpdateStatus(ctx, change.AccountID, change.Status)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return err
	})
}
