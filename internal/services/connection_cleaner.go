package services

import (
	"context"
	"time"

	"github.com/prudhvinik1/webradegast/internal/metrics"
	"go.uber.org/zap"
)

// ConnectionCleaner periodically compacts the connection tracker and
// refreshes the connection gauges.
type ConnectionCleaner struct {
	tracker  *ConnectionTracker
	metrics  *metrics.PresenceMetrics
	interval time.Duration
	logger   *zap.Logger
}

func NewConnectionCleaner(tracker *ConnectionTracker, m *metrics.PresenceMetrics, interval time.Duration, logger *zap.Logger) *ConnectionCleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ConnectionCleaner{tracker: tracker, metrics: m, interval: interval, logger: logger}
}

func (c *ConnectionCleaner) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("connection cleaner started", zap.Duration("interval", c.interval))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("connection cleaner stopped")
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep runs one compaction pass and returns the number of removed entries.
func (c *ConnectionCleaner) Sweep() int {
	removed := c.tracker.CleanupStaleConnections()
	if removed > 0 {
		c.metrics.StaleEntries.Add(float64(removed))
	}
	c.RefreshGauges()
	return removed
}

func (c *ConnectionCleaner) RefreshGauges() {
	accounts, connections := c.tracker.Stats()
	c.metrics.WatchedAccounts.Set(float64(accounts))
	c.metrics.LiveConnections.Set(float64(connections))
}
