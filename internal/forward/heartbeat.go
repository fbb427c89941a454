package forward

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/internal/queue"
	"github.com/HerbHall/netsentry/internal/stats"
	"github.com/HerbHall/netsentry/internal/version"
)

// Heartbeat periodically posts collector stats and queue depth. Failures
// are logged and swallowed; a missed heartbeat never affects delivery.
type Heartbeat struct {
	client   *Client
	registry *stats.Registry
	queue    *queue.Queue
	interval time.Duration
	logger   *zap.Logger
	started  time.Time
}

func NewHeartbeat(client *Client, registry *stats.Registry, q *queue.Queue, interval time.Duration, logger *zap.Logger) *Heartbeat {
	return &Heartbeat{
		client:   client,
		registry: registry,
		queue:    q,
		interval: interval,
		logger:   logger,
		started:  time.Now(),
	}
}

// Run posts heartbeats on the configured interval until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("heartbeat stopped")
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeat) beat(ctx context.Context) {
	snapshots := h.registry.Snapshots()
	system := map[string]any{
		"queue_depth":    h.queue.Depth(),
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"version":        version.Short(),
		"platform":       runtime.GOOS + "/" + runtime.GOARCH,
	}

	if err := h.client.Heartbeat(ctx, snapshots, system); err != nil {
		h.logger.Warn("heartbeat failed", zap.Error(err))
		return
	}
	h.logger.Debug("heartbeat sent", zap.Int("queue_depth", h.queue.Depth()))
}
