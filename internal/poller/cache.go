package poller

import (
	"sync"

	"github.com/HerbHall/netsentry/pkg/models"
)

// MetricsCache holds the latest poll snapshot per device. Each device's poll
// loop is the only writer for its entry; readers (heartbeat, stats logging)
// get copies.
type MetricsCache struct {
	mu        sync.RWMutex
	snapshots map[string]models.MetricsSnapshot
}

func NewMetricsCache() *MetricsCache {
	return &MetricsCache{snapshots: make(map[string]models.MetricsSnapshot)}
}

// Store replaces the snapshot for one device.
func (c *MetricsCache) Store(snap models.MetricsSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snap.Device] = snap
}

// Snapshot returns a deep copy of one device's latest snapshot.
func (c *MetricsCache) Snapshot(device string) (models.MetricsSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.snapshots[device]
	if !ok {
		return models.MetricsSnapshot{}, false
	}
	return copySnapshot(snap), true
}

// All returns deep copies of every device's latest snapshot.
func (c *MetricsCache) All() map[string]models.MetricsSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.MetricsSnapshot, len(c.snapshots))
	for name, snap := range c.snapshots {
		out[name] = copySnapshot(snap)
	}
	return out
}

func copySnapshot(snap models.MetricsSnapshot) models.MetricsSnapshot {
	metrics := make(map[string]any, len(snap.Metrics))
	for k, v := range snap.Metrics {
		metrics[k] = v
	}
	snap.Metrics = metrics
	return snap
}
