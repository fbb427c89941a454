// Package poller runs one independent SNMP polling loop per enabled device.
// Each cycle issues one GET per profile OID (per-OID error isolation),
// caches a metrics snapshot, evaluates anomaly rules, and enqueues the
// resulting events. An unreachable device yields a single error event and
// never stalls other devices' loops.
package poller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/internal/config"
	"github.com/HerbHall/netsentry/internal/profile"
	"github.com/HerbHall/netsentry/internal/queue"
	"github.com/HerbHall/netsentry/internal/stats"
	"github.com/HerbHall/netsentry/pkg/models"
)

// Poller owns the device poll loops and the shared metrics cache.
type Poller struct {
	defaults   config.SNMPDefaults
	thresholds profile.Thresholds
	factory    SessionFactory
	queue      *queue.Queue
	stats      *stats.Collector
	cache      *MetricsCache
	logger     *zap.Logger
}

// New creates a poller. Pass NewSNMPSession as factory in production.
func New(defaults config.SNMPDefaults, thresholds profile.Thresholds, factory SessionFactory, q *queue.Queue, st *stats.Collector, logger *zap.Logger) *Poller {
	return &Poller{
		defaults:   defaults,
		thresholds: thresholds,
		factory:    factory,
		queue:      q,
		stats:      st,
		cache:      NewMetricsCache(),
		logger:     logger,
	}
}

// Cache exposes the metrics cache for the heartbeat/stats readers.
func (p *Poller) Cache() *MetricsCache {
	return p.cache
}

// Run starts one loop per device and blocks until ctx is cancelled and all
// loops have drained.
func (p *Poller) Run(ctx context.Context, devices []config.DeviceConfig) {
	var wg sync.WaitGroup
	for _, dev := range devices {
		wg.Add(1)
		go func(dev config.DeviceConfig) {
			defer wg.Done()
			p.deviceLoop(ctx, dev)
		}(dev)
	}
	wg.Wait()
}

// deviceLoop polls one device at its configured interval. The first cycle
// runs immediately.
func (p *Poller) deviceLoop(ctx context.Context, dev config.DeviceConfig) {
	p.logger.Info("poll loop started",
		zap.String("device", dev.Name),
		zap.String("ip", dev.IP),
		zap.String("type", string(dev.Type)),
		zap.Duration("interval", dev.PollInterval),
	)

	ticker := time.NewTicker(dev.PollInterval)
	defer ticker.Stop()

	p.pollDevice(ctx, dev)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poll loop stopped", zap.String("device", dev.Name))
			return
		case <-ticker.C:
			p.pollDevice(ctx, dev)
		}
	}
}

// pollDevice runs one complete cycle for one device.
func (p *Poller) pollDevice(ctx context.Context, dev config.DeviceConfig) {
	prof := profile.ForType(dev.Type)
	oids := profile.MergeCustomOIDs(prof.MonitoringOIDs(), dev.CustomOIDs)

	started := time.Now()
	p.stats.Received()

	sess, err := p.factory(dev, p.defaults)
	if err != nil {
		p.stats.Error()
		if isAuthError(err) {
			// Credential failure: skip this cycle, no event.
			p.logger.Warn("snmp authentication failed, skipping cycle",
				zap.String("device", dev.Name), zap.Error(err))
			return
		}
		p.enqueueUnreachable(ctx, dev, err)
		return
	}
	defer sess.Close()

	metrics := make(map[string]any)
	var lastErr error
	failed := 0
	for name, oid := range oids {
		if ctx.Err() != nil {
			return
		}
		raw, getErr := sess.Get(oid)
		if getErr != nil {
			failed++
			lastErr = getErr
			p.logger.Debug("snmp get failed",
				zap.String("device", dev.Name),
				zap.String("oid", oid),
				zap.Error(getErr),
			)
			continue
		}
		for k, v := range prof.ParseValue(oid, raw) {
			// Custom OIDs parse through the generic path keyed by OID;
			// re-key them under their synthetic name.
			if k == oid && strings.HasPrefix(name, "custom_") {
				k = name
			}
			metrics[k] = v
		}
	}

	if len(metrics) == 0 {
		p.stats.Error()
		if isAuthError(lastErr) {
			p.logger.Warn("snmp authentication failed, skipping cycle",
				zap.String("device", dev.Name), zap.Error(lastErr))
			return
		}
		p.enqueueUnreachable(ctx, dev, lastErr)
		return
	}

	latency := time.Since(started)
	p.cache.Store(models.MetricsSnapshot{
		Device:      dev.Name,
		IPAddress:   dev.IP,
		Metrics:     metrics,
		Timestamp:   time.Now().UTC(),
		PollLatency: latency,
	})
	p.stats.Parsed()

	anomalies := prof.DetectAnomalies(metrics, p.thresholds)

	if err := p.queue.Enqueue(ctx, p.metricsEvent(dev, metrics, latency, failed)); err != nil {
		return
	}
	for _, a := range anomalies {
		if err := p.queue.Enqueue(ctx, p.anomalyEvent(dev, a)); err != nil {
			return
		}
	}

	if len(anomalies) > 0 {
		p.logger.Info("anomalies detected",
			zap.String("device", dev.Name),
			zap.Int("count", len(anomalies)),
		)
	}
}

// enqueueUnreachable emits the single code-3000 event for a dead device.
func (p *Poller) enqueueUnreachable(ctx context.Context, dev config.DeviceConfig, cause error) {
	p.logger.Warn("device unreachable",
		zap.String("device", dev.Name),
		zap.String("ip", dev.IP),
		zap.Error(cause),
	)

	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	ev := models.Event{
		Timestamp:  time.Now().UTC(),
		SourceType: models.SourceNetworkDevice,
		EventCode:  models.CodePollError,
		Severity:   4,
		Computer:   dev.Name,
		IPAddress:  dev.IP,
		Provider:   "snmp-poller",
		Channel:    string(dev.Type),
		Message:    fmt.Sprintf("device %s (%s) unreachable", dev.Name, dev.IP),
		EventData: map[string]any{
			"error": detail,
		},
	}
	_ = p.queue.Enqueue(ctx, ev)
}

func (p *Poller) metricsEvent(dev config.DeviceConfig, metrics map[string]any, latency time.Duration, failedOIDs int) models.Event {
	data := make(map[string]any, len(metrics)+2)
	for k, v := range metrics {
		data[k] = v
	}
	data["poll_latency_ms"] = latency.Milliseconds()
	if failedOIDs > 0 {
		data["failed_oids"] = failedOIDs
	}

	return models.Event{
		Timestamp:  time.Now().UTC(),
		SourceType: models.SourceNetworkDevice,
		EventCode:  models.CodeMetrics,
		Severity:   1,
		Computer:   dev.Name,
		IPAddress:  dev.IP,
		Provider:   "snmp-poller",
		Channel:    string(dev.Type),
		Message:    fmt.Sprintf("collected %d metrics from %s", len(metrics), dev.Name),
		EventData:  data,
	}
}

func (p *Poller) anomalyEvent(dev config.DeviceConfig, a models.Anomaly) models.Event {
	severity := models.ClampSeverity(a.Severity)
	return models.Event{
		Timestamp:  time.Now().UTC(),
		SourceType: models.SourceNetworkDevice,
		EventCode:  models.CodeAnomalyBase + severity,
		Severity:   severity,
		Computer:   dev.Name,
		IPAddress:  dev.IP,
		Provider:   "snmp-poller",
		Channel:    string(dev.Type),
		Message:    a.Message,
		EventData: map[string]any{
			"anomaly_type": a.Type,
			"value":        a.Value,
			"threshold":    a.Threshold,
		},
	}
}
