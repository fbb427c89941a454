// Package netflow collects NetFlow v5/v9 and IPFIX export packets over UDP
// and normalizes the decoded flows into events. The v9/IPFIX template cache
// is private to the collector task; a Data FlowSet arriving before its
// template is dropped whole and counted, never retried.
package netflow

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/internal/queue"
	"github.com/HerbHall/netsentry/internal/stats"
	"github.com/HerbHall/netsentry/pkg/models"
)

const maxDatagram = 65535

// sensitivePorts flags flows toward remote-access and database services.
var sensitivePorts = map[uint16]bool{
	22: true, 23: true, 139: true, 445: true,
	1433: true, 3306: true, 3389: true,
}

const (
	suspiciousBytes     = 100 * 1024 * 1024
	scanPacketCount     = 100
	scanAvgPayloadBytes = 100
)

// ipString renders an address, tolerating templates that omitted one.
func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

// isSuspicious applies the fixed flow heuristic: very large transfer,
// sensitive destination port, or a scan-like many-small-packets pattern.
func isSuspicious(r models.FlowRecord) bool {
	if r.Bytes > suspiciousBytes {
		return true
	}
	if sensitivePorts[r.DstPort] {
		return true
	}
	if r.Packets > scanPacketCount && r.Bytes/r.Packets < scanAvgPayloadBytes {
		return true
	}
	return false
}

// Collector listens for flow export packets and enqueues one event per flow.
type Collector struct {
	listen string
	queue  *queue.Queue
	stats  *stats.Collector
	logger *zap.Logger
	cache  *templateCache
}

// New creates a flow collector listening on addr (host:port).
func New(addr string, q *queue.Queue, st *stats.Collector, logger *zap.Logger) *Collector {
	return &Collector{
		listen: addr,
		queue:  q,
		stats:  st,
		logger: logger,
		cache:  newTemplateCache(),
	}
}

// Run binds the UDP socket and processes datagrams until ctx is cancelled.
// The socket is released on cancellation.
func (c *Collector) Run(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", c.listen)
	if err != nil {
		return fmt.Errorf("resolve netflow listen %q: %w", c.listen, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen netflow %q: %w", c.listen, err)
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	c.logger.Info("netflow collector listening", zap.String("addr", c.listen))

	buf := make([]byte, maxDatagram)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("netflow collector stopped")
				return nil
			}
			c.stats.Error()
			c.logger.Warn("netflow read failed", zap.Error(err))
			continue
		}

		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		c.handlePacket(ctx, remote.IP.String(), pkt)
	}
}

// handlePacket dispatches on the version field and enqueues the flows.
func (c *Collector) handlePacket(ctx context.Context, exporter string, pkt []byte) {
	c.stats.Received()

	if len(pkt) < 2 {
		c.stats.Dropped()
		return
	}

	now := time.Now().UTC()
	var records []models.FlowRecord
	var samplingInterval uint16

	switch version := binary.BigEndian.Uint16(pkt[0:2]); version {
	case 5:
		records = decodeV5(pkt, now)
		_, samplingInterval = v5Sampling(pkt)
	case 9, 10:
		var missing int
		var err error
		records, missing, err = decodeV9(c.cache, exporter, pkt, now)
		if err != nil {
			c.stats.Dropped()
			c.logger.Debug("netflow decode failed",
				zap.String("exporter", exporter),
				zap.Error(err),
			)
			return
		}
		for i := 0; i < missing; i++ {
			c.stats.Dropped()
		}
		if missing > 0 {
			c.logger.Debug("data flowset before template, dropped",
				zap.String("exporter", exporter),
				zap.Int("flowsets", missing),
				zap.Int("cached_templates", c.cache.len()),
			)
		}
	default:
		c.stats.Dropped()
		c.logger.Debug("unsupported flow version",
			zap.String("exporter", exporter),
			zap.Uint16("version", version),
		)
		return
	}

	for _, rec := range records {
		c.stats.Parsed()
		ev := c.toEvent(exporter, rec)
		if samplingInterval > 0 {
			ev.EventData["sampling_interval"] = samplingInterval
		}
		if err := c.queue.Enqueue(ctx, ev); err != nil {
			return
		}
	}
}

// toEvent normalizes one flow. Suspicious flows get code 5001/severity 3;
// everything else 5000/severity 1.
func (c *Collector) toEvent(exporter string, rec models.FlowRecord) models.Event {
	code := models.CodeFlow
	severity := 1
	if rec.Suspicious {
		code = models.CodeFlowSuspect
		severity = 3
	}

	return models.Event{
		Timestamp:  rec.Timestamp,
		SourceType: models.SourceNetFlow,
		EventCode:  code,
		Severity:   severity,
		Computer:   exporter,
		IPAddress:  exporter,
		Provider:   "netflow",
		Channel:    fmt.Sprintf("v%d", rec.Version),
		Message: fmt.Sprintf("%s flow %s:%d -> %s:%d (%d bytes, %d packets)",
			models.ProtocolName(rec.Protocol),
			ipString(rec.SrcAddr), rec.SrcPort, ipString(rec.DstAddr), rec.DstPort,
			rec.Bytes, rec.Packets),
		EventData: map[string]any{
			"src_addr":      ipString(rec.SrcAddr),
			"dst_addr":      ipString(rec.DstAddr),
			"src_port":      rec.SrcPort,
			"dst_port":      rec.DstPort,
			"protocol":      rec.Protocol,
			"bytes":         rec.Bytes,
			"packets":       rec.Packets,
			"is_suspicious": rec.Suspicious,
		},
	}
}
