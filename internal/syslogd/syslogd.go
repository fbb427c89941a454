// Package syslogd accepts syslog messages over UDP and TCP, applies the
// source policy, parses RFC5424 with RFC3164 fallback, and normalizes each
// message into an event.
package syslogd

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/internal/queue"
	"github.com/HerbHall/netsentry/internal/stats"
	"github.com/HerbHall/netsentry/pkg/models"
)

var facilityNames = []string{
	"kern", "user", "mail", "daemon", "auth", "syslog", "lpr", "news",
	"uucp", "cron", "authpriv", "ftp", "ntp", "audit", "alert", "clock",
	"local0", "local1", "local2", "local3", "local4", "local5", "local6", "local7",
}

// Receiver runs the configured syslog listeners.
type Receiver struct {
	udpListen string
	tcpListen string
	format    string
	policy    *SourcePolicy
	queue     *queue.Queue
	stats     *stats.Collector
	logger    *zap.Logger
}

// New creates a syslog receiver. Either listen address may be empty to
// disable that transport.
func New(udpListen, tcpListen, format string, policy *SourcePolicy, q *queue.Queue, st *stats.Collector, logger *zap.Logger) *Receiver {
	return &Receiver{
		udpListen: udpListen,
		tcpListen: tcpListen,
		format:    format,
		policy:    policy,
		queue:     q,
		stats:     st,
		logger:    logger,
	}
}

// Run starts the listeners and blocks until ctx is cancelled. Sockets are
// released on cancellation.
func (r *Receiver) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	if r.udpListen != "" {
		conn, err := net.ListenPacket("udp", r.udpListen)
		if err != nil {
			return fmt.Errorf("listen syslog udp %q: %w", r.udpListen, err)
		}
		go func() {
			<-ctx.Done()
			conn.Close()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.serveUDP(ctx, conn)
		}()
		r.logger.Info("syslog udp listening", zap.String("addr", r.udpListen))
	}

	if r.tcpListen != "" {
		ln, err := net.Listen("tcp", r.tcpListen)
		if err != nil {
			return fmt.Errorf("listen syslog tcp %q: %w", r.tcpListen, err)
		}
		go func() {
			<-ctx.Done()
			ln.Close()
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.serveTCP(ctx, ln)
		}()
		r.logger.Info("syslog tcp listening", zap.String("addr", r.tcpListen))
	}

	wg.Wait()
	r.logger.Info("syslog receiver stopped")
	return nil
}

func (r *Receiver) serveUDP(ctx context.Context, conn net.PacketConn) {
	buf := make([]byte, 65535)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.stats.Error()
			continue
		}
		host, _, splitErr := net.SplitHostPort(addr.String())
		if splitErr != nil {
			host = addr.String()
		}
		r.handleMessage(ctx, host, string(buf[:n]))
	}
}

func (r *Receiver) serveTCP(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.stats.Error()
			continue
		}
		go r.serveConn(ctx, conn)
	}
}

// serveConn reads newline-framed messages from one TCP connection.
func (r *Receiver) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		r.handleMessage(ctx, host, scanner.Text())
	}
}

// handleMessage applies the source policy, parses, and enqueues.
func (r *Receiver) handleMessage(ctx context.Context, sourceIP, raw string) {
	r.stats.Received()

	if !r.policy.Accept(sourceIP) {
		r.stats.Dropped()
		r.logger.Debug("syslog source denied", zap.String("source", sourceIP))
		return
	}

	rec, err := parse(raw, r.format)
	if err != nil {
		r.stats.Dropped()
		r.logger.Debug("syslog parse failed",
			zap.String("source", sourceIP),
			zap.Error(err),
		)
		return
	}

	r.stats.Parsed()
	if err := r.queue.Enqueue(ctx, r.toEvent(sourceIP, rec)); err != nil {
		return
	}
}

func (r *Receiver) toEvent(sourceIP string, rec *models.SyslogRecord) models.Event {
	hostname := rec.Hostname
	if hostname == "" || hostname == "-" {
		hostname = sourceIP
	}

	data := map[string]any{
		"facility":        rec.Facility,
		"facility_name":   facilityName(rec.Facility),
		"syslog_severity": rec.Severity,
		"tag":             rec.Tag,
	}
	for k, v := range rec.StructuredData {
		data["sd."+k] = v
	}

	return models.Event{
		Timestamp:  time.Now().UTC(),
		SourceType: models.SourceSyslog,
		EventCode:  models.CodeSyslog,
		Severity:   severityToEvent[rec.Severity],
		Computer:   hostname,
		IPAddress:  sourceIP,
		Provider:   rec.Tag,
		Channel:    facilityName(rec.Facility),
		Message:    rec.Message,
		EventData:  data,
	}
}

func facilityName(f int) string {
	if f >= 0 && f < len(facilityNames) {
		return facilityNames[f]
	}
	return "unknown"
}

// nilDash maps the RFC5424 nil value "-" to an empty string.
func nilDash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}
