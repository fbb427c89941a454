// Package traps passively receives SNMP notifications and converts each one
// to an event. A malformed trap bumps the error counter and never disturbs
// subsequent traps.
package traps

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/internal/config"
	"github.com/HerbHall/netsentry/internal/poller"
	"github.com/HerbHall/netsentry/internal/queue"
	"github.com/HerbHall/netsentry/internal/stats"
	"github.com/HerbHall/netsentry/pkg/models"
)

// snmpTrapOID is the varbind that names the notification type (RFC 3416).
const snmpTrapOID = "1.3.6.1.6.3.1.1.4.1.0"

// Generic trap OIDs from SNMPv2-MIB.
var trapNames = map[string]string{
	"1.3.6.1.6.3.1.1.5.1": "coldStart",
	"1.3.6.1.6.3.1.1.5.2": "warmStart",
	"1.3.6.1.6.3.1.1.5.3": "linkDown",
	"1.3.6.1.6.3.1.1.5.4": "linkUp",
	"1.3.6.1.6.3.1.1.5.5": "authenticationFailure",
	"1.3.6.1.6.3.1.1.5.6": "egpNeighborLoss",
}

// trapSeverity assigns the fixed severity policy per symbolic type.
func trapSeverity(trapType string) int {
	switch trapType {
	case "authenticationFailure", "linkDown":
		return 4
	case "linkUp", "warmStart":
		return 3
	default:
		return 2
	}
}

// Receiver listens for SNMP traps on a UDP socket. Without v3 credentials it
// accepts v2c notifications; with them it accepts v3 USM as well.
type Receiver struct {
	listen    string
	community string
	v3        *config.V3Credentials
	queue     *queue.Queue
	stats     *stats.Collector
	logger    *zap.Logger
	listener  *gosnmp.TrapListener
}

// New creates a trap receiver bound to addr (host:port, conventionally 162).
// v3 may be nil for community-string-only reception.
func New(addr, community string, v3 *config.V3Credentials, q *queue.Queue, st *stats.Collector, logger *zap.Logger) *Receiver {
	return &Receiver{
		listen:    addr,
		community: community,
		v3:        v3,
		queue:     q,
		stats:     st,
		logger:    logger,
	}
}

// listenerParams builds a fresh parameter set for the trap listener. The
// listener must not share gosnmp.Default: that struct is package-global and
// mutating it would leak our community string into unrelated sessions.
func listenerParams(community string, v3 *config.V3Credentials) (*gosnmp.GoSNMP, error) {
	params := &gosnmp.GoSNMP{
		Transport: "udp",
		Version:   gosnmp.Version2c,
		Community: community,
		Timeout:   5 * time.Second,
		Retries:   0,
	}
	if v3 != nil {
		if err := poller.ConfigureV3(params, v3); err != nil {
			return nil, err
		}
	}
	return params, nil
}

// Run listens for traps until ctx is cancelled.
func (r *Receiver) Run(ctx context.Context) error {
	params, err := listenerParams(r.community, r.v3)
	if err != nil {
		return fmt.Errorf("trap listener %q: %w", r.listen, err)
	}

	tl := gosnmp.NewTrapListener()
	tl.Params = params
	tl.OnNewTrap = func(packet *gosnmp.SnmpPacket, addr *net.UDPAddr) {
		r.handleTrap(ctx, packet, addr)
	}
	r.listener = tl

	go func() {
		<-ctx.Done()
		tl.Close()
	}()

	r.logger.Info("trap receiver listening", zap.String("addr", r.listen))

	if err := tl.Listen(r.listen); err != nil && ctx.Err() == nil {
		return fmt.Errorf("trap listener %q: %w", r.listen, err)
	}
	r.logger.Info("trap receiver stopped")
	return nil
}

// handleTrap decodes one notification and enqueues its event.
func (r *Receiver) handleTrap(ctx context.Context, packet *gosnmp.SnmpPacket, addr *net.UDPAddr) {
	r.stats.Received()

	if packet == nil || len(packet.Variables) == 0 {
		r.stats.Error()
		r.logger.Debug("empty trap packet", zap.String("source", addr.IP.String()))
		return
	}

	notif := decodeTrap(packet, addr.IP.String())
	r.stats.Parsed()

	if err := r.queue.Enqueue(ctx, toEvent(notif)); err != nil {
		return
	}

	r.logger.Debug("trap received",
		zap.String("source", notif.SourceIP),
		zap.String("trap_type", notif.TrapType),
	)
}

// decodeTrap extracts the trap OID and flattens all varbinds.
func decodeTrap(packet *gosnmp.SnmpPacket, sourceIP string) models.TrapNotification {
	notif := models.TrapNotification{
		SourceIP: sourceIP,
		Varbinds: make(map[string]string, len(packet.Variables)),
	}

	for _, vb := range packet.Variables {
		name := strings.TrimPrefix(vb.Name, ".")
		value := varbindString(vb)
		notif.Varbinds[name] = value

		if name == snmpTrapOID {
			notif.TrapOID = strings.TrimPrefix(value, ".")
		}
	}

	if sym, ok := trapNames[notif.TrapOID]; ok {
		notif.TrapType = sym
	} else {
		// Unrecognized notifications pass through as the raw OID string.
		notif.TrapType = notif.TrapOID
	}
	return notif
}

func varbindString(vb gosnmp.SnmpPDU) string {
	switch v := vb.Value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toEvent(notif models.TrapNotification) models.Event {
	severity := trapSeverity(notif.TrapType)

	data := map[string]any{
		"trap_oid":  notif.TrapOID,
		"trap_type": notif.TrapType,
	}
	for oid, val := range notif.Varbinds {
		data["varbind."+oid] = val
	}

	return models.Event{
		Timestamp:  time.Now().UTC(),
		SourceType: models.SourceSNMPTrap,
		EventCode:  models.CodeTrapBase + severity,
		Severity:   severity,
		Computer:   notif.SourceIP,
		IPAddress:  notif.SourceIP,
		Provider:   "snmptrap",
		Channel:    "trap",
		Message:    fmt.Sprintf("SNMP trap %s from %s", notif.TrapType, notif.SourceIP),
		EventData:  data,
	}
}
