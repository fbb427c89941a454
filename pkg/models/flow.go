package models

import (
	"net"
	"time"
)

// FlowRecord is a decoded NetFlow/IPFIX flow. Transient: each record is
// converted to an Event immediately after decode.
type FlowRecord struct {
	Version    uint16    `json:"version"`
	SrcAddr    net.IP    `json:"src_addr"`
	DstAddr    net.IP    `json:"dst_addr"`
	SrcPort    uint16    `json:"src_port"`
	DstPort    uint16    `json:"dst_port"`
	Protocol   uint8     `json:"protocol"`
	Bytes      uint64    `json:"bytes"`
	Packets    uint64    `json:"packets"`
	Timestamp  time.Time `json:"timestamp"`
	Suspicious bool      `json:"is_suspicious"`
}

// ProtocolName returns the conventional name for an IP protocol number.
func ProtocolName(proto uint8) string {
	switch proto {
	case 1:
		return "ICMP"
	case 6:
		return "TCP"
	case 17:
		return "UDP"
	default:
		return "OTHER"
	}
}
