// Package models defines the data structures shared across all NetSentry
// collectors. Every collector normalizes its wire protocol into an Event
// before it touches the queue; nothing downstream of the queue knows which
// protocol produced an event.
package models

import "time"

// SourceType identifies which collector produced an event.
type SourceType string

const (
	SourceNetworkDevice SourceType = "NetworkDevice"
	SourceSNMPTrap      SourceType = "SNMPTrap"
	SourceSyslog        SourceType = "Syslog"
	SourceNetFlow       SourceType = "NetFlow"
)

// Event code ranges. Anomaly and trap codes embed the severity in the final
// digit (high_cpu at severity 3 is 2003, linkDown at severity 4 is 6004).
const (
	CodeMetrics      = 1000
	CodeAnomalyBase  = 2000
	CodePollError    = 3000
	CodeSyslog       = 4000
	CodeFlow         = 5000
	CodeFlowSuspect  = 5001
	CodeTrapBase     = 6000
)

// Severity bounds for normalized events (1=Info .. 5=Critical).
const (
	SeverityMin = 1
	SeverityMax = 5
)

// Event is the normalized output unit of every collector. Immutable once
// enqueued; the forwarder augments a copy with agent identity on send.
// Timestamp is when the collector created the event; the forwarder emits it
// as event_time alongside its own collected_at.
type Event struct {
	Timestamp  time.Time      `json:"-"`
	SourceType SourceType     `json:"source_type"`
	EventCode  int            `json:"event_code"`
	Severity   int            `json:"severity"`
	Computer   string         `json:"computer"`
	IPAddress  string         `json:"ip_address"`
	Provider   string         `json:"provider"`
	Channel    string         `json:"channel"`
	Message    string         `json:"message"`
	EventData  map[string]any `json:"event_data,omitempty"`
}

// ClampSeverity forces s into the valid 1..5 event severity range.
func ClampSeverity(s int) int {
	if s < SeverityMin {
		return SeverityMin
	}
	if s > SeverityMax {
		return SeverityMax
	}
	return s
}

// DeviceType categorizes a monitored network device.
type DeviceType string

const (
	DeviceTypePrinter  DeviceType = "printer"
	DeviceTypeSwitch   DeviceType = "switch"
	DeviceTypeRouter   DeviceType = "router"
	DeviceTypeFirewall DeviceType = "firewall"
	DeviceTypeUPS      DeviceType = "ups"
	DeviceTypeServer   DeviceType = "server"
	DeviceTypeUnknown  DeviceType = "unknown"
)

// ValidDeviceType reports whether t names a configurable device type.
// DeviceTypeServer is reported by discovery but is not configurable, since
// the poller has no server profile.
func ValidDeviceType(t DeviceType) bool {
	switch t {
	case DeviceTypePrinter, DeviceTypeSwitch, DeviceTypeRouter,
		DeviceTypeFirewall, DeviceTypeUPS, DeviceTypeUnknown:
		return true
	}
	return false
}

// Anomaly is one threshold violation found during a poll cycle.
type Anomaly struct {
	Type      string  `json:"type"`
	Severity  int     `json:"severity"`
	Message   string  `json:"message"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// MetricsSnapshot is the result of one completed poll cycle for one device.
// The poller is the only writer; readers get copies.
type MetricsSnapshot struct {
	Device      string         `json:"device"`
	IPAddress   string         `json:"ip_address"`
	Metrics     map[string]any `json:"metrics"`
	Timestamp   time.Time      `json:"timestamp"`
	PollLatency time.Duration  `json:"poll_latency"`
}
