package models

// TrapNotification is one received SNMP trap, decoded far enough to
// normalize. Transient: converted 1:1 to an Event.
type TrapNotification struct {
	SourceIP string            `json:"source_ip"`
	TrapOID  string            `json:"trap_oid"`
	TrapType string            `json:"trap_type"`
	Varbinds map[string]string `json:"varbinds"`
}

// SyslogRecord is one parsed syslog message. Facility and Severity are on
// the syslog scale (severity 0=Emergency..7=Debug), not the event scale.
type SyslogRecord struct {
	Facility       int               `json:"facility"`
	Severity       int               `json:"severity"`
	Hostname       string            `json:"hostname"`
	Tag            string            `json:"tag"`
	Message        string            `json:"message"`
	StructuredData map[string]string `json:"structured_data,omitempty"`
}
