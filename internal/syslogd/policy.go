package syslogd

// SourcePolicy decides whether a syslog source IP is accepted. Default-deny:
// an IP passes only via the allow-list or (when enabled) the known-device
// list, and the block-list always wins.
type SourcePolicy struct {
	allowed map[string]bool
	blocked map[string]bool
	known   map[string]bool

	acceptKnown bool
}

// NewSourcePolicy builds a policy from the configured lists. knownDevices is
// the IP set of all configured devices; it is only consulted when
// acceptKnown is set.
func NewSourcePolicy(allowed, blocked, knownDevices []string, acceptKnown bool) *SourcePolicy {
	toSet := func(ips []string) map[string]bool {
		m := make(map[string]bool, len(ips))
		for _, ip := range ips {
			m[ip] = true
		}
		return m
	}
	return &SourcePolicy{
		allowed:     toSet(allowed),
		blocked:     toSet(blocked),
		known:       toSet(knownDevices),
		acceptKnown: acceptKnown,
	}
}

// Accept reports whether messages from ip should be processed.
func (p *SourcePolicy) Accept(ip string) bool {
	if p.blocked[ip] {
		return false
	}
	if p.allowed[ip] {
		return true
	}
	if p.acceptKnown && p.known[ip] {
		return true
	}
	return false
}
