// Package discover finds live hosts on a CIDR block and identifies their
// device type from SNMP fingerprints. It is an auxiliary, read-only
// component: results land in the discoverer's own map and are never merged
// into the configured device registry automatically.
package discover

import (
	"sync"
	"time"

	"github.com/HerbHall/netsentry/pkg/models"
)

// Device is one discovered host.
type Device struct {
	IP           string            `json:"ip"`
	Hostname     string            `json:"hostname,omitempty"`
	SysDescr     string            `json:"sys_descr,omitempty"`
	SysObjectID  string            `json:"sys_object_id,omitempty"`
	Type         models.DeviceType `json:"type"`
	Method       string            `json:"method"`
	RTT          time.Duration     `json:"rtt_ms"`
	DiscoveredAt time.Time         `json:"discovered_at"`
}

// Inventory is the discoverer-owned device map. The sweep and the mDNS
// listener both write through Upsert; readers get copies.
type Inventory struct {
	mu      sync.Mutex
	devices map[string]Device
}

func NewInventory() *Inventory {
	return &Inventory{devices: make(map[string]Device)}
}

// Upsert records a device keyed by IP. An existing entry keeps its type
// when the new observation couldn't classify (unknown never downgrades a
// fingerprinted entry).
func (inv *Inventory) Upsert(d Device) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if prev, ok := inv.devices[d.IP]; ok {
		if d.Type == models.DeviceTypeUnknown && prev.Type != models.DeviceTypeUnknown {
			d.Type = prev.Type
		}
		if d.Hostname == "" {
			d.Hostname = prev.Hostname
		}
	}
	inv.devices[d.IP] = d
}

// All returns a copy of the inventory.
func (inv *Inventory) All() map[string]Device {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	out := make(map[string]Device, len(inv.devices))
	for ip, d := range inv.devices {
		out[ip] = d
	}
	return out
}

// Len returns the number of discovered devices.
func (inv *Inventory) Len() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.devices)
}
