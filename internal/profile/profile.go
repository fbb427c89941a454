// Package profile maps device types to the OIDs worth polling, interprets
// raw SNMP values into named metrics, and evaluates anomaly rules. Profiles
// are stateless; the poller instantiates nothing, it just calls through the
// registry.
package profile

import (
	"fmt"

	"github.com/HerbHall/netsentry/pkg/models"
)

// Base system OIDs polled for every device type.
const (
	OIDSysDescr  = "1.3.6.1.2.1.1.1.0"
	OIDSysUpTime = "1.3.6.1.2.1.1.3.0"
	OIDSysName   = "1.3.6.1.2.1.1.5.0"
)

// Profile is the capability set of one device type.
type Profile interface {
	// MonitoringOIDs returns the metric-name to OID map to poll.
	MonitoringOIDs() map[string]string

	// ParseValue decodes one raw SNMP value into zero or more named
	// metrics. Unusable values yield an empty map, never an error.
	ParseValue(oid string, raw any) map[string]any

	// DetectAnomalies evaluates threshold rules against a metric map.
	// Absent keys are skipped; comparisons are strictly >/<, so a value
	// exactly at the threshold does not trigger.
	DetectAnomalies(metrics map[string]any, t Thresholds) []models.Anomaly
}

// Thresholds are the tunable limits shared by all profiles. Zero values are
// not special-cased; use Defaults as the base.
type Thresholds struct {
	TonerLevel  float64 `mapstructure:"toner_level"`
	CPUPercent  float64 `mapstructure:"cpu_percent"`
	MemPercent  float64 `mapstructure:"mem_percent"`
	Temperature float64 `mapstructure:"temperature"`
	BatteryLeft float64 `mapstructure:"battery_left"`
	IfErrorRate float64 `mapstructure:"if_error_rate"`
}

// Defaults returns the stock threshold set.
func Defaults() Thresholds {
	return Thresholds{
		TonerLevel:  20,
		CPUPercent:  80,
		MemPercent:  85,
		Temperature: 60,
		BatteryLeft: 30,
		IfErrorRate: 100,
	}
}

// Fixed severities per anomaly type.
const (
	sevLowToner   = 3
	sevPrinterErr = 3
	sevHighCPU    = 3
	sevHighMemory = 3
	sevHighTemp   = 3
	sevIfErrors   = 3
	sevLowBattery = 4
	sevOnBattery  = 4
)

var registry = map[models.DeviceType]Profile{
	models.DeviceTypePrinter:  printerProfile{},
	models.DeviceTypeSwitch:   switchProfile{},
	models.DeviceTypeRouter:   routerProfile{},
	models.DeviceTypeFirewall: firewallProfile{},
	models.DeviceTypeUPS:      upsProfile{},
	models.DeviceTypeUnknown:  genericProfile{},
}

// ForType returns the profile for a device type, falling back to the
// generic profile for anything unregistered.
func ForType(t models.DeviceType) Profile {
	if p, ok := registry[t]; ok {
		return p
	}
	return genericProfile{}
}

// MergeCustomOIDs copies base and adds per-device custom OIDs under
// synthetic custom_<name> keys so they never shadow profile metrics.
func MergeCustomOIDs(base map[string]string, custom map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(custom))
	for name, oid := range base {
		out[name] = oid
	}
	for name, oid := range custom {
		out["custom_"+name] = oid
	}
	return out
}

// baseOIDs returns a fresh copy of the system OID set.
func baseOIDs() map[string]string {
	return map[string]string{
		"sys_descr":  OIDSysDescr,
		"sys_uptime": OIDSysUpTime,
		"sys_name":   OIDSysName,
	}
}

// numeric coerces SNMP integer shapes to float64. SNMP libraries hand back
// int, uint, and 64-bit variants depending on the PDU type.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// metric reads a numeric metric by key; absent or non-numeric keys report ok=false.
func metric(metrics map[string]any, key string) (float64, bool) {
	v, ok := metrics[key]
	if !ok {
		return 0, false
	}
	return numeric(v)
}

func anomaly(typ string, sev int, value, threshold float64, format string, args ...any) models.Anomaly {
	return models.Anomaly{
		Type:      typ,
		Severity:  sev,
		Message:   fmt.Sprintf(format, args...),
		Value:     value,
		Threshold: threshold,
	}
}
