package profile

import "github.com/HerbHall/netsentry/pkg/models"

// Interface-group and vendor resource OIDs shared by the switch, router, and
// firewall profiles. CPU/memory use the Cisco process MIB layout, which the
// bulk of fielded gear answers (or ignores harmlessly).
const (
	oidIfNumber     = "1.3.6.1.2.1.2.1.0"
	oidIfInErrors   = "1.3.6.1.2.1.2.2.1.14.1"
	oidIfOutErrors  = "1.3.6.1.2.1.2.2.1.20.1"
	oidCPUUsage     = "1.3.6.1.4.1.9.9.109.1.1.1.1.7.1"
	oidMemUsed      = "1.3.6.1.4.1.9.9.48.1.1.1.5.1"
	oidMemFree      = "1.3.6.1.4.1.9.9.48.1.1.1.6.1"
	oidTemperature  = "1.3.6.1.4.1.9.9.13.1.3.1.3.1"
	oidFWConns      = "1.3.6.1.4.1.9.9.147.1.2.2.2.1.5.40.6"
)

// networkParse handles the OIDs common to the three infrastructure profiles.
func networkParse(oid string, raw any) map[string]any {
	key, ok := map[string]string{
		oidIfNumber:    "if_count",
		oidIfInErrors:  "if_in_errors",
		oidIfOutErrors: "if_out_errors",
		oidCPUUsage:    "cpu_usage",
		oidMemUsed:     "mem_used",
		oidMemFree:     "mem_free",
		oidTemperature: "temperature",
		oidFWConns:     "active_connections",
	}[oid]
	if !ok {
		return genericParse(oid, raw)
	}
	n, numOK := numeric(raw)
	if !numOK {
		return nil
	}
	out := map[string]any{key: n}
	return out
}

// networkAnomalies evaluates the CPU/memory/temperature/interface-error
// rules shared by switches, routers, and firewalls.
func networkAnomalies(metrics map[string]any, t Thresholds) []models.Anomaly {
	var out []models.Anomaly

	if cpu, ok := metric(metrics, "cpu_usage"); ok && cpu > t.CPUPercent {
		out = append(out, anomaly("high_cpu", sevHighCPU, cpu, t.CPUPercent,
			"CPU usage %.0f%% above %.0f%%", cpu, t.CPUPercent))
	}

	if used, ok := metric(metrics, "mem_used"); ok {
		if free, ok := metric(metrics, "mem_free"); ok && used+free > 0 {
			pct := used / (used + free) * 100
			if pct > t.MemPercent {
				out = append(out, anomaly("high_memory", sevHighMemory, pct, t.MemPercent,
					"memory usage %.0f%% above %.0f%%", pct, t.MemPercent))
			}
		}
	}

	if temp, ok := metric(metrics, "temperature"); ok && temp > t.Temperature {
		out = append(out, anomaly("high_temperature", sevHighTemp, temp, t.Temperature,
			"temperature %.0fC above %.0fC", temp, t.Temperature))
	}

	inErr, inOK := metric(metrics, "if_in_errors")
	outErr, outOK := metric(metrics, "if_out_errors")
	if inOK && outOK {
		if total := inErr + outErr; total > t.IfErrorRate {
			out = append(out, anomaly("interface_errors", sevIfErrors, total, t.IfErrorRate,
				"interface error count %.0f above %.0f", total, t.IfErrorRate))
		}
	}

	return out
}

type switchProfile struct{}

func (switchProfile) MonitoringOIDs() map[string]string {
	oids := baseOIDs()
	oids["if_count"] = oidIfNumber
	oids["if_in_errors"] = oidIfInErrors
	oids["if_out_errors"] = oidIfOutErrors
	oids["cpu_usage"] = oidCPUUsage
	oids["mem_used"] = oidMemUsed
	oids["mem_free"] = oidMemFree
	return oids
}

func (switchProfile) ParseValue(oid string, raw any) map[string]any {
	return networkParse(oid, raw)
}

func (switchProfile) DetectAnomalies(metrics map[string]any, t Thresholds) []models.Anomaly {
	return networkAnomalies(metrics, t)
}

type routerProfile struct{}

func (routerProfile) MonitoringOIDs() map[string]string {
	oids := baseOIDs()
	oids["cpu_usage"] = oidCPUUsage
	oids["mem_used"] = oidMemUsed
	oids["mem_free"] = oidMemFree
	oids["temperature"] = oidTemperature
	oids["if_in_errors"] = oidIfInErrors
	oids["if_out_errors"] = oidIfOutErrors
	return oids
}

func (routerProfile) ParseValue(oid string, raw any) map[string]any {
	return networkParse(oid, raw)
}

func (routerProfile) DetectAnomalies(metrics map[string]any, t Thresholds) []models.Anomaly {
	return networkAnomalies(metrics, t)
}

type firewallProfile struct{}

func (firewallProfile) MonitoringOIDs() map[string]string {
	oids := baseOIDs()
	oids["cpu_usage"] = oidCPUUsage
	oids["mem_used"] = oidMemUsed
	oids["mem_free"] = oidMemFree
	oids["active_connections"] = oidFWConns
	return oids
}

func (firewallProfile) ParseValue(oid string, raw any) map[string]any {
	return networkParse(oid, raw)
}

func (firewallProfile) DetectAnomalies(metrics map[string]any, t Thresholds) []models.Anomaly {
	return networkAnomalies(metrics, t)
}
