package profile

import "github.com/HerbHall/netsentry/pkg/models"

// UPS-MIB (RFC 1628) OIDs.
const (
	oidUPSBatteryStatus = "1.3.6.1.2.1.33.1.2.1.0"
	oidUPSSecondsOnBatt = "1.3.6.1.2.1.33.1.2.2.0"
	oidUPSBatteryCharge = "1.3.6.1.2.1.33.1.2.4.0"
	oidUPSOutputLoad    = "1.3.6.1.2.1.33.1.4.4.1.5.1"
)

// upsBatteryStatus enumeration.
var upsBatteryStatusNames = map[int64]string{
	1: "unknown",
	2: "normal",
	3: "low",
	4: "depleted",
}

type upsProfile struct{}

func (upsProfile) MonitoringOIDs() map[string]string {
	oids := baseOIDs()
	oids["battery_status"] = oidUPSBatteryStatus
	oids["seconds_on_battery"] = oidUPSSecondsOnBatt
	oids["battery_charge"] = oidUPSBatteryCharge
	oids["output_load"] = oidUPSOutputLoad
	return oids
}

func (upsProfile) ParseValue(oid string, raw any) map[string]any {
	switch oid {
	case oidUPSBatteryStatus:
		n, ok := numeric(raw)
		if !ok {
			return nil
		}
		name, ok := upsBatteryStatusNames[int64(n)]
		if !ok {
			name = "unknown"
		}
		return map[string]any{"battery_status": name, "battery_status_code": int(n)}
	case oidUPSSecondsOnBatt, oidUPSBatteryCharge, oidUPSOutputLoad:
		n, ok := numeric(raw)
		if !ok {
			return nil
		}
		key := map[string]string{
			oidUPSSecondsOnBatt: "seconds_on_battery",
			oidUPSBatteryCharge: "battery_charge",
			oidUPSOutputLoad:    "output_load",
		}[oid]
		return map[string]any{key: n}
	}
	return genericParse(oid, raw)
}

func (upsProfile) DetectAnomalies(metrics map[string]any, t Thresholds) []models.Anomaly {
	var out []models.Anomaly

	if charge, ok := metric(metrics, "battery_charge"); ok && charge < t.BatteryLeft {
		out = append(out, anomaly("low_battery", sevLowBattery, charge, t.BatteryLeft,
			"battery charge %.0f%% below %.0f%%", charge, t.BatteryLeft))
	}

	if secs, ok := metric(metrics, "seconds_on_battery"); ok && secs > 0 {
		out = append(out, anomaly("on_battery", sevOnBattery, secs, 0,
			"running on battery for %.0fs", secs))
	}

	return out
}
