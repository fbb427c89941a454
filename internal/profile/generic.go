package profile

import "github.com/HerbHall/netsentry/pkg/models"

// genericProfile is the fallback for unknown device types: base system OIDs
// only, no anomaly rules.
type genericProfile struct{}

func (genericProfile) MonitoringOIDs() map[string]string {
	return baseOIDs()
}

func (genericProfile) ParseValue(oid string, raw any) map[string]any {
	return genericParse(oid, raw)
}

func (genericProfile) DetectAnomalies(map[string]any, Thresholds) []models.Anomaly {
	return nil
}

// genericParse handles the base system OIDs and passes anything else
// through keyed by its OID (custom per-device OIDs land here).
func genericParse(oid string, raw any) map[string]any {
	switch oid {
	case OIDSysDescr:
		s, ok := stringValue(raw)
		if !ok {
			return nil
		}
		return map[string]any{"sys_descr": s}
	case OIDSysName:
		s, ok := stringValue(raw)
		if !ok {
			return nil
		}
		return map[string]any{"sys_name": s}
	case OIDSysUpTime:
		n, ok := numeric(raw)
		if !ok {
			return nil
		}
		// TimeTicks are hundredths of a second.
		return map[string]any{"uptime_seconds": n / 100}
	}
	if raw == nil {
		return nil
	}
	return map[string]any{oid: raw}
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
