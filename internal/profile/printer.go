package profile

import "github.com/HerbHall/netsentry/pkg/models"

// Printer MIB OIDs (hrPrinter + prtMarkerSupplies, first device/supply).
const (
	oidPrinterStatus    = "1.3.6.1.2.1.25.3.5.1.1.1"
	oidPrinterErrors    = "1.3.6.1.2.1.25.3.5.1.2.1"
	oidTonerLevel       = "1.3.6.1.2.1.43.11.1.1.9.1.1"
	oidTonerMaxCapacity = "1.3.6.1.2.1.43.11.1.1.8.1.1"
	oidPageCount        = "1.3.6.1.2.1.43.10.2.1.4.1.1"
)

// hrPrinterStatus enumeration.
var printerStatusNames = map[int64]string{
	1: "other",
	2: "unknown",
	3: "idle",
	4: "printing",
	5: "warmup",
}

type printerProfile struct{}

func (printerProfile) MonitoringOIDs() map[string]string {
	oids := baseOIDs()
	oids["printer_status"] = oidPrinterStatus
	oids["printer_errors"] = oidPrinterErrors
	oids["toner_level"] = oidTonerLevel
	oids["toner_max"] = oidTonerMaxCapacity
	oids["page_count"] = oidPageCount
	return oids
}

func (printerProfile) ParseValue(oid string, raw any) map[string]any {
	switch oid {
	case oidPrinterStatus:
		n, ok := numeric(raw)
		if !ok {
			return nil
		}
		name, ok := printerStatusNames[int64(n)]
		if !ok {
			name = "unknown"
		}
		return map[string]any{"printer_status": name, "printer_status_code": int(n)}
	case oidTonerLevel:
		n, ok := numeric(raw)
		if !ok || n < 0 {
			// -2 means unknown, -3 means "some remaining" per the MIB.
			return nil
		}
		return map[string]any{"toner_level": n}
	case oidTonerMaxCapacity, oidPageCount, oidPrinterErrors:
		n, ok := numeric(raw)
		if !ok {
			return nil
		}
		key := map[string]string{
			oidTonerMaxCapacity: "toner_max",
			oidPageCount:        "page_count",
			oidPrinterErrors:    "printer_error_state",
		}[oid]
		return map[string]any{key: n}
	}
	return genericParse(oid, raw)
}

func (printerProfile) DetectAnomalies(metrics map[string]any, t Thresholds) []models.Anomaly {
	var out []models.Anomaly

	if level, ok := metric(metrics, "toner_level"); ok {
		// toner_level is in raw supply units when capacity is known;
		// otherwise it is taken as a percentage.
		if max, ok := metric(metrics, "toner_max"); ok && max > 0 {
			level = level / max * 100
		}
		if level < t.TonerLevel {
			out = append(out, anomaly("low_toner", sevLowToner, level, t.TonerLevel,
				"toner level %.0f%% below %.0f%%", level, t.TonerLevel))
		}
	}

	if errState, ok := metric(metrics, "printer_error_state"); ok && errState > 0 {
		out = append(out, anomaly("printer_error", sevPrinterErr, errState, 0,
			"printer reports error state %d", int(errState)))
	}

	return out
}
