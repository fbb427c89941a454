package profile

import (
	"testing"

	"github.com/HerbHall/netsentry/pkg/models"
)

func TestForType(t *testing.T) {
	tests := []struct {
		devType models.DeviceType
		metric  string
	}{
		{models.DeviceTypePrinter, "toner_level"},
		{models.DeviceTypeSwitch, "cpu_usage"},
		{models.DeviceTypeRouter, "temperature"},
		{models.DeviceTypeFirewall, "active_connections"},
		{models.DeviceTypeUPS, "battery_charge"},
	}

	for _, tt := range tests {
		t.Run(string(tt.devType), func(t *testing.T) {
			oids := ForType(tt.devType).MonitoringOIDs()
			if _, ok := oids[tt.metric]; !ok {
				t.Errorf("MonitoringOIDs() missing %q", tt.metric)
			}
			if _, ok := oids["sys_descr"]; !ok {
				t.Error("MonitoringOIDs() missing base sys_descr")
			}
		})
	}
}

func TestForTypeUnknownFallsBack(t *testing.T) {
	p := ForType(models.DeviceType("toaster"))
	oids := p.MonitoringOIDs()
	if len(oids) != 3 {
		t.Errorf("generic profile polls %d OIDs, want 3", len(oids))
	}
	if got := p.DetectAnomalies(map[string]any{"cpu_usage": 99.0}, Defaults()); got != nil {
		t.Errorf("generic DetectAnomalies() = %v, want nil", got)
	}
}

func TestTonerThreshold(t *testing.T) {
	p := ForType(models.DeviceTypePrinter)

	tests := []struct {
		name  string
		level float64
		want  int
	}{
		{"below threshold", 19, 1},
		{"at threshold", 20, 0},
		{"above threshold", 75, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anomalies := p.DetectAnomalies(map[string]any{"toner_level": tt.level}, Defaults())
			if len(anomalies) != tt.want {
				t.Fatalf("DetectAnomalies(toner=%v) returned %d anomalies, want %d",
					tt.level, len(anomalies), tt.want)
			}
			if tt.want == 1 {
				a := anomalies[0]
				if a.Type != "low_toner" {
					t.Errorf("Type = %q, want low_toner", a.Type)
				}
				if a.Severity != 3 {
					t.Errorf("Severity = %d, want 3", a.Severity)
				}
				if a.Value != tt.level || a.Threshold != 20 {
					t.Errorf("Value/Threshold = %v/%v, want %v/20", a.Value, a.Threshold, tt.level)
				}
			}
		})
	}
}

func TestTonerScaledByCapacity(t *testing.T) {
	p := ForType(models.DeviceTypePrinter)

	// Raw supply units above the declared max are scaled to percent.
	metrics := map[string]any{"toner_level": 300.0, "toner_max": 2000.0}
	anomalies := p.DetectAnomalies(metrics, Defaults())
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(anomalies))
	}
	if anomalies[0].Value != 15 {
		t.Errorf("scaled Value = %v, want 15", anomalies[0].Value)
	}
}

func TestNetworkAnomalies(t *testing.T) {
	p := ForType(models.DeviceTypeSwitch)

	tests := []struct {
		name    string
		metrics map[string]any
		types   []string
	}{
		{"high cpu", map[string]any{"cpu_usage": 95.0}, []string{"high_cpu"}},
		{"cpu at threshold", map[string]any{"cpu_usage": 80.0}, nil},
		{"high memory", map[string]any{"mem_used": 90.0, "mem_free": 10.0}, []string{"high_memory"}},
		{"memory ok", map[string]any{"mem_used": 50.0, "mem_free": 50.0}, nil},
		{"high temperature", map[string]any{"temperature": 61.0}, []string{"high_temperature"}},
		{"interface errors", map[string]any{"if_in_errors": 80.0, "if_out_errors": 30.0}, []string{"interface_errors"}},
		{"errors at threshold", map[string]any{"if_in_errors": 50.0, "if_out_errors": 50.0}, nil},
		{"one error counter missing", map[string]any{"if_in_errors": 500.0}, nil},
		{"combined", map[string]any{"cpu_usage": 90.0, "temperature": 70.0}, []string{"high_cpu", "high_temperature"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anomalies := p.DetectAnomalies(tt.metrics, Defaults())
			if len(anomalies) != len(tt.types) {
				t.Fatalf("got %d anomalies (%v), want %d", len(anomalies), anomalies, len(tt.types))
			}
			for i, want := range tt.types {
				if anomalies[i].Type != want {
					t.Errorf("anomaly[%d].Type = %q, want %q", i, anomalies[i].Type, want)
				}
			}
		})
	}
}

func TestUPSAnomalies(t *testing.T) {
	p := ForType(models.DeviceTypeUPS)

	anomalies := p.DetectAnomalies(map[string]any{
		"battery_charge":     25.0,
		"seconds_on_battery": 120.0,
	}, Defaults())
	if len(anomalies) != 2 {
		t.Fatalf("got %d anomalies, want 2", len(anomalies))
	}
	for _, a := range anomalies {
		if a.Severity != 4 {
			t.Errorf("%s severity = %d, want 4", a.Type, a.Severity)
		}
	}

	// On mains with a full battery: nothing.
	anomalies = p.DetectAnomalies(map[string]any{
		"battery_charge":     100.0,
		"seconds_on_battery": 0.0,
	}, Defaults())
	if len(anomalies) != 0 {
		t.Errorf("healthy UPS produced %d anomalies, want 0", len(anomalies))
	}
}

func TestParseValueShapes(t *testing.T) {
	printer := ForType(models.DeviceTypePrinter)

	if got := printer.ParseValue(oidPrinterStatus, 3); got["printer_status"] != "idle" {
		t.Errorf("printer_status = %v, want idle", got["printer_status"])
	}
	if got := printer.ParseValue(oidTonerLevel, -2); got != nil {
		t.Errorf("negative toner parsed to %v, want nil", got)
	}

	generic := ForType(models.DeviceTypeUnknown)
	if got := generic.ParseValue(OIDSysUpTime, uint32(360000)); got["uptime_seconds"] != 3600.0 {
		t.Errorf("uptime_seconds = %v, want 3600", got["uptime_seconds"])
	}
	if got := generic.ParseValue(OIDSysDescr, []byte("Linux host")); got["sys_descr"] != "Linux host" {
		t.Errorf("sys_descr = %v, want Linux host", got["sys_descr"])
	}
	if got := generic.ParseValue("1.3.6.1.4.1.9999.1", 42); got["1.3.6.1.4.1.9999.1"] != 42 {
		t.Errorf("unknown OID passthrough = %v, want keyed by OID", got)
	}
}

func TestMergeCustomOIDs(t *testing.T) {
	base := map[string]string{"cpu_usage": oidCPUUsage}
	merged := MergeCustomOIDs(base, map[string]string{"cpu_usage": "1.2.3", "fans": "1.2.4"})

	if merged["cpu_usage"] != oidCPUUsage {
		t.Errorf("custom OID shadowed profile metric: %q", merged["cpu_usage"])
	}
	if merged["custom_cpu_usage"] != "1.2.3" || merged["custom_fans"] != "1.2.4" {
		t.Errorf("custom keys not prefixed: %v", merged)
	}
	if len(merged) != 3 {
		t.Errorf("merged size = %d, want 3", len(merged))
	}
}
