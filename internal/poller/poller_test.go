package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/HerbHall/netsentry/internal/config"
	"github.com/HerbHall/netsentry/internal/profile"
	"github.com/HerbHall/netsentry/internal/queue"
	"github.com/HerbHall/netsentry/internal/stats"
	"github.com/HerbHall/netsentry/pkg/models"
)

// fakeSession serves canned OID values.
type fakeSession struct {
	values map[string]any
	errs   map[string]error
	closed bool
}

func (s *fakeSession) Get(oid string) (any, error) {
	if err, ok := s.errs[oid]; ok {
		return nil, err
	}
	if v, ok := s.values[oid]; ok {
		return v, nil
	}
	return nil, errors.New("no such object")
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func testPoller(t *testing.T, factory SessionFactory) (*Poller, *queue.Queue) {
	t.Helper()
	q := queue.New(100)
	st := stats.NewRegistry(prometheus.NewRegistry()).Collector("poller")
	p := New(config.SNMPDefaults{}, profile.Defaults(), factory, q, st, zap.NewNop())
	return p, q
}

func switchDevice() config.DeviceConfig {
	return config.DeviceConfig{
		Name:         "core-sw",
		IP:           "10.0.0.2",
		Type:         models.DeviceTypeSwitch,
		PollInterval: time.Minute,
	}
}

func drain(q *queue.Queue) []models.Event {
	var out []models.Event
	for {
		ev, ok := q.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestPollDeviceMetricsAndAnomaly(t *testing.T) {
	sess := &fakeSession{values: map[string]any{
		profile.OIDSysDescr:                "Cisco IOS",
		profile.OIDSysName:                 "core-sw",
		profile.OIDSysUpTime:               uint32(360000),
		"1.3.6.1.4.1.9.9.109.1.1.1.1.7.1":  95, // cpu_usage over the 80 threshold
		"1.3.6.1.4.1.9.9.48.1.1.1.5.1":     40,
		"1.3.6.1.4.1.9.9.48.1.1.1.6.1":     60,
		"1.3.6.1.2.1.2.1.0":                24,
		"1.3.6.1.2.1.2.2.1.14.1":           0,
		"1.3.6.1.2.1.2.2.1.20.1":           0,
	}}
	p, q := testPoller(t, func(config.DeviceConfig, config.SNMPDefaults) (Session, error) {
		return sess, nil
	})

	p.pollDevice(context.Background(), switchDevice())

	events := drain(q)
	if len(events) != 2 {
		t.Fatalf("got %d events, want metrics + anomaly", len(events))
	}

	metrics := events[0]
	if metrics.EventCode != models.CodeMetrics || metrics.Severity != 1 {
		t.Errorf("metrics event = code %d sev %d, want 1000/1", metrics.EventCode, metrics.Severity)
	}
	if metrics.EventData["cpu_usage"] != 95.0 {
		t.Errorf("cpu_usage = %v, want 95", metrics.EventData["cpu_usage"])
	}
	if metrics.EventData["uptime_seconds"] != 3600.0 {
		t.Errorf("uptime_seconds = %v, want 3600", metrics.EventData["uptime_seconds"])
	}
	if _, ok := metrics.EventData["poll_latency_ms"]; !ok {
		t.Error("metrics event missing poll_latency_ms")
	}
	if _, ok := metrics.EventData["failed_oids"]; ok {
		t.Error("failed_oids present on a clean cycle")
	}

	an := events[1]
	if an.EventCode != 2003 || an.Severity != 3 {
		t.Errorf("anomaly event = code %d sev %d, want 2003/3", an.EventCode, an.Severity)
	}
	if an.EventData["anomaly_type"] != "high_cpu" {
		t.Errorf("anomaly_type = %v, want high_cpu", an.EventData["anomaly_type"])
	}
	if an.EventData["value"] != 95.0 || an.EventData["threshold"] != 80.0 {
		t.Errorf("value/threshold = %v/%v, want 95/80", an.EventData["value"], an.EventData["threshold"])
	}

	if !sess.closed {
		t.Error("session not closed after cycle")
	}

	snap, ok := p.Cache().Snapshot("core-sw")
	if !ok {
		t.Fatal("metrics snapshot not cached")
	}
	if snap.Metrics["cpu_usage"] != 95.0 {
		t.Errorf("cached cpu_usage = %v", snap.Metrics["cpu_usage"])
	}
}

func TestPollDeviceUnreachable(t *testing.T) {
	p, q := testPoller(t, func(config.DeviceConfig, config.SNMPDefaults) (Session, error) {
		return nil, errors.New("connection refused")
	})

	p.pollDevice(context.Background(), switchDevice())

	events := drain(q)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 unreachable event", len(events))
	}
	ev := events[0]
	if ev.EventCode != models.CodePollError || ev.Severity != 4 {
		t.Errorf("unreachable event = code %d sev %d, want 3000/4", ev.EventCode, ev.Severity)
	}
	if ev.EventData["error"] != "connection refused" {
		t.Errorf("error detail = %v", ev.EventData["error"])
	}
}

func TestPollDeviceAllOIDsFail(t *testing.T) {
	sess := &fakeSession{} // every Get errors
	p, q := testPoller(t, func(config.DeviceConfig, config.SNMPDefaults) (Session, error) {
		return sess, nil
	})

	p.pollDevice(context.Background(), switchDevice())

	events := drain(q)
	if len(events) != 1 || events[0].EventCode != models.CodePollError {
		t.Fatalf("events = %+v, want single poll-error event", events)
	}
}

func TestPollDevicePartialFailure(t *testing.T) {
	sess := &fakeSession{
		values: map[string]any{
			profile.OIDSysDescr: "Cisco IOS",
			profile.OIDSysName:  "core-sw",
		},
		errs: map[string]error{
			profile.OIDSysUpTime: errors.New("timeout"),
		},
	}
	p, q := testPoller(t, func(config.DeviceConfig, config.SNMPDefaults) (Session, error) {
		return sess, nil
	})

	p.pollDevice(context.Background(), switchDevice())

	events := drain(q)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].EventCode != models.CodeMetrics {
		t.Fatalf("event code = %d, want metrics despite partial failure", events[0].EventCode)
	}
	failed, ok := events[0].EventData["failed_oids"].(int)
	if !ok || failed < 1 {
		t.Errorf("failed_oids = %v, want at least 1", events[0].EventData["failed_oids"])
	}
}

func TestPollDeviceAuthFailureSkips(t *testing.T) {
	p, q := testPoller(t, func(config.DeviceConfig, config.SNMPDefaults) (Session, error) {
		return nil, errors.New("USM authentication failure: wrong digest")
	})

	p.pollDevice(context.Background(), switchDevice())

	if events := drain(q); len(events) != 0 {
		t.Errorf("auth failure produced %d events, want 0", len(events))
	}
}

func TestPollDeviceCustomOIDs(t *testing.T) {
	const fanOID = "1.3.6.1.4.1.9.9.13.1.4.1.3.1"
	sess := &fakeSession{values: map[string]any{
		profile.OIDSysDescr: "something",
		fanOID:              2,
	}}
	p, q := testPoller(t, func(config.DeviceConfig, config.SNMPDefaults) (Session, error) {
		return sess, nil
	})

	dev := switchDevice()
	dev.Type = models.DeviceTypeUnknown
	dev.CustomOIDs = map[string]string{"fan_state": fanOID}

	p.pollDevice(context.Background(), dev)

	events := drain(q)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].EventData["custom_fan_state"] != 2 {
		t.Errorf("custom_fan_state = %v, want 2 (raw value keyed by synthetic name)",
			events[0].EventData["custom_fan_state"])
	}
	if _, ok := events[0].EventData[fanOID]; ok {
		t.Error("custom OID leaked under its raw OID key")
	}
}

func TestSessionProtocolTables(t *testing.T) {
	if _, err := authProtocol("sha256"); err != nil {
		t.Errorf("authProtocol(sha256) error = %v", err)
	}
	if _, err := authProtocol("rot13"); err == nil {
		t.Error("authProtocol(rot13) should fail")
	}
	if _, err := privProtocol("aes"); err != nil {
		t.Errorf("privProtocol(aes) error = %v", err)
	}
	if _, err := privProtocol("xor"); err == nil {
		t.Error("privProtocol(xor) should fail")
	}
}

func TestIsAuthError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), false},
		{errors.New("USM initialization failed"), true},
		{errors.New("unknown user name"), true},
		{errors.New("authentication failure"), true},
		{errors.New("wrong digest"), true},
	}
	for _, tt := range tests {
		if got := isAuthError(tt.err); got != tt.want {
			t.Errorf("isAuthError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
