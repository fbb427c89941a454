package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollectorCounters(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())
	c := reg.Collector("snmp")

	c.Received()
	c.Received()
	c.Parsed()
	c.Dropped()
	c.Error()

	snap := c.Snapshot()
	if snap.Received != 2 || snap.Parsed != 1 || snap.Dropped != 1 || snap.Errors != 1 {
		t.Errorf("Snapshot() = %+v, want {2 1 1 1}", snap)
	}
}

func TestRegistryReusesHandles(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())

	a := reg.Collector("syslog")
	b := reg.Collector("syslog")
	if a != b {
		t.Error("Collector() returned distinct handles for the same name")
	}
}

func TestSnapshots(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())
	reg.Collector("snmp").Received()
	reg.Collector("netflow").Parsed()

	snaps := reg.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("Snapshots() has %d entries, want 2", len(snaps))
	}
	if snaps["snmp"].Received != 1 {
		t.Errorf("snmp received = %d, want 1", snaps["snmp"].Received)
	}
	if snaps["netflow"].Parsed != 1 {
		t.Errorf("netflow parsed = %d, want 1", snaps["netflow"].Parsed)
	}
}

func TestRegisterQueueDepth(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg := NewRegistry(promReg)
	reg.RegisterQueueDepth(promReg, func() float64 { return 42 })

	families, err := promReg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, fam := range families {
		if fam.GetName() == "netsentry_queue_depth" {
			if got := fam.GetMetric()[0].GetGauge().GetValue(); got != 42 {
				t.Errorf("queue depth gauge = %v, want 42", got)
			}
			return
		}
	}
	t.Error("netsentry_queue_depth not registered")
}
