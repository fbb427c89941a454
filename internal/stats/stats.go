// Package stats tracks per-collector counters. Each collector owns one
// Collector handle and is its only writer; the heartbeat task reads
// snapshots. Every increment is mirrored to Prometheus so the same numbers
// are scrapeable and shippable.
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a point-in-time copy of one collector's counters.
type Snapshot struct {
	Received uint64 `json:"received"`
	Parsed   uint64 `json:"parsed"`
	Dropped  uint64 `json:"dropped"`
	Errors   uint64 `json:"errors"`
}

// Collector holds the counters for a single protocol collector.
type Collector struct {
	name     string
	received atomic.Uint64
	parsed   atomic.Uint64
	dropped  atomic.Uint64
	errors   atomic.Uint64

	promReceived prometheus.Counter
	promParsed   prometheus.Counter
	promDropped  prometheus.Counter
	promErrors   prometheus.Counter
}

func (c *Collector) Received() {
	c.received.Add(1)
	c.promReceived.Inc()
}

func (c *Collector) Parsed() {
	c.parsed.Add(1)
	c.promParsed.Inc()
}

func (c *Collector) Dropped() {
	c.dropped.Add(1)
	c.promDropped.Inc()
}

func (c *Collector) Error() {
	c.errors.Add(1)
	c.promErrors.Inc()
}

// Snapshot returns a copy of the current counter values.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Received: c.received.Load(),
		Parsed:   c.parsed.Load(),
		Dropped:  c.dropped.Load(),
		Errors:   c.errors.Load(),
	}
}

// Registry hands out named Collector handles and aggregates snapshots.
type Registry struct {
	mu         sync.Mutex
	collectors map[string]*Collector
	counterVec *prometheus.CounterVec
	queueDepth prometheus.GaugeFunc
}

// NewRegistry creates a stats registry. Prometheus series are registered on
// reg; pass prometheus.NewRegistry() in tests to avoid global state.
func NewRegistry(reg prometheus.Registerer) *Registry {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsentry",
		Name:      "collector_events_total",
		Help:      "Per-collector event counters by outcome.",
	}, []string{"collector", "outcome"})
	reg.MustRegister(vec)

	return &Registry{
		collectors: make(map[string]*Collector),
		counterVec: vec,
	}
}

// Collector returns (creating if needed) the handle for the named collector.
func (r *Registry) Collector(name string) *Collector {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.collectors[name]; ok {
		return c
	}
	c := &Collector{
		name:         name,
		promReceived: r.counterVec.WithLabelValues(name, "received"),
		promParsed:   r.counterVec.WithLabelValues(name, "parsed"),
		promDropped:  r.counterVec.WithLabelValues(name, "dropped"),
		promErrors:   r.counterVec.WithLabelValues(name, "errors"),
	}
	r.collectors[name] = c
	return c
}

// RegisterQueueDepth exposes the queue depth as a gauge backed by fn.
func (r *Registry) RegisterQueueDepth(reg prometheus.Registerer, fn func() float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "netsentry",
		Name:      "queue_depth",
		Help:      "Events currently buffered in the event queue.",
	}, fn)
	reg.MustRegister(r.queueDepth)
}

// Snapshots returns a copy of every collector's counters keyed by name.
func (r *Registry) Snapshots() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.collectors))
	for name, c := range r.collectors {
		out[name] = c.Snapshot()
	}
	return out
}
