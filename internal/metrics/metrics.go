// Package metrics exposes the broker's operational counters on a dedicated
// Prometheus registry, so tests can run several brokers in one process
// without default-registry collisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry
	started  time.Time

	Actions        *prometheus.CounterVec
	Frames         *prometheus.CounterVec
	SweepDrops     prometheus.Counter
	EvictedPeers   prometheus.Counter
	activePeers    prometheus.GaugeFunc
	connections    prometheus.GaugeFunc
	queuedMessages prometheus.GaugeFunc
}

// New wires the gauges to live store callbacks: active peers and queue
// depth are read from the owning stores at scrape time, never duplicated.
func New(activePeers, connections, queueDepth func() float64) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		started:  time.Now(),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_actions_total",
			Help: "Dispatched stateless actions by name and outcome.",
		}, []string{"action", "outcome"}),
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_frames_total",
			Help: "Persistent-protocol frames handled by type.",
		}, []string{"type"}),
		SweepDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_sweep_dropped_total",
			Help: "Queued entries dropped by retention sweeps.",
		}),
		EvictedPeers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courier_evicted_peers_total",
			Help: "Peers evicted for missing heartbeats.",
		}),
		activePeers: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "courier_active_peers",
			Help: "Peers currently tracked by the directory.",
		}, activePeers),
		connections: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "courier_live_connections",
			Help: "Open persistent connections.",
		}, connections),
		queuedMessages: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "courier_queued_messages",
			Help: "Messages waiting in store-and-forward queues.",
		}, queueDepth),
	}

	reg.MustRegister(m.Actions, m.Frames, m.SweepDrops, m.EvictedPeers,
		m.activePeers, m.connections, m.queuedMessages)
	return m
}

// Uptime returns time since the metrics (and so the process) started.
func (m *Metrics) Uptime() time.Duration { return time.Since(m.started) }

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
