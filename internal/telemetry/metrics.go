// Package telemetry exposes kernel-level observability: a counter of
// dispatched messages by kind, a gauge of queue depth, and a histogram
// comparing simulated time to wall-clock time. Ambient observability, not a
// modeled feature — optionally served by the CLI driver over promhttp for
// long demo runs.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andrewsonin/simkernel/internal/kernel"
)

// Metrics implements kernel.Instrumentation against a dedicated Prometheus
// registry, grounded on internal/telemetry's sibling service-layer examples'
// own prometheus.NewCounterVec/NewHistogramVec/NewGaugeVec + MustRegister
// idiom (other_examples/41eb3b21_autovant-trading-bot__execution_service.go).
type Metrics struct {
	registry *prometheus.Registry

	dispatched     *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	simVsWallRatio prometheus.Histogram
}

// New creates a Metrics collector registered against a fresh registry, so
// multiple runs in the same process (e.g. a cross-scenario sweep) don't
// collide on metric names.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simkernel_messages_dispatched_total",
				Help: "Total messages dispatched by the kernel, by message kind.",
			},
			[]string{"kind"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "simkernel_queue_depth",
				Help: "Number of messages remaining in the kernel's priority queue after the last dispatch.",
			},
		),
		simVsWallRatio: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "simkernel_sim_seconds_per_wall_second",
				Help:    "Simulated seconds advanced per wall-clock second of a run, sampled once per run.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 16),
			},
		),
	}
	reg.MustRegister(m.dispatched, m.queueDepth, m.simVsWallRatio)
	return m
}

// ObserveDispatch implements kernel.Instrumentation.
func (m *Metrics) ObserveDispatch(kind kernel.MessageKind, queueDepth int) {
	m.dispatched.WithLabelValues(kind.String()).Inc()
	m.queueDepth.Set(float64(queueDepth))
}

// ObserveSimVsWall records one simulated-seconds-per-wall-second sample. The
// Runner calls this once per run, after the kernel has run to the scenario's
// duration.
func (m *Metrics) ObserveSimVsWall(simSeconds, wallSeconds float64) {
	if wallSeconds <= 0 {
		return
	}
	m.simVsWallRatio.Observe(simSeconds / wallSeconds)
}

// Handler returns an http.Handler serving this collector's metrics in
// Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
