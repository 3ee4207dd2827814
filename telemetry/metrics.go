package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the refresh cycle, prognosis
// sweeps, live-event ingestion and dispatcher operations. One Metrics
// serves one running orchestrator.
type Metrics struct {
	registry *prometheus.Registry

	CyclesTotal       prometheus.Counter
	PrognoseRuns      prometheus.Counter
	PrognoseErrors    prometheus.Counter
	UnresolvedEvents  prometheus.Gauge
	IngestEventsTotal *prometheus.CounterVec
	DispatchOpsTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers every collector under namespace (e.g.
// "dispocore").
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrator_cycles_total",
			Help:      "Total number of orchestrator refresh cycles run.",
		}),
		PrognoseRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prognose_runs_total",
			Help:      "Total number of prognosis sweeps run.",
		}),
		PrognoseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prognose_errors_total",
			Help:      "Total number of prognosis sweeps that returned an error.",
		}),
		UnresolvedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prognose_unresolved_events",
			Help:      "Number of events left without a prediction by the most recent sweep.",
		}),
		IngestEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_events_total",
			Help:      "Total number of live events applied, by kind.",
		}, []string{"kind"}),
		DispatchOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_ops_total",
			Help:      "Total number of dispatcher-intent operations applied, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.PrognoseRuns,
		m.PrognoseErrors,
		m.UnresolvedEvents,
		m.IngestEventsTotal,
		m.DispatchOpsTotal,
	)
	return m
}

// Handler exposes the /metrics endpoint for this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPrognose updates the prognosis-related collectors after one Run.
func (m *Metrics) RecordPrognose(unresolved int, err error) {
	m.PrognoseRuns.Inc()
	m.UnresolvedEvents.Set(float64(unresolved))
	if err != nil {
		m.PrognoseErrors.Inc()
	}
}
