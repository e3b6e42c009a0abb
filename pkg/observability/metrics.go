// Package observability groups the Prometheus instruments for the chronos
// memory engine.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the engine.
type Metrics struct {
	TurnsProcessed     prometheus.Counter
	TurnFailures       *prometheus.CounterVec
	RecallLookups      prometheus.Counter
	CompactionRuns     prometheus.Counter
	CompactionFailures prometheus.Counter
	CompactedTurns     prometheus.Counter
	ReasonerLatency    prometheus.Histogram
}

// NewMetrics registers and returns the engine instruments under the given
// namespace. Call at most once per process.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TurnsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_processed_total",
			Help:      "Conversational turns completed end to end.",
		}),
		TurnFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_failures_total",
			Help:      "Failed turns by error kind.",
		}, []string{"kind"}),
		RecallLookups: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_lookups_total",
			Help:      "Recall directives honored by the investigator.",
		}),
		CompactionRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_runs_total",
			Help:      "Historian compaction batches attempted.",
		}),
		CompactionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_failures_total",
			Help:      "Historian compaction batches that aborted.",
		}),
		CompactedTurns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compacted_turns_total",
			Help:      "Turns flagged compacted by the historian.",
		}),
		ReasonerLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoner_latency_ms",
			Help:      "Latency of a single reasoning-step invocation in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
	}
}

// ObserveReasonerLatency records one reasoning-step round trip.
func (m *Metrics) ObserveReasonerLatency(d time.Duration) {
	m.ReasonerLatency.Observe(float64(d.Milliseconds()))
}

// MetricsHandler exposes the default registry for scraping.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
