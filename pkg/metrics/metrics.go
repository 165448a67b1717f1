// Package metrics exposes the state engine's Prometheus counters and
// histograms: transitions processed by outcome, settled fee totals, epoch
// changes, and proof-serving latency. One Registry is created per process
// and wired into the ABCI application and query server at startup.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the engine records. It is safe for
// concurrent use; the underlying prometheus collectors already are.
type Registry struct {
	TransitionsTotal    *prometheus.CounterVec
	FeeCreditsTotal     *prometheus.CounterVec
	BlocksProcessed     prometheus.Counter
	EpochChangesTotal   prometheus.Counter
	ProofLatencySeconds *prometheus.HistogramVec
	TreeHeight          prometheus.Gauge
}

// NewRegistry constructs and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer for the process-wide one used in production.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statecore_transitions_total",
			Help: "Transitions processed, labeled by kind and outcome status.",
		}, []string{"kind", "status"}),
		FeeCreditsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statecore_fee_credits_total",
			Help: "Fee credits settled, labeled by pool (storage or processing).",
		}, []string{"pool"}),
		BlocksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "statecore_blocks_processed_total",
			Help: "Blocks that completed FinalizeBlock.",
		}),
		EpochChangesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "statecore_epoch_changes_total",
			Help: "Epoch boundaries crossed.",
		}),
		ProofLatencySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statecore_proof_latency_seconds",
			Help:    "Latency of proof-producing query handling, labeled by query type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		TreeHeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "statecore_tree_height",
			Help: "Last committed block height reflected in the tree store.",
		}),
	}
}

// Handler returns the HTTP handler that serves the registry's collectors
// in the Prometheus exposition format, for mounting at "/metrics".
func Handler() http.Handler {
	return promhttp.Handler()
}
