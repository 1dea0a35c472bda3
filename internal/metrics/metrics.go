// Package metrics registers Prometheus metrics for corpus operations. The
// registry is injected so unit tests can use a fresh prometheus.Registry
// without polluting the global default.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics owned by the corpus manager. A nil
// *Metrics is valid and records nothing, so wiring metrics is optional.
type Metrics struct {
	// ingestsTotal counts completed ingest operations, partitioned by
	// outcome: "ok" or "error".
	ingestsTotal *prometheus.CounterVec

	// queriesTotal counts completed query operations, partitioned by outcome.
	queriesTotal *prometheus.CounterVec

	// queryDurationSeconds records wall-clock query latency, embedding call
	// included.
	queryDurationSeconds prometheus.Histogram

	// chunksStored is the current number of chunks in the embedding store.
	chunksStored prometheus.Gauge
}

// New registers all corpus metrics against reg and returns the populated
// Metrics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ingestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "corpus",
			Name:      "ingests_total",
			Help:      "Total number of ingest operations completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragstore",
			Subsystem: "corpus",
			Name:      "queries_total",
			Help:      "Total number of query operations completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragstore",
			Subsystem: "corpus",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock duration of query operations, embedding call included.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}),

		chunksStored: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragstore",
			Subsystem: "store",
			Name:      "chunks",
			Help:      "Current number of chunks in the embedding store.",
		}),
	}
}

// ObserveIngest records one completed ingest and the resulting store size.
func (m *Metrics) ObserveIngest(err error, storeSize int) {
	if m == nil {
		return
	}
	m.ingestsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.chunksStored.Set(float64(storeSize))
	}
}

// ObserveQuery records one completed query and its duration.
func (m *Metrics) ObserveQuery(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.queryDurationSeconds.Observe(elapsed.Seconds())
	}
}

// SetStoreSize updates the stored-chunks gauge after deletes and rebuilds.
func (m *Metrics) SetStoreSize(n int) {
	if m == nil {
		return
	}
	m.chunksStored.Set(float64(n))
}

// outcome maps an error to its metric label value.
func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
