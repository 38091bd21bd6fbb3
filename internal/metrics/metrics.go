// Package metrics holds the Prometheus collectors for the transaction
// scoring pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for transaction scoring.
type Metrics struct {
	TransactionsProcessed *prometheus.CounterVec
	FraudScore            prometheus.Histogram
	RejectionsRecorded    prometheus.Counter
	RuleCacheRefreshes    prometheus.Counter
	HTTPRequestDuration   *prometheus.HistogramVec
}

// New registers and returns the collectors on the given registerer.
// Tests pass an independent registry to avoid cross-test collisions.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smaf_transactions_processed_total",
			Help: "Total number of transactions processed, by final status",
		}, []string{"status"}),
		FraudScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "smaf_fraud_score",
			Help:    "Distribution of computed fraud scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		RejectionsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "smaf_rule_rejections_recorded_total",
			Help: "Total number of rejection attributions persisted",
		}),
		RuleCacheRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "smaf_rule_cache_refreshes_total",
			Help: "Total number of rule cache refetches from the repository",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smaf_http_request_duration_ms",
			Help:    "Duration of HTTP requests in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method", "path", "status"}),
	}
}

// ObserveTransaction records one processed transaction outcome.
func (m *Metrics) ObserveTransaction(status string, score float64) {
	if m == nil {
		return
	}
	m.TransactionsProcessed.WithLabelValues(status).Inc()
	m.FraudScore.Observe(score)
}

// ObserveRejections records a batch of persisted attributions.
func (m *Metrics) ObserveRejections(count int) {
	if m == nil {
		return
	}
	m.RejectionsRecorded.Add(float64(count))
}

// ObserveCacheRefresh records one rule cache refetch.
func (m *Metrics) ObserveCacheRefresh() {
	if m == nil {
		return
	}
	m.RuleCacheRefreshes.Inc()
}
