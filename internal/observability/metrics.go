package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the process-wide prometheus registry surface.
type Metrics struct {
	apiRequests     *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	strategyLatency *prometheus.HistogramVec
	strategyErrors  *prometheus.CounterVec
	documentsTotal  prometheus.Counter
	chunksTotal     prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "graphrag_api_requests_total",
			Help: "API requests by route and status class.",
		}, []string{"route", "status"}),
		apiLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphrag_api_latency_seconds",
			Help:    "API request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		strategyLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graphrag_strategy_latency_seconds",
			Help:    "Retrieval strategy latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3},
		}, []string{"strategy"}),
		strategyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "graphrag_strategy_errors_total",
			Help: "Degraded retrieval strategies.",
		}, []string{"strategy"}),
		documentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "graphrag_documents_ingested_total",
			Help: "Documents ingested since start.",
		}),
		chunksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "graphrag_chunks_ingested_total",
			Help: "Chunks ingested since start.",
		}),
	}
}

func (m *Metrics) ObserveRequest(route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(route, status).Inc()
	m.apiLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveStrategy(strategy string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.strategyLatency.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if failed {
		m.strategyErrors.WithLabelValues(strategy).Inc()
	}
}

func (m *Metrics) ObserveIngest(documents, chunks int) {
	if m == nil {
		return
	}
	m.documentsTotal.Add(float64(documents))
	m.chunksTotal.Add(float64(chunks))
}
