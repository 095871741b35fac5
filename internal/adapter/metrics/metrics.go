// Package metrics holds the Prometheus collectors of the retrieval engine.
//
// Collectors are registered on a private registry, so several engines (and
// tests) can coexist in one process.
//
// Metrics:
//   - finrag_retrievals_total{outcome} - retrieve calls by outcome (ok, error)
//   - finrag_retrieval_duration_seconds - end-to-end retrieve latency
//   - finrag_retrieval_results - results returned per call, after filtering
//   - finrag_retrieval_filtered_total - candidates dropped by the relevance filter
//   - finrag_index_builds_total{cache} - startup builds by cache outcome (hit, miss)
//   - finrag_documents_indexed - documents in the serving index
//   - finrag_embedded_texts_total{phase} - texts sent to the embedder (build, query)
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metrics for index builds and retrieval.
type Metrics struct {
	registry *prometheus.Registry

	RetrievalsTotal   *prometheus.CounterVec
	RetrievalDuration prometheus.Histogram
	RetrievalResults  prometheus.Histogram
	FilteredTotal     prometheus.Counter

	IndexBuildsTotal *prometheus.CounterVec
	DocumentsIndexed prometheus.Gauge
	EmbeddedTexts    *prometheus.CounterVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RetrievalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrag_retrievals_total",
				Help: "Total number of retrieve calls",
			},
			[]string{"outcome"},
		),
		RetrievalDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finrag_retrieval_duration_seconds",
				Help:    "Duration of retrieve calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),
		RetrievalResults: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "finrag_retrieval_results",
				Help:    "Number of results returned per retrieve call",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 10, 20},
			},
		),
		FilteredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "finrag_retrieval_filtered_total",
				Help: "Candidates dropped by the relevance filter",
			},
		),
		IndexBuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrag_index_builds_total",
				Help: "Index constructions by cache outcome",
			},
			[]string{"cache"},
		),
		DocumentsIndexed: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "finrag_documents_indexed",
				Help: "Number of documents in the serving index",
			},
		),
		EmbeddedTexts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finrag_embedded_texts_total",
				Help: "Texts sent to the embedder",
			},
			[]string{"phase"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
