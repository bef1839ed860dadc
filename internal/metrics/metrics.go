// Package metrics exposes Prometheus instrumentation for the retrieval and
// ingestion pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetrievalDuration tracks end-to-end retrieve latency.
	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simba_retrieval_duration_seconds",
		Help:    "Time spent answering a retrieval query.",
		Buckets: prometheus.DefBuckets,
	})

	// EmbeddingDuration tracks embedding backend latency.
	EmbeddingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simba_embedding_duration_seconds",
		Help:    "Time spent generating embeddings.",
		Buckets: prometheus.DefBuckets,
	})

	// RerankDuration tracks cross-encoder rerank latency.
	RerankDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simba_rerank_duration_seconds",
		Help:    "Time spent reranking retrieved chunks.",
		Buckets: prometheus.DefBuckets,
	})

	// IngestDuration tracks full document ingestion latency.
	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "simba_ingest_duration_seconds",
		Help:    "Time spent ingesting a document end to end.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// IngestFailures counts ingestion runs that ended in a failed status.
	IngestFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simba_ingest_failures_total",
		Help: "Documents whose ingestion pipeline failed.",
	})
)

// NewTimer starts a prometheus timer against h.
func NewTimer(h prometheus.Histogram) *prometheus.Timer {
	return prometheus.NewTimer(h)
}
