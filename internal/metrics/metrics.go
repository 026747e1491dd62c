// Package metrics provides Prometheus metrics for the question answering service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for kbqa
type Metrics struct {
	// Ingestion metrics
	DocumentsIngested prometheus.Counter
	ChunksIndexed     prometheus.Counter
	IngestionErrors   prometheus.Counter
	IndexDuration     prometheus.Histogram
	IndexedChunks     prometheus.Gauge

	// Provider metrics
	EmbeddingFailures  prometheus.Counter
	GenerationFailures prometheus.Counter

	// Query metrics
	Queries       *prometheus.CounterVec
	QueryDuration prometheus.Histogram
}

// New creates all kbqa metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "kbqa_documents_ingested_total",
			Help: "Total number of documents ingested",
		}),
		ChunksIndexed: f.NewCounter(prometheus.CounterOpts{
			Name: "kbqa_chunks_indexed_total",
			Help: "Total number of chunks embedded and stored",
		}),
		IngestionErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "kbqa_ingestion_errors_total",
			Help: "Total number of files or chunks skipped during ingestion",
		}),
		IndexDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kbqa_index_duration_seconds",
			Help:    "Duration of knowledge base builds in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		IndexedChunks: f.NewGauge(prometheus.GaugeOpts{
			Name: "kbqa_indexed_chunks",
			Help: "Number of chunks in the live index",
		}),
		EmbeddingFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "kbqa_embedding_failures_total",
			Help: "Total number of embedding calls that failed after retries",
		}),
		GenerationFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "kbqa_generation_failures_total",
			Help: "Total number of failed answer generations",
		}),
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kbqa_queries_total",
			Help: "Total number of answered queries by outcome",
		}, []string{"outcome"}),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kbqa_query_duration_seconds",
			Help:    "End-to-end query latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
