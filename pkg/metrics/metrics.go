// Package metrics provides Prometheus metrics for fern.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessedTotal tracks records by pipeline stage outcome
	RecordsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "records_total",
			Help:      "Total number of records seen by the pipeline by outcome",
		},
		[]string{"batch_label", "outcome"},
	)

	// RunDuration tracks pipeline run duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"batch_label"},
	)

	// WarningsTotal tracks soft failures by code
	WarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "pipeline",
			Name:      "warnings_total",
			Help:      "Total number of pipeline warnings by code",
		},
		[]string{"code"},
	)

	// ExportsTotal tracks export attempts by target and status
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "export",
			Name:      "targets_total",
			Help:      "Total number of export attempts by target and status",
		},
		[]string{"target", "status"},
	)

	// ExportDuration tracks how long each target takes
	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "export",
			Name:      "target_duration_seconds",
			Help:      "Duration of export operations in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"target"},
	)

	// SourceFetchDuration tracks source fetches
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of source fetches in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"source"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// RedisOperationDuration tracks Redis operation duration
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)
)

// RecordRun records the outcome counts and duration of one pipeline run
func RecordRun(batchLabel string, input, output, unchanged int, durationSeconds float64) {
	RecordsProcessedTotal.WithLabelValues(batchLabel, "input").Add(float64(input))
	RecordsProcessedTotal.WithLabelValues(batchLabel, "output").Add(float64(output))
	RecordsProcessedTotal.WithLabelValues(batchLabel, "unchanged").Add(float64(unchanged))
	RunDuration.WithLabelValues(batchLabel).Observe(durationSeconds)
}

// RecordWarnings adds per-code warning counts
func RecordWarnings(counts map[string]int) {
	for code, n := range counts {
		WarningsTotal.WithLabelValues(code).Add(float64(n))
	}
}

// RecordExport records one target's export attempt
func RecordExport(target, status string, durationSeconds float64) {
	ExportsTotal.WithLabelValues(target, status).Inc()
	ExportDuration.WithLabelValues(target).Observe(durationSeconds)
}

// RecordSourceFetch records a source fetch
func RecordSourceFetch(source string, durationSeconds float64) {
	SourceFetchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish
func RecordKafkaPublish(topic, status string, count int) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Add(float64(count))
}

// RecordRedisOperation records a Redis operation duration
func RecordRedisOperation(operation string, durationSeconds float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// HTTPRequestDuration tracks API request latency by route and status class
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "fern",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of API requests in seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	},
	[]string{"method", "route", "status"},
)

func RecordHTTPRequest(method, route string, status int, durationSeconds float64) {
	HTTPRequestDuration.WithLabelValues(method, route, fmt.Sprintf("%dxx", status/100)).Observe(durationSeconds)
}
