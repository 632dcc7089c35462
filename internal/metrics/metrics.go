package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	// UploadsTotal counts publish attempts by outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidpub",
			Name:      "uploads_total",
			Help:      "Total number of video publish attempts",
		},
		[]string{"outcome"},
	)

	// StageDuration tracks how long each pipeline stage takes.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vidpub",
			Name:      "stage_duration_seconds",
			Help:      "Time taken by each publish pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)

	// PipelineDuration tracks end-to-end publish time.
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vidpub",
			Name:      "pipeline_duration_seconds",
			Help:      "Time taken to publish a video end to end",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// AspectClasses counts published videos by aspect class.
	AspectClasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidpub",
			Name:      "aspect_class_total",
			Help:      "Published videos by aspect class",
		},
		[]string{"class"},
	)

	// BytesPublished counts bytes uploaded to the object store.
	BytesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vidpub",
			Name:      "published_bytes_total",
			Help:      "Total bytes uploaded to object storage",
		},
	)

	// ActiveUploads tracks uploads currently in the pipeline.
	ActiveUploads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vidpub",
			Name:      "active_uploads",
			Help:      "Number of uploads currently being processed",
		},
	)

	// CleanupFailures counts scratch files that could not be removed.
	CleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vidpub",
			Name:      "cleanup_failures_total",
			Help:      "Scratch files that could not be removed",
		},
	)
)

// API metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidpub",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vidpub",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthFailures counts authentication failures by reason.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidpub",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
)

// RecordOutcome records the terminal state of one publish attempt.
func RecordOutcome(outcome string) {
	UploadsTotal.WithLabelValues(outcome).Inc()
}

// RecordPublished records a successfully published object.
func RecordPublished(class string, bytes int64) {
	AspectClasses.WithLabelValues(class).Inc()
	BytesPublished.Add(float64(bytes))
}
