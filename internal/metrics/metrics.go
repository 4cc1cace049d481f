// Package metrics provides Prometheus instrumentation for videocompress.
//
// All metrics are registered with the default registry through promauto and
// prefixed with "videocompress_". Mount promhttp.Handler() to expose them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session outcome labels.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
	StatusSuccess   = "success"
	StatusEmpty     = "empty"
	StatusError     = "error"
)

// Compression session metrics
var (
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocompress_sessions_total",
			Help: "Total number of compression sessions by outcome",
		},
		[]string{"status"},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videocompress_session_duration_seconds",
			Help:    "Compression session duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SessionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videocompress_sessions_in_progress",
			Help: "Number of compression sessions currently running",
		},
	)

	SamplesWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocompress_samples_written_total",
			Help: "Total number of samples appended to encoder inputs",
		},
		[]string{"track"}, // "video", "audio"
	)

	BytesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videocompress_bytes_saved_total",
			Help: "Total bytes saved by completed compressions",
		},
	)
)

// Probe metrics
var (
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocompress_probes_total",
			Help: "Total number of media probes",
		},
		[]string{"status"},
	)
)

// Thumbnail metrics
var (
	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocompress_thumbnails_total",
			Help: "Total number of thumbnail extractions",
		},
		[]string{"format", "status"},
	)

	ThumbnailDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videocompress_thumbnail_duration_seconds",
			Help:    "Thumbnail extraction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Cache metrics
var (
	CacheClearsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videocompress_cache_clears_total",
			Help: "Total number of cache clear operations",
		},
	)

	CacheFilesRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videocompress_cache_files_removed_total",
			Help: "Total number of cache entries removed",
		},
	)

	CacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videocompress_cache_size_bytes",
			Help: "Size of the cache directory in bytes at the last measurement",
		},
	)
)

// API metrics
var (
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videocompress_calls_total",
			Help: "Total number of method calls by method and result code",
		},
		[]string{"method", "code"},
	)

	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videocompress_call_duration_seconds",
			Help:    "Method call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ProgressSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videocompress_progress_subscribers",
			Help: "Number of connected progress stream clients",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "videocompress_app_info",
			Help: "Application information",
		},
		[]string{"version", "go_version"},
	)
)

// SetAppInfo sets the application info metric.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}

// ObserveSession records the outcome and duration of a finished session.
func ObserveSession(status string, elapsed time.Duration) {
	SessionsTotal.WithLabelValues(status).Inc()
	if status != StatusRejected {
		SessionDuration.Observe(elapsed.Seconds())
	}
}

// ObserveThumbnail records a thumbnail extraction.
func ObserveThumbnail(format, status string, elapsed time.Duration) {
	ThumbnailsTotal.WithLabelValues(format, status).Inc()
	ThumbnailDuration.Observe(elapsed.Seconds())
}

// InitializeMetrics pre-populates the expected label combinations so that
// every series is exported from the first scrape.
func InitializeMetrics() {
	for _, s := range []string{StatusCompleted, StatusCancelled, StatusFailed, StatusRejected} {
		SessionsTotal.WithLabelValues(s)
	}
	for _, track := range []string{"video", "audio"} {
		SamplesWrittenTotal.WithLabelValues(track)
	}
	for _, s := range []string{StatusSuccess, StatusError} {
		ProbesTotal.WithLabelValues(s)
	}
	for _, f := range []string{"jpeg", "webp"} {
		for _, s := range []string{StatusSuccess, StatusEmpty, StatusError} {
			ThumbnailsTotal.WithLabelValues(f, s)
		}
	}
}
