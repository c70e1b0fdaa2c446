package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_album_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_album_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_album_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_album_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Pipeline metrics
var (
	PipelineTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_pipeline_tasks_total",
			Help: "Total number of analysis tasks by terminal outcome",
		},
		[]string{"kind", "outcome"}, // outcome: completed, degraded, failed, vanished, timeout
	)

	PipelineTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_album_pipeline_task_duration_seconds",
			Help:    "Analysis task duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	PipelineTaskRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_album_pipeline_task_retries_total",
			Help: "Total number of in-task analysis retries",
		},
	)

	PipelineTasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_album_pipeline_tasks_in_flight",
			Help: "Number of analysis tasks currently executing",
		},
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_album_pipeline_queue_depth",
			Help: "Number of dispatched tasks waiting for a worker",
		},
	)

	MediaItemsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_album_media_items",
			Help: "Number of media items by kind and processing status",
		},
		[]string{"kind", "status"},
	)
)

// Scheduler metrics
var (
	SchedulerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_scheduler_runs_total",
			Help: "Total number of batch scheduler runs",
		},
		[]string{"kind", "trigger"}, // trigger: scheduled, manual, upload
	)

	SchedulerItemsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_scheduler_items_queued_total",
			Help: "Total number of items queued for analysis",
		},
		[]string{"kind"},
	)

	SchedulerOrphansDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_scheduler_orphans_detected_total",
			Help: "Total number of orphaned items found during selection",
		},
		[]string{"kind"},
	)

	SchedulerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_album_scheduler_last_run_timestamp",
			Help: "Timestamp of the last scheduled batch run",
		},
	)
)

// Analysis backend metrics
var (
	AnalysisCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_analysis_calls_total",
			Help: "Total number of analysis backend calls",
		},
		[]string{"backend", "status"},
	)

	AnalysisCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_album_analysis_call_duration_seconds",
			Help:    "Analysis backend call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"backend"},
	)
)

// Embedding metrics
var (
	EmbeddingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_embeddings_total",
			Help: "Total number of embedding computations",
		},
		[]string{"input", "status"}, // input: image, text
	)

	EmbeddingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_album_embedding_duration_seconds",
			Help:    "Embedding computation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"input"},
	)

	EmbeddingModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_album_embedding_model_loaded",
			Help: "Whether the embedding model is loaded (1), unloaded (0) or failed (-1)",
		},
	)
)

// Search metrics
var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"mode", "resolution"}, // resolution: exact, vector, text_fallback, empty
	)

	SearchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_album_search_query_duration_seconds",
			Help:    "Search query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	SearchCandidatesScored = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_album_search_candidates_scored",
			Help:    "Number of candidates scored by the vector pass",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
)

// Storage metrics
var (
	StorageRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_storage_retry_attempts_total",
			Help: "Total number of storage operation retries",
		},
		[]string{"operation"},
	)

	StorageStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_album_storage_stale_errors_total",
			Help: "Total number of NFS stale file handle errors",
		},
		[]string{"operation"},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_album_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_album_memory_paused",
			Help: "Whether analysis processing is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_album_memory_gc_pauses_total",
			Help: "Total number of processing pauses triggered by memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_album_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
