package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_embedder_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_embedder_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_embedder_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_embedder_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_embedder_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Cache store metrics
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_cache_hits_total",
			Help: "Cache lookups that found an entry, by namespace",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_cache_misses_total",
			Help: "Cache lookups that found nothing, by namespace",
		},
		[]string{"namespace"},
	)

	CacheStorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_cache_storage_errors_total",
			Help: "Cache reads or writes that failed and were skipped",
		},
		[]string{"namespace", "operation"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_embedder_cache_entries",
			Help: "Number of cache entries by namespace and version",
		},
		[]string{"namespace", "version"},
	)

	CacheBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_embedder_cache_bytes",
			Help: "Total size of cache values by namespace and version",
		},
		[]string{"namespace", "version"},
	)
)

// Embedding pipeline metrics
var (
	EmbedsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_embeds_total",
			Help: "Completed embedding attempts by outcome (cache_hit, embedded, failed)",
		},
		[]string{"outcome"},
	)

	EmbedFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_embed_failures_total",
			Help: "Failed embedding attempts by failure reason",
		},
		[]string{"reason"},
	)

	EmbedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_embedder_embed_duration_seconds",
			Help:    "Time from cache check to completion for one link",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	EmbedsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_embedder_embeds_in_flight",
			Help: "Number of links currently being processed",
		},
	)

	EmbedEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_embedder_embed_escalations_total",
			Help: "Attempts that were retried with the large byte budget",
		},
	)

	TitleScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_title_scans_total",
			Help: "Container title scans by result (found, truncated, absent)",
		},
		[]string{"result"},
	)
)

// Range fetch metrics
var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_fetch_requests_total",
			Help: "Range fetches by budget and status",
		},
		[]string{"budget", "status"},
	)

	FetchBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_embedder_fetch_bytes",
			Help:    "Bytes received per range fetch",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 10),
		},
		[]string{"budget"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_embedder_fetch_duration_seconds",
			Help:    "Range fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"budget"},
	)
)

// Decode and thumbnail metrics
var (
	DecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_decode_total",
			Help: "First-frame decode attempts by status",
		},
		[]string{"status"},
	)

	DecodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_embedder_decode_duration_seconds",
			Help:    "First-frame decode duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	DecodeResourcesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_embedder_decode_resources_open",
			Help: "Transient decode buffers currently allocated",
		},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_embedder_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail downsample and encode duration by output format",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{"format"},
	)

	ThumbnailHalvingPasses = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_embedder_thumbnail_halving_passes",
			Help:    "Number of render passes used per thumbnail",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_embedder_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// CacheLookupResult counts one cache lookup in namespace ns.
func CacheLookupResult(ns string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(ns).Inc()
		return
	}
	CacheMisses.WithLabelValues(ns).Inc()
}

// Memory metrics
var (
	MemoryHeapBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_embedder_memory_heap_bytes",
			Help: "Sampled Go heap allocation in bytes",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_embedder_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the memory limit",
		},
	)

	MemoryGCTriggers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_embedder_memory_gc_triggers_total",
			Help: "Collections forced after heap usage crossed the critical ratio",
		},
	)
)

// Filesystem metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_filesystem_stale_errors_total",
			Help: "Stale file handle errors seen on document I/O",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_embedder_filesystem_retry_failures_total",
			Help: "Document I/O operations that still failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_embedder_filesystem_retry_duration_seconds",
			Help:    "Time spent on document I/O including retries",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
		},
		[]string{"operation"},
	)
)
