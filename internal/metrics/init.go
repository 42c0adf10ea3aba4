package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"initialize_schema", "cache_get", "cache_set", "cache_stats", "get_metadata", "set_metadata"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, ns := range []string{"thumbnail", "title", "volume"} {
		CacheHits.WithLabelValues(ns)
		CacheMisses.WithLabelValues(ns)
		CacheStorageErrors.WithLabelValues(ns, "get")
		CacheStorageErrors.WithLabelValues(ns, "set")
	}

	for _, outcome := range []string{"cache_hit", "embedded", "failed"} {
		EmbedsTotal.WithLabelValues(outcome)
		EmbedDuration.WithLabelValues(outcome)
	}

	for _, reason := range []string{"transport", "network", "decode", "raster", "apply", "other"} {
		EmbedFailures.WithLabelValues(reason)
	}

	for _, result := range []string{"found", "truncated", "absent"} {
		TitleScansTotal.WithLabelValues(result)
	}

	for _, budget := range []string{"small", "large"} {
		for _, status := range []string{"success", "truncated", "transport_error", "network_error"} {
			FetchRequestsTotal.WithLabelValues(budget, status)
		}
		FetchBytes.WithLabelValues(budget)
		FetchDuration.WithLabelValues(budget)
	}

	for _, status := range []string{"success", "decode_error", "raster_error"} {
		DecodeTotal.WithLabelValues(status)
	}

	for _, format := range []string{"jpeg", "webp"} {
		ThumbnailGenerationDuration.WithLabelValues(format)
	}
}
