package metrics

// InitializeMetrics pre-populates expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	kinds := []string{"photo", "video"}

	for _, kind := range kinds {
		for _, outcome := range []string{"completed", "degraded", "failed", "vanished", "timeout"} {
			PipelineTasksTotal.WithLabelValues(kind, outcome)
		}
		PipelineTaskDuration.WithLabelValues(kind)

		for _, status := range []string{"pending", "processing", "completed", "failed", "orphaned"} {
			MediaItemsByStatus.WithLabelValues(kind, status)
		}

		for _, trigger := range []string{"scheduled", "manual", "upload"} {
			SchedulerRunsTotal.WithLabelValues(kind, trigger)
		}
		SchedulerItemsQueued.WithLabelValues(kind)
		SchedulerOrphansDetected.WithLabelValues(kind)
	}

	for _, backend := range []string{"local", "api", "heuristic"} {
		AnalysisCallsTotal.WithLabelValues(backend, "success")
		AnalysisCallsTotal.WithLabelValues(backend, "error")
		AnalysisCallDuration.WithLabelValues(backend)
	}

	for _, input := range []string{"image", "text"} {
		EmbeddingsTotal.WithLabelValues(input, "success")
		EmbeddingsTotal.WithLabelValues(input, "error")
		EmbeddingDuration.WithLabelValues(input)
	}

	for _, mode := range []string{"text", "ai"} {
		for _, resolution := range []string{"exact", "vector", "text_fallback", "empty"} {
			SearchQueriesTotal.WithLabelValues(mode, resolution)
		}
		SearchQueryDuration.WithLabelValues(mode)
	}

	for _, op := range []string{"create_item", "get_item", "select_pending", "transition",
		"complete_item", "fail_item", "reset_item", "status_counts", "candidates"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "open"} {
		StorageRetryAttempts.WithLabelValues(op)
		StorageStaleErrors.WithLabelValues(op)
	}
}
