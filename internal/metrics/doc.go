// Package metrics declares the Prometheus metrics exported by the album
// pipeline: task outcomes, scheduler batches, analysis backend and
// embedding calls, search resolutions, and database health.
//
// Metrics are registered at import time via promauto and served on a
// dedicated listener (see main.go). InitializeMetrics pre-populates label
// combinations so every series appears on the first scrape.
package metrics
