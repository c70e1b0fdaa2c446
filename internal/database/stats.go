package database

import (
	"context"
	"time"

	"photo-album/internal/logging"
	"photo-album/internal/metrics"
)

// GetStats returns item counts grouped by kind and processing status for
// the metrics collector. Errors are logged and yield empty stats; metric
// collection must never interfere with request handling.
func (d *Database) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	stats := metrics.Stats{Counts: make(map[string]map[string]int)}

	rows, err := d.db.QueryContext(ctx, `
		SELECT kind, processing_status, COUNT(*)
		FROM media_items
		GROUP BY kind, processing_status`)
	if err != nil {
		logging.Error("Failed to collect item stats: %v", err)
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var kind, status string
		var count int
		if err = rows.Scan(&kind, &status, &count); err != nil {
			logging.Error("Failed to scan item stats row: %v", err)
			return stats
		}
		byStatus, ok := stats.Counts[kind]
		if !ok {
			byStatus = make(map[string]int)
			stats.Counts[kind] = byStatus
		}
		byStatus[status] = count
	}
	err = rows.Err()
	return stats
}
