package metrics

import (
	"time"

	"photo-album/internal/logging"
)

// StatsProvider supplies per-kind item counts and connection-pool
// gauges for the collector.
type StatsProvider interface {
	GetStats() Stats
	UpdateDBMetrics()
}

// Stats holds item counts by kind and processing status.
type Stats struct {
	// Keyed by media kind ("photo", "video"), then status.
	Counts map[string]map[string]int
}

// Collector periodically collects and updates item-status gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	for kind, byStatus := range stats.Counts {
		for status, count := range byStatus {
			MediaItemsByStatus.WithLabelValues(kind, status).Set(float64(count))
		}
	}
	c.statsProvider.UpdateDBMetrics()

	logging.Debug("Metrics collected for %d media kinds", len(stats.Counts))
}
