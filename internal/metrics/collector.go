package metrics

import (
	"time"

	"asset-catalog/internal/logging"
)

// StatsProvider supplies catalog totals for the content gauges.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the totals the collector exports.
type Stats struct {
	TotalDocuments int64
	TotalModels    int64
	TotalMissing   int64
	TotalDuplicate int64
	RenderedThumbs int64
}

// Collector periodically refreshes the catalog content gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop.
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

	AssetsTotal.WithLabelValues("document").Set(float64(stats.TotalDocuments))
	AssetsTotal.WithLabelValues("model").Set(float64(stats.TotalModels))
	AssetsMissing.Set(float64(stats.TotalMissing))
	AssetsDuplicate.Set(float64(stats.TotalDuplicate))
	ThumbnailsRendered.Set(float64(stats.RenderedThumbs))

	logging.Debug("Metrics collected: documents=%d, models=%d, missing=%d, duplicates=%d",
		stats.TotalDocuments, stats.TotalModels, stats.TotalMissing, stats.TotalDuplicate)
}
