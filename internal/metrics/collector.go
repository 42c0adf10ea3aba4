package metrics

import (
	"os"
	"strconv"
	"time"

	"media-embedder/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// NamespaceStats describes the entries stored under one namespace version.
type NamespaceStats struct {
	Namespace string
	Version   int
	Entries   int
	Bytes     int64
}

// Stats holds the current cache statistics
type Stats struct {
	Namespaces []NamespaceStats
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath may be empty when the
// cache is not backed by a database file.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
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
	c.collectDBSizes()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	total := 0
	for _, ns := range stats.Namespaces {
		version := strconv.Itoa(ns.Version)
		CacheEntries.WithLabelValues(ns.Namespace, version).Set(float64(ns.Entries))
		CacheBytes.WithLabelValues(ns.Namespace, version).Set(float64(ns.Bytes))
		total += ns.Entries
	}

	logging.Debug("Metrics collected: namespaces=%d, entries=%d", len(stats.Namespaces), total)
}

func (c *Collector) collectDBSizes() {
	if c.dbPath == "" {
		return
	}
	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}
	for label, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
