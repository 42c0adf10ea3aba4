package handlers

import (
	"sync/atomic"
	"time"

	"media-embedder/internal/database"
	"media-embedder/internal/embedder"
	"media-embedder/internal/memory"
	"media-embedder/internal/metrics"
	"media-embedder/internal/mediatypes"
)

// Handlers serves the embedding API over a shared cache store.
type Handlers struct {
	pipeline embedder.Options
	allow    *mediatypes.AllowList
	stats    metrics.StatsProvider
	memory   *memory.Monitor

	startTime time.Time
	ready     atomic.Bool
}

// New creates the handler set. pipeline is used for every POST /api/embed
// request; stats may be nil when no cache statistics are available.
func New(pipeline embedder.Options, allow *mediatypes.AllowList, stats metrics.StatsProvider) *Handlers {
	if pipeline.Namespaces == (database.Namespaces{}) {
		pipeline.Namespaces = database.NewNamespaces(1)
	}
	return &Handlers{
		pipeline:  pipeline,
		allow:     allow,
		stats:     stats,
		startTime: time.Now(),
	}
}

// SetReady marks the service ready (or not) to accept traffic.
func (h *Handlers) SetReady(ready bool) {
	h.ready.Store(ready)
}

// SetMemoryMonitor adds heap usage to the health response.
func (h *Handlers) SetMemoryMonitor(m *memory.Monitor) {
	h.memory = m
}

func (h *Handlers) store() database.Store {
	return h.pipeline.Store
}

func (h *Handlers) namespaces() database.Namespaces {
	return h.pipeline.Namespaces
}
