package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-embedder/internal/logging"
	"media-embedder/internal/metrics"
)

// Config holds memory monitor settings.
type Config struct {
	// LimitBytes overrides the Go soft limit when non-zero.
	LimitBytes int64
	// CriticalRatio is the heap share of the limit that triggers a GC.
	CriticalRatio float64
	// Interval between samples.
	Interval time.Duration
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		CriticalRatio: 0.9,
		Interval:      5 * time.Second,
	}
}

// Monitor samples heap usage against the memory limit, exports it as a
// gauge and forces a collection when usage crosses the critical ratio.
// Embeds are never throttled.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	mu       sync.RWMutex
	current  uint64
	critical bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor. Without an explicit or Go runtime limit it
// only records usage in bytes.
func NewMonitor(config Config) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.CriticalRatio <= 0 || config.CriticalRatio > 1 {
		config.CriticalRatio = DefaultConfig().CriticalRatio
	}

	limit := config.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
			limit = l
		}
	}

	return &Monitor{
		config: config,
		limit:  limit,
		sample: heapAlloc,
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Start samples in the background until Stop or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		m.check()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends sampling and waits for the sampler to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) check() {
	alloc := m.sample()

	m.mu.Lock()
	m.current = alloc
	wasCritical := m.critical
	usage := 0.0
	if m.limit > 0 {
		usage = float64(alloc) / float64(m.limit)
		m.critical = usage >= m.config.CriticalRatio
	}
	nowCritical := m.critical
	m.mu.Unlock()

	metrics.MemoryHeapBytes.Set(float64(alloc))
	metrics.MemoryUsageRatio.Set(usage)

	if nowCritical && !wasCritical {
		metrics.MemoryGCTriggers.Inc()
		logging.Warn("Heap at %.1f%% of memory limit, forcing GC", usage*100)
		runtime.GC()
	} else if wasCritical && !nowCritical {
		logging.Info("Heap back to %.1f%% of memory limit", usage*100)
	}
}

// Usage returns heap usage as a fraction of the limit, or 0 without one.
func (m *Monitor) Usage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.limit == 0 {
		return 0
	}
	return float64(m.current) / float64(m.limit)
}

// Limit returns the limit in bytes, 0 when none is known.
func (m *Monitor) Limit() int64 {
	return m.limit
}

// Critical reports whether the last sample crossed the critical ratio.
func (m *Monitor) Critical() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.critical
}
