package metrics

import (
	"context"
	"runtime"
	"time"
)

// Collect samples the Go runtime once into the system gauges.
func (m *Manager) Collect() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if ms.NumGC > 0 {
		m.systemGCPauseTime.Observe(float64(ms.PauseTotalNs) / float64(ms.NumGC) / float64(time.Millisecond))
	}
}

// Run samples the runtime every refresh interval until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if !m.enabled {
		return ErrCollectorDisabled
	}

	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	m.Collect()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Collect()
		}
	}
}

// RunSystemCollector runs the global manager's collector until ctx is done.
func RunSystemCollector(ctx context.Context) error {
	return globalManager.Run(ctx)
}
