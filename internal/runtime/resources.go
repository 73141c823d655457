package runtime

import (
	"runtime"
	"runtime/metrics"
	"sync"
	"time"
)

const (
	metricCPUSeconds = "/sched/cpu:seconds"
	metricGoroutines = "/sched/goroutines:goroutines"
)

// ResourceUsage is a coarse process-wide sample attached to connector stats.
// Connectors share one tracker per graph so CPU deltas are computed against the
// previous inspector request, not per connector.
type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	Goroutines  int     `json:"goroutines"`
}

type resourceTracker struct {
	mu             sync.Mutex
	samples        []metrics.Sample
	lastCPUSeconds float64
	lastSample     time.Time
	numCPU         float64
}

func newResourceTracker() *resourceTracker {
	return &resourceTracker{
		samples: defaultResourceSamples(),
		numCPU:  float64(runtime.NumCPU()),
	}
}

func defaultResourceSamples() []metrics.Sample {
	return []metrics.Sample{{Name: metricCPUSeconds}, {Name: metricGoroutines}}
}

func (r *resourceTracker) Snapshot() ResourceUsage {
	if r == nil {
		return ResourceUsage{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == 0 {
		r.samples = defaultResourceSamples()
	}
	metrics.Read(r.samples)

	var (
		cpuSeconds float64
		haveCPU    bool
		goroutines = runtime.NumGoroutine()
	)
	for _, sample := range r.samples {
		switch {
		case sample.Name == metricCPUSeconds && sample.Value.Kind() == metrics.KindFloat64:
			cpuSeconds, haveCPU = sample.Value.Float64(), true
		case sample.Name == metricGoroutines && sample.Value.Kind() == metrics.KindUint64:
			goroutines = int(sample.Value.Uint64())
		}
	}
	now := time.Now()

	var cpuPercent float64
	if haveCPU && !r.lastSample.IsZero() {
		deltaCPU := cpuSeconds - r.lastCPUSeconds
		deltaWall := now.Sub(r.lastSample).Seconds()
		if deltaWall > 0 && r.numCPU > 0 {
			cpuPercent = (deltaCPU / deltaWall) / r.numCPU * 100
		}
	}
	if haveCPU {
		r.lastCPUSeconds = cpuSeconds
	}
	r.lastSample = now

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return ResourceUsage{
		CPUPercent:  cpuPercent,
		MemoryBytes: mem.Alloc,
		Goroutines:  goroutines,
	}
}

// sharedResources feeds every connector: the figures are process wide.
var sharedResources = newResourceTracker()
