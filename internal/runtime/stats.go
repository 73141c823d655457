package runtime

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// ConnectorStats accumulates per-connector counters for the current run. It is
// reset by every Start.
type ConnectorStats struct {
	mu sync.Mutex

	received  uint64
	dropped   uint64
	processed uint64
	failed    uint64
	totalNs   int64
	lastAt    time.Time
	errors    ErrorBreakdown
	backlog   BacklogMetrics
	latency   LatencyMetrics
	rate      ThroughputMetrics
	resources ResourceUsage

	classifier       ErrorClassifier
	latencyWindow    *latencyWindow
	throughputWindow *throughputWindow
	resourceSampler  *resourceTracker
}

// ConnectorStatsSnapshot is a point in time copy of ConnectorStats.
type ConnectorStatsSnapshot struct {
	DocumentsReceived   uint64            `json:"documents_received"`
	DocumentsDropped    uint64            `json:"documents_dropped"`
	DocumentsProcessed  uint64            `json:"documents_processed"`
	DocumentsFailed     uint64            `json:"documents_failed"`
	TotalProcessingTime int64             `json:"total_processing_time_ns"`
	LastProcessedAt     time.Time         `json:"last_processed_at"`
	Latency             LatencyMetrics    `json:"latency"`
	Throughput          ThroughputMetrics `json:"throughput"`
	Errors              ErrorBreakdown    `json:"errors"`
	Backlog             BacklogMetrics    `json:"backlog"`
	Resource            ResourceUsage     `json:"resource"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ThroughputMetrics struct {
	CurrentRPS        float64 `json:"current_rps"`
	WindowSeconds     float64 `json:"window_seconds"`
	DocumentsInWindow uint64  `json:"documents_in_window"`
}

type ErrorBreakdown struct {
	Panic     uint64 `json:"panic"`
	Canceled  uint64 `json:"canceled"`
	Handler   uint64 `json:"handler"`
	LastError string `json:"last_error,omitempty"`
}

// BacklogMetrics describes the connector queue. Queues are unbounded, so
// MaxQueueDepth is the high-water mark of the run, not a limit.
type BacklogMetrics struct {
	QueueDepth    int    `json:"queue_depth"`
	MaxQueueDepth int    `json:"max_queue_depth"`
	InFlight      uint64 `json:"in_flight"`
}

type ErrorCategory string

const (
	ErrorCategoryNone     ErrorCategory = "none"
	ErrorCategoryPanic    ErrorCategory = "panic"
	ErrorCategoryCanceled ErrorCategory = "canceled"
	ErrorCategoryHandler  ErrorCategory = "handler"
)

// ErrorClassifier maps a handler error to the category it is counted under.
// Categories other than the predefined ones are counted as handler errors.
type ErrorClassifier func(error) ErrorCategory

func newConnectorStats(sampler *resourceTracker, classifier ErrorClassifier) *ConnectorStats {
	if classifier == nil {
		classifier = defaultErrorClassifier
	}
	return &ConnectorStats{
		classifier:       classifier,
		latencyWindow:    newLatencyWindow(latencySampleSize),
		throughputWindow: newThroughputWindow(throughputWindowSize),
		resourceSampler:  sampler,
	}
}

func (s *ConnectorStats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received, s.dropped, s.processed, s.failed, s.totalNs = 0, 0, 0, 0, 0
	s.lastAt = time.Time{}
	s.errors = ErrorBreakdown{}
	s.backlog = BacklogMetrics{}
	s.latency = LatencyMetrics{}
	s.rate = ThroughputMetrics{}
	s.latencyWindow = newLatencyWindow(latencySampleSize)
	s.throughputWindow = newThroughputWindow(throughputWindowSize)
}

func (s *ConnectorStats) onEnqueued(depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.received++
	s.setDepthLocked(depth)
}

func (s *ConnectorStats) onDropped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped += uint64(n)
}

func (s *ConnectorStats) onStart(depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.backlog.InFlight++
	s.setDepthLocked(depth)
}

func (s *ConnectorStats) setDepthLocked(depth int) {
	s.backlog.QueueDepth = depth
	if depth > s.backlog.MaxQueueDepth {
		s.backlog.MaxQueueDepth = depth
	}
}

func (s *ConnectorStats) onFinish(duration time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backlog.InFlight > 0 {
		s.backlog.InFlight--
	}
	s.processed++
	if err != nil {
		s.failed++
	}
	s.totalNs += int64(duration)
	s.lastAt = time.Now().UTC()

	s.latencyWindow.Add(duration)
	s.latency = s.latencyWindow.Snapshot()
	s.latency.AverageNs = s.totalNs / int64(s.processed)

	tp := s.throughputWindow.AddAndSnapshot(time.Now())
	s.rate = ThroughputMetrics{
		CurrentRPS:        tp.CurrentRPS,
		WindowSeconds:     tp.WindowSeconds,
		DocumentsInWindow: uint64(tp.Count),
	}

	s.errors.Record(s.classifier(err), err)
}

// Snapshot copies the current counters. Resource usage is sampled on demand.
func (s *ConnectorStats) Snapshot() ConnectorStatsSnapshot {
	if s == nil {
		return ConnectorStatsSnapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resourceSampler != nil {
		s.resources = s.resourceSampler.Snapshot()
	}
	return ConnectorStatsSnapshot{
		DocumentsReceived:   s.received,
		DocumentsDropped:    s.dropped,
		DocumentsProcessed:  s.processed,
		DocumentsFailed:     s.failed,
		TotalProcessingTime: s.totalNs,
		LastProcessedAt:     s.lastAt,
		Latency:             s.latency,
		Throughput:          s.rate,
		Errors:              s.errors,
		Backlog:             s.backlog,
		Resource:            s.resources,
	}
}

func (e *ErrorBreakdown) Record(category ErrorCategory, err error) {
	switch category {
	case ErrorCategoryNone:
		if err == nil {
			return
		}
		e.Handler++
	case ErrorCategoryPanic:
		e.Panic++
	case ErrorCategoryCanceled:
		e.Canceled++
	default:
		e.Handler++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	metrics := LatencyMetrics{LastNs: lw.last}
	if lw.filled == 0 {
		return metrics
	}
	samples := make([]int64, 0, lw.filled)
	for i := 0; i < lw.filled; i++ {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples = append(samples, lw.samples[idx])
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	metrics.SampleSize = len(samples)
	metrics.P50Ns = percentile(samples, 0.50)
	metrics.P95Ns = percentile(samples, 0.95)
	metrics.P99Ns = percentile(samples, 0.99)
	return metrics
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{
		horizon: horizon,
		samples: make([]time.Time, 0, 64),
	}
}

func (tw *throughputWindow) AddAndSnapshot(now time.Time) throughputSnapshot {
	tw.samples = append(tw.samples, now)

	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		tw.samples = append(tw.samples[:0], tw.samples[idx:]...)
	}

	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	return throughputSnapshot{
		Count:         len(tw.samples),
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(len(tw.samples)) / span.Seconds(),
	}
}

func defaultErrorClassifier(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return ErrorCategoryPanic
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryCanceled
	}
	return ErrorCategoryHandler
}
