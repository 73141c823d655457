package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "docflow"

// EngineMetrics holds the Prometheus collectors shared by every processor of
// a graph. All recording methods are safe on a nil receiver so processors
// built without metrics pay nothing.
type EngineMetrics struct {
	mu sync.Mutex

	enqueuedTotal   *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	processedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	sentTotal       *prometheus.CounterVec
	ticksTotal      *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	processorState  *prometheus.GaugeVec
	handlerDuration *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newGaugeVec(subsystem, name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewEngineMetrics creates the collectors. A nil registerer selects the
// Prometheus default registerer; collectors are only registered by Register.
func NewEngineMetrics(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	connectorLabels := []string{"processor", "connector"}

	return &EngineMetrics{
		registerer:     registerer,
		enqueuedTotal:  newCounterVec("connector", "documents_enqueued_total", "Documents accepted into a connector queue", connectorLabels),
		droppedTotal:   newCounterVec("connector", "documents_dropped_total", "Documents dropped because the connector was not accepting or the run was aborted", connectorLabels),
		processedTotal: newCounterVec("connector", "documents_processed_total", "Documents handed to a connector handler", connectorLabels),
		errorsTotal:    newCounterVec("connector", "document_errors_total", "Documents whose handler returned an error", connectorLabels),
		queueDepth:     newGaugeVec("connector", "queue_depth", "Documents waiting in a connector queue", connectorLabels),
		handlerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "connector",
				Name:      "handler_duration_seconds",
				Help:      "Time spent in connector handlers",
				Buckets:   prometheus.DefBuckets,
			},
			connectorLabels,
		),
		sentTotal:      newCounterVec("socket", "documents_sent_total", "Documents sent through a socket", []string{"processor", "socket"}),
		ticksTotal:     newCounterVec("generator", "ticks_total", "Generator tick invocations", []string{"processor"}),
		processorState: newGaugeVec("processor", "state", "Current lifecycle state of a processor (1 for the active state)", []string{"processor", "state"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *EngineMetrics) Register() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.enqueuedTotal,
		m.droppedTotal,
		m.processedTotal,
		m.errorsTotal,
		m.queueDepth,
		m.handlerDuration,
		m.sentTotal,
		m.ticksTotal,
		m.processorState,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

func (m *EngineMetrics) documentEnqueued(processor, connector string, depth int) {
	if m == nil {
		return
	}
	m.enqueuedTotal.WithLabelValues(processor, connector).Inc()
	m.queueDepth.WithLabelValues(processor, connector).Set(float64(depth))
}

func (m *EngineMetrics) documentsDropped(processor, connector string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.droppedTotal.WithLabelValues(processor, connector).Add(float64(n))
}

func (m *EngineMetrics) setQueueDepth(processor, connector string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(processor, connector).Set(float64(depth))
}

func (m *EngineMetrics) documentHandled(processor, connector string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.processedTotal.WithLabelValues(processor, connector).Inc()
	m.handlerDuration.WithLabelValues(processor, connector).Observe(duration.Seconds())
	if err != nil {
		m.errorsTotal.WithLabelValues(processor, connector).Inc()
	}
}

func (m *EngineMetrics) documentSent(processor, socket string) {
	if m == nil {
		return
	}
	m.sentTotal.WithLabelValues(processor, socket).Inc()
}

func (m *EngineMetrics) tick(processor string) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(processor).Inc()
}

func (m *EngineMetrics) stateChanged(processor string, from, to State) {
	if m == nil {
		return
	}
	m.processorState.WithLabelValues(processor, from.String()).Set(0)
	m.processorState.WithLabelValues(processor, to.String()).Set(1)
}

// Reset clears every series (useful for testing).
func (m *EngineMetrics) Reset() {
	if m == nil {
		return
	}
	m.enqueuedTotal.Reset()
	m.droppedTotal.Reset()
	m.processedTotal.Reset()
	m.errorsTotal.Reset()
	m.queueDepth.Reset()
	m.handlerDuration.Reset()
	m.sentTotal.Reset()
	m.ticksTotal.Reset()
	m.processorState.Reset()
}
