package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Engine metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	viewEvents        prometheus.Gauge
	viewHolidays      prometheus.Gauge
	directorySize     prometheus.Gauge

	// Dispatcher metrics
	dispatchTotal    *prometheus.CounterVec
	dispatchOutcomes *prometheus.CounterVec
	dispatchDuration prometheus.Histogram

	// Notification bus metrics
	bufferSize      prometheus.Gauge
	bufferCapacity  prometheus.Gauge
	emitErrorsTotal prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initEngineMetrics(reg)
	s.initDispatcherMetrics(reg)
	s.initBusMetrics(reg)
	return s
}

func (s *PrometheusSink) initEngineMetrics(reg prometheus.Registerer) {
	s.operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agendacal_engine_operations_total",
		Help: "Total number of scheduling operations by type and terminal state.",
	}, []string{"op", "outcome"})

	s.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agendacal_engine_operation_duration_seconds",
		Help:    "Duration of each scheduling operation in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"op"})

	s.viewEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendacal_engine_view_events",
		Help: "Number of events currently in the calendar view.",
	})

	s.viewHolidays = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendacal_engine_view_holidays",
		Help: "Number of holiday entries overlaid on the calendar view.",
	})

	s.directorySize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendacal_engine_directory_participants",
		Help: "Number of participants in the candidate directory.",
	})

	s.register(reg, s.operationsTotal, "agendacal_engine_operations_total")
	s.register(reg, s.operationDuration, "agendacal_engine_operation_duration_seconds")
	s.register(reg, s.viewEvents, "agendacal_engine_view_events")
	s.register(reg, s.viewHolidays, "agendacal_engine_view_holidays")
	s.register(reg, s.directorySize, "agendacal_engine_directory_participants")
}

func (s *PrometheusSink) initDispatcherMetrics(reg prometheus.Registerer) {
	s.dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agendacal_dispatcher_sends_total",
		Help: "Total number of notification send attempts by status class.",
	}, []string{"status_class"})

	s.dispatchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agendacal_dispatcher_outcomes_total",
		Help: "Total number of final notification outcomes.",
	}, []string{"outcome"})

	s.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agendacal_dispatcher_send_duration_seconds",
		Help:    "Notification request latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.register(reg, s.dispatchTotal, "agendacal_dispatcher_sends_total")
	s.register(reg, s.dispatchOutcomes, "agendacal_dispatcher_outcomes_total")
	s.register(reg, s.dispatchDuration, "agendacal_dispatcher_send_duration_seconds")
}

func (s *PrometheusSink) initBusMetrics(reg prometheus.Registerer) {
	s.bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendacal_bus_buffer_size",
		Help: "Current number of notification requests in the bus buffer.",
	})
	s.bufferCapacity = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendacal_bus_buffer_capacity",
		Help: "Configured capacity of the notification bus buffer.",
	})
	s.emitErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agendacal_bus_emit_errors_total",
		Help: "Total number of emit errors (buffer full).",
	})

	s.register(reg, s.bufferSize, "agendacal_bus_buffer_size")
	s.register(reg, s.bufferCapacity, "agendacal_bus_buffer_capacity")
	s.register(reg, s.emitErrorsTotal, "agendacal_bus_emit_errors_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Engine metrics implementation

func (s *PrometheusSink) OperationCompleted(op string, outcome string, duration time.Duration) {
	s.operationsTotal.WithLabelValues(op, outcome).Inc()
	s.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (s *PrometheusSink) ViewSizeUpdate(events, holidays int) {
	s.viewEvents.Set(float64(events))
	s.viewHolidays.Set(float64(holidays))
}

func (s *PrometheusSink) DirectorySizeUpdate(count int) {
	s.directorySize.Set(float64(count))
}

// Dispatcher metrics implementation

func (s *PrometheusSink) DispatchCompleted(statusClass string, duration time.Duration) {
	s.dispatchTotal.WithLabelValues(statusClass).Inc()
	s.dispatchDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DispatchOutcome(outcome string) {
	s.dispatchOutcomes.WithLabelValues(outcome).Inc()
}

// Notification bus metrics implementation

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.bufferSize.Set(float64(size))
}

func (s *PrometheusSink) BufferCapacitySet(capacity int) {
	s.bufferCapacity.Set(float64(capacity))
}

func (s *PrometheusSink) EmitError() {
	s.emitErrorsTotal.Inc()
}

// Verify PrometheusSink implements Sink interface.
var _ Sink = (*PrometheusSink)(nil)
