// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for every pipeline stage.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace is the namespace for all pricewatch metrics.
const MetricsNamespace = "pricewatch"

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Scheduler
	SchedulerTicks        prometheus.Counter
	SchedulerTickDuration prometheus.Histogram
	SchedulerDispatched   prometheus.Counter
	SchedulerSkipped      *prometheus.CounterVec
	SchedulerReleased     prometheus.Counter
	MappingsStale         prometheus.Gauge
	MappingsInFlight      prometheus.Gauge
	MappingsDue           prometheus.Gauge

	// Throttle registry
	ThrottleReservations *prometheus.CounterVec
	ThrottlePenalties    *prometheus.CounterVec

	// Executor
	ExecutorCommands       *prometheus.CounterVec
	ExecutorAttempts       prometheus.Counter
	ExecutorDuration       prometheus.Histogram
	ExecutorDuplicates     prometheus.Counter
	CircuitBreakerState    prometheus.Gauge
	CircuitBreakerOpenings prometheus.Counter

	// Correlator
	CorrelatorOutcomes *prometheus.CounterVec
	CorrelatorBackoff  prometheus.Histogram

	// Normalizer
	NormalizerPoints *prometheus.CounterVec

	// History
	HistoryAppends          *prometheus.CounterVec
	HistoryProjectionErrors prometheus.Counter

	// Bus
	BusPublished    *prometheus.CounterVec
	BusAcked        *prometheus.CounterVec
	BusDeadLettered *prometheus.CounterVec
	BusHandlerError *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initSchedulerMetrics(factory)
	m.initThrottleMetrics(factory)
	m.initExecutorMetrics(factory)
	m.initCorrelatorMetrics(factory)
	m.initNormalizerMetrics(factory)
	m.initHistoryMetrics(factory)
	m.initBusMetrics(factory)

	return m
}

func (m *Metrics) initSchedulerMetrics(factory promauto.Factory) {
	const subsystem = "scheduler"

	m.SchedulerTicks = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "ticks_total", Help: "Total number of scheduler ticks",
	})
	m.SchedulerTickDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "tick_duration_seconds", Help: "Duration of a scheduler tick",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	m.SchedulerDispatched = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "dispatched_total", Help: "Scrape commands published",
	})
	m.SchedulerSkipped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "skipped_total", Help: "Due mappings skipped during a tick",
	}, []string{"reason"})
	m.SchedulerReleased = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "released_stale_total", Help: "In-flight mappings released after their lease expired",
	})
	m.MappingsStale = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "mappings_stale", Help: "Active mappings without a successful scrape within the staleness threshold",
	})
	m.MappingsInFlight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "mappings_in_flight", Help: "Mappings with an outstanding scrape command",
	})
	m.MappingsDue = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "mappings_due", Help: "Idle mappings whose next scrape time has passed",
	})
}

func (m *Metrics) initThrottleMetrics(factory promauto.Factory) {
	const subsystem = "throttle"

	m.ThrottleReservations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "reservations_total", Help: "Domain slot reservation attempts",
	}, []string{"result"})
	m.ThrottlePenalties = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "penalties_total", Help: "Penalty delays applied to domains",
	}, []string{"kind"})
}

func (m *Metrics) initExecutorMetrics(factory promauto.Factory) {
	const subsystem = "executor"

	m.ExecutorCommands = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "commands_total", Help: "Scrape commands executed",
	}, []string{"result", "code"})
	m.ExecutorAttempts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "attempts_total", Help: "HTTP fetch attempts including retries",
	})
	m.ExecutorDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "command_duration_seconds", Help: "Wall time per scrape command",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	m.ExecutorDuplicates = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "duplicate_commands_total", Help: "Redelivered commands skipped because they already ran",
	})
	m.CircuitBreakerState = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	})
	m.CircuitBreakerOpenings = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "circuit_breaker_openings_total", Help: "Times the circuit breaker opened",
	})
}

func (m *Metrics) initCorrelatorMetrics(factory promauto.Factory) {
	const subsystem = "correlator"

	m.CorrelatorOutcomes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "outcomes_total", Help: "Outcome events processed",
	}, []string{"result", "failure_kind"})
	m.CorrelatorBackoff = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "reschedule_delay_seconds", Help: "Delay until the next scrape chosen by the correlator",
		Buckets: prometheus.ExponentialBuckets(60, 2, 12),
	})
}

func (m *Metrics) initNormalizerMetrics(factory promauto.Factory) {
	m.NormalizerPoints = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: "normalizer",
		Name: "points_total", Help: "Raw price points processed",
	}, []string{"result", "rule"})
}

func (m *Metrics) initHistoryMetrics(factory promauto.Factory) {
	const subsystem = "history"

	m.HistoryAppends = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "appends_total", Help: "Normalized price points appended to history",
	}, []string{"result"})
	m.HistoryProjectionErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "projection_errors_total", Help: "Failures indexing price points into the search projection",
	})
}

func (m *Metrics) initBusMetrics(factory promauto.Factory) {
	const subsystem = "bus"

	m.BusPublished = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "published_total", Help: "Messages published per stream",
	}, []string{"stream"})
	m.BusAcked = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "acked_total", Help: "Messages acknowledged per stream",
	}, []string{"stream"})
	m.BusDeadLettered = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "dead_lettered_total", Help: "Messages parked in the dead-letter stream",
	}, []string{"stream", "reason"})
	m.BusHandlerError = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace, Subsystem: subsystem,
		Name: "handler_errors_total", Help: "Handler failures leaving a message pending",
	}, []string{"stream"})
}
