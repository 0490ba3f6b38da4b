// Package telemetry wires the engine's Prometheus metrics and OpenTelemetry
// tracing. There is no HTTP request/response cycle to wrap here: a
// LandKeeper tick loop calls these directly, so the package exposes plain
// recording methods instead of an HTTP middleware.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures a Metrics instance.
type Config struct {
	// Namespace is the metrics namespace (default: "landkeeper").
	Namespace string
	// Subsystem is the metrics subsystem (default: "").
	Subsystem string
	// ConstLabels are constant labels added to every metric.
	ConstLabels prometheus.Labels
	// TickDurationBuckets are the histogram buckets for tick duration.
	// Default: prometheus.DefBuckets.
	TickDurationBuckets []float64
	// Registry is the Prometheus registerer metrics are registered into.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures a Config.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels applied to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = labels }
}

// WithTickDurationBuckets overrides the tick-duration histogram buckets.
func WithTickDurationBuckets(buckets []float64) Option {
	return func(c *Config) { c.TickDurationBuckets = buckets }
}

// WithRegistry sets the Prometheus registerer.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = registry }
}

func defaultConfig() Config {
	return Config{
		Namespace:           "landkeeper",
		TickDurationBuckets: prometheus.DefBuckets,
		Registry:            prometheus.DefaultRegisterer,
	}
}

// Metrics holds every Prometheus collector the engine reports to, one
// instance per process (or per test, when constructed over a private
// registry via WithRegistry).
type Metrics struct {
	ticksTotal       *prometheus.CounterVec
	tickDuration     *prometheus.HistogramVec
	itemsProcessed   *prometheus.CounterVec
	resolverFailures *prometheus.CounterVec
	handlerFailures  *prometheus.CounterVec
	patchesSent      *prometheus.CounterVec
	activeLands      *prometheus.GaugeVec
	activeSessions   *prometheus.GaugeVec
	queueDepth       *prometheus.HistogramVec
	recordingFrames  *prometheus.CounterVec
	reevaluationRuns *prometheus.CounterVec
}

// New constructs a Metrics instance and registers its collectors.
func New(opts ...Option) *Metrics {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		ticksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "ticks_total",
			Help:        "Total number of LandKeeper ticks run, by land type.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type"}),

		tickDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "tick_duration_seconds",
			Help:        "LandKeeper tick processing duration in seconds, by land type.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.TickDurationBuckets,
		}, []string{"land_type"}),

		itemsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "items_processed_total",
			Help:        "Total queue items processed, by land type and item kind.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type", "kind"}),

		resolverFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "resolver_failures_total",
			Help:        "Total resolver failures, by land type and resolver name.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type", "resolver"}),

		handlerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "handler_failures_total",
			Help:        "Total handler failures, by land type and action/event TypeID.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type", "type_id"}),

		patchesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "patches_sent_total",
			Help:        "Total sync patches sent to client sessions, by land type.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type"}),

		activeLands: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "active_lands",
			Help:        "Number of live Land instances, by land type.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type"}),

		activeSessions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of joined transport sessions, by land type.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type"}),

		queueDepth: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "queue_depth",
			Help:        "Pending item queue depth observed at the start of a tick, by land type.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"land_type"}),

		recordingFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "recording_frames_total",
			Help:        "Total re-evaluation frames recorded, by land type.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type"}),

		reevaluationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "reevaluation_runs_total",
			Help:        "Total re-evaluation verification runs, by land type and outcome.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"land_type", "outcome"}),
	}
}

// ObserveTick records one completed tick: its duration and the queue depth
// it started from.
func (m *Metrics) ObserveTick(landType string, duration time.Duration, queueDepthAtStart int) {
	m.ticksTotal.WithLabelValues(landType).Inc()
	m.tickDuration.WithLabelValues(landType).Observe(duration.Seconds())
	m.queueDepth.WithLabelValues(landType).Observe(float64(queueDepthAtStart))
}

// RecordItemProcessed records one queue item (action/clientEvent/lifecycle)
// reaching a terminal outcome within a tick.
func (m *Metrics) RecordItemProcessed(landType, kind string) {
	m.itemsProcessed.WithLabelValues(landType, kind).Inc()
}

// RecordResolverFailure records a failed resolver invocation.
func (m *Metrics) RecordResolverFailure(landType, resolver string) {
	m.resolverFailures.WithLabelValues(landType, resolver).Inc()
}

// RecordHandlerFailure records a handler returning an error or panicking.
func (m *Metrics) RecordHandlerFailure(landType, typeID string) {
	m.handlerFailures.WithLabelValues(landType, typeID).Inc()
}

// RecordPatchesSent records count sync patches flushed to sessions.
func (m *Metrics) RecordPatchesSent(landType string, count int) {
	m.patchesSent.WithLabelValues(landType).Add(float64(count))
}

// SetActiveLands sets the live-instance gauge for landType.
func (m *Metrics) SetActiveLands(landType string, n int) {
	m.activeLands.WithLabelValues(landType).Set(float64(n))
}

// SetActiveSessions sets the joined-session gauge for landType.
func (m *Metrics) SetActiveSessions(landType string, n int) {
	m.activeSessions.WithLabelValues(landType).Set(float64(n))
}

// RecordFrame records one re-evaluation frame persisted by a Recorder.
func (m *Metrics) RecordFrame(landType string) {
	m.recordingFrames.WithLabelValues(landType).Inc()
}

// RecordReevaluation records the outcome ("ok" or "mismatch") of a Verifier run.
func (m *Metrics) RecordReevaluation(landType string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "mismatch"
	}
	m.reevaluationRuns.WithLabelValues(landType, outcome).Inc()
}
