// Package metrics instruments storage adapters with Prometheus metrics.
//
// A nil *Metrics is valid and records nothing, so adapters can hold one
// unconditionally.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the metrics.
type Config struct {
	// Namespace is the metrics namespace (default: "persist").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for operation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "persist",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the adapter metrics.
type Metrics struct {
	operations    *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	diagnostics   *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	listeners     *prometheus.GaugeVec
}

// New creates and registers the metrics. Registering twice on the same
// registry panics; use Default for the process-wide instance.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of storage operations by backend and operation",
			ConstLabels: config.ConstLabels,
		}, []string{"backend", "op"}),

		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Storage operation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"backend", "op"}),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of external changes delivered to listeners",
			ConstLabels: config.ConstLabels,
		}, []string{"backend"}),

		diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "diagnostics_total",
			Help:        "Total number of diagnostics emitted by code",
			ConstLabels: config.ConstLabels,
		}, []string{"backend", "code"}),

		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fallbacks_total",
			Help:        "Total number of adapters that degraded to no-op",
			ConstLabels: config.ConstLabels,
		}, []string{"backend"}),

		listeners: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "listeners",
			Help:        "Number of registered change listeners",
			ConstLabels: config.ConstLabels,
		}, []string{"backend"}),
	}
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the metrics registered on prometheus.DefaultRegisterer,
// creating them on first call.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// ObserveOp records one operation that started at start.
func (m *Metrics) ObserveOp(backend, op string, start time.Time) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(backend, op).Inc()
	m.opDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// Notified records one listener invocation for an external change.
func (m *Metrics) Notified(backend string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(backend).Inc()
}

// Diagnostic records one emitted diagnostic.
func (m *Metrics) Diagnostic(backend, code string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(backend, code).Inc()
}

// Fallback records an adapter constructed as a no-op.
func (m *Metrics) Fallback(backend string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(backend).Inc()
}

// ListenerAdded records a listener registration.
func (m *Metrics) ListenerAdded(backend string) {
	if m == nil {
		return
	}
	m.listeners.WithLabelValues(backend).Inc()
}

// ListenerRemoved records a listener removal.
func (m *Metrics) ListenerRemoved(backend string) {
	if m == nil {
		return
	}
	m.listeners.WithLabelValues(backend).Dec()
}
