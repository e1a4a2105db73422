package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the storage layer.
type Metrics struct {
	config MetricsConfig

	// Pool metrics
	poolInUse        prometheus.Gauge
	poolCheckouts    prometheus.Counter
	poolFailures     prometheus.Counter
	poolReplacements prometheus.Counter
	poolWait         prometheus.Histogram

	// Operation metrics
	opsTotal   *prometheus.CounterVec
	opDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		poolInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_connections_in_use",
				Help:      "Current number of pooled connections lent out",
			},
		),
		poolCheckouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pool_checkouts_total",
				Help:      "Total number of successful connection checkouts",
			},
		),
		poolFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pool_acquire_failures_total",
				Help:      "Total number of failed connection acquisitions",
			},
		),
		poolReplacements: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pool_replacements_total",
				Help:      "Total number of dead connections silently replaced",
			},
		),
		poolWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pool_acquire_wait_seconds",
				Help:      "Time spent waiting for a pool slot",
				Buckets:   prometheus.DefBuckets,
			},
		),

		opsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ops_total",
				Help:      "Total number of store operations",
			},
			[]string{"op", "status"},
		),
		opDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "op_duration_seconds",
				Help:      "Duration of store operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(
		m.poolInUse,
		m.poolCheckouts,
		m.poolFailures,
		m.poolReplacements,
		m.poolWait,
		m.opsTotal,
		m.opDuration,
	)

	return m, nil
}

// NopMetrics returns a metrics instance that records nothing.
func NopMetrics() *Metrics {
	return &Metrics{}
}

// PoolCheckout records a successful connection checkout.
func (m *Metrics) PoolCheckout() {
	if m == nil || m.poolCheckouts == nil {
		return
	}
	m.poolCheckouts.Inc()
	m.poolInUse.Inc()
}

// PoolCheckin records a connection returned to the pool.
func (m *Metrics) PoolCheckin() {
	if m == nil || m.poolInUse == nil {
		return
	}
	m.poolInUse.Dec()
}

// PoolAcquireFailure records an acquisition that obtained no connection.
func (m *Metrics) PoolAcquireFailure() {
	if m == nil || m.poolFailures == nil {
		return
	}
	m.poolFailures.Inc()
}

// PoolReplacement records a dead idle connection being replaced.
func (m *Metrics) PoolReplacement() {
	if m == nil || m.poolReplacements == nil {
		return
	}
	m.poolReplacements.Inc()
}

// ObservePoolWait records time spent waiting for a pool slot.
func (m *Metrics) ObservePoolWait(wait time.Duration) {
	if m == nil || m.poolWait == nil {
		return
	}
	m.poolWait.Observe(wait.Seconds())
}

// RecordOp records one store operation with its status and duration.
func (m *Metrics) RecordOp(op, status string, duration time.Duration) {
	if m == nil || m.opsTotal == nil {
		return
	}
	m.opsTotal.WithLabelValues(op, status).Inc()
	m.opDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
