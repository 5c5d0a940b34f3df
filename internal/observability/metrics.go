// Prometheus metrics and OpenTelemetry tracing for sync operations
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncCollector bundles the Prometheus metrics of push and pull operations.
type SyncCollector struct {
	gatherer prometheus.Gatherer

	Operations *prometheus.CounterVec
	Attempts   *prometheus.CounterVec
	AckLatency *prometheus.HistogramVec
	Duration   *prometheus.HistogramVec
	Rows       *prometheus.GaugeVec
}

// NewSyncCollector registers the sync metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing
// collectors.
func NewSyncCollector(reg prometheus.Registerer) (*SyncCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ops, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pathplanner_sync_operations_total",
		Help: "Push and pull operations, labeled by operation and result.",
	}, []string{"operation", "result"}), "pathplanner_sync_operations_total")
	if err != nil {
		return nil, err
	}
	attempts, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pathplanner_sync_attempts_total",
		Help: "Individual object update attempts, labeled by object and outcome.",
	}, []string{"object", "outcome"}), "pathplanner_sync_attempts_total")
	if err != nil {
		return nil, err
	}
	latency, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pathplanner_sync_ack_latency_seconds",
		Help:    "Time from submitting an update to its acknowledgement.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"object"}), "pathplanner_sync_ack_latency_seconds")
	if err != nil {
		return nil, err
	}
	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pathplanner_sync_duration_seconds",
		Help:    "Wall time of whole push and pull operations.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"operation"}), "pathplanner_sync_duration_seconds")
	if err != nil {
		return nil, err
	}
	rows, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pathplanner_plan_rows",
		Help: "Current number of rows in the local plan, labeled by kind.",
	}, []string{"kind"}), "pathplanner_plan_rows")
	if err != nil {
		return nil, err
	}

	return &SyncCollector{
		gatherer:   gatherer,
		Operations: ops,
		Attempts:   attempts,
		AckLatency: latency,
		Duration:   duration,
		Rows:       rows,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SyncCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveOperation records a finished push or pull.
func (c *SyncCollector) ObserveOperation(operation, result string, seconds float64) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(operation, result).Inc()
	c.Duration.WithLabelValues(operation).Observe(seconds)
}

// ObserveAttempt records one update attempt. Latency is only recorded for
// acknowledged attempts.
func (c *SyncCollector) ObserveAttempt(object, outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(object, outcome).Inc()
	if outcome == "acked" {
		c.AckLatency.WithLabelValues(object).Observe(seconds)
	}
}

// SetRows publishes the current plan size.
func (c *SyncCollector) SetRows(kind string, n int) {
	if c == nil {
		return
	}
	c.Rows.WithLabelValues(kind).Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
