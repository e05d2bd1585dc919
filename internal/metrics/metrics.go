// Package metrics exposes Prometheus collectors for policy validation and the
// policy document store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	validationsTotal   *prometheus.CounterVec
	validationDuration prometheus.Histogram
	contentSources     *prometheus.CounterVec
	fetchFailures      prometheus.Counter
	storeOpsTotal      *prometheus.CounterVec
}

// New registers every collector on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,

		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpolicy_validations_total",
				Help: "Total number of policy validations by status",
			},
			[]string{"status"},
		),
		validationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sigpolicy_validation_duration_seconds",
				Help:    "Duration of policy validations including document retrieval",
				Buckets: prometheus.DefBuckets,
			},
		),
		contentSources: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpolicy_content_sources_total",
				Help: "Policy documents resolved, by source",
			},
			[]string{"source"},
		),
		fetchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sigpolicy_fetch_failures_total",
				Help: "Total number of failed policy document retrievals",
			},
		),
		storeOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigpolicy_store_operations_total",
				Help: "Policy document store operations by method and result",
			},
			[]string{"method", "result"},
		),
	}

	collectors := []prometheus.Collector{
		m.validationsTotal,
		m.validationDuration,
		m.contentSources,
		m.fetchFailures,
		m.storeOpsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) ObserveValidation(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.validationsTotal.WithLabelValues(status).Inc()
	m.validationDuration.Observe(d.Seconds())
}

func (m *Metrics) IncContentSource(source string) {
	if m == nil {
		return
	}
	m.contentSources.WithLabelValues(source).Inc()
}

func (m *Metrics) IncFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
}

// IncStoreOp records a store RPC; result is "ok" or a gRPC code name.
func (m *Metrics) IncStoreOp(method, result string) {
	if m == nil {
		return
	}
	m.storeOpsTotal.WithLabelValues(method, result).Inc()
}
