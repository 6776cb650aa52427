// Package metrics defines the Prometheus collectors of the relatos service.
package metrics

import (
	"net/http"

	"github.com/chriscorrea/relatos/internal/category"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PredictionsTotal     *prometheus.CounterVec
	DegradedTotal        prometheus.Counter
	BatchRows            prometheus.Histogram
	ModelReady           prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relatos_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relatos_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relatos_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relatos_predictions_total",
				Help: "Total predictions by predicted category.",
			},
			[]string{"category"},
		),
		DegradedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relatos_predictions_degraded_total",
				Help: "Total documents that fell back to the neutral prediction.",
			},
		),
		BatchRows: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relatos_batch_rows",
				Help:    "Rows per batch classification request.",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		ModelReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relatos_model_ready",
				Help: "1 when a model is loaded and serving, 0 otherwise.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PredictionsTotal,
		m.DegradedTotal,
		m.BatchRows,
		m.ModelReady,
	)

	return m
}

// ObservePrediction counts one classification.
func (m *Metrics) ObservePrediction(c category.Category, degraded bool) {
	if degraded {
		m.DegradedTotal.Inc()
		return
	}
	m.PredictionsTotal.WithLabelValues(c.String()).Inc()
}

// SetReady records model availability.
func (m *Metrics) SetReady(ready bool) {
	if ready {
		m.ModelReady.Set(1)
	} else {
		m.ModelReady.Set(0)
	}
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
