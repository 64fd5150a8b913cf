package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	registry *prometheus.Registry

	UpdatesTotal     prometheus.Counter
	PipelineRuns     *prometheus.CounterVec
	PipelineDuration *prometheus.HistogramVec
	BackendRetries   *prometheus.CounterVec
	ActiveOperations prometheus.Gauge
}

// New creates a Metrics instance with all metrics registered on a private
// registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	updatesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "voxrelay",
			Name:      "updates_total",
			Help:      "Total number of Telegram updates received",
		},
	)

	pipelineRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxrelay",
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voxrelay",
			Name:      "pipeline_duration_seconds",
			Help:      "Pipeline duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	backendRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "voxrelay",
			Name:      "backend_retries_total",
			Help:      "Total number of backend call retries",
		},
		[]string{"backend"},
	)

	activeOperations := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "voxrelay",
			Name:      "active_operations",
			Help:      "Number of operations currently in flight",
		},
	)

	registry.MustRegister(
		updatesTotal,
		pipelineRuns,
		pipelineDuration,
		backendRetries,
		activeOperations,
	)

	return &Metrics{
		registry:         registry,
		UpdatesTotal:     updatesTotal,
		PipelineRuns:     pipelineRuns,
		PipelineDuration: pipelineDuration,
		BackendRetries:   backendRetries,
		ActiveOperations: activeOperations,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordUpdate records one received Telegram update.
func (m *Metrics) RecordUpdate() {
	m.UpdatesTotal.Inc()
}

// PipelineStarted records a pipeline entering flight.
func (m *Metrics) PipelineStarted() {
	m.ActiveOperations.Inc()
}

// PipelineFinished records a completed pipeline run.
func (m *Metrics) PipelineFinished(kind, outcome string, duration time.Duration) {
	m.ActiveOperations.Dec()
	m.PipelineRuns.WithLabelValues(kind, outcome).Inc()
	m.PipelineDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRetry records one retried backend call.
func (m *Metrics) RecordRetry(backend string) {
	m.BackendRetries.WithLabelValues(backend).Inc()
}
