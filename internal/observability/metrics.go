package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors for pipeline runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	inferenceCalls   *prometheus.CounterVec
	inferenceLatency *prometheus.HistogramVec
	rowsPredicted    prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pipelineRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftcast_pipeline_runs_total",
			Help: "Pipeline runs by outcome (ok or error code).",
		}, []string{"outcome"}),
		pipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shiftcast_pipeline_duration_seconds",
			Help:    "Duration of a full pipeline run.",
			Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftcast_cache_lookups_total",
			Help: "Result cache lookups by result (hit or miss).",
		}, []string{"result"}),
		inferenceCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftcast_inference_calls_total",
			Help: "Inference calls by strategy and status.",
		}, []string{"strategy", "status"}),
		inferenceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shiftcast_inference_duration_seconds",
			Help:    "Latency of inference calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"strategy"}),
		rowsPredicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "shiftcast_rows_predicted_total",
			Help: "Total number of feature rows sent to inference.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftcast_http_requests_total",
			Help: "API requests by route and status code.",
		}, []string{"route", "status"}),
	}
}

// Registry exposes the registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObservePipeline records one pipeline run
func (m *Metrics) ObservePipeline(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(outcome).Inc()
	m.pipelineDuration.Observe(elapsed.Seconds())
}

// CacheHit records a result cache hit
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

// CacheMiss records a result cache miss
func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// ObserveInference records one inference call
func (m *Metrics) ObserveInference(strategy string, rows int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.inferenceCalls.WithLabelValues(strategy, status).Inc()
	m.inferenceLatency.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if err == nil {
		m.rowsPredicted.Add(float64(rows))
	}
}

// ObserveRequest records one API request
func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
