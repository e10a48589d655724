package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	askRequestsTotal *prometheus.CounterVec
	askDuration      *prometheus.HistogramVec
	askSources       *prometheus.HistogramVec
	retrievalRetries *prometheus.HistogramVec
	regenerations    *prometheus.HistogramVec
	confidence       *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
	judgeFallbacks   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	askRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqa",
			Subsystem: "ask",
			Name:      "requests_total",
			Help:      "Total answered questions by outcome.",
		},
		[]string{"service", "status"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "End-to-end question answering duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service"},
	)
	askSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "ask",
			Name:      "cited_sources",
			Help:      "Distribution of cited sources per answer.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8},
		},
		[]string{"service"},
	)
	retrievalRetries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "retrieval",
			Name:      "retries",
			Help:      "Distribution of retrieval retry rounds per question.",
			Buckets:   []float64{0, 1, 2},
		},
		[]string{"service"},
	)
	regenerations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "answer",
			Name:      "regenerations",
			Help:      "Distribution of answer regenerations spent per question.",
			Buckets:   []float64{0, 1, 2, 3},
		},
		[]string{"service"},
	)
	confidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "answer",
			Name:      "confidence",
			Help:      "Confidence component scores on the 0-100 scale.",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"service", "component"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sqa",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage"},
	)
	judgeFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sqa",
			Subsystem: "judge",
			Name:      "fallbacks_total",
			Help:      "Total judge calls that fell back to deterministic scoring.",
		},
		[]string{"service", "stage"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		askRequestsTotal,
		askDuration,
		askSources,
		retrievalRetries,
		regenerations,
		confidence,
		stageDuration,
		judgeFallbacks,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		askRequestsTotal: askRequestsTotal,
		askDuration:      askDuration,
		askSources:       askSources,
		retrievalRetries: retrievalRetries,
		regenerations:    regenerations,
		confidence:       confidence,
		stageDuration:    stageDuration,
		judgeFallbacks:   judgeFallbacks,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAsk(service, status string, sourceCount int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.askRequestsTotal.WithLabelValues(service, status).Inc()
	m.askDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.askSources.WithLabelValues(service).Observe(float64(sourceCount))
}

func (m *HTTPServerMetrics) RecordRetrievalRetries(service string, retries int) {
	m.retrievalRetries.WithLabelValues(service).Observe(float64(retries))
}

func (m *HTTPServerMetrics) RecordRegenerations(service string, used int) {
	m.regenerations.WithLabelValues(service).Observe(float64(used))
}

func (m *HTTPServerMetrics) RecordConfidence(service string, overall, retrieval, grounding, coherence int) {
	m.confidence.WithLabelValues(service, "overall").Observe(float64(overall))
	m.confidence.WithLabelValues(service, "retrieval").Observe(float64(retrieval))
	m.confidence.WithLabelValues(service, "grounding").Observe(float64(grounding))
	m.confidence.WithLabelValues(service, "coherence").Observe(float64(coherence))
}

func (m *HTTPServerMetrics) RecordStageDuration(service, stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(service, stage).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordJudgeFallback(service, stage string) {
	m.judgeFallbacks.WithLabelValues(service, stage).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

