package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPServerMetrics owns the API registry. Request series are labelled by the
// matched ServeMux pattern, never by the raw URL.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge

	queries      *prometheus.CounterVec
	queryResults *prometheus.HistogramVec
	uploads      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry, factory := newRegistry()

	return &HTTPServerMetrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests served, by route pattern and status code.",
		}, []string{"service", "method", "path", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service", "method", "path"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "in_flight_requests",
			Help:        "HTTP requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "query", Name: "requests_total",
			Help: "Answered project queries by resolved strategy.",
		}, []string{"service", "strategy", "reranked"}),
		queryResults: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "query", Name: "returned_chunks",
			Help:    "Chunks returned per query.",
			Buckets: prometheus.LinearBuckets(0, 2, 11),
		}, []string{"service"}),
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upload", Name: "files_total",
			Help: "Uploaded files by outcome.",
		}, []string{"service", "outcome"}),
	}
}

// Registry lets pipeline metrics share the API /metrics endpoint.
func (m *HTTPServerMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *HTTPServerMetrics) Handler() http.Handler { return handlerFor(m.registry) }

// Middleware must wrap the ServeMux directly: the mux sets r.Pattern on the
// request it receives, which is the same pointer seen here.
func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		sw := &statusWriter{ResponseWriter: w}
		began := time.Now()
		next.ServeHTTP(sw, r)
		elapsed := time.Since(began)

		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		m.requests.WithLabelValues(service, r.Method, pattern, strconv.Itoa(sw.code())).Inc()
		m.latency.WithLabelValues(service, r.Method, pattern).Observe(elapsed.Seconds())
	})
}

func (m *HTTPServerMetrics) RecordQuery(service, strategy string, reranked bool, chunks int) {
	if strategy == "" {
		strategy = "unknown"
	}
	m.queries.WithLabelValues(service, strategy, strconv.FormatBool(reranked)).Inc()
	m.queryResults.WithLabelValues(service).Observe(float64(chunks))
}

func (m *HTTPServerMetrics) RecordUploadedFile(service, outcome string) {
	if outcome == "" {
		outcome = "stored"
	}
	m.uploads.WithLabelValues(service, outcome).Inc()
}

// statusWriter remembers the first status written. Unwrap keeps
// http.ResponseController able to reach Flush and Hijack underneath.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(p)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
