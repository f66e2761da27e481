package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/raggae/internal/core/domain"
)

// WorkerMetrics covers queue consumption: job outcomes, latency and how long
// jobs waited on the subject before a worker picked them up.
type WorkerMetrics struct {
	registry *prometheus.Registry

	jobs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  prometheus.Gauge
	lag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry, factory := newRegistry()

	return &WorkerMetrics{
		registry: registry,
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "worker", Name: "document_jobs_total",
			Help: "Consumed document jobs by status.",
		}, []string{"service", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "document_job_duration_seconds",
			Help:    "Document job processing time by status.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"service", "status"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "worker", Name: "document_jobs_in_flight",
			Help:        "Document jobs currently being processed.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		lag: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "worker", Name: "queue_lag_seconds",
			Help:    "Time between enqueue and the start of processing.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"service"}),
	}
}

func (m *WorkerMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *WorkerMetrics) Handler() http.Handler { return handlerFor(m.registry) }

func (m *WorkerMetrics) StartDocument() { m.running.Inc() }

// FinishDocument records a job. Temporary failures get their own status so
// upstream outages are distinguishable from bad documents.
func (m *WorkerMetrics) FinishDocument(service string, elapsed time.Duration, err error) {
	m.running.Dec()

	status := outcomeLabel(err)
	if err != nil && domain.IsKind(err, domain.ErrTemporary) {
		status = "temporary"
	}
	m.jobs.WithLabelValues(service, status).Inc()
	m.duration.WithLabelValues(service, status).Observe(elapsed.Seconds())
}

// ObserveQueueLag drops negative lags caused by clock skew between hosts.
func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag >= 0 {
		m.lag.WithLabelValues(service).Observe(lag.Seconds())
	}
}
