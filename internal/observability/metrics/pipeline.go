package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/raggae/internal/core/domain"
)

// PipelineMetrics counts indexing runs and reindex outcomes. It satisfies
// ports.PipelineObserver.
type PipelineMetrics struct {
	service string

	runsTotal       *prometheus.CounterVec
	chunksPerRun    *prometheus.HistogramVec
	reindexTotal    *prometheus.CounterVec
	reindexDocTotal *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Indexing pipeline runs by chunking strategy and status.",
		},
		[]string{"service", "strategy", "status"},
	)
	chunksPerRun := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "persisted_chunks",
			Help:      "Chunks persisted per successful indexing run.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "strategy"},
	)
	reindexTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reindex",
			Name:      "runs_total",
			Help:      "Finished project reindex runs by final status.",
		},
		[]string{"service", "status"},
	)
	reindexDocTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reindex",
			Name:      "documents_total",
			Help:      "Documents handled by project reindex runs by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registerer.MustRegister(runsTotal, chunksPerRun, reindexTotal, reindexDocTotal)

	return &PipelineMetrics{
		service:         service,
		runsTotal:       runsTotal,
		chunksPerRun:    chunksPerRun,
		reindexTotal:    reindexTotal,
		reindexDocTotal: reindexDocTotal,
	}
}

func (m *PipelineMetrics) ObservePipeline(strategy domain.ChunkingStrategy, chunks int, err error) {
	label := string(strategy)
	if label == "" {
		label = "unknown"
	}
	if err != nil {
		m.runsTotal.WithLabelValues(m.service, label, "error").Inc()
		return
	}
	m.runsTotal.WithLabelValues(m.service, label, "success").Inc()
	m.chunksPerRun.WithLabelValues(m.service, label).Observe(float64(chunks))
}

func (m *PipelineMetrics) ObserveReindex(result domain.ReindexResult) {
	status := string(domain.ReindexCompleted)
	if result.Total > 0 && result.Indexed == 0 {
		status = string(domain.ReindexFailed)
	}
	m.reindexTotal.WithLabelValues(m.service, status).Inc()
	m.reindexDocTotal.WithLabelValues(m.service, "indexed").Add(float64(result.Indexed))
	m.reindexDocTotal.WithLabelValues(m.service, "failed").Add(float64(result.Failed))
}
