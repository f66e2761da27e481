package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/raggae/internal/bootstrap"
	"github.com/kirillkom/raggae/internal/config"
	"github.com/kirillkom/raggae/internal/core/ports"
	"github.com/kirillkom/raggae/internal/observability/logging"
	"github.com/kirillkom/raggae/internal/observability/metrics"
)

const documentJobTimeout = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	pipelineMetrics := metrics.NewPipelineMetrics("worker", workerMetrics.Registry())

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Observer: pipelineMetrics, RequireQueue: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeDocumentUploaded(ctx, func(handlerCtx context.Context, job ports.DocumentJob) error {
		if !job.EnqueuedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(job.EnqueuedAt))
		}

		processCtx, cancel := context.WithTimeout(handlerCtx, documentJobTimeout)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()
		err := app.Processor.ProcessByID(processCtx, job.ProjectID, job.DocumentID)
		workerMetrics.FinishDocument("worker", time.Since(start), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
