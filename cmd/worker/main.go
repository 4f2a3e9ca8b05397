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

	"github.com/kirillkom/docflow/internal/bootstrap"
	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/observability/logging"
	"github.com/kirillkom/docflow/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.Scheduler != "nats" {
		logger.Error("worker_requires_nats", "scheduler", cfg.Scheduler)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:          logger,
		Pipeline:        workerMetrics,
		BreakerObserver: workerMetrics.ObserveBreakerState,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	if err := app.Queue.Consume(ctx, cfg.PipelineTimeout(), app.PipelineHandler()); err != nil {
		logger.Error("worker_consume_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker_metrics_shutdown_failed", "error", err)
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("app_shutdown_failed", "error", err)
	}
	logger.Info("worker_stopped")
}
