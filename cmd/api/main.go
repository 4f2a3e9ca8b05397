package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/docflow/internal/adapters/http"
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
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	opts := bootstrap.Options{
		Logger:          logger,
		BreakerObserver: httpMetrics.ObserveBreakerState,
	}
	// With the in-process scheduler the API runs the pipeline itself.
	if cfg.Scheduler != "nats" {
		opts.Pipeline = metrics.NewWorkerMetrics("api")
	}

	app, err := bootstrap.New(ctx, cfg, opts)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Deps{
		Ingestor:  app.IngestUC,
		Documents: app.IngestUC,
		Workflow:  app.ApprovalUC,
		Reports:   app.ReportUC,
		Metrics:   httpMetrics,
	}).Handler()
	if pipeline, ok := opts.Pipeline.(*metrics.WorkerMetrics); ok {
		router = withPipelineMetrics(router, pipeline)
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		logger.Error("api_listen_failed", "port", cfg.APIPort, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "scheduler", cfg.Scheduler)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error("app_shutdown_failed", "error", err)
	}
	logger.Info("api_stopped")
}

// withPipelineMetrics serves pipeline metrics next to the HTTP ones.
func withPipelineMetrics(next http.Handler, pipeline *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics/pipeline", pipeline.Handler())
	mux.Handle("/", next)
	return mux
}
