package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
	"github.com/kirillkom/docflow/internal/core/usecase"
	"github.com/kirillkom/docflow/internal/infrastructure/export"
	"github.com/kirillkom/docflow/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/docflow/internal/infrastructure/fieldparser"
	"github.com/kirillkom/docflow/internal/infrastructure/queue/inproc"
	"github.com/kirillkom/docflow/internal/infrastructure/queue/nats"
	"github.com/kirillkom/docflow/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/docflow/internal/infrastructure/resilience"
)

// PipelineMetrics is satisfied by metrics.WorkerMetrics.
type PipelineMetrics interface {
	usecase.PipelineObserver
	ObserveQueueLag(lag time.Duration)
	Instrument(next func(context.Context, string) error) func(context.Context, string) error
}

type Options struct {
	Logger *slog.Logger
	// Pipeline instruments in-process and consumed pipeline runs. Optional.
	Pipeline PipelineMetrics
	// BreakerObserver exports resilience breaker transitions. Optional.
	BreakerObserver resilience.StateObserver
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	DB    *sql.DB
	Store *sqlstore.Store

	// Queue is set when SCHEDULER=nats; Pool when SCHEDULER=inproc.
	Queue *nats.Queue
	Pool  *inproc.Pool

	IngestUC   *usecase.IngestDocumentUseCase
	ProcessUC  *usecase.ProcessDocumentUseCase
	ApprovalUC *usecase.ApprovalUseCase
	ReportUC   *usecase.ReportUseCase

	pipeline PipelineMetrics
	closers  []func() error
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger, pipeline: opts.Pipeline}
	defer func() {
		if err != nil {
			app.closeAll()
		}
	}()

	dialect, err := sqlstore.ParseDialect(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	db, err := sqlstore.OpenDB(ctx, dialect, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app.DB = db
	app.closers = append(app.closers, db.Close)
	if cfg.DBAutoMigrate {
		if err := sqlstore.Migrate(ctx, db, dialect, "up"); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	store := sqlstore.New(db, dialect)
	app.Store = store

	storage, closeStorage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	if closeStorage != nil {
		app.closers = append(app.closers, closeStorage)
	}

	executor := resilience.NewExecutor(
		cfg.Resilience(),
		resilience.WithLogger(logger),
		resilience.WithStateObserver(opts.BreakerObserver),
	)

	completer, closeCompleter, err := newFieldCompleter(ctx, cfg, executor)
	if err != nil {
		return nil, fmt.Errorf("init completion provider: %w", err)
	}
	if closeCompleter != nil {
		app.closers = append(app.closers, closeCompleter)
	}

	extractor := ocr.NewExtractor(storage, ocr.Config{
		TesseractPath:   cfg.OCRTesseractPath,
		PdftoppmPath:    cfg.OCRPdftoppmPath,
		Lang:            cfg.OCRLang,
		DPI:             cfg.OCRDPI,
		PageConcurrency: cfg.OCRPageConcurrency,
		MinWidth:        cfg.OCRMinWidth,
	}, ocr.WithLogger(logger))

	app.ProcessUC = usecase.NewProcessDocumentUseCase(store, store, extractor, fieldparser.New(), completer, logger)
	if opts.Pipeline != nil {
		app.ProcessUC.WithObserver(opts.Pipeline)
	}

	scheduler, err := app.newScheduler(cfg, executor)
	if err != nil {
		return nil, err
	}

	app.IngestUC = usecase.NewIngestDocumentUseCase(store, storage, scheduler)
	app.ApprovalUC = usecase.NewApprovalUseCase(store, store, logger)
	app.ReportUC = usecase.NewReportUseCase(store, map[domain.ExportFormat]ports.ReportRenderer{
		domain.ExportCSV:  export.CSV{},
		domain.ExportXLSX: export.XLSX{},
	})

	logger.Info("bootstrap_ready",
		"db_driver", string(dialect),
		"storage_backend", cfg.StorageBackend,
		"scheduler", cfg.Scheduler,
		"completion_provider", cfg.CompletionProvider,
	)
	return app, nil
}

// PipelineHandler is the pipeline entry point with metrics applied when configured.
func (a *App) PipelineHandler() func(context.Context, string) error {
	handler := a.ProcessUC.ProcessByID
	if a.pipeline != nil {
		return a.pipeline.Instrument(handler)
	}
	return handler
}

func (a *App) newScheduler(cfg config.Config, executor *resilience.Executor) (ports.PipelineScheduler, error) {
	switch cfg.Scheduler {
	case "inproc", "":
		opts := []inproc.Option{
			inproc.WithWorkers(cfg.SchedulerWorkers),
			inproc.WithQueueSize(cfg.SchedulerQueueSize),
			inproc.WithJobTimeout(cfg.PipelineTimeout()),
			inproc.WithLogger(a.Logger),
		}
		if a.pipeline != nil {
			opts = append(opts, inproc.WithQueueLagObserver(a.pipeline.ObserveQueueLag))
		}
		a.Pool = inproc.New(a.PipelineHandler(), opts...)
		return a.Pool, nil
	case "nats":
		// A running job gets its full timeout before the drain gives up.
		natsOpts := nats.Options{
			ResilienceExecutor: executor,
			Logger:             a.Logger,
			DrainTimeout:       cfg.PipelineTimeout() + 5*time.Second,
		}
		if a.pipeline != nil {
			natsOpts.QueueLagObserver = a.pipeline.ObserveQueueLag
		}
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, natsOpts)
		if err != nil {
			return nil, fmt.Errorf("init nats scheduler: %w", err)
		}
		a.Queue = queue
		a.closers = append(a.closers, func() error {
			queue.Close()
			return nil
		})
		return queue, nil
	default:
		return nil, fmt.Errorf("unsupported scheduler %q (want inproc or nats)", cfg.Scheduler)
	}
}

// Shutdown drains the in-process pool before releasing connections.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain pipeline pool: %w", err))
		}
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
