package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"AccidentLoader/internal/config"
	"AccidentLoader/internal/domain"
	"AccidentLoader/internal/extraction"
	"AccidentLoader/internal/infrastructure/csvsource"
	"AccidentLoader/internal/infrastructure/llm"
	"AccidentLoader/internal/infrastructure/parser"
	"AccidentLoader/internal/infrastructure/scheduler"
	"AccidentLoader/internal/infrastructure/storage"
	"AccidentLoader/internal/logging"
	"AccidentLoader/internal/normalize"
	"AccidentLoader/internal/ports"
	"AccidentLoader/internal/source"
	"AccidentLoader/internal/usecase"
)

const stopTimeout = 30 * time.Second

// RunOptions tunes a single load.
type RunOptions struct {
	Limit        int
	FromID       int
	// ForceRefresh re-asks the extraction service even for cached prompts.
	ForceRefresh bool
	// Full disables the incremental resume for EPICEA.
	Full         bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	repository *storage.PostgresRepository
	store      *extraction.FileStore
	cache      *extraction.Cache
	ids        normalize.IDGenerator
	registry   *source.Registry
}

// New builds the application from configuration. The database connection is
// lazy; nothing is contacted until a command runs.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	ids, err := normalize.NewIDGenerator(cfg.Identity.Namespace)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}

	store, err := extraction.NewFileStore(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("extraction cache: %w", err)
	}

	var service extraction.Service
	if cfg.LLM.APIKey != "" {
		service = llm.NewChatGPTClient(cfg.LLM)
	} else {
		baseLogger.Warn("no extraction API key configured, only cached answers are available")
	}
	cache := extraction.NewCache(service, store, cfg.LLM.SystemInstruction, logging.Component(baseLogger, "extraction"))

	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = storage.Open(cfg.Database.DSN, cfg.Database.Schema)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
	} else {
		baseLogger.Warn("no database configured, records are not persisted")
	}

	registry := source.NewRegistry()
	registry.Register(csvsource.NewAriaCSV(cfg.ARIA.CSVPath, cfg.ARIA.SkipLines, logging.Component(baseLogger, "source.aria")))
	registry.Register(parser.NewEpiceaDirectory(cfg.EPICEA.HTMLDir, cfg.EPICEA.Extension, logging.Component(baseLogger, "source.epicea")))

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		repository: storage.NewPostgresRepository(db),
		store:      store,
		cache:      cache,
		ids:        ids,
		registry:   registry,
	}, nil
}

// Run loads one source (domain.SourceARIA or domain.SourceEPICEA).
func (a *Application) Run(ctx context.Context, sourceName string, opts RunOptions) (usecase.Report, error) {
	pipeline, req, err := a.pipeline(sourceName, opts)
	if err != nil {
		return usecase.Report{Source: sourceName}, err
	}
	return pipeline.Run(ctx, req)
}

// Schedule reruns the EPICEA load on the configured cron expression until ctx
// is cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	pipeline, req, err := a.pipeline(domain.SourceEPICEA, RunOptions{Limit: a.cfg.EPICEA.Limit})
	if err != nil {
		return err
	}

	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location(), logging.Component(a.logger, "scheduler"))
	if err := driver.Validate(); err != nil {
		return err
	}

	jobs := usecase.NewScheduler(driver, pipeline, req, logging.Component(a.logger, "scheduler"))
	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("waiting for scheduled loads", "next", driver.Next(time.Now()))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return jobs.Stop(stopCtx)
}

// Migrate creates the accident tables.
func (a *Application) Migrate(ctx context.Context) error {
	if a.db == nil {
		return errors.New("migrate: no database configured")
	}
	return a.repository.EnsureSchema(ctx)
}

// Close flushes the extraction cache and releases the database pool.
func (a *Application) Close() error {
	var errs []error
	if err := a.store.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush extraction cache: %w", err))
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *Application) pipeline(sourceName string, opts RunOptions) (*usecase.Pipeline, source.Request, error) {
	req := source.Request{Limit: opts.Limit, FromID: opts.FromID}

	var (
		registryName string
		normalizer   ports.RecordNormalizer
		incremental  bool
	)
	switch sourceName {
	case domain.SourceARIA:
		registryName = "aria-csv"
		normalizer = normalize.NewAria(a.ids, logging.Component(a.logger, "normalize.aria"))
		if req.Limit == 0 {
			req.Limit = a.cfg.ARIA.Limit
		}
	case domain.SourceEPICEA:
		registryName = "epicea-html"
		epicea := normalize.NewEpicea(a.cache, a.ids, logging.Component(a.logger, "normalize.epicea"))
		if opts.ForceRefresh {
			epicea = epicea.WithOptions(extraction.WithForceRefresh())
		}
		normalizer = epicea
		incremental = a.cfg.EPICEA.IsIncremental() && !opts.Full
		if req.Limit == 0 {
			req.Limit = a.cfg.EPICEA.Limit
		}
	default:
		return nil, req, fmt.Errorf("unknown source %q", sourceName)
	}

	src, err := a.registry.Resolve(registryName)
	if err != nil {
		return nil, req, err
	}

	var repository ports.RecordRepository
	if a.repository.Persists() {
		repository = a.repository
	}

	return usecase.NewPipeline(usecase.PipelineDeps{
		SourceName:  sourceName,
		Source:      src,
		Normalizer:  normalizer,
		Repository:  repository,
		Incremental: incremental,
		Logger:      logging.Component(a.logger, "pipeline"),
	}), req, nil
}
