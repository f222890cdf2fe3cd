package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/citation-graph-service/internal/acquisition"
	"github.com/helixir/citation-graph-service/internal/config"
	"github.com/helixir/citation-graph-service/internal/database"
	"github.com/helixir/citation-graph-service/internal/dataset"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/matcher"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/papersources"
	"github.com/helixir/citation-graph-service/internal/papersources/arxiv"
	"github.com/helixir/citation-graph-service/internal/papersources/crossref"
	"github.com/helixir/citation-graph-service/internal/papersources/ieee"
	"github.com/helixir/citation-graph-service/internal/papersources/openalex"
	"github.com/helixir/citation-graph-service/internal/papersources/paperswithcode"
	"github.com/helixir/citation-graph-service/internal/repository"
	httpserver "github.com/helixir/citation-graph-service/internal/server/http"
)

const metricsNamespace = "citegraph"

type runOptions struct {
	configPath string
	startPage  int
	maxPages   int
	snapshot   string
	resume     bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Walk the catalog and build the citation graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			flags := cmd.Flags()
			if flags.Changed("start-page") {
				cfg.Catalog.StartPage = opts.startPage
			}
			if flags.Changed("max-pages") {
				cfg.Catalog.MaxPages = opts.maxPages
			}
			if flags.Changed("snapshot") {
				cfg.Snapshot.Path = opts.snapshot
			}
			if flags.Changed("resume") {
				cfg.Snapshot.Resume = opts.resume
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			return run(cmd.Context(), cfg, flags.Changed("start-page"))
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default: ./config.yaml)")
	cmd.Flags().IntVar(&opts.startPage, "start-page", 1, "first catalog page to fetch")
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "stop after this many pages (0 = no limit)")
	cmd.Flags().StringVar(&opts.snapshot, "snapshot", "", "snapshot file path")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "load the snapshot file and continue after its last page")
	return cmd
}

func run(parent context.Context, cfg *config.Config, explicitStart bool) error {
	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger = logger.With().Str("component", "citegraph").Logger()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetricsWithRegistry(metricsNamespace, registry)

	store := dataset.NewStore()
	if cfg.Snapshot.Resume {
		if err := restoreSnapshot(store, cfg, explicitStart, logger); err != nil {
			return err
		}
	}

	runID := uuid.New()
	// The orchestrator and resolver take run_id from the run context.
	runLogger := observability.WithRunContext(logger, runID.String())

	checkpointers := []acquisition.Checkpointer{
		dataset.NewFileWriter(cfg.Snapshot.Path, cfg.Snapshot.Indent, runLogger),
	}

	var db *database.DB
	if cfg.Database.Enabled {
		db, err = openDatabase(ctx, cfg, runLogger)
		if err != nil {
			return err
		}
		defer db.Close()
		checkpointers = append(checkpointers,
			repository.NewPgSnapshotRepository(db, runID, cfg.Database.BatchSize, runLogger))
	}

	limiter := papersources.NewConnLimiter(cfg.Network.MaxConnections)
	resolver := acquisition.NewResolver(acquisition.Dependencies{
		Store:      store,
		Metadata:   newMetadataSource(cfg, limiter, metrics),
		Classifier: newClassifier(cfg, limiter, metrics),
		Extractors: newExtractorRegistry(cfg, limiter, metrics, runLogger),
		Metrics:    metrics,
		Logger:     logger,
	}, acquisition.ResolverConfig{
		Thresholds: matcher.Thresholds{
			High: cfg.Matching.HighThreshold,
			Low:  cfg.Matching.LowThreshold,
		},
		MaxReferences:     cfg.Metadata.MaxReferences,
		MaxDepth:          cfg.Resolution.MaxDepth,
		ExtractPublishers: cfg.Publishers.Enabled,
	})

	var (
		sink   acquisition.ProgressSink
		server *httpserver.Server
		srvErr = make(chan error, 1)
	)
	if cfg.Status.Enabled {
		deps := httpserver.Deps{
			Papers:   store,
			Gatherer: registry,
			Logger:   runLogger,
		}
		if db != nil {
			deps.DB = db
		}
		server = httpserver.NewServer(httpserver.Config{
			Address:         cfg.Status.Address(),
			MetricsPath:     cfg.Status.MetricsPath,
			ReadTimeout:     cfg.Status.ReadTimeout,
			WriteTimeout:    cfg.Status.WriteTimeout,
			ShutdownTimeout: cfg.Status.ShutdownTimeout,
		}, deps)
		sink = server.Tracker()

		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()
	}

	orchestrator := acquisition.NewOrchestrator(acquisition.OrchestratorDeps{
		Catalog:       newCatalog(cfg, limiter, metrics),
		Resolver:      resolver,
		Store:         store,
		Checkpointers: checkpointers,
		Progress:      sink,
		Metrics:       metrics,
		RunID:         runID.String(),
		Logger:        logger,
	}, acquisition.OrchestratorConfig{
		PageSize:               cfg.Catalog.PageSize,
		StartPage:              cfg.Catalog.StartPage,
		MaxPages:               cfg.Catalog.MaxPages,
		MaxConsecutiveFailures: cfg.Catalog.MaxConsecutiveFailures,
		FinalTimeout:           cfg.Snapshot.FinalTimeout,
	})

	runLogger.Info().
		Int("start_page", cfg.Catalog.StartPage).
		Int("page_size", cfg.Catalog.PageSize).
		Int("max_connections", cfg.Network.MaxConnections).
		Str("snapshot", cfg.Snapshot.Path).
		Bool("database", db != nil).
		Msg("citation graph run starting")

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	go func() {
		select {
		case err := <-srvErr:
			runLogger.Error().Err(err).Msg("status server failed, stopping run")
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	_, runErr := orchestrator.Run(runCtx)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Status.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			runLogger.Error().Err(err).Msg("status server shutdown failed")
		}
	}
	return runErr
}

func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	logger, closer, err := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return logger, closer, fmt.Errorf("create logger: %w", err)
	}
	return logger, closer, nil
}

// restoreSnapshot loads the snapshot file into store. Unless the start page
// was given explicitly, the run continues after the snapshot's last page.
func restoreSnapshot(store *dataset.Store, cfg *config.Config, explicitStart bool, logger zerolog.Logger) error {
	snap, err := dataset.LoadSnapshot(cfg.Snapshot.Path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Info().Str("path", cfg.Snapshot.Path).Msg("no snapshot to resume, starting fresh")
			return nil
		}
		return fmt.Errorf("resume: %w", err)
	}
	store.Restore(snap)
	if !explicitStart && cfg.Catalog.StartPage == 1 {
		cfg.Catalog.StartPage = resumePage(snap)
	}
	logger.Info().
		Str("path", cfg.Snapshot.Path).
		Int("papers", len(snap.Papers)).
		Int("last_page", snap.LastPage).
		Int("start_page", cfg.Catalog.StartPage).
		Msg("resuming from snapshot")
	return nil
}

// resumePage returns the first page a run resumed from snap should fetch.
func resumePage(snap *dataset.Snapshot) int {
	if snap == nil || snap.LastPage < 1 {
		return 1
	}
	return snap.LastPage + 1
}

func openDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*database.DB, error) {
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("database connection established")

	if !cfg.Database.MigrationAutoRun {
		return db, nil
	}
	migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func newCatalog(cfg *config.Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver) papersources.CatalogSource {
	return paperswithcode.New(paperswithcode.Config{
		BaseURL:    cfg.Catalog.BaseURL,
		Timeout:    cfg.Network.Timeout,
		RateLimit:  cfg.Catalog.RateLimit,
		MaxRetries: cfg.Network.MaxRetries,
		UserAgent:  cfg.Network.UserAgent,
	}, limiter, observer)
}

func newMetadataSource(cfg *config.Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver) papersources.MetadataSource {
	return crossref.New(crossref.Config{
		BaseURL:           cfg.Metadata.BaseURL,
		Mailto:            cfg.Network.Mailto,
		Timeout:           cfg.Network.Timeout,
		RateLimit:         cfg.Metadata.RateLimit,
		MaxRetries:        cfg.Network.MaxRetries,
		UserAgent:         cfg.Network.UserAgent,
		FollowRateHeaders: cfg.Metadata.FollowRateHeaders,
	}, limiter, observer)
}

// newClassifier returns the enabled classification sources, id-keyed first.
// It returns nil when classification is off.
func newClassifier(cfg *config.Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver) papersources.ClassificationSource {
	if !cfg.Classification.Enabled {
		return nil
	}
	var sources []papersources.ClassificationSource
	if c := cfg.Classification.ArXiv; c.Enabled {
		sources = append(sources, arxiv.New(arxiv.Config{
			BaseURL:    c.BaseURL,
			Timeout:    cfg.Network.Timeout,
			RateLimit:  c.RateLimit,
			MaxRetries: cfg.Network.MaxRetries,
			UserAgent:  cfg.Network.UserAgent,
		}, limiter, observer))
	}
	if c := cfg.Classification.OpenAlex; c.Enabled {
		sources = append(sources, openalex.New(openalex.Config{
			BaseURL:    c.BaseURL,
			Email:      cfg.Network.Mailto,
			Timeout:    cfg.Network.Timeout,
			RateLimit:  c.RateLimit,
			MaxRetries: cfg.Network.MaxRetries,
		}, limiter, observer))
	}
	if len(sources) == 0 {
		return nil
	}
	return papersources.NewClassifierChain(sources...)
}

// newExtractorRegistry maps each configured publisher name to its extractor.
func newExtractorRegistry(cfg *config.Config, limiter *papersources.ConnLimiter, observer papersources.RequestObserver, logger zerolog.Logger) *papersources.ExtractorRegistry {
	registry := papersources.NewExtractorRegistry()
	if !cfg.Publishers.Enabled {
		return registry
	}

	var ieeeClient *ieee.Client
	for publisher, key := range cfg.Publishers.Extractors {
		switch key {
		case "ieee":
			if ieeeClient == nil {
				c := cfg.Publishers.IEEE
				ieeeClient = ieee.New(ieee.Config{
					HandleURL:      c.HandleURL,
					BaseURL:        c.BaseURL,
					RenderEndpoint: c.RenderEndpoint,
					DisableREST:    c.DisableREST,
					Timeout:        cfg.Network.Timeout,
					RateLimit:      c.RateLimit,
					MaxRetries:     cfg.Network.MaxRetries,
					UserAgent:      cfg.Network.UserAgent,
				}, limiter, observer)
			}
			registry.Register(publisher, ieeeClient)
		default:
			logger.Warn().Str("publisher", publisher).Str("extractor", key).Msg("unknown extractor, publisher ignored")
		}
	}
	return registry
}
