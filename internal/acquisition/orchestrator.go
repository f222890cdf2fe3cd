package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/citation-graph-service/internal/dataset"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

// Orchestrator defaults.
const (
	DefaultPageSize               = 50
	DefaultMaxConsecutiveFailures = 10
	DefaultFinalTimeout           = 30 * time.Second
)

// Checkpointer persists dataset snapshots. dataset.FileWriter and
// repository.PgSnapshotRepository implement it.
type Checkpointer interface {
	Name() string
	Checkpoint(ctx context.Context, snap *dataset.Snapshot) error
}

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateStopped   RunState = "stopped"
	RunStateFailed    RunState = "failed"
)

// Progress describes a run as seen from outside.
type Progress struct {
	RunID            string        `json:"run_id"`
	State            RunState      `json:"state"`
	StartPage        int           `json:"start_page"`
	CurrentPage      int           `json:"current_page"`
	LastPage         int           `json:"last_page"`
	PagesProcessed   int           `json:"pages_processed"`
	PagesFailed      int           `json:"pages_failed"`
	Dataset          dataset.Stats `json:"dataset"`
	StartedAt        time.Time     `json:"started_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	LastCheckpointAt *time.Time    `json:"last_checkpoint_at,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// ProgressSink receives a Progress value after every state change.
type ProgressSink interface {
	Publish(p Progress)
}

// OrchestratorConfig holds the page loop settings.
type OrchestratorConfig struct {
	PageSize  int
	StartPage int

	// MaxPages stops the run after this many processed pages. Zero means no limit.
	MaxPages int

	// MaxConsecutiveFailures ends the run after this many failed page
	// fetches in a row. Zero means never.
	MaxConsecutiveFailures int

	// FinalTimeout bounds the final checkpoint.
	FinalTimeout time.Duration
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.StartPage <= 0 {
		c.StartPage = 1
	}
	if c.MaxConsecutiveFailures < 0 {
		c.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if c.FinalTimeout <= 0 {
		c.FinalTimeout = DefaultFinalTimeout
	}
}

// Orchestrator walks the catalog page by page. Each page becomes a cohort
// of resolver tasks that completes before the next page is fetched.
type Orchestrator struct {
	catalog       papersources.CatalogSource
	resolver      *Resolver
	store         *dataset.Store
	checkpointers []Checkpointer
	progress      ProgressSink
	metrics       *observability.Metrics
	config        OrchestratorConfig
	runID         string
	logger        zerolog.Logger

	mu    sync.Mutex
	state Progress
}

// OrchestratorDeps groups the collaborators of an Orchestrator. Progress may be nil.
type OrchestratorDeps struct {
	Catalog       papersources.CatalogSource
	Resolver      *Resolver
	Store         *dataset.Store
	Checkpointers []Checkpointer
	Progress      ProgressSink
	Metrics       *observability.Metrics
	RunID         string
	Logger        zerolog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	cfg.applyDefaults()
	logger := deps.Logger.With().Str("component", "orchestrator").Logger()
	if deps.RunID != "" {
		logger = observability.WithRunContext(logger, deps.RunID)
	}
	return &Orchestrator{
		catalog:       deps.Catalog,
		resolver:      deps.Resolver,
		store:         deps.Store,
		checkpointers: deps.Checkpointers,
		progress:      deps.Progress,
		metrics:       deps.Metrics,
		config:        cfg,
		runID:         deps.RunID,
		logger:        logger,
	}
}

// Run processes catalog pages until the catalog is exhausted, MaxPages is
// reached or ctx is cancelled. A final checkpoint is always attempted. It
// returns the number of pages whose cohort completed.
//
// Cancellation is not an error. Run fails only when the catalog stays
// unreachable for MaxConsecutiveFailures fetches or the final checkpoint
// fails.
func (o *Orchestrator) Run(ctx context.Context) (pages int, err error) {
	if o.runID != "" {
		ctx = observability.WithRunID(ctx, o.runID)
	}
	lastPage := o.config.StartPage - 1

	now := time.Now().UTC()
	o.update(func(p *Progress) {
		p.RunID = o.runID
		p.State = RunStateRunning
		p.StartPage = o.config.StartPage
		p.LastPage = lastPage
		p.StartedAt = now
	})

	o.logger.Info().
		Int("start_page", o.config.StartPage).
		Int("page_size", o.config.PageSize).
		Int("max_pages", o.config.MaxPages).
		Msg("run started")

	defer func() {
		if ferr := o.finalCheckpoint(lastPage); ferr != nil {
			err = errors.Join(err, ferr)
		}

		state := RunStateCompleted
		switch {
		case err != nil:
			state = RunStateFailed
		case ctx.Err() != nil:
			state = RunStateStopped
		}
		o.update(func(p *Progress) {
			p.State = state
			if err != nil {
				p.Error = err.Error()
			}
		})

		stats := o.store.Stats()
		event := o.logger.Info()
		if err != nil {
			event = o.logger.Error().Err(err)
		}
		event.
			Str("state", string(state)).
			Int("pages", pages).
			Int("last_page", lastPage).
			Int("papers", stats.Papers).
			Int64("references_resolved", stats.ReferencesResolved).
			Int("unknown_publishers", stats.UnknownPublishers).
			Msg("run finished")
	}()

	failures := 0
	total := -1
	for page := o.config.StartPage; ; page++ {
		if ctx.Err() != nil {
			return pages, nil
		}
		if o.config.MaxPages > 0 && pages >= o.config.MaxPages {
			return pages, nil
		}
		if total >= 0 && (page-1)*o.config.PageSize >= total {
			return pages, nil
		}

		o.update(func(p *Progress) { p.CurrentPage = page })
		logger := observability.WithPageContext(o.logger, page)

		result, ferr := o.catalog.ListPage(ctx, page, o.config.PageSize)
		if ferr != nil {
			if ctx.Err() != nil {
				return pages, nil
			}
			failures++
			o.metrics.RecordPageFailed()
			o.update(func(p *Progress) { p.PagesFailed++ })
			logger.Warn().
				Err(ferr).
				Int("consecutive_failures", failures).
				Msg("catalog page fetch failed")
			if o.config.MaxConsecutiveFailures > 0 && failures >= o.config.MaxConsecutiveFailures {
				return pages, fmt.Errorf("catalog unavailable after %d consecutive page failures: %w", failures, ferr)
			}
			continue
		}
		failures = 0
		if result.Total > 0 {
			total = result.Total
		}
		if len(result.Results) == 0 {
			if !result.HasNext {
				logger.Info().Msg("catalog page empty")
				return pages, nil
			}
			logger.Info().Msg("catalog page has no usable entries")
		}

		start := time.Now()
		o.runCohort(ctx, page, result.Results)
		if ctx.Err() != nil {
			// The cohort was interrupted and is not complete.
			return pages, nil
		}
		pages++
		lastPage = page

		o.metrics.RecordPageProcessed(page, len(result.Results), time.Since(start).Seconds())
		o.checkpointPage(ctx, logger, page)
		o.update(func(p *Progress) {
			p.PagesProcessed = pages
			p.LastPage = page
		})

		if !result.HasNext {
			return pages, nil
		}
	}
}

// runCohort resolves every seed of one page. References scheduled by the
// tasks join the same group, so runCohort returns only when the whole
// cohort has settled.
func (o *Orchestrator) runCohort(ctx context.Context, page int, seeds []domain.SeedSummary) {
	ctx = observability.WithPage(ctx, page)

	var g errgroup.Group
	for _, seed := range seeds {
		g.Go(func() error {
			o.resolver.Resolve(ctx, &g, seed, 0)
			return nil
		})
	}
	_ = g.Wait()
}

// checkpointPage writes the snapshot taken after a completed cohort.
// Failures are logged; the next checkpoint will try again.
func (o *Orchestrator) checkpointPage(ctx context.Context, logger zerolog.Logger, page int) {
	snap := o.snapshot(page)
	stats := snap.Stats()
	o.metrics.SetDatasetStats(int64(stats.Papers), stats.ReferencesResolved)

	if err := o.checkpoint(ctx, snap); err != nil {
		logger.Warn().Err(err).Msg("checkpoint failed")
	}

	logger.Info().
		Int("papers", stats.Papers).
		Int64("papers_resolved", stats.PapersResolved).
		Int64("references_resolved", stats.ReferencesResolved).
		Int("unknown_publishers", stats.UnknownPublishers).
		Msg("cohort complete")
}

// finalCheckpoint writes the last snapshot under its own deadline so that it
// also runs after ctx has been cancelled.
func (o *Orchestrator) finalCheckpoint(lastPage int) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.FinalTimeout)
	defer cancel()

	snap := o.snapshot(lastPage)
	stats := snap.Stats()
	o.metrics.SetDatasetStats(int64(stats.Papers), stats.ReferencesResolved)

	if err := o.checkpoint(ctx, snap); err != nil {
		return fmt.Errorf("final snapshot failed: %w", err)
	}
	return nil
}

// checkpoint hands snap to every checkpointer and joins their errors.
func (o *Orchestrator) checkpoint(ctx context.Context, snap *dataset.Snapshot) error {
	var errs []error
	for _, cp := range o.checkpointers {
		start := time.Now()
		err := cp.Checkpoint(ctx, snap)
		o.metrics.RecordCheckpoint(cp.Name(), time.Since(start).Seconds(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cp.Name(), err))
			continue
		}
		o.logger.Debug().Str("writer", cp.Name()).Int("last_page", snap.LastPage).Msg("checkpoint written")
	}

	writtenAt := snap.WrittenAt
	o.update(func(p *Progress) {
		p.Dataset = snap.Stats()
		if len(errs) < len(o.checkpointers) {
			p.LastCheckpointAt = &writtenAt
		}
	})
	return errors.Join(errs...)
}

func (o *Orchestrator) snapshot(lastPage int) *dataset.Snapshot {
	snap := o.store.Snapshot()
	snap.LastPage = lastPage
	snap.WrittenAt = time.Now().UTC()
	return snap
}

// Progress returns the current run progress.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := o.state
	p.Dataset = o.store.Stats()
	return p
}

// update mutates the progress and publishes a copy to the sink.
func (o *Orchestrator) update(fn func(p *Progress)) {
	o.mu.Lock()
	fn(&o.state)
	o.state.UpdatedAt = time.Now().UTC()
	p := o.state
	o.mu.Unlock()

	if o.progress != nil {
		o.progress.Publish(p)
	}
}
