// Package acquisition builds the citation graph: it resolves catalog seeds to
// canonical records, discovers their references and feeds newly discovered
// papers back into resolution.
//
// Every collaborator failure degrades to "no data". The Resolver never
// returns an error to its caller; problems surface in logs and metrics only.
package acquisition

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/helixir/citation-graph-service/internal/dataset"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/matcher"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

// DefaultMaxReferences caps the structured reference entries examined per paper.
const DefaultMaxReferences = 70

// TaskGroup schedules background work that the current cohort waits for.
// *errgroup.Group satisfies it.
type TaskGroup interface {
	Go(f func() error)
}

// ResolverConfig holds the tunables of the resolution algorithm.
type ResolverConfig struct {
	// Thresholds are the high and low title-match confidence levels.
	Thresholds matcher.Thresholds

	// MaxReferences truncates structured reference lists. Zero disables the cap.
	MaxReferences int

	// MaxDepth bounds reference recursion. Seeds are depth 0; zero means unbounded.
	MaxDepth int

	// ExtractPublishers enables the publisher extractor fallback.
	ExtractPublishers bool
}

// DefaultResolverConfig returns the default tunables.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		Thresholds:        matcher.DefaultThresholds(),
		MaxReferences:     DefaultMaxReferences,
		ExtractPublishers: true,
	}
}

// Resolver turns seeds and identifiers into PaperRecords in the store.
// It is safe for concurrent use.
type Resolver struct {
	store      *dataset.Store
	metadata   papersources.MetadataSource
	classifier papersources.ClassificationSource
	extractors *papersources.ExtractorRegistry
	metrics    *observability.Metrics
	config     ResolverConfig
	logger     zerolog.Logger

	// flight collapses concurrent lookups of the same title or identifier.
	flight singleflight.Group
}

// Dependencies groups the collaborators of a Resolver. Classifier and
// Extractors may be nil.
type Dependencies struct {
	Store      *dataset.Store
	Metadata   papersources.MetadataSource
	Classifier papersources.ClassificationSource
	Extractors *papersources.ExtractorRegistry
	Metrics    *observability.Metrics
	Logger     zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(deps Dependencies, cfg ResolverConfig) *Resolver {
	extractors := deps.Extractors
	if extractors == nil {
		extractors = papersources.NewExtractorRegistry()
	}
	return &Resolver{
		store:      deps.Store,
		metadata:   deps.Metadata,
		classifier: deps.Classifier,
		extractors: extractors,
		metrics:    deps.Metrics,
		config:     cfg,
		logger:     deps.Logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve searches the metadata source for seed.Title and, on a
// high-confidence match, stores and expands the paper. It returns the
// matched identifier and whether a match was found; the identifier may
// already have been present in the store.
func (r *Resolver) Resolve(ctx context.Context, g TaskGroup, seed domain.SeedSummary, depth int) (string, bool) {
	cand, ok := r.search(ctx, seed.Title, r.config.Thresholds.High, domain.StageSeed)
	if !ok {
		return "", false
	}
	r.resolveCandidate(ctx, g, cand, seed, depth)
	return cand.ID, true
}

// ResolveIdentifier maps id to its title and continues as Resolve. The
// search endpoint is title-keyed, so this costs two lookups.
func (r *Resolver) ResolveIdentifier(ctx context.Context, g TaskGroup, id string, depth int) (string, bool) {
	id = domain.CanonicalID(id)
	if id == "" {
		return "", false
	}
	if r.store.Exists(id) {
		r.metrics.RecordPaperSkipped("exists")
		return id, true
	}

	v, err, _ := r.flight.Do("id:"+id, func() (any, error) {
		return r.metadata.LookupTitle(ctx, id)
	})
	if err != nil {
		r.degrade(ctx, domain.StageReference, err, "identifier lookup failed", id)
		return "", false
	}
	return r.Resolve(ctx, g, domain.SeedSummary{Title: v.(string)}, depth)
}

// search queries the metadata source and validates the candidate against
// title at threshold. Concurrent searches for the same normalized title
// share one request.
func (r *Resolver) search(ctx context.Context, title string, threshold float64, stage string) (*domain.Candidate, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, false
	}

	v, err, _ := r.flight.Do("title:"+matcher.Normalize(title), func() (any, error) {
		return r.metadata.SearchByTitle(ctx, title)
	})
	if err != nil {
		r.degrade(ctx, stage, err, "title search failed", title)
		return nil, false
	}
	cand := v.(*domain.Candidate)
	if cand == nil || cand.ID == "" {
		return nil, false
	}

	if !matcher.Matches(cand.Title, title, threshold) {
		r.metrics.RecordMatchRejected(stage)
		r.log(ctx).Debug().
			Str("query", title).
			Str("candidate", cand.Title).
			Float64("threshold", threshold).
			Msg("candidate rejected")
		return nil, false
	}
	return cand, true
}

// resolveCandidate stores a validated candidate and expands it. Only the
// task whose insert wins continues past the store.
func (r *Resolver) resolveCandidate(ctx context.Context, g TaskGroup, cand *domain.Candidate, seed domain.SeedSummary, depth int) {
	if r.store.Exists(cand.ID) {
		r.metrics.RecordPaperSkipped("exists")
		return
	}
	if !r.store.InsertIfAbsent(buildRecord(cand, seed)) {
		r.metrics.RecordPaperSkipped("race")
		return
	}
	r.metrics.RecordPaperResolved()

	logger := observability.WithPaperContext(r.log(ctx), cand.ID, cand.Title)
	logger.Debug().Int("depth", depth).Msg("paper resolved")

	r.classify(ctx, cand.ID, cand.Title, seed.ArxivID)

	refs := r.resolveReferences(ctx, g, cand, depth)
	r.store.SetReferences(cand.ID, refs)

	logger.Debug().Int("references", len(refs)).Msg("references resolved")
}

// classify enriches the record with category and language. Title-keyed
// answers are accepted only when they describe the same paper.
func (r *Resolver) classify(ctx context.Context, id, title, arxivID string) {
	if r.classifier == nil {
		return
	}

	cls, err := r.classifier.Classify(ctx, domain.ClassificationQuery{ArxivID: arxivID, Title: title})
	if err != nil {
		r.degrade(ctx, domain.StageClassify, err, "classification failed", id)
		return
	}
	if cls == nil || (cls.Category == "" && cls.Language == "") {
		return
	}
	if cls.TitleKeyed && !matcher.Matches(cls.MatchedTitle, title, r.config.Thresholds.High) {
		r.metrics.RecordMatchRejected(domain.StageClassify)
		return
	}

	r.store.Enrich(id, func(rec *domain.PaperRecord) {
		if cls.Category != "" {
			rec.Category = cls.Category
		}
		if cls.Language != "" {
			rec.Language = cls.Language
		}
	})
}

// degrade records a collaborator failure. Failures are expected and never
// propagate, so they are logged at debug level.
func (r *Resolver) degrade(ctx context.Context, stage string, err error, msg, subject string) {
	errType := papersources.ErrorType(err)
	if errType == papersources.ErrorTypeNotFound {
		r.metrics.RecordPaperSkipped("not_found")
	} else {
		r.metrics.RecordResolutionError(stage, errType)
	}
	r.log(ctx).Debug().
		Err(err).
		Str("stage", stage).
		Str("error_type", errType).
		Str("subject", subject).
		Msg(msg)
}

// log returns the resolver logger with the run and page carried by ctx.
func (r *Resolver) log(ctx context.Context) zerolog.Logger {
	return observability.LoggerFromContext(ctx, r.logger)
}

// buildRecord merges a candidate with what the seed already knows. Seed
// dates and venue names take precedence.
func buildRecord(cand *domain.Candidate, seed domain.SeedSummary) *domain.PaperRecord {
	rec := &domain.PaperRecord{
		ID:         cand.ID,
		DOIURL:     cand.URL,
		Title:      cand.Title,
		Authors:    cand.Authors,
		Date:       cand.Date,
		Language:   cand.Language,
		Conference: cand.Venue,
		Publisher:  cand.Publisher,
		Keywords:   cand.Subjects,
	}
	if rec.DOIURL == "" {
		rec.DOIURL = domain.DOIURL(cand.ID)
	}
	if len(rec.Authors) == 0 && len(seed.Authors) > 0 {
		rec.Authors = make([]domain.Author, 0, len(seed.Authors))
		for _, name := range seed.Authors {
			rec.Authors = append(rec.Authors, domain.Author{Name: name})
		}
	}
	if rec.Authors == nil {
		rec.Authors = []domain.Author{}
	}
	if rec.Keywords == nil {
		rec.Keywords = []string{}
	}
	if seed.Published != nil {
		rec.Date = seed.Published
	}
	if seed.Conference != "" {
		rec.Conference.Name = seed.Conference
	}
	return rec
}
