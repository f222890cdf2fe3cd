package acquisition

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
)

const ieeePublisher = "Institute of Electrical and Electronics Engineers (IEEE)"

func ref(kind domain.ReferenceKind, value string) domain.RawReferenceEntry {
	return domain.RawReferenceEntry{Kind: kind, Value: value}
}

// resolve runs one seed resolution and waits for everything it scheduled.
func resolve(t *testing.T, r *Resolver, seed domain.SeedSummary) (string, bool) {
	t.Helper()
	var g errgroup.Group
	var (
		id string
		ok bool
	)
	g.Go(func() error {
		id, ok = r.Resolve(context.Background(), &g, seed, 0)
		return nil
	})
	require.NoError(t, g.Wait())
	return id, ok
}

func TestResolver_Resolve(t *testing.T) {
	t.Run("stores a high-confidence match", func(t *testing.T) {
		env := newTestEnv()
		published := time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC)
		env.metadata.add("Attention Is All You Need", &domain.Candidate{
			ID:            "10.5555/3295222.3295349",
			Title:         "Attention is All you Need",
			Authors:       []domain.Author{{Name: "Ashish Vaswani", Organization: "Google Brain"}},
			Publisher:     "Curran Associates Inc.",
			Subjects:      []string{"Machine Learning"},
			HasReferences: true,
		})
		r := env.resolver(nil, DefaultResolverConfig())

		id, ok := resolve(t, r, domain.SeedSummary{
			Title:      "Attention Is All You Need",
			Published:  &published,
			Conference: "NeurIPS",
		})
		require.True(t, ok)
		assert.Equal(t, "10.5555/3295222.3295349", id)

		rec, found := env.store.Get(id)
		require.True(t, found)
		assert.Equal(t, "Attention is All you Need", rec.Title)
		assert.Equal(t, "https://doi.org/10.5555/3295222.3295349", rec.DOIURL)
		assert.Equal(t, &published, rec.Date)
		assert.Equal(t, "NeurIPS", rec.Conference.Name)
		assert.Equal(t, []string{"Machine Learning"}, rec.Keywords)
		assert.Equal(t, []string{}, rec.References)
		assert.True(t, rec.ReferencesProcessed)
		assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.PapersResolved))
	})

	t.Run("rejects a low-similarity candidate", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add("Deep Residual Learning for Image Recognition", &domain.Candidate{
			ID:    "10.1000/unrelated",
			Title: "A Survey of Medieval Agricultural Practices",
		})
		r := env.resolver(nil, DefaultResolverConfig())

		_, ok := resolve(t, r, domain.SeedSummary{Title: "Deep Residual Learning for Image Recognition"})
		assert.False(t, ok)
		assert.Zero(t, env.store.Len())
		assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.MatchesRejected.WithLabelValues(domain.StageSeed)))
	})

	t.Run("search failure yields no record", func(t *testing.T) {
		env := newTestEnv()
		r := env.resolver(nil, DefaultResolverConfig())

		_, ok := resolve(t, r, domain.SeedSummary{Title: "Nobody Indexed This"})
		assert.False(t, ok)
		assert.Zero(t, env.store.Len())
	})

	t.Run("empty title is skipped without a lookup", func(t *testing.T) {
		env := newTestEnv()
		r := env.resolver(nil, DefaultResolverConfig())

		_, ok := resolve(t, r, domain.SeedSummary{Title: "   "})
		assert.False(t, ok)
		assert.Empty(t, env.metadata.searches)
	})

	t.Run("seed authors fill in missing candidate authors", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add("Graph Attention Networks", &domain.Candidate{ID: "10.1/gat", Title: "Graph Attention Networks"})
		r := env.resolver(nil, DefaultResolverConfig())

		id, ok := resolve(t, r, domain.SeedSummary{
			Title:   "Graph Attention Networks",
			Authors: []string{"Petar Veličković", "Yoshua Bengio"},
		})
		require.True(t, ok)

		rec, _ := env.store.Get(id)
		assert.Equal(t, []domain.Author{{Name: "Petar Veličković"}, {Name: "Yoshua Bengio"}}, rec.Authors)
	})
}

func TestResolver_Idempotence(t *testing.T) {
	seed := domain.SeedSummary{Title: "Adam: A Method for Stochastic Optimization"}

	t.Run("sequential resolutions keep one record", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add(seed.Title, &domain.Candidate{ID: "10.1/adam", Title: seed.Title, HasReferences: true})
		r := env.resolver(nil, DefaultResolverConfig())

		for range 3 {
			id, ok := resolve(t, r, seed)
			require.True(t, ok)
			assert.Equal(t, "10.1/adam", id)
		}

		assert.Equal(t, 1, env.store.Len())
		assert.Equal(t, int64(1), env.store.Stats().PapersResolved)
	})

	t.Run("concurrent resolutions keep one record", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add(seed.Title, &domain.Candidate{ID: "10.1/adam", Title: seed.Title, HasReferences: true})
		r := env.resolver(nil, DefaultResolverConfig())

		var g errgroup.Group
		for range 16 {
			g.Go(func() error {
				r.Resolve(context.Background(), &g, seed, 0)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, 1, env.store.Len())
		assert.Equal(t, int64(1), env.store.Stats().PapersResolved)
	})
}

func TestResolver_ReferenceAggregation(t *testing.T) {
	env := newTestEnv()
	env.metadata.add("Paper Under Test", &domain.Candidate{
		ID:            "10.1/root",
		Title:         "Paper Under Test",
		HasReferences: true,
		References: []domain.RawReferenceEntry{
			ref(domain.ReferenceKindDOI, "10.1/R1"),
			ref(domain.ReferenceKindDOI, "https://doi.org/10.1/r2"),
			ref(domain.ReferenceKindDOI, "10.1/r3"),
			ref(domain.ReferenceKindUnstructured, "Learning Deep Representations"),
			ref(domain.ReferenceKindStructuredTitle, "Quantum Gravity Basics"),
		},
	})
	env.metadata.add("Learning Deep Representations", &domain.Candidate{ID: "10.1/t1", Title: "Learning Deep Representations"})
	env.metadata.add("Quantum Gravity Basics", &domain.Candidate{ID: "10.1/t2", Title: "Medieval Poetry in Northern France"})
	r := env.resolver(nil, DefaultResolverConfig())

	id, ok := resolve(t, r, domain.SeedSummary{Title: "Paper Under Test"})
	require.True(t, ok)

	rec, _ := env.store.Get(id)
	assert.Equal(t, []string{"10.1/r1", "10.1/r2", "10.1/r3", "10.1/t1"}, rec.References)
	assert.Equal(t, int64(4), env.store.Stats().ReferencesResolved)

	assert.True(t, env.store.Exists("10.1/t1"), "title match is resolved inline")
	assert.False(t, env.store.Exists("10.1/t2"), "rejected candidate leaves no record")
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.MatchesRejected.WithLabelValues(domain.StageReference)))
}

func TestResolver_DirectIdentifierSpawnsResolution(t *testing.T) {
	env := newTestEnv()
	env.metadata.add("Citing Paper", &domain.Candidate{
		ID:            "10.1/citing",
		Title:         "Citing Paper",
		HasReferences: true,
		References:    []domain.RawReferenceEntry{ref(domain.ReferenceKindDOI, "10.1/cited")},
	})
	env.metadata.add("Cited Paper", &domain.Candidate{ID: "10.1/cited", Title: "Cited Paper", HasReferences: true})
	r := env.resolver(nil, DefaultResolverConfig())

	_, ok := resolve(t, r, domain.SeedSummary{Title: "Citing Paper"})
	require.True(t, ok)

	cited, found := env.store.Get("10.1/cited")
	require.True(t, found, "scheduled resolution finishes before the group returns")
	assert.Equal(t, "Cited Paper", cited.Title)
	assert.True(t, cited.ReferencesProcessed)
}

func TestResolver_ReferenceCycle(t *testing.T) {
	env := newTestEnv()
	env.metadata.add("Paper A", &domain.Candidate{
		ID: "10.1/a", Title: "Paper A", HasReferences: true,
		References: []domain.RawReferenceEntry{ref(domain.ReferenceKindUnstructured, "Paper B")},
	})
	env.metadata.add("Paper B", &domain.Candidate{
		ID: "10.1/b", Title: "Paper B", HasReferences: true,
		References: []domain.RawReferenceEntry{ref(domain.ReferenceKindDOI, "10.1/a")},
	})
	r := env.resolver(nil, DefaultResolverConfig())

	_, ok := resolve(t, r, domain.SeedSummary{Title: "Paper A"})
	require.True(t, ok)

	a, _ := env.store.Get("10.1/a")
	b, _ := env.store.Get("10.1/b")
	assert.Equal(t, []string{"10.1/b"}, a.References)
	assert.Equal(t, []string{"10.1/a"}, b.References)
	assert.Equal(t, 2, env.store.Len())
}

func TestResolver_MaxReferences(t *testing.T) {
	env := newTestEnv()
	refs := make([]domain.RawReferenceEntry, 0, 5)
	for _, id := range []string{"10.1/1", "10.1/2", "10.1/3", "10.1/4", "10.1/5"} {
		refs = append(refs, ref(domain.ReferenceKindDOI, id))
	}
	env.metadata.add("Long Bibliography", &domain.Candidate{ID: "10.1/long", Title: "Long Bibliography", HasReferences: true, References: refs})

	cfg := DefaultResolverConfig()
	cfg.MaxReferences = 3
	r := env.resolver(nil, cfg)

	id, ok := resolve(t, r, domain.SeedSummary{Title: "Long Bibliography"})
	require.True(t, ok)

	rec, _ := env.store.Get(id)
	assert.Equal(t, []string{"10.1/1", "10.1/2", "10.1/3"}, rec.References)
}

func TestResolver_MaxDepth(t *testing.T) {
	env := newTestEnv()
	env.metadata.add("Paper A", &domain.Candidate{
		ID: "10.1/a", Title: "Paper A", HasReferences: true,
		References: []domain.RawReferenceEntry{ref(domain.ReferenceKindUnstructured, "Paper B")},
	})
	env.metadata.add("Paper B", &domain.Candidate{
		ID: "10.1/b", Title: "Paper B", HasReferences: true,
		References: []domain.RawReferenceEntry{
			ref(domain.ReferenceKindUnstructured, "Paper C"),
			ref(domain.ReferenceKindDOI, "10.1/d"),
		},
	})
	env.metadata.add("Paper C", &domain.Candidate{ID: "10.1/c", Title: "Paper C", HasReferences: true})
	env.metadata.add("Paper D", &domain.Candidate{ID: "10.1/d", Title: "Paper D", HasReferences: true})

	cfg := DefaultResolverConfig()
	cfg.MaxDepth = 1
	r := env.resolver(nil, cfg)

	_, ok := resolve(t, r, domain.SeedSummary{Title: "Paper A"})
	require.True(t, ok)

	b, found := env.store.Get("10.1/b")
	require.True(t, found)
	assert.Equal(t, []string{"10.1/c", "10.1/d"}, b.References, "references at the bound are still accepted")
	assert.False(t, env.store.Exists("10.1/c"))
	assert.False(t, env.store.Exists("10.1/d"))
}

func TestResolver_PublisherFallback(t *testing.T) {
	t.Run("known publisher resolves quoted titles", func(t *testing.T) {
		env := newTestEnv()
		extractor := &fakeExtractor{lines: []string{
			`A. Vaswani et al., "Attention Is All You Need," in Proc. NeurIPS, 2017.`,
			`K. Roe, "Completely Unrelated Thing," 2019.`,
		}}
		env.extractors.Register(ieeePublisher, extractor)
		env.metadata.add("Transformers in Vision", &domain.Candidate{
			ID: "10.1109/tpami.1", Title: "Transformers in Vision", Publisher: ieeePublisher,
		})
		env.metadata.add("Attention Is All You Need", &domain.Candidate{ID: "10.1/attention", Title: "Attention Is All You Need", HasReferences: true})
		env.metadata.add("Completely Unrelated Thing", &domain.Candidate{ID: "10.1/birds", Title: "Some Other Paper on Birds"})
		r := env.resolver(nil, DefaultResolverConfig())

		id, ok := resolve(t, r, domain.SeedSummary{Title: "Transformers in Vision"})
		require.True(t, ok)

		rec, _ := env.store.Get(id)
		assert.Equal(t, []string{"10.1/attention"}, rec.References)
		assert.Equal(t, []string{"10.1109/tpami.1"}, extractor.calls)
		assert.True(t, env.store.Exists("10.1/attention"))
		assert.Empty(t, env.store.UnknownPublishers())
	})

	t.Run("unknown publisher is tallied", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add("Obscure Findings", &domain.Candidate{ID: "10.9/obscure", Title: "Obscure Findings", Publisher: "Unknown Press"})
		r := env.resolver(nil, DefaultResolverConfig())

		id, ok := resolve(t, r, domain.SeedSummary{Title: "Obscure Findings"})
		require.True(t, ok)

		rec, _ := env.store.Get(id)
		assert.Empty(t, rec.References)
		assert.True(t, rec.ReferencesProcessed)
		assert.Equal(t, map[string]int{"Unknown Press": 1}, env.store.UnknownPublishers())
		assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.UnknownPublishers.WithLabelValues("Unknown Press")))
	})

	t.Run("structured references take precedence", func(t *testing.T) {
		env := newTestEnv()
		extractor := &fakeExtractor{lines: []string{`"Never Used"`}}
		env.extractors.Register(ieeePublisher, extractor)
		env.metadata.add("Has Both", &domain.Candidate{
			ID: "10.1109/both", Title: "Has Both", Publisher: ieeePublisher, HasReferences: true,
			References: []domain.RawReferenceEntry{ref(domain.ReferenceKindDOI, "10.1/x")},
		})
		r := env.resolver(nil, DefaultResolverConfig())

		_, ok := resolve(t, r, domain.SeedSummary{Title: "Has Both"})
		require.True(t, ok)
		assert.Empty(t, extractor.calls)
	})

	t.Run("disabled extraction leaves references empty", func(t *testing.T) {
		env := newTestEnv()
		extractor := &fakeExtractor{lines: []string{`"Attention Is All You Need"`}}
		env.extractors.Register(ieeePublisher, extractor)
		env.metadata.add("No Scraping", &domain.Candidate{ID: "10.1109/none", Title: "No Scraping", Publisher: ieeePublisher})

		cfg := DefaultResolverConfig()
		cfg.ExtractPublishers = false
		r := env.resolver(nil, cfg)

		id, ok := resolve(t, r, domain.SeedSummary{Title: "No Scraping"})
		require.True(t, ok)

		rec, _ := env.store.Get(id)
		assert.Empty(t, rec.References)
		assert.Empty(t, extractor.calls)
		assert.Empty(t, env.store.UnknownPublishers())
	})

	t.Run("extractor failure yields no references", func(t *testing.T) {
		env := newTestEnv()
		env.extractors.Register(ieeePublisher, &fakeExtractor{err: domain.ErrServiceUnavailable})
		env.metadata.add("Flaky Publisher", &domain.Candidate{ID: "10.1109/flaky", Title: "Flaky Publisher", Publisher: ieeePublisher})
		r := env.resolver(nil, DefaultResolverConfig())

		id, ok := resolve(t, r, domain.SeedSummary{Title: "Flaky Publisher"})
		require.True(t, ok)

		rec, _ := env.store.Get(id)
		assert.Empty(t, rec.References)
		assert.True(t, rec.ReferencesProcessed)
	})
}

func TestResolver_Classification(t *testing.T) {
	t.Run("enriches category and language", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add("Attention Is All You Need", &domain.Candidate{ID: "10.1/attention", Title: "Attention Is All You Need", HasReferences: true})

		classifier := new(mockClassifier)
		classifier.On("Classify", mock.Anything, domain.ClassificationQuery{ArxivID: "1706.03762", Title: "Attention Is All You Need"}).
			Return(&domain.Classification{Category: "cs.CL", Language: "en", Source: domain.SourceTypeArXiv}, nil)
		r := env.resolver(classifier, DefaultResolverConfig())

		id, ok := resolve(t, r, domain.SeedSummary{Title: "Attention Is All You Need", ArxivID: "1706.03762"})
		require.True(t, ok)

		rec, _ := env.store.Get(id)
		assert.Equal(t, "cs.CL", rec.Category)
		assert.Equal(t, "en", rec.Language)
		classifier.AssertExpectations(t)
	})

	t.Run("title-keyed answer for another paper is rejected", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add("Attention Is All You Need", &domain.Candidate{ID: "10.1/attention", Title: "Attention Is All You Need", HasReferences: true})

		classifier := new(mockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).
			Return(&domain.Classification{Category: "Medicine", Language: "fr", MatchedTitle: "Cardiac Surgery Outcomes", TitleKeyed: true}, nil)
		r := env.resolver(classifier, DefaultResolverConfig())

		id, ok := resolve(t, r, domain.SeedSummary{Title: "Attention Is All You Need"})
		require.True(t, ok)

		rec, _ := env.store.Get(id)
		assert.Empty(t, rec.Category)
		assert.Empty(t, rec.Language)
		assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.MatchesRejected.WithLabelValues(domain.StageClassify)))
	})

	t.Run("failing classifier leaves other fields intact", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add("Paper Under Test", &domain.Candidate{
			ID:            "10.1/root",
			Title:         "Paper Under Test",
			Authors:       []domain.Author{{Name: "Ada Lovelace"}},
			HasReferences: true,
			References: []domain.RawReferenceEntry{
				ref(domain.ReferenceKindDOI, "10.1/r1"),
				ref(domain.ReferenceKindUnstructured, "Learning Deep Representations"),
			},
		})
		env.metadata.add("Learning Deep Representations", &domain.Candidate{
			ID: "10.1/t1", Title: "Learning Deep Representations",
			Authors: []domain.Author{{Name: "Alan Turing"}}, HasReferences: true,
		})

		classifier := new(mockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.Join(domain.ErrServiceUnavailable, domain.ErrNotFound))
		r := env.resolver(classifier, DefaultResolverConfig())

		_, ok := resolve(t, r, domain.SeedSummary{Title: "Paper Under Test"})
		require.True(t, ok)

		for _, id := range []string{"10.1/root", "10.1/t1"} {
			rec, found := env.store.Get(id)
			require.True(t, found, id)
			assert.NotEmpty(t, rec.Title)
			assert.NotEmpty(t, rec.Authors)
			assert.True(t, rec.ReferencesProcessed)
			assert.Empty(t, rec.Category)
			assert.Empty(t, rec.Language)
		}
		root, _ := env.store.Get("10.1/root")
		assert.Equal(t, []string{"10.1/r1", "10.1/t1"}, root.References)
	})
}

func TestResolver_ResolveIdentifier(t *testing.T) {
	t.Run("looks up the title then resolves", func(t *testing.T) {
		env := newTestEnv()
		env.metadata.add("Cited Paper", &domain.Candidate{ID: "10.1/cited", Title: "Cited Paper", HasReferences: true})
		r := env.resolver(nil, DefaultResolverConfig())

		var g errgroup.Group
		id, ok := r.ResolveIdentifier(context.Background(), &g, "https://doi.org/10.1/CITED", 0)
		require.NoError(t, g.Wait())

		require.True(t, ok)
		assert.Equal(t, "10.1/cited", id)
		assert.True(t, env.store.Exists("10.1/cited"))
	})

	t.Run("known identifier needs no lookup", func(t *testing.T) {
		env := newTestEnv()
		env.store.InsertIfAbsent(&domain.PaperRecord{ID: "10.1/known", Title: "Known"})
		r := env.resolver(nil, DefaultResolverConfig())

		var g errgroup.Group
		id, ok := r.ResolveIdentifier(context.Background(), &g, "10.1/known", 0)
		require.NoError(t, g.Wait())

		assert.True(t, ok)
		assert.Equal(t, "10.1/known", id)
		assert.Empty(t, env.metadata.lookups)
	})

	t.Run("missing identifier is not resolved", func(t *testing.T) {
		env := newTestEnv()
		r := env.resolver(nil, DefaultResolverConfig())

		var g errgroup.Group
		_, ok := r.ResolveIdentifier(context.Background(), &g, "10.1/missing", 0)
		require.NoError(t, g.Wait())

		assert.False(t, ok)
		assert.Zero(t, env.store.Len())
	})
}

func TestResolver_SharedLookups(t *testing.T) {
	env := newTestEnv()
	refs := make([]domain.RawReferenceEntry, 0, 8)
	for range 8 {
		refs = append(refs, ref(domain.ReferenceKindUnstructured, "Popular Paper"))
	}
	env.metadata.add("Survey", &domain.Candidate{ID: "10.1/survey", Title: "Survey", HasReferences: true, References: refs})
	env.metadata.add("Popular Paper", &domain.Candidate{ID: "10.1/popular", Title: "Popular Paper", HasReferences: true})
	r := env.resolver(nil, DefaultResolverConfig())

	id, ok := resolve(t, r, domain.SeedSummary{Title: "Survey"})
	require.True(t, ok)

	rec, _ := env.store.Get(id)
	assert.Len(t, rec.References, 8)
	assert.Equal(t, 2, env.store.Len(), "duplicate citations create one record")
	assert.LessOrEqual(t, env.metadata.searchCount("Popular Paper"), 8)
}

func TestExtractQuotedTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"ieee style with trailing comma", `A. Author, "Deep Learning for Vision," in Proc. CVPR, 2016.`, "Deep Learning for Vision", true},
		{"curly quotes", `B. Author, “Neural Machine Translation,” 2015.`, "Neural Machine Translation", true},
		{"greedy across inner quotes", `"On "Attention" Mechanisms"`, `On "Attention" Mechanisms`, true},
		{"bare quoted title", `"Backpropagation"`, "Backpropagation", true},
		{"no quotes", `C. Author, Some Title, 2014.`, "", false},
		{"single quote mark", `D. Author, "Unterminated title`, "", false},
		{"empty quotes", `E. Author, "", 2013.`, "", false},
		{"only punctuation inside", `F. Author, ",", 2012.`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractQuotedTitle(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultResolverConfig(t *testing.T) {
	cfg := DefaultResolverConfig()
	assert.Equal(t, 0.9, cfg.Thresholds.High)
	assert.Equal(t, 0.75, cfg.Thresholds.Low)
	assert.Equal(t, DefaultMaxReferences, cfg.MaxReferences)
	assert.Zero(t, cfg.MaxDepth)
	assert.True(t, cfg.ExtractPublishers)
}

func TestResolver_LogsCarryRunAndPage(t *testing.T) {
	env := newTestEnv()
	env.metadata.add("Deep Residual Learning", &domain.Candidate{ID: "10.1109/cvpr.2016.90", Title: "Deep Residual Learning"})

	var buf bytes.Buffer
	r := NewResolver(Dependencies{
		Store:      env.store,
		Metadata:   env.metadata,
		Extractors: env.extractors,
		Metrics:    env.metrics,
		Logger:     zerolog.New(&buf).Level(zerolog.DebugLevel),
	}, DefaultResolverConfig())

	ctx := observability.WithPage(observability.WithRunID(context.Background(), "run-1"), 3)
	var g errgroup.Group
	g.Go(func() error {
		r.Resolve(ctx, &g, domain.SeedSummary{Title: "Deep Residual Learning"}, 0)
		r.Resolve(ctx, &g, domain.SeedSummary{Title: "Unknown Paper"}, 0)
		return nil
	})
	require.NoError(t, g.Wait())

	seen := map[string]bool{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		msg, _ := entry["message"].(string)
		seen[msg] = true
		assert.Equal(t, "run-1", entry["run_id"], msg)
		assert.Equal(t, float64(3), entry["page"], msg)
	}
	assert.True(t, seen["paper resolved"])
	assert.True(t, seen["title search failed"])
}

// Compile-time check that errgroup satisfies TaskGroup.
var _ TaskGroup = (*errgroup.Group)(nil)

