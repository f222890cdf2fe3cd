package acquisition

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/helixir/citation-graph-service/internal/dataset"
	"github.com/helixir/citation-graph-service/internal/domain"
	"github.com/helixir/citation-graph-service/internal/observability"
	"github.com/helixir/citation-graph-service/internal/papersources"
)

// fakeMetadata answers searches from a title-keyed table and lookups from
// an id-keyed table. Unknown keys are not found.
type fakeMetadata struct {
	mu       sync.Mutex
	byTitle  map[string]*domain.Candidate
	titles   map[string]string
	searches map[string]int
	lookups  map[string]int
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		byTitle:  make(map[string]*domain.Candidate),
		titles:   make(map[string]string),
		searches: make(map[string]int),
		lookups:  make(map[string]int),
	}
}

// add answers query with cand and maps cand.ID back to its title.
func (f *fakeMetadata) add(query string, cand *domain.Candidate) {
	f.byTitle[query] = cand
	f.titles[cand.ID] = cand.Title
}

func (f *fakeMetadata) Name() string { return "fake-metadata" }

func (f *fakeMetadata) SearchByTitle(_ context.Context, title string) (*domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches[title]++
	cand, ok := f.byTitle[title]
	if !ok {
		return nil, domain.NewNotFoundError("work", title)
	}
	c := *cand
	return &c, nil
}

func (f *fakeMetadata) LookupTitle(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[id]++
	title, ok := f.titles[id]
	if !ok {
		return "", domain.NewNotFoundError("work", id)
	}
	return title, nil
}

func (f *fakeMetadata) searchCount(title string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches[title]
}

// mockClassifier is a testify mock of papersources.ClassificationSource.
type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) Name() string { return "mock-classifier" }

func (m *mockClassifier) Classify(ctx context.Context, q domain.ClassificationQuery) (*domain.Classification, error) {
	args := m.Called(ctx, q)
	if cls := args.Get(0); cls != nil {
		return cls.(*domain.Classification), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeExtractor returns fixed citation strings for every identifier.
type fakeExtractor struct {
	mu    sync.Mutex
	lines []string
	err   error
	calls []string
}

func (f *fakeExtractor) Name() string { return "fake-extractor" }

func (f *fakeExtractor) Extract(_ context.Context, id, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.lines, f.err
}

// fakeCatalog serves fixed pages. Pages listed in failures return an
// error; unknown pages are empty.
type fakeCatalog struct {
	mu       sync.Mutex
	pages    map[int]*domain.CatalogPage
	failures map[int]error
	failAll  error
	calls    []int
	onList   func(page int)
}

func (f *fakeCatalog) Name() string { return "fake-catalog" }

func (f *fakeCatalog) ListPage(_ context.Context, page, _ int) (*domain.CatalogPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	hook := f.onList
	f.mu.Unlock()
	if hook != nil {
		hook(page)
	}

	if f.failAll != nil {
		return nil, f.failAll
	}
	if err, ok := f.failures[page]; ok {
		return nil, err
	}
	if p, ok := f.pages[page]; ok {
		return p, nil
	}
	return &domain.CatalogPage{Page: page}, nil
}

func (f *fakeCatalog) listed() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

// recordingCheckpointer keeps every snapshot it is given.
type recordingCheckpointer struct {
	mu    sync.Mutex
	snaps []*dataset.Snapshot
	err   error
}

func (r *recordingCheckpointer) Name() string { return "recording" }

func (r *recordingCheckpointer) Checkpoint(_ context.Context, snap *dataset.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	return r.err
}

func (r *recordingCheckpointer) snapshots() []*dataset.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*dataset.Snapshot(nil), r.snaps...)
}

// recordingSink keeps every published progress value.
type recordingSink struct {
	mu     sync.Mutex
	events []Progress
}

func (s *recordingSink) Publish(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, p)
}

func (s *recordingSink) last() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

var errCatalogDown = errors.New("catalog down")

type testEnv struct {
	store      *dataset.Store
	metadata   *fakeMetadata
	extractors *papersources.ExtractorRegistry
	metrics    *observability.Metrics
}

func newTestEnv() *testEnv {
	return &testEnv{
		store:      dataset.NewStore(),
		metadata:   newFakeMetadata(),
		extractors: papersources.NewExtractorRegistry(),
		metrics:    observability.NewMetricsWithRegistry("test", prometheus.NewRegistry()),
	}
}

func (e *testEnv) resolver(classifier papersources.ClassificationSource, cfg ResolverConfig) *Resolver {
	return NewResolver(Dependencies{
		Store:      e.store,
		Metadata:   e.metadata,
		Classifier: classifier,
		Extractors: e.extractors,
		Metrics:    e.metrics,
		Logger:     zerolog.Nop(),
	}, cfg)
}
