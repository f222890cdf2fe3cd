package papersources

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// mockExtractor is a PublisherExtractor that returns canned titles.
type mockExtractor struct {
	name   string
	titles []string
	err    error

	mu    sync.Mutex
	calls []string
}

func (m *mockExtractor) Name() string { return m.name }

func (m *mockExtractor) Extract(_ context.Context, id, _ string) ([]string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, id)
	m.mu.Unlock()
	return m.titles, m.err
}

// mockClassifier is a ClassificationSource with a fixed answer.
type mockClassifier struct {
	name  string
	cls   *domain.Classification
	err   error
	calls int
}

func (m *mockClassifier) Name() string { return m.name }

func (m *mockClassifier) Classify(_ context.Context, _ domain.ClassificationQuery) (*domain.Classification, error) {
	m.calls++
	return m.cls, m.err
}

func TestExtractorRegistry_Register(t *testing.T) {
	t.Run("registers and looks up case-insensitively", func(t *testing.T) {
		r := NewExtractorRegistry()
		ext := &mockExtractor{name: "ieee"}

		r.Register("IEEE", ext)

		assert.Same(t, ext, r.Get("ieee"))
		assert.Same(t, ext, r.Get("  IEEE "))
		assert.True(t, r.Has("Ieee"))
		assert.False(t, r.Has("ACM"))
		assert.Nil(t, r.Get("ACM"))
	})

	t.Run("collapses inner whitespace", func(t *testing.T) {
		r := NewExtractorRegistry()
		ext := &mockExtractor{name: "ieee"}

		r.Register("Institute of Electrical and Electronics Engineers (IEEE)", ext)

		assert.True(t, r.Has("institute of  electrical and electronics\tengineers (ieee)"))
	})

	t.Run("replaces an existing registration", func(t *testing.T) {
		r := NewExtractorRegistry()
		first := &mockExtractor{name: "first"}
		second := &mockExtractor{name: "second"}

		r.Register("IEEE", first)
		r.Register("ieee", second)

		assert.Same(t, second, r.Get("IEEE"))
		assert.Len(t, r.Publishers(), 1)
	})
}

func TestExtractorRegistry_Publishers(t *testing.T) {
	r := NewExtractorRegistry()
	assert.Empty(t, r.Publishers())

	r.Register("Springer", &mockExtractor{})
	r.Register("IEEE", &mockExtractor{})

	assert.Equal(t, []string{"ieee", "springer"}, r.Publishers())
}

func TestExtractorRegistry_Extract(t *testing.T) {
	t.Run("dispatches to the registered extractor", func(t *testing.T) {
		r := NewExtractorRegistry()
		ext := &mockExtractor{name: "ieee", titles: []string{"A", "B"}}
		r.Register("IEEE", ext)

		titles, err := r.Extract(context.Background(), "10.1109/x", "IEEE")

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, titles)
		assert.Equal(t, []string{"10.1109/x"}, ext.calls)
	})

	t.Run("unknown publisher returns ErrUnsupportedPublisher", func(t *testing.T) {
		r := NewExtractorRegistry()

		titles, err := r.Extract(context.Background(), "10.1/x", "Unknown Press")

		assert.Nil(t, titles)
		assert.ErrorIs(t, err, domain.ErrUnsupportedPublisher)
		assert.Contains(t, err.Error(), "Unknown Press")
	})

	t.Run("propagates extractor errors", func(t *testing.T) {
		r := NewExtractorRegistry()
		boom := errors.New("boom")
		r.Register("IEEE", &mockExtractor{err: boom})

		_, err := r.Extract(context.Background(), "10.1109/x", "IEEE")

		assert.ErrorIs(t, err, boom)
	})

	t.Run("concurrent registration and lookup", func(t *testing.T) {
		r := NewExtractorRegistry()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				r.Register("IEEE", &mockExtractor{})
			}()
			go func() {
				defer wg.Done()
				_ = r.Has("IEEE")
			}()
		}
		wg.Wait()

		assert.True(t, r.Has("IEEE"))
	})
}

func TestClassifierChain(t *testing.T) {
	ctx := context.Background()
	q := domain.ClassificationQuery{Title: "Attention Is All You Need"}

	t.Run("returns the first success", func(t *testing.T) {
		first := &mockClassifier{name: "arxiv", err: domain.ErrInvalidInput}
		second := &mockClassifier{name: "openalex", cls: &domain.Classification{Category: "Computer Science", Language: "en"}}
		third := &mockClassifier{name: "never"}

		chain := NewClassifierChain(first, nil, second, third)
		require.Equal(t, 3, chain.Len())

		cls, err := chain.Classify(ctx, q)

		require.NoError(t, err)
		assert.Equal(t, "Computer Science", cls.Category)
		assert.Equal(t, 1, first.calls)
		assert.Equal(t, 1, second.calls)
		assert.Equal(t, 0, third.calls)
	})

	t.Run("joins errors when every source fails", func(t *testing.T) {
		chain := NewClassifierChain(
			&mockClassifier{name: "arxiv", err: domain.ErrInvalidInput},
			&mockClassifier{name: "openalex", err: domain.ErrRateLimited},
		)

		cls, err := chain.Classify(ctx, q)

		assert.Nil(t, cls)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Contains(t, err.Error(), "openalex")
	})

	t.Run("nil answer without error counts as not found", func(t *testing.T) {
		chain := NewClassifierChain(&mockClassifier{name: "empty"})

		_, err := chain.Classify(ctx, q)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("empty chain returns not found", func(t *testing.T) {
		_, err := NewClassifierChain().Classify(ctx, q)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("stops on canceled context", func(t *testing.T) {
		src := &mockClassifier{name: "arxiv"}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewClassifierChain(src).Classify(cctx, q)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, src.calls)
	})
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "deadline", err: context.DeadlineExceeded, want: ErrorTypeTimeout},
		{name: "canceled", err: context.Canceled, want: ErrorTypeCanceled},
		{name: "rate limited status", err: domain.NewExternalAPIError("crossref", 429, "slow down", nil), want: ErrorTypeRateLimited},
		{name: "not found status", err: domain.NewExternalAPIError("crossref", 404, "missing", nil), want: ErrorTypeNotFound},
		{name: "other status", err: domain.NewExternalAPIError("crossref", 400, "bad", nil), want: ErrorTypeAPI},
		{name: "malformed", err: domain.ErrMalformedResponse, want: ErrorTypeDecode},
		{name: "no match", err: domain.ErrNoMatch, want: ErrorTypeNoMatch},
		{name: "unsupported", err: domain.ErrUnsupportedPublisher, want: ErrorTypeUnsupported},
		{name: "anything else", err: errors.New("x"), want: ErrorTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorType(tt.err))
		})
	}
}
