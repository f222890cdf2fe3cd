// Package papersources provides interfaces and transport for the external
// collaborators of the citation graph: the seed catalog, the bibliographic
// metadata source, classification sources and publisher extractors.
//
// Each external API lives in its own subpackage and maps its native response
// into the domain types declared here, so that the resolution algorithm never
// sees source-specific shapes.
//
// Example usage:
//
//	limiter := papersources.NewConnLimiter(32)
//	meta := crossref.New(crossref.Config{Mailto: "me@example.org"}, limiter, observer)
//	cand, err := meta.SearchByTitle(ctx, "Deep Residual Learning for Image Recognition")
package papersources

import (
	"context"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// CatalogSource lists pages of seed paper summaries.
type CatalogSource interface {
	// ListPage returns one page of seeds. page is 1-based.
	// An empty page means the catalog is exhausted.
	ListPage(ctx context.Context, page, size int) (*domain.CatalogPage, error)

	// Name returns a human-readable name for logging and metrics.
	Name() string
}

// MetadataSource resolves titles and identifiers to candidate records.
type MetadataSource interface {
	// SearchByTitle returns the best candidate for a free-text title.
	// Returns domain.ErrNotFound if the source returned no candidate.
	// The candidate is unvalidated; callers must check its title.
	SearchByTitle(ctx context.Context, title string) (*domain.Candidate, error)

	// LookupTitle returns the title of the record with the given identifier.
	// Returns domain.ErrNotFound if the identifier is unknown.
	LookupTitle(ctx context.Context, id string) (string, error)

	// Name returns a human-readable name for logging and metrics.
	Name() string
}

// ClassificationSource resolves a paper to a subject category and language.
type ClassificationSource interface {
	// Classify returns the classification for the query.
	// Returns domain.ErrNotFound when the source has no answer.
	Classify(ctx context.Context, q domain.ClassificationQuery) (*domain.Classification, error)

	// Name returns a human-readable name for logging and metrics.
	Name() string
}

// PublisherExtractor pulls raw reference strings from a publisher's pages.
type PublisherExtractor interface {
	// Extract returns the raw reference strings for the paper, in page order.
	// Returns domain.ErrUnsupportedPublisher if the publisher is not handled
	// and domain.ErrNotFound if the page has no references.
	Extract(ctx context.Context, id, publisher string) ([]string, error)

	// Name returns a human-readable name for logging and metrics.
	Name() string
}
