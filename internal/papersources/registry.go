package papersources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// ExtractorRegistry maps publisher names to the extractor that handles them.
// It provides thread-safe registration and lookup.
type ExtractorRegistry struct {
	mu         sync.RWMutex
	extractors map[string]PublisherExtractor
}

// NewExtractorRegistry creates an empty registry.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{
		extractors: make(map[string]PublisherExtractor),
	}
}

// Register binds a publisher name to an extractor.
// If the publisher is already registered, it is replaced.
func (r *ExtractorRegistry) Register(publisher string, extractor PublisherExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[publisherKey(publisher)] = extractor
}

// Get returns the extractor for a publisher, or nil if none is registered.
func (r *ExtractorRegistry) Get(publisher string) PublisherExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extractors[publisherKey(publisher)]
}

// Has reports whether a publisher has a registered extractor.
func (r *ExtractorRegistry) Has(publisher string) bool {
	return r.Get(publisher) != nil
}

// Publishers returns the registered publisher keys in sorted order.
func (r *ExtractorRegistry) Publishers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract dispatches to the extractor registered for the publisher.
// Returns domain.ErrUnsupportedPublisher if none is registered.
func (r *ExtractorRegistry) Extract(ctx context.Context, id, publisher string) ([]string, error) {
	ext := r.Get(publisher)
	if ext == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedPublisher, publisher)
	}
	return ext.Extract(ctx, id, publisher)
}

// publisherKey normalizes a publisher name for lookup. Names differ in case
// and spacing between sources, so both are folded.
func publisherKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
