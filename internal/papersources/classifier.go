package papersources

import (
	"context"
	"errors"
	"fmt"

	"github.com/helixir/citation-graph-service/internal/domain"
)

// ClassifierChain tries classification sources in order and returns the
// first answer. Sources that cannot serve a query return an error and the
// next one is tried.
type ClassifierChain struct {
	sources []ClassificationSource
}

// Ensure ClassifierChain implements ClassificationSource.
var _ ClassificationSource = (*ClassifierChain)(nil)

// NewClassifierChain creates a chain over the given sources. Nil sources are skipped.
func NewClassifierChain(sources ...ClassificationSource) *ClassifierChain {
	c := &ClassifierChain{}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

// Name returns the chain name.
func (c *ClassifierChain) Name() string {
	return "classifier-chain"
}

// Len returns the number of sources in the chain.
func (c *ClassifierChain) Len() int {
	return len(c.sources)
}

// Classify returns the first successful classification. When every source
// fails the errors are joined; the result wraps domain.ErrNotFound if the
// chain is empty.
func (c *ClassifierChain) Classify(ctx context.Context, q domain.ClassificationQuery) (*domain.Classification, error) {
	if len(c.sources) == 0 {
		return nil, fmt.Errorf("no classification source: %w", domain.ErrNotFound)
	}

	var errs []error
	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cls, err := src.Classify(ctx, q)
		if err == nil && cls != nil {
			return cls, nil
		}
		if err == nil {
			err = domain.ErrNotFound
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	return nil, errors.Join(errs...)
}
