package extract

import (
	"context"
	"log/slog"

	"github.com/aluiziolira/go-scrape-ikea/models"
)

// Candidate is one strategy-specific product representation before
// normalization into the canonical record shape.
type Candidate interface {
	// Normalize converts the raw shape to a canonical record. Listing
	// candidates whose product id cannot be parsed return ErrNoProductID.
	Normalize() (*models.Product, error)
}

// Strategy is one extraction method with a uniform contract: inspect the
// page, return zero or more candidates. A strategy must treat its own
// parse failures as "found nothing" and never panic the chain.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, page *Page) ([]Candidate, error)
}

// Chain tries strategies in fixed priority order and short-circuits on
// the first one that yields at least one candidate.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain over the given strategies, in order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// Extract runs the chain for one page. It returns the candidates and the
// name of the winning strategy, or (nil, "") when every strategy came up
// empty. Strategy errors are swallowed per the chain contract.
func (c *Chain) Extract(ctx context.Context, page *Page) ([]Candidate, string) {
	for _, s := range c.strategies {
		candidates, err := s.Extract(ctx, page)
		if err != nil {
			slog.Debug("extraction strategy failed",
				slog.String("strategy", s.Name()),
				slog.String("url", page.URL),
				slog.Any("error", err),
			)
			continue
		}
		if len(candidates) > 0 {
			return candidates, s.Name()
		}
	}
	return nil, ""
}

// NewListingChain assembles the strategy order for category listing
// pages: structured search API, embedded markup, then DOM heuristics.
func NewListingChain(fetcher Fetcher, locale Locale, category string) *Chain {
	return NewChain(
		NewAPIStrategy(fetcher, locale, category),
		NewMarkupStrategy(),
		NewDOMStrategy(),
	)
}

// NewDetailChain assembles the strategy order for product detail pages:
// embedded markup, DOM heuristics, then raw-text patterns.
func NewDetailChain() *Chain {
	return NewChain(
		NewMarkupStrategy(),
		NewDOMStrategy(),
		NewTextStrategy(),
	)
}
