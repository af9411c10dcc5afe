package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-ikea/models"
)

type staticCandidate struct {
	product *models.Product
	err     error
}

func (c *staticCandidate) Normalize() (*models.Product, error) {
	return c.product, c.err
}

// fakeStrategy counts invocations so tests can assert the chain's
// short-circuit behavior.
type fakeStrategy struct {
	name       string
	candidates []Candidate
	err        error
	calls      int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Extract(ctx context.Context, page *Page) ([]Candidate, error) {
	f.calls++
	return f.candidates, f.err
}

func listingPage() *Page {
	return NewPage("http://example.test/us/en/cat/chairs/", KindListing, []byte("<html></html>"))
}

func TestChainShortCircuitsOnFirstHit(t *testing.T) {
	hit := &fakeStrategy{
		name:       "first",
		candidates: []Candidate{&staticCandidate{product: &models.Product{ID: "10000001"}}},
	}
	never := &fakeStrategy{name: "second"}

	candidates, winner := NewChain(hit, never).Extract(context.Background(), listingPage())

	require.Len(t, candidates, 1)
	assert.Equal(t, "first", winner)
	assert.Equal(t, 1, hit.calls)
	assert.Equal(t, 0, never.calls, "later strategies must not run after a hit")
}

func TestChainFallsThroughEmptyStrategies(t *testing.T) {
	empty := &fakeStrategy{name: "empty"}
	hit := &fakeStrategy{
		name:       "fallback",
		candidates: []Candidate{&staticCandidate{product: &models.Product{ID: "10000002"}}},
	}

	candidates, winner := NewChain(empty, hit).Extract(context.Background(), listingPage())

	require.Len(t, candidates, 1)
	assert.Equal(t, "fallback", winner)
	assert.Equal(t, 1, empty.calls)
}

func TestChainSwallowsStrategyErrors(t *testing.T) {
	failing := &fakeStrategy{name: "failing", err: errors.New("boom")}
	hit := &fakeStrategy{
		name:       "after-failure",
		candidates: []Candidate{&staticCandidate{product: &models.Product{ID: "10000003"}}},
	}

	candidates, winner := NewChain(failing, hit).Extract(context.Background(), listingPage())

	require.Len(t, candidates, 1)
	assert.Equal(t, "after-failure", winner)
}

func TestChainAllEmpty(t *testing.T) {
	a := &fakeStrategy{name: "a"}
	b := &fakeStrategy{name: "b", err: errors.New("boom")}

	candidates, winner := NewChain(a, b).Extract(context.Background(), listingPage())

	assert.Nil(t, candidates)
	assert.Empty(t, winner)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}
