package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainDetailPage = `<html><head>
<style>.x { color: red; }</style>
<script>var price = "$999999";</script>
</head><body>
  <h1>POÄNG Armchair</h1>
  <p>Price: $129.00</p>
  <p>Rated 4.5 out of 5 based on 321 reviews</p>
  <p>Dimensions: 68 x 82 x 100 cm</p>
</body></html>`

func TestTextStrategyDetail(t *testing.T) {
	strategy := NewTextStrategy()
	page := NewPage("https://www.ikea.com/us/en/p/poaeng-armchair-40299687/", KindDetail, []byte(plainDetailPage))

	candidates, err := strategy.Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	p, err := candidates[0].Normalize()
	require.NoError(t, err)
	assert.Equal(t, "40299687", p.ID)
	assert.Equal(t, "POÄNG Armchair", p.Name)
	require.NotNil(t, p.Price)
	assert.Equal(t, 129.0, *p.Price)
	assert.Equal(t, "USD", p.Currency)
	require.NotNil(t, p.Rating)
	assert.Equal(t, 4.5, *p.Rating)
	require.NotNil(t, p.ReviewCount)
	assert.Equal(t, 321, *p.ReviewCount)
	assert.Equal(t, "68x82x100 cm", p.Measurements)
}

func TestTextStrategyIgnoresScriptContent(t *testing.T) {
	// The script block carries a bogus price; only visible text counts.
	body := `<html><head><script>var x = "$999999";</script></head>
<body><h1>LACK</h1><p>9.99 €</p></body></html>`

	strategy := NewTextStrategy()
	page := NewPage("https://www.ikea.com/us/en/p/lack-20011408/", KindDetail, []byte(body))

	candidates, err := strategy.Extract(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	p, err := candidates[0].Normalize()
	require.NoError(t, err)
	require.NotNil(t, p.Price)
	assert.Equal(t, 9.99, *p.Price)
	assert.Equal(t, "EUR", p.Currency)
}

func TestTextStrategySkipsListingPages(t *testing.T) {
	strategy := NewTextStrategy()
	page := NewPage("https://www.ikea.com/us/en/cat/chairs/", KindListing, []byte(plainDetailPage))

	candidates, err := strategy.Extract(context.Background(), page)
	assert.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestTextStrategyNothingRecognizable(t *testing.T) {
	strategy := NewTextStrategy()
	page := NewPage("https://www.ikea.com/us/en/p/mystery-99999999/", KindDetail, []byte("<html><body><p>nothing here</p></body></html>"))

	candidates, err := strategy.Extract(context.Background(), page)
	assert.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFormatDimensions(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"80 x 60 x 45 cm", "80x60x45 cm"},
		{"80×60 cm", "80x60 cm"},
		{"19,5 x 12 in", "19.5x12 in"},
	}
	for _, tt := range tests {
		m := textDimensionRe.FindStringSubmatch(tt.input)
		require.NotNil(t, m, tt.input)
		assert.Equal(t, tt.want, formatDimensions(m))
	}
}
