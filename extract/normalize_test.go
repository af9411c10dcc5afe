package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The same logical product seen through different strategies must
// normalize to the same canonical fields; downstream output cannot
// depend on which strategy happened to win.
func TestNormalizationStableAcrossShapes(t *testing.T) {
	page := NewPage("https://www.ikea.com/us/en/cat/chairs/", KindListing, nil)

	api := &apiShape{page: page, raw: map[string]any{
		"name":             "POÄNG",
		"typeName":         "Armchair",
		"pipUrl":           "https://www.ikea.com/us/en/p/poaeng-armchair-40299687/",
		"salesPrice":       map[string]any{"numeral": 129.0, "currencyCode": "USD"},
		"ratingValue":      4.5,
		"ratingCount":      321.0,
		"availabilityText": "in stock",
	}}

	dom := &domShape{
		page:         page,
		url:          "https://www.ikea.com/us/en/p/poaeng-armchair-40299687/",
		name:         "POÄNG",
		typeText:     "Armchair",
		priceText:    "$129.00",
		ratingText:   "4.5 out of 5 stars",
		reviewText:   "(321)",
		availability: "in stock",
	}

	fromAPI, err := api.Normalize()
	require.NoError(t, err)
	fromDOM, err := dom.Normalize()
	require.NoError(t, err)

	assert.Equal(t, fromAPI.ID, fromDOM.ID)
	assert.Equal(t, fromAPI.Name, fromDOM.Name)
	assert.Equal(t, fromAPI.Type, fromDOM.Type)
	assert.Equal(t, fromAPI.SourceURL, fromDOM.SourceURL)
	assert.Equal(t, *fromAPI.Price, *fromDOM.Price)
	assert.Equal(t, fromAPI.Currency, fromDOM.Currency)
	assert.Equal(t, *fromAPI.Rating, *fromDOM.Rating)
	assert.Equal(t, *fromAPI.ReviewCount, *fromDOM.ReviewCount)
	assert.Equal(t, fromAPI.Availability, fromDOM.Availability)
}

func TestAPIShapeRejectsMissingID(t *testing.T) {
	page := NewPage("https://www.ikea.com/us/en/cat/chairs/", KindListing, nil)
	shape := &apiShape{page: page, raw: map[string]any{
		"name": "Mystery", "url": "https://www.ikea.com/us/en/cat/other/",
	}}

	_, err := shape.Normalize()
	assert.ErrorIs(t, err, ErrNoProductID)
}

func TestDOMShapeDropsPriceWithoutCurrency(t *testing.T) {
	page := NewPage("https://www.ikea.com/us/en/cat/chairs/", KindListing, nil)
	shape := &domShape{
		page:      page,
		url:       "https://www.ikea.com/us/en/p/chair-10000001/",
		name:      "Chair",
		priceText: "129.00",
	}

	p, err := shape.Normalize()
	require.NoError(t, err)
	// A bare amount with no currency signal stays absent; price and
	// currency are always set together.
	assert.Nil(t, p.Price)
	assert.Empty(t, p.Currency)
}

func TestSetPricePrecedence(t *testing.T) {
	page := NewPage("https://www.ikea.com/us/en/cat/chairs/", KindListing, nil)

	// Nested sales price beats the formatted string.
	shape := &markupShape{page: page, raw: map[string]any{
		"name":           "MALM",
		"url":            "https://www.ikea.com/us/en/p/malm-30494857/",
		"salesPrice":     map[string]any{"numeral": 249.0, "currencyCode": "SEK"},
		"formattedPrice": "$999.00",
	}}
	p, err := shape.Normalize()
	require.NoError(t, err)
	require.NotNil(t, p.Price)
	assert.Equal(t, 249.0, *p.Price)
	assert.Equal(t, "SEK", p.Currency)

	// Formatted string is the fallback.
	shape2 := &markupShape{page: page, raw: map[string]any{
		"name":           "MALM",
		"url":            "https://www.ikea.com/us/en/p/malm-30494857/",
		"formattedPrice": "249 kr",
	}}
	p2, err := shape2.Normalize()
	require.NoError(t, err)
	require.NotNil(t, p2.Price)
	assert.Equal(t, 249.0, *p2.Price)
	assert.Equal(t, "SEK", p2.Currency)
}

func TestMarkupShapeOffersArray(t *testing.T) {
	page := NewPage("https://www.ikea.com/us/en/p/kallax-70301537/", KindDetail, nil)
	shape := &markupShape{page: page, raw: map[string]any{
		"name": "KALLAX",
		"offers": []any{
			map[string]any{"price": "89.99", "priceCurrency": "USD"},
			map[string]any{"price": "95.00", "priceCurrency": "USD"},
		},
	}}

	p, err := shape.Normalize()
	require.NoError(t, err)
	require.NotNil(t, p.Price)
	assert.Equal(t, 89.99, *p.Price)
}

func TestMarkupShapeOfferPriceWithoutCurrencyIgnored(t *testing.T) {
	page := NewPage("https://www.ikea.com/us/en/p/kallax-70301537/", KindDetail, nil)
	shape := &markupShape{page: page, raw: map[string]any{
		"name":   "KALLAX",
		"offers": map[string]any{"price": "89.99"},
	}}

	p, err := shape.Normalize()
	require.NoError(t, err)
	assert.Nil(t, p.Price)
	assert.Empty(t, p.Currency)
}

func TestTextShapeCleansMeasurements(t *testing.T) {
	page := NewPage("https://www.ikea.com/us/en/p/poaeng-armchair-40299687/", KindDetail, nil)
	shape := &textShape{
		page:         page,
		name:         " POÄNG ",
		measurements: "  68x82x100   cm ",
	}

	p, err := shape.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "POÄNG", p.Name)
	assert.Equal(t, "68x82x100 cm", p.Measurements)
}

func TestFieldHelpers(t *testing.T) {
	m := map[string]any{
		"a": "  hello ",
		"b": "",
		"n": 4.5,
		"s": "3.25",
		"i": 42.0,
		"t": "17",
	}

	assert.Equal(t, "hello", stringField(m, "b", "a"))
	assert.Empty(t, stringField(m, "missing", "b"))

	v, ok := floatField(m, "missing", "n")
	assert.True(t, ok)
	assert.Equal(t, 4.5, v)
	v, ok = floatField(m, "s")
	assert.True(t, ok)
	assert.Equal(t, 3.25, v)
	_, ok = floatField(m, "a")
	assert.False(t, ok)

	n, ok := intField(m, "i")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	n, ok = intField(m, "t")
	assert.True(t, ok)
	assert.Equal(t, 17, n)
}

func TestDig(t *testing.T) {
	payload := map[string]any{
		"searchResultPage": map[string]any{
			"products": map[string]any{
				"main": map[string]any{
					"items": []any{map[string]any{"name": "x"}},
				},
			},
		},
	}

	items, ok := dig(payload, []string{"searchResultPage", "products", "main", "items"}).([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)

	assert.Nil(t, dig(payload, []string{"searchResultPage", "missing", "items"}))
}
