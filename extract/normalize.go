package extract

import (
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-ikea/models"
	"github.com/aluiziolira/go-scrape-ikea/parser"
)

// Each strategy produces its own raw shape; one normalizer per shape
// converts it to the canonical record. Field precedence lives here so it
// is not scattered through the strategies.

// apiShape is one product object from a structured search payload.
type apiShape struct {
	raw  map[string]any
	page *Page
}

func (s *apiShape) Normalize() (*models.Product, error) {
	m := s.raw
	if inner, ok := m["product"].(map[string]any); ok {
		m = inner
	}

	p := &models.Product{}
	p.SourceURL = s.page.AbsoluteURL(stringField(m, "pipUrl", "url", "productUrl"))
	id, ok := ProductID(p.SourceURL)
	if !ok {
		return nil, ErrNoProductID
	}
	p.ID = id

	p.Name = parser.CleanText(stringField(m, "name", "title", "productName"))
	p.Type = parser.CleanText(stringField(m, "typeName", "type"))
	p.MainImage = s.page.AbsoluteURL(stringField(m, "mainImageUrl", "imageUrl", "image"))
	p.Availability = parser.CleanText(stringField(m, "availabilityText", "availability", "stockStatus"))

	setPrice(p, m)
	setRating(p, m)
	return p, nil
}

// markupShape is one product object from embedded markup: a preloaded
// state blob or an ld+json annotation.
type markupShape struct {
	raw  map[string]any
	page *Page
}

func (s *markupShape) Normalize() (*models.Product, error) {
	m := s.raw
	if inner, ok := m["product"].(map[string]any); ok {
		m = inner
	}

	p := &models.Product{}
	rawURL := stringField(m, "url", "@id", "pipUrl", "productUrl")
	if rawURL == "" && s.page.Kind == KindDetail {
		rawURL = s.page.URL
	}
	p.SourceURL = s.page.AbsoluteURL(rawURL)

	if id, ok := ProductID(p.SourceURL); ok {
		p.ID = id
	} else if s.page.Kind == KindListing {
		return nil, ErrNoProductID
	}

	p.Name = parser.CleanText(stringField(m, "name", "title", "productName"))
	p.Type = parser.CleanText(stringField(m, "typeName", "type", "category"))
	p.Description = parser.CleanText(stringField(m, "description"))

	switch img := m["image"].(type) {
	case string:
		p.MainImage = s.page.AbsoluteURL(img)
	case []any:
		for _, v := range img {
			if u, ok := v.(string); ok {
				p.AddImages(s.page.AbsoluteURL(u))
			}
		}
	}
	if p.MainImage == "" {
		p.MainImage = s.page.AbsoluteURL(stringField(m, "mainImageUrl", "imageUrl"))
	}

	// schema.org offers block, possibly a single object or an array.
	offer, _ := m["offers"].(map[string]any)
	if offer == nil {
		if list, ok := m["offers"].([]any); ok && len(list) > 0 {
			offer, _ = list[0].(map[string]any)
		}
	}
	if offer != nil {
		if amount, ok := floatField(offer, "price", "lowPrice"); ok {
			if code := stringField(offer, "priceCurrency", "currency"); code != "" {
				p.Price = &amount
				p.Currency = code
			}
		}
		if avail := stringField(offer, "availability"); avail != "" {
			avail = avail[strings.LastIndex(avail, "/")+1:]
			p.Availability = parser.CleanText(avail)
		}
	}
	if p.Price == nil {
		setPrice(p, m)
	}

	if agg, ok := m["aggregateRating"].(map[string]any); ok {
		if v, ok := floatField(agg, "ratingValue"); ok {
			p.Rating = &v
		}
		if v, ok := intField(agg, "reviewCount", "ratingCount"); ok {
			p.ReviewCount = &v
		}
	}
	if p.Rating == nil {
		setRating(p, m)
	}
	if p.Availability == "" {
		p.Availability = parser.CleanText(stringField(m, "availabilityText", "availability"))
	}
	return p, nil
}

// domShape holds the raw strings probed out of page elements.
type domShape struct {
	page *Page

	url          string
	name         string
	typeText     string
	priceText    string
	ratingText   string
	reviewText   string
	availability string
	description  string
	measurements string
	imageURL     string
	images       []string
	features     []string
}

func (s *domShape) Normalize() (*models.Product, error) {
	p := &models.Product{}
	p.SourceURL = s.url
	if p.SourceURL == "" {
		p.SourceURL = s.page.URL
	}

	if id, ok := ProductID(p.SourceURL); ok {
		p.ID = id
	} else if s.page.Kind == KindListing {
		return nil, ErrNoProductID
	}

	p.Name = parser.CleanText(s.name)
	p.Type = parser.CleanText(s.typeText)
	p.Description = parser.CleanText(s.description)
	p.Measurements = parser.CleanText(s.measurements)
	p.Availability = parser.CleanText(s.availability)
	p.MainImage = s.imageURL

	if amount, code, ok := parser.ParsePrice(s.priceText); ok && code != "" {
		p.Price = &amount
		p.Currency = code
	}
	if rating, ok := parser.ParseRating(s.ratingText); ok {
		p.Rating = &rating
	}
	if count, ok := parser.ParseCount(s.reviewText); ok {
		p.ReviewCount = &count
	}

	for _, f := range s.features {
		p.AddFeatures(parser.CleanText(f))
	}
	p.AddImages(s.images...)
	return p, nil
}

// textShape holds regex captures from raw visible text. Detail pages
// only; identity comes from the record it merges onto.
type textShape struct {
	page *Page

	name         string
	priceText    string
	ratingText   string
	reviewText   string
	measurements string
}

func (s *textShape) Normalize() (*models.Product, error) {
	p := &models.Product{}
	p.SourceURL = s.page.URL
	if id, ok := ProductID(s.page.URL); ok {
		p.ID = id
	}

	p.Name = parser.CleanText(s.name)
	p.Measurements = parser.CleanText(s.measurements)

	if amount, code, ok := parser.ParsePrice(s.priceText); ok && code != "" {
		p.Price = &amount
		p.Currency = code
	}
	if rating, ok := parser.ParseRating(s.ratingText); ok {
		p.Rating = &rating
	}
	if count, ok := parser.ParseCount(s.reviewText); ok {
		p.ReviewCount = &count
	}
	return p, nil
}

// setPrice resolves price from, in order: nested sales-price numeral,
// flat numeral field, parsed price string. Price and currency are set
// together or not at all.
func setPrice(p *models.Product, m map[string]any) {
	if sp, ok := m["salesPrice"].(map[string]any); ok {
		if amount, ok := floatField(sp, "numeral", "current", "amount"); ok {
			if code := stringField(sp, "currencyCode", "currency"); code != "" {
				p.Price = &amount
				p.Currency = code
				return
			}
		}
	}
	if amount, ok := floatField(m, "priceNumeral", "price"); ok {
		if code := stringField(m, "currencyCode", "currency", "priceCurrency"); code != "" {
			p.Price = &amount
			p.Currency = code
			return
		}
	}
	if raw := stringField(m, "formattedPrice", "priceText", "price"); raw != "" {
		if amount, code, ok := parser.ParsePrice(raw); ok && code != "" {
			p.Price = &amount
			p.Currency = code
		}
	}
}

func setRating(p *models.Product, m map[string]any) {
	if v, ok := floatField(m, "ratingValue", "rating"); ok {
		p.Rating = &v
	}
	if v, ok := intField(m, "ratingCount", "reviewCount", "numberOfReviews"); ok {
		p.ReviewCount = &v
	}
}

// dig walks nested maps along a key path.
func dig(node any, path []string) any {
	current := node
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// stringField returns the first non-empty string value among keys.
func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// floatField returns the first numeric value among keys, accepting JSON
// numbers and numeric strings.
func floatField(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// intField returns the first integral value among keys.
func intField(m map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return int(v), true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
