package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Last-resort patterns scanned over the visible text of a detail page.
// The first plausible match per field is authoritative.
var (
	textPriceRe     = regexp.MustCompile(`(?i)(?:price:?\s*)?([€$£]\s?[0-9][0-9.,]*|[0-9][0-9.,]*\s?(?:kr|€))`)
	textRatingRe    = regexp.MustCompile(`([0-9](?:[.,][0-9]+)?)\s*(?:out of|/)\s*5`)
	textReviewRe    = regexp.MustCompile(`(?i)([0-9][0-9.,]*)\s*reviews?`)
	textDimensionRe = regexp.MustCompile(`(?i)([0-9]+(?:[.,][0-9]+)?)\s*[x×]\s*([0-9]+(?:[.,][0-9]+)?)(?:\s*[x×]\s*([0-9]+(?:[.,][0-9]+)?))?\s*(cm|mm|in(?:ch(?:es)?)?)`)
)

// TextStrategy scans the raw visible text of a detail page for price,
// rating, review-count and dimension patterns. It is the last resort
// when neither markup nor selectors recognize the page.
type TextStrategy struct{}

// NewTextStrategy builds the text-pattern strategy.
func NewTextStrategy() *TextStrategy { return &TextStrategy{} }

func (s *TextStrategy) Name() string { return "text" }

func (s *TextStrategy) Extract(ctx context.Context, page *Page) ([]Candidate, error) {
	if page.Kind != KindDetail {
		return nil, nil
	}
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}

	clone := doc.Clone()
	clone.Find("script, style, noscript").Remove()
	text := clone.Text()

	shape := &textShape{page: page}
	if m := textPriceRe.FindStringSubmatch(text); m != nil {
		shape.priceText = m[1]
	}
	if m := textRatingRe.FindStringSubmatch(text); m != nil {
		shape.ratingText = m[1]
	}
	if m := textReviewRe.FindStringSubmatch(text); m != nil {
		shape.reviewText = m[1]
	}
	if m := textDimensionRe.FindStringSubmatch(text); m != nil {
		shape.measurements = formatDimensions(m)
	}
	// The page heading is the best name guess available at this level.
	shape.name = strings.TrimSpace(doc.Find("h1").First().Text())

	if shape.priceText == "" && shape.ratingText == "" && shape.measurements == "" && shape.name == "" {
		return nil, nil
	}
	return []Candidate{shape}, nil
}

// formatDimensions renders a matched WxHxD group canonically, e.g.
// "80x60x45 cm".
func formatDimensions(m []string) string {
	dims := []string{m[1], m[2]}
	if m[3] != "" {
		dims = append(dims, m[3])
	}
	for i, d := range dims {
		dims[i] = strings.ReplaceAll(d, ",", ".")
	}
	return fmt.Sprintf("%s %s", strings.Join(dims, "x"), strings.ToLower(m[4]))
}
