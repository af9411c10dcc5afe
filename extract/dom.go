package extract

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Candidate selectors, in priority order. Class names drift between
// frontend releases, so each field carries its own probe list and the
// first non-empty match wins.
var (
	cardSelectors = []string{
		".plp-fragment-wrapper",
		`[data-testid="plp-product-card"]`,
		".plp-product-list__products > div",
		".product-compact",
		"div.product-card",
	}

	listingNameSelectors = []string{
		".plp-price-module__name",
		".plp-product__name",
		".product-compact__name",
		"h3 a",
		"h3",
	}
	listingTypeSelectors = []string{
		".plp-price-module__description",
		".plp-product__description",
		".product-compact__type",
	}
	listingPriceSelectors = []string{
		".plp-price__sr-text",
		".plp-price-module__current-price",
		".plp-price",
		".product-compact__price",
		"span.price",
	}
	listingRatingSelectors = []string{
		".plp-ratings__stars",
		`[aria-label*="out of 5"]`,
	}
	listingReviewSelectors = []string{
		".plp-ratings__count",
		".product-compact__rating-count",
	}

	detailNameSelectors = []string{
		".pip-header-section__title--big",
		".pip-header-section__title",
		"h1",
	}
	detailTypeSelectors = []string{
		".pip-header-section__description-text",
		".product-pip__type",
	}
	detailPriceSelectors = []string{
		".pip-temp-price__integer",
		".pip-price__integer",
		".pip-price",
		".product-pip__price",
	}
	detailDescriptionSelectors = []string{
		".pip-product-summary__description",
		"#product-description",
		".product-description",
	}
	detailMeasurementSelectors = []string{
		".pip-header-section__description-measurement",
		".product-dimensions",
	}
	detailAvailabilitySelectors = []string{
		".pip-stock-check__text",
		".pip-availability",
		".availability",
	}
	detailRatingSelectors = []string{
		`[aria-label*="out of 5"]`,
		".pip-ratings__stars",
	}
	detailReviewSelectors = []string{
		".pip-rating__label",
		".pip-ratings__count",
	}
	detailFeatureSelectors = []string{
		".pip-product-details__container li",
		".product-features li",
	}
	detailImageSelectors = []string{
		".pip-media-grid img",
		".product-gallery img",
	}
)

// DOMStrategy probes known CSS selector patterns for product cards and
// fields. A small LRU remembers the winning card selector per host so
// stable layouts skip the probe list on subsequent pages.
type DOMStrategy struct {
	selectorCache *lru.Cache[string, string]
}

// NewDOMStrategy builds the DOM-heuristic strategy.
func NewDOMStrategy() *DOMStrategy {
	cache, _ := lru.New[string, string](64)
	return &DOMStrategy{selectorCache: cache}
}

func (s *DOMStrategy) Name() string { return "dom" }

func (s *DOMStrategy) Extract(ctx context.Context, page *Page) ([]Candidate, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}
	if page.Kind == KindDetail {
		return s.extractDetail(page, doc), nil
	}
	return s.extractListing(page, doc), nil
}

func (s *DOMStrategy) extractListing(page *Page, doc *goquery.Document) []Candidate {
	selector := s.cardSelector(page.URL, doc)
	if selector == "" {
		return nil
	}

	var candidates []Candidate
	doc.Find(selector).Each(func(_ int, card *goquery.Selection) {
		href, _ := card.Find(`a[href*="/p/"]`).First().Attr("href")
		if href == "" {
			href, _ = card.Find("a").First().Attr("href")
		}
		shape := &domShape{
			page:         page,
			url:          page.AbsoluteURL(href),
			name:         firstText(card, listingNameSelectors),
			typeText:     firstText(card, listingTypeSelectors),
			priceText:    firstText(card, listingPriceSelectors),
			ratingText:   firstAttrOrText(card, listingRatingSelectors, "aria-label"),
			reviewText:   firstText(card, listingReviewSelectors),
			availability: strings.TrimSpace(card.Find(".availability, .stock-status").First().Text()),
			imageURL:     page.AbsoluteURL(imageSource(card.Find("img").First())),
		}
		if shape.name == "" {
			if title, ok := card.Find("a").First().Attr("title"); ok {
				shape.name = strings.TrimSpace(title)
			}
		}
		// A card is usable only with an identifying URL and at least a
		// name or price.
		if !IsDetailURL(shape.url) || (shape.name == "" && shape.priceText == "") {
			return
		}
		candidates = append(candidates, shape)
	})
	return candidates
}

func (s *DOMStrategy) extractDetail(page *Page, doc *goquery.Document) []Candidate {
	body := doc.Selection
	shape := &domShape{
		page:         page,
		url:          page.URL,
		name:         firstText(body, detailNameSelectors),
		typeText:     firstText(body, detailTypeSelectors),
		priceText:    firstText(body, detailPriceSelectors),
		description:  firstText(body, detailDescriptionSelectors),
		measurements: firstText(body, detailMeasurementSelectors),
		availability: firstText(body, detailAvailabilitySelectors),
		ratingText:   firstAttrOrText(body, detailRatingSelectors, "aria-label"),
		reviewText:   firstText(body, detailReviewSelectors),
	}
	for _, sel := range detailFeatureSelectors {
		doc.Find(sel).Each(func(_ int, li *goquery.Selection) {
			if text := strings.TrimSpace(li.Text()); text != "" {
				shape.features = append(shape.features, text)
			}
		})
		if len(shape.features) > 0 {
			break
		}
	}
	for _, sel := range detailImageSelectors {
		doc.Find(sel).Each(func(_ int, img *goquery.Selection) {
			if src := imageSource(img); src != "" {
				shape.images = append(shape.images, page.AbsoluteURL(src))
			}
		})
		if len(shape.images) > 0 {
			break
		}
	}

	if shape.name == "" && shape.priceText == "" && shape.description == "" {
		return nil
	}
	return []Candidate{shape}
}

// HasProductCards reports whether any known product-card container
// matches on the page. Used to tell a broken layout apart from a
// genuinely empty end-of-catalog page.
func HasProductCards(page *Page) bool {
	doc, err := page.Document()
	if err != nil {
		return false
	}
	for _, sel := range cardSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// cardSelector returns the active product-card selector for the page:
// the cached winner for the host when it still matches, otherwise the
// first probe that matches at least one element.
func (s *DOMStrategy) cardSelector(pageURL string, doc *goquery.Document) string {
	host := urlHost(pageURL)
	if cached, ok := s.selectorCache.Get(host); ok {
		if doc.Find(cached).Length() > 0 {
			return cached
		}
		s.selectorCache.Remove(host)
	}
	for _, sel := range cardSelectors {
		if doc.Find(sel).Length() > 0 {
			s.selectorCache.Add(host, sel)
			return sel
		}
	}
	return ""
}

func firstText(sel *goquery.Selection, probes []string) string {
	for _, probe := range probes {
		if text := strings.TrimSpace(sel.Find(probe).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstAttrOrText(sel *goquery.Selection, probes []string, attr string) string {
	for _, probe := range probes {
		found := sel.Find(probe).First()
		if value, ok := found.Attr(attr); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		if text := strings.TrimSpace(found.Text()); text != "" {
			return text
		}
	}
	return ""
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if value, ok := img.Attr(attr); ok && value != "" {
			return value
		}
	}
	return ""
}

func urlHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
