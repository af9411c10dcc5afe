package extract

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// stateAssignRes match the "preloaded state" assignments various frontend
// builds embed in the page. The first parsable match wins.
var stateAssignRes = []*regexp.Regexp{
	regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})\s*;?\s*</script>`),
	regexp.MustCompile(`(?s)window\.__PRELOADED_STATE__\s*=\s*(\{.*?\})\s*;?\s*</script>`),
	regexp.MustCompile(`(?s)window\.hydrationProps\s*=\s*(\{.*?\})\s*;?\s*</script>`),
}

// markupArrayPaths extends the search-payload paths with the shapes seen
// in listing-page state objects.
var markupArrayPaths = append([][]string{
	{"productListPage", "productList", "items"},
	{"plp", "products"},
	{"listing", "products"},
}, productArrayPaths...)

// MarkupStrategy extracts records from embedded structured markup: the
// preloaded-state JSON blob or schema.org ld+json annotations. On detail
// pages a single Product block is accepted.
type MarkupStrategy struct{}

// NewMarkupStrategy builds the embedded-markup strategy.
func NewMarkupStrategy() *MarkupStrategy { return &MarkupStrategy{} }

func (s *MarkupStrategy) Name() string { return "markup" }

func (s *MarkupStrategy) Extract(ctx context.Context, page *Page) ([]Candidate, error) {
	if candidates := s.fromState(page); len(candidates) > 0 {
		return candidates, nil
	}
	return s.fromLDJSON(page)
}

// fromState scans the raw page text for preloaded-state assignments and
// digs them for a product array (listing) or product block (detail).
func (s *MarkupStrategy) fromState(page *Page) []Candidate {
	for _, re := range stateAssignRes {
		m := re.FindSubmatch(page.Body)
		if m == nil {
			continue
		}
		var state map[string]any
		if err := json.Unmarshal(m[1], &state); err != nil {
			continue
		}

		if page.Kind == KindDetail {
			if block := detailProductBlock(state); block != nil {
				return []Candidate{&markupShape{raw: block, page: page}}
			}
			continue
		}

		for _, path := range markupArrayPaths {
			items, ok := dig(state, path).([]any)
			if !ok || len(items) == 0 {
				continue
			}
			var candidates []Candidate
			for _, item := range items {
				if obj, ok := item.(map[string]any); ok {
					candidates = append(candidates, &markupShape{raw: obj, page: page})
				}
			}
			if len(candidates) > 0 {
				return candidates
			}
		}
	}
	return nil
}

// fromLDJSON walks ld+json script blocks for ItemList (listing) or
// Product (detail) annotations.
func (s *MarkupStrategy) fromLDJSON(page *Page) ([]Candidate, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var node any
		if err := json.Unmarshal([]byte(sel.Text()), &node); err != nil {
			return true
		}
		for _, obj := range ldObjects(node) {
			switch obj["@type"] {
			case "ItemList":
				if page.Kind != KindListing {
					continue
				}
				elements, _ := obj["itemListElement"].([]any)
				for _, el := range elements {
					entry, ok := el.(map[string]any)
					if !ok {
						continue
					}
					if item, ok := entry["item"].(map[string]any); ok {
						entry = item
					}
					candidates = append(candidates, &markupShape{raw: entry, page: page})
				}
			case "Product":
				if page.Kind != KindDetail {
					continue
				}
				candidates = append(candidates, &markupShape{raw: obj, page: page})
				return false
			}
		}
		return len(candidates) == 0 || page.Kind == KindListing
	})
	return candidates, nil
}

// ldObjects flattens an ld+json node: a bare object, an array of objects,
// or an @graph wrapper.
func ldObjects(node any) []map[string]any {
	switch v := node.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			return ldObjects(graph)
		}
		return []map[string]any{v}
	case []any:
		var out []map[string]any
		for _, el := range v {
			out = append(out, ldObjects(el)...)
		}
		return out
	}
	return nil
}

// detailProductBlock digs a detail-page state object for the single
// product block.
func detailProductBlock(state map[string]any) map[string]any {
	for _, path := range [][]string{
		{"productInformationSection", "product"},
		{"pip", "product"},
		{"product"},
	} {
		if block, ok := dig(state, path).(map[string]any); ok && productShaped(block) {
			return block
		}
	}
	return nil
}

// productShaped reports whether a JSON object looks like a product.
func productShaped(m map[string]any) bool {
	for _, key := range []string{"name", "title", "productName"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}
