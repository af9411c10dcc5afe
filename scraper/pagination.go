package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nextLinkSelectors locate an explicit next-page navigational element,
// in priority order.
var nextLinkSelectors = []string{
	`a[rel="next"]`,
	`a[aria-label="Next"]`,
	`a[aria-label="Next page"]`,
	".plp-pagination__next a",
	"a.pagination__next",
	"li.next a",
}

// NextListingURL decides where traversal continues after a listing page:
// an explicit next link when present, otherwise a synthetic increment of
// the page query parameter. It returns "" when there is nowhere to go,
// and never returns the current URL (loop guard against unstable
// synthetic patterns).
func NextListingURL(current string, doc *goquery.Document) string {
	next := nextLinkFromDoc(current, doc)
	if next == "" {
		next = syntheticNextURL(current)
	}
	if next == "" || sameURL(next, current) {
		return ""
	}
	return next
}

func nextLinkFromDoc(current string, doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	for _, sel := range nextLinkSelectors {
		href, ok := doc.Find(sel).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" || strings.HasPrefix(href, "#") {
			continue
		}
		return absoluteURL(current, href)
	}
	return ""
}

// syntheticNextURL advances the page query parameter on the current URL.
func syntheticNextURL(current string) string {
	u, err := url.Parse(current)
	if err != nil {
		return ""
	}
	query := u.Query()

	key := "page"
	pageNo := 1
	for _, candidate := range []string{"page", "pageNumber"} {
		if v := query.Get(candidate); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return ""
			}
			key = candidate
			pageNo = n
			break
		}
	}

	query.Set(key, strconv.Itoa(pageNo+1))
	u.RawQuery = query.Encode()
	return u.String()
}

func absoluteURL(base, href string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}

func sameURL(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
