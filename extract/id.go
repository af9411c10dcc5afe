package extract

import (
	"errors"
	"regexp"
)

// ErrNoProductID marks a candidate whose canonical URL does not carry a
// parsable article number. Such candidates are rejected before dedup.
var ErrNoProductID = errors.New("extract: no product id in url")

// Product detail URLs end the /p/ path segment with an article number,
// optionally prefixed with "s" for sellable-unit ids, e.g.
// /us/en/p/poang-armchair-birch-veneer-s49305093/.
var productIDRe = regexp.MustCompile(`/p/(?:[^/?#]*?-)?(s?\d{5,})/?(?:[?#]|$)`)

// ProductID parses the stable article id out of a product URL.
func ProductID(rawURL string) (string, bool) {
	m := productIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsDetailURL reports whether a URL points at a product detail page.
func IsDetailURL(rawURL string) bool {
	_, ok := ProductID(rawURL)
	return ok
}
