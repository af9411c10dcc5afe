package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func TestNextListingURLExplicitLink(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "rel next",
			html: `<a rel="next" href="/us/en/cat/chairs/?page=4">next</a>`,
			want: "http://example.test/us/en/cat/chairs/?page=4",
		},
		{
			name: "aria label",
			html: `<a aria-label="Next" href="?page=2">more</a>`,
			want: "http://example.test/us/en/cat/chairs/?page=2",
		},
		{
			name: "pagination class",
			html: `<div class="plp-pagination__next"><a href="/us/en/cat/chairs/page-2/">2</a></div>`,
			want: "http://example.test/us/en/cat/chairs/page-2/",
		},
		{
			name: "legacy list item",
			html: `<li class="next"><a href="page-2.html">next</a></li>`,
			want: "http://example.test/us/en/cat/chairs/page-2.html",
		},
	}

	current := "http://example.test/us/en/cat/chairs/"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := docFromHTML(t, "<html><body>"+tt.html+"</body></html>")
			if got := NextListingURL(current, doc); got != tt.want {
				t.Fatalf("NextListingURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextListingURLSyntheticFallback(t *testing.T) {
	doc := docFromHTML(t, "<html><body><p>no nav</p></body></html>")

	got := NextListingURL("http://example.test/us/en/cat/chairs/", doc)
	if got != "http://example.test/us/en/cat/chairs/?page=2" {
		t.Fatalf("first synthetic page = %q", got)
	}

	got = NextListingURL("http://example.test/us/en/cat/chairs/?page=7", doc)
	if got != "http://example.test/us/en/cat/chairs/?page=8" {
		t.Fatalf("synthetic increment = %q", got)
	}

	got = NextListingURL("http://example.test/us/en/cat/chairs/?pageNumber=2", doc)
	if got != "http://example.test/us/en/cat/chairs/?pageNumber=3" {
		t.Fatalf("pageNumber increment = %q", got)
	}
}

func TestNextListingURLNilDocument(t *testing.T) {
	got := NextListingURL("http://example.test/us/en/cat/chairs/", nil)
	if got != "http://example.test/us/en/cat/chairs/?page=2" {
		t.Fatalf("synthetic with nil doc = %q", got)
	}
}

// A next link that resolves to the current URL must not be followed;
// that is the loop guard against broken pagination markup.
func TestNextListingURLLoopGuard(t *testing.T) {
	current := "http://example.test/us/en/cat/chairs/?page=2"
	doc := docFromHTML(t, `<html><body><a rel="next" href="?page=2">next</a></body></html>`)

	if got := NextListingURL(current, doc); got != "" {
		t.Fatalf("self-referencing next link should yield \"\", got %q", got)
	}
}

func TestNextListingURLSkipsFragmentLinks(t *testing.T) {
	doc := docFromHTML(t, `<html><body><a rel="next" href="#top">next</a></body></html>`)

	// The fragment link is useless; the synthetic fallback takes over.
	got := NextListingURL("http://example.test/us/en/cat/chairs/", doc)
	if got != "http://example.test/us/en/cat/chairs/?page=2" {
		t.Fatalf("NextListingURL() = %q", got)
	}
}

func TestNextListingURLMalformedPageParam(t *testing.T) {
	doc := docFromHTML(t, "<html><body></body></html>")
	if got := NextListingURL("http://example.test/us/en/cat/chairs/?page=abc", doc); got != "" {
		t.Fatalf("malformed page parameter should halt traversal, got %q", got)
	}
}
