// Package extract implements the multi-strategy product extraction chain.
// Each strategy inspects one fetched page and yields candidate records;
// the chain tries strategies in reliability order and stops at the first
// one that produces anything.
package extract

import (
	"bytes"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Kind tells strategies whether a page is a category listing or a single
// product detail page.
type Kind int

const (
	KindListing Kind = iota
	KindDetail
)

func (k Kind) String() string {
	if k == KindDetail {
		return "detail"
	}
	return "listing"
}

// Page is one fetched page handed to the strategy chain. The parsed
// document view is built lazily and shared between strategies.
type Page struct {
	URL  string
	Kind Kind
	Body []byte

	docOnce sync.Once
	doc     *goquery.Document
	docErr  error
}

// NewPage wraps a fetched response body.
func NewPage(rawURL string, kind Kind, body []byte) *Page {
	return &Page{URL: rawURL, Kind: kind, Body: body}
}

// Document parses the body as HTML once and caches the result.
func (p *Page) Document() (*goquery.Document, error) {
	p.docOnce.Do(func() {
		p.doc, p.docErr = goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	})
	return p.doc, p.docErr
}

// AbsoluteURL resolves href against the page URL. Unresolvable hrefs are
// returned unchanged.
func (p *Page) AbsoluteURL(href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(p.URL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
