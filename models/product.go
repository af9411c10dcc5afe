// Package models defines data structures for the scraper.
package models

import "time"

// AvailabilityUnknown is the sentinel used when no availability text could
// be extracted. Records are never persisted with an empty availability.
const AvailabilityUnknown = "check availability"

// MaxFeatures caps the number of feature bullets kept per product.
const MaxFeatures = 5

// Product is the canonical record emitted by the scraper. Numeric fields
// that may legitimately be absent are pointers so downstream consumers can
// tell "missing" from zero.
type Product struct {
	ID           string    `csv:"id" json:"id"`
	Name         string    `csv:"name" json:"name"`
	Price        *float64  `csv:"price" json:"price"`
	Currency     string    `csv:"currency" json:"currency"`
	MainImage    string    `csv:"main_image" json:"main_image"`
	Images       []string  `json:"images"`
	Rating       *float64  `json:"rating"`
	ReviewCount  *int      `json:"review_count"`
	Availability string    `csv:"availability" json:"availability"`
	Description  string    `json:"description,omitempty"`
	Measurements string    `json:"measurements,omitempty"`
	Type         string    `json:"type,omitempty"`
	Features     []string  `json:"features,omitempty"`
	SourceURL    string    `csv:"url" json:"url"`
	Category     string    `csv:"category" json:"category"`
	RetrievedAt  time.Time `csv:"retrieved_at" json:"retrieved_at"`
}

// Merge overlays detail-page fields onto a listing-derived record. The
// listing record is the base; a detail field wins only when it is non-nil
// or non-empty.
func (p *Product) Merge(detail *Product) {
	if detail == nil {
		return
	}
	if detail.Name != "" {
		p.Name = detail.Name
	}
	if detail.Price != nil {
		p.Price = detail.Price
		p.Currency = detail.Currency
	}
	if detail.MainImage != "" {
		p.MainImage = detail.MainImage
	}
	if len(detail.Images) > 0 {
		p.AddImages(detail.Images...)
	}
	if detail.Rating != nil {
		p.Rating = detail.Rating
	}
	if detail.ReviewCount != nil {
		p.ReviewCount = detail.ReviewCount
	}
	if detail.Availability != "" && detail.Availability != AvailabilityUnknown {
		p.Availability = detail.Availability
	}
	if detail.Description != "" {
		p.Description = detail.Description
	}
	if detail.Measurements != "" {
		p.Measurements = detail.Measurements
	}
	if detail.Type != "" {
		p.Type = detail.Type
	}
	if len(detail.Features) > 0 {
		p.AddFeatures(detail.Features...)
	}
}

// AddImages appends image URLs, skipping duplicates and empty strings.
// The main image stays first.
func (p *Product) AddImages(urls ...string) {
	for _, u := range urls {
		if u == "" || containsString(p.Images, u) {
			continue
		}
		p.Images = append(p.Images, u)
	}
	if p.MainImage == "" && len(p.Images) > 0 {
		p.MainImage = p.Images[0]
	}
}

// AddFeatures appends feature bullets, deduplicated and capped at
// MaxFeatures.
func (p *Product) AddFeatures(features ...string) {
	for _, f := range features {
		if f == "" || containsString(p.Features, f) {
			continue
		}
		if len(p.Features) >= MaxFeatures {
			return
		}
		p.Features = append(p.Features, f)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Persisted    int
	PageCount    int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
}
