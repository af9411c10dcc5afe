// Package parser normalizes raw extracted values into canonical field
// shapes and validates records before persistence.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-ikea/models"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	numberRe     = regexp.MustCompile(`[0-9][0-9.,\s\x{00a0}]*`)
	decimalRe    = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	digitsRe     = regexp.MustCompile(`[0-9]+`)
)

// currencySymbols maps symbols and codes that appear in price strings to
// ISO currency codes. Longer tokens are checked before shorter ones.
var currencySymbols = []struct {
	token string
	code  string
}{
	{"EUR", "EUR"},
	{"USD", "USD"},
	{"GBP", "GBP"},
	{"SEK", "SEK"},
	{"kr", "SEK"},
	{"€", "EUR"},
	{"$", "USD"},
	{"£", "GBP"},
	{"¥", "JPY"},
}

// ParsePrice extracts a decimal amount and a currency code from a raw
// price string such as "$1,299.00", "€ 1.299,00" or "249 kr". The ok
// result is false when no numeric amount is present.
func ParsePrice(raw string) (amount float64, currency string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, "", false
	}

	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.token) {
			currency = cs.code
			break
		}
	}

	match := numberRe.FindString(s)
	if match == "" {
		return 0, "", false
	}

	value, err := parseAmount(match)
	if err != nil {
		return 0, "", false
	}
	return value, currency, true
}

// parseAmount handles both "1,299.00" and "1.299,00" style separators.
func parseAmount(s string) (float64, error) {
	s = strings.NewReplacer(" ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".,")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// The later separator is the decimal mark.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if decimalSeparator(s, lastComma) {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if !decimalSeparator(s, lastDot) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	return strconv.ParseFloat(s, 64)
}

// decimalSeparator reports whether the single separator at idx looks like
// a decimal mark rather than a thousands separator.
func decimalSeparator(s string, idx int) bool {
	if strings.Count(s, string(s[idx])) > 1 {
		return false
	}
	frac := len(s) - idx - 1
	return frac > 0 && frac != 3
}

// ParseRating extracts a rating value from text like "4.5 out of 5" or a
// bare numeral. Values are returned as extracted, even outside [0,5];
// QualityFlags reports those downstream.
func ParseRating(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	match := decimalRe.FindString(s)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseCount extracts an integer count from text like "1,234 reviews".
func ParseCount(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	joined := strings.Join(digitsRe.FindAllString(s, -1), "")
	if joined == "" {
		return 0, false
	}
	value, err := strconv.Atoi(joined)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(s, "-") {
		value = -value
	}
	return value, true
}

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ValidateProduct ensures a record carries the fields required for
// persistence: a non-empty id (the dedup key) and a name.
func ValidateProduct(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("product missing id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product %s missing name", p.ID)
	}
	if (p.Price == nil) != (p.Currency == "") {
		return fmt.Errorf("product %s has price and currency out of sync", p.ID)
	}
	if p.Availability == "" {
		return fmt.Errorf("product %s missing availability", p.ID)
	}
	return nil
}

// QualityFlags reports data-quality concerns that do not reject a record:
// source sites routinely publish out-of-range ratings and bogus review
// counts, and dropping such records would lose otherwise-valid data.
func QualityFlags(p *models.Product) []string {
	if p == nil {
		return nil
	}
	var flags []string
	if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
		flags = append(flags, "rating_out_of_range")
	}
	if p.ReviewCount != nil && *p.ReviewCount < 0 {
		flags = append(flags, "negative_review_count")
	}
	return flags
}
