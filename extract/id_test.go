package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductID(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{"slug with id", "https://www.ikea.com/us/en/p/poaeng-armchair-birch-veneer-40299687/", "40299687", true},
		{"sellable unit prefix", "https://www.ikea.com/us/en/p/poang-armchair-s49305093/", "s49305093", true},
		{"bare id segment", "/us/en/p/10214563/", "10214563", true},
		{"no trailing slash", "/us/en/p/billy-bookcase-10214563", "10214563", true},
		{"query string after id", "/us/en/p/billy-10214563/?variant=white", "10214563", true},
		{"fragment after id", "/us/en/p/billy-10214563#reviews", "10214563", true},
		{"listing url", "https://www.ikea.com/us/en/cat/chairs/", "", false},
		{"id too short", "/us/en/p/chair-1234/", "", false},
		{"no id in slug", "/us/en/p/broken-link/", "", false},
		{"digits outside p segment", "/us/en/cat/chairs-12345/", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ProductID(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestIsDetailURL(t *testing.T) {
	assert.True(t, IsDetailURL("https://www.ikea.com/us/en/p/poaeng-40299687/"))
	assert.False(t, IsDetailURL("https://www.ikea.com/us/en/cat/chairs/"))
}
