package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "zero max products",
			mutate: func(cfg *Config) {
				cfg.MaxProducts = 0
			},
			wantErr: "max products",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "missing locale",
			mutate: func(cfg *Config) {
				cfg.Country = ""
			},
			wantErr: "locale",
		},
		{
			name: "no category and no start urls",
			mutate: func(cfg *Config) {
				cfg.Category = ""
				cfg.StartURLs = nil
			},
			wantErr: "category",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "unknown output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
		{
			name: "postgres format without dsn",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "postgres"
				cfg.PostgresDSN = ""
			},
			wantErr: "DSN",
		},
		{
			name: "backoff exceeds backoff max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
				cfg.RetryBackoffMax = 1 * time.Second
			},
			wantErr: "retry backoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestListingURLs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://www.ikea.com/"
	cfg.Country = "de"
	cfg.Language = "de"
	cfg.Category = "sofas"

	got := cfg.ListingURLs()
	want := "https://www.ikea.com/de/de/cat/sofas/"
	if len(got) != 1 || got[0] != want {
		t.Fatalf("ListingURLs() = %v, want [%s]", got, want)
	}
}

func TestListingURLsExplicitStartURLs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartURLs = []string{"https://www.ikea.com/us/en/cat/desks-20651/"}

	got := cfg.ListingURLs()
	if len(got) != 1 || got[0] != cfg.StartURLs[0] {
		t.Fatalf("ListingURLs() = %v, want start URLs verbatim", got)
	}
}

func TestLoadFile(t *testing.T) {
	contents := `
base_url: https://www.ikea.com
country: se
language: sv
category: beds
max_products: 25
collect_details: true
output_format: json
output_file: out/beds.json
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if cfg.Country != "se" || cfg.Language != "sv" {
		t.Errorf("locale = %s/%s, want se/sv", cfg.Country, cfg.Language)
	}
	if cfg.MaxProducts != 25 {
		t.Errorf("MaxProducts = %d, want 25", cfg.MaxProducts)
	}
	if !cfg.CollectDetails {
		t.Error("CollectDetails should be true")
	}
	if cfg.OutputFormat != "json" {
		t.Errorf("OutputFormat = %s, want json", cfg.OutputFormat)
	}
	// Fields the file omits keep their defaults.
	if cfg.MaxPages != DefaultConfig().MaxPages {
		t.Errorf("MaxPages = %d, want default %d", cfg.MaxPages, DefaultConfig().MaxPages)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate, got %v", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SCRAPER_TEST_INT", "42")
	value, ok, err := EnvInt("SCRAPER_TEST_INT")
	if err != nil || !ok || value != 42 {
		t.Fatalf("EnvInt() = %d, %v, %v; want 42, true, nil", value, ok, err)
	}

	t.Setenv("SCRAPER_TEST_INT", "not-a-number")
	if _, _, err := EnvInt("SCRAPER_TEST_INT"); err == nil {
		t.Fatal("expected error for non-numeric value")
	}

	if _, ok, _ := EnvInt("SCRAPER_TEST_INT_UNSET"); ok {
		t.Fatal("unset variable should report ok=false")
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("SCRAPER_TEST_BOOL", "true")
	value, ok, err := EnvBool("SCRAPER_TEST_BOOL")
	if err != nil || !ok || !value {
		t.Fatalf("EnvBool() = %v, %v, %v; want true, true, nil", value, ok, err)
	}

	t.Setenv("SCRAPER_TEST_BOOL", "maybe")
	if _, _, err := EnvBool("SCRAPER_TEST_BOOL"); err == nil {
		t.Fatal("expected error for invalid boolean")
	}
}
