// Package config holds the run configuration for the catalog scraper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds scraper configuration. Zero values are filled in by
// DefaultConfig; Validate rejects incoherent combinations.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	Country  string `yaml:"country"`
	Language string `yaml:"language"`
	Category string `yaml:"category"`

	// StartURLs overrides the synthetic listing URL derived from
	// locale + category when non-empty.
	StartURLs []string `yaml:"start_urls"`

	MaxProducts    int  `yaml:"max_products"`
	MaxPages       int  `yaml:"max_pages"`
	CollectDetails bool `yaml:"collect_details"`

	Parallelism     int           `yaml:"parallelism"`
	Delay           time.Duration `yaml:"delay"`
	RandomDelay     time.Duration `yaml:"random_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`

	OutputFile   string `yaml:"output_file"`
	OutputFormat string `yaml:"output_format"` // csv, json, dual, or postgres
	PostgresDSN  string `yaml:"postgres_dsn"`

	UserAgent        string `yaml:"user_agent"`
	Verbose          bool   `yaml:"verbose"`
	RespectRobotsTxt bool   `yaml:"respect_robots_txt"`
	MetricsAddr      string `yaml:"metrics_addr"`

	PipelineBufferSize int `yaml:"pipeline_buffer_size"`
	BatchSize          int `yaml:"batch_size"`
}

// DefaultConfig returns conservative defaults for the public storefront.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://www.ikea.com",
		Country:            "us",
		Language:           "en",
		Category:           "chairs",
		MaxProducts:        100,
		MaxPages:           20,
		CollectDetails:     false,
		Parallelism:        8,
		Delay:              0,
		RandomDelay:        0,
		Timeout:            15 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		OutputFile:         "output/products.csv",
		OutputFormat:       "csv",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Verbose:            false,
		RespectRobotsTxt:   false,
		PipelineBufferSize: 512,
		BatchSize:          64,
	}
}

// LoadFile overlays values from a YAML file onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

// ListingURLs returns the starting points for the run. An empty StartURLs
// list derives one synthetic listing URL from locale + category.
func (c *Config) ListingURLs() []string {
	if len(c.StartURLs) > 0 {
		return c.StartURLs
	}
	base := strings.TrimRight(c.BaseURL, "/")
	return []string{fmt.Sprintf("%s/%s/%s/cat/%s/", base, c.Country, c.Language, c.Category)}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Country == "" || c.Language == "" {
		return fmt.Errorf("locale (country and language) cannot be empty")
	}
	if c.Category == "" && len(c.StartURLs) == 0 {
		return fmt.Errorf("either a category or start URLs must be set")
	}
	if c.MaxProducts <= 0 {
		return fmt.Errorf("max products must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	switch c.OutputFormat {
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres output requires a DSN")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, or postgres")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}

// EnvInt reads an integer environment variable. The second return value
// reports whether the variable was set.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

// EnvBool reads a boolean environment variable.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}
