package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-scrape-ikea/config"
	"github.com/aluiziolira/go-scrape-ikea/models"
	"github.com/aluiziolira/go-scrape-ikea/pipeline"
	"github.com/aluiziolira/go-scrape-ikea/scraper"
)

func main() {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	productsDefault := defaultCfg.MaxProducts
	if value, ok, err := config.EnvInt("SCRAPER_PRODUCTS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PRODUCTS: %v\n", err)
		os.Exit(1)
	} else if ok {
		productsDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	parallelDefault := defaultCfg.Parallelism
	if value, ok, err := config.EnvInt("SCRAPER_PARALLEL"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PARALLEL: %v\n", err)
		os.Exit(1)
	} else if ok {
		parallelDefault = value
	}
	detailsDefault := defaultCfg.CollectDetails
	if value, ok, err := config.EnvBool("SCRAPER_DETAILS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_DETAILS: %v\n", err)
		os.Exit(1)
	} else if ok {
		detailsDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	dsnDefault := defaultCfg.PostgresDSN
	if value, ok := config.EnvString("SCRAPER_POSTGRES_DSN"); ok {
		dsnDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	configPath := flag.String("config", "", "Path to a YAML configuration file")
	baseURL := flag.String("base-url", defaultCfg.BaseURL, "Storefront base URL")
	country := flag.String("country", defaultCfg.Country, "Storefront country code (e.g. us)")
	language := flag.String("language", defaultCfg.Language, "Storefront language code (e.g. en)")
	category := flag.String("category", defaultCfg.Category, "Catalog category slug to scrape")
	maxProducts := flag.Int("products", productsDefault, "Maximum products to persist")
	maxPages := flag.Int("pages", pagesDefault, "Maximum catalog pages to scrape")
	collectDetails := flag.Bool("details", detailsDefault, "Fetch product detail pages to enrich listing records")
	parallelism := flag.Int("parallel", parallelDefault, "Number of concurrent requests")
	delayMs := flag.Int("delay", 0, "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", 0, "Random jitter added to delay (milliseconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per URL")
	retryBackoffMs := flag.Int("retry-backoff", 200, "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", 2000, "Maximum retry backoff (milliseconds)")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, dual, or postgres")
	postgresDSN := flag.String("dsn", dsnDefault, "Postgres DSN (required for -format postgres)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	// Precedence: defaults, then environment, then config file, then
	// explicit flags.
	cfg := config.DefaultConfig()
	cfg.MaxProducts = productsDefault
	cfg.MaxPages = pagesDefault
	cfg.Parallelism = parallelDefault
	cfg.CollectDetails = detailsDefault
	cfg.OutputFile = outputDefault
	cfg.PostgresDSN = dsnDefault
	cfg.MetricsAddr = metricsDefault
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			slog.Error("loading configuration file", slog.Any("error", err))
			os.Exit(1)
		}
	}
	applyFlags(cfg, flagOverrides{
		baseURL:           *baseURL,
		country:           *country,
		language:          *language,
		category:          *category,
		maxProducts:       *maxProducts,
		maxPages:          *maxPages,
		collectDetails:    *collectDetails,
		parallelism:       *parallelism,
		delayMs:           *delayMs,
		randomDelayMs:     *randomDelayMs,
		maxRetries:        *maxRetries,
		retryBackoffMs:    *retryBackoffMs,
		retryBackoffMaxMs: *retryBackoffMaxMs,
		respectRobots:     *respectRobots,
		outputFile:        *outputFile,
		outputFormat:      strings.ToLower(*outputFormat),
		postgresDSN:       *postgresDSN,
		verbose:           *verbose,
		metricsAddr:       *metricsAddr,
	})
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("start_url", cfg.ListingURLs()[0]),
		slog.Int("max_products", cfg.MaxProducts),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Bool("details", cfg.CollectDetails),
		slog.Int("workers", cfg.Parallelism),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(ctx, cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := s.Run(ctx, p)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	if result.Persisted == 0 {
		slog.Error("no products extracted; the storefront layout may have changed")
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(result, time.Since(startTime), cfg, p.GetMetrics())
}

type flagOverrides struct {
	baseURL           string
	country           string
	language          string
	category          string
	maxProducts       int
	maxPages          int
	collectDetails    bool
	parallelism       int
	delayMs           int
	randomDelayMs     int
	maxRetries        int
	retryBackoffMs    int
	retryBackoffMaxMs int
	respectRobots     bool
	outputFile        string
	outputFormat      string
	postgresDSN       string
	verbose           bool
	metricsAddr       string
}

// applyFlags overlays command-line values onto cfg. Flags the user did
// not pass keep whatever the config file (or default) set.
func applyFlags(cfg *config.Config, o flagOverrides) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["base-url"] {
		cfg.BaseURL = o.baseURL
	}
	if set["country"] {
		cfg.Country = o.country
	}
	if set["language"] {
		cfg.Language = o.language
	}
	if set["category"] {
		cfg.Category = o.category
	}
	if set["products"] {
		cfg.MaxProducts = o.maxProducts
	}
	if set["pages"] {
		cfg.MaxPages = o.maxPages
	}
	if set["details"] {
		cfg.CollectDetails = o.collectDetails
	}
	if set["parallel"] {
		cfg.Parallelism = o.parallelism
	}
	if set["delay"] {
		cfg.Delay = time.Duration(o.delayMs) * time.Millisecond
	}
	if set["random-delay"] {
		cfg.RandomDelay = time.Duration(o.randomDelayMs) * time.Millisecond
	}
	if set["max-retries"] {
		cfg.MaxRetries = o.maxRetries
	}
	if set["retry-backoff"] {
		cfg.RetryBackoff = time.Duration(o.retryBackoffMs) * time.Millisecond
	}
	if set["retry-backoff-max"] {
		cfg.RetryBackoffMax = time.Duration(o.retryBackoffMaxMs) * time.Millisecond
	}
	if set["respect-robots"] {
		cfg.RespectRobotsTxt = o.respectRobots
	}
	if set["output"] {
		cfg.OutputFile = o.outputFile
	}
	if set["format"] {
		cfg.OutputFormat = o.outputFormat
	}
	if set["dsn"] {
		cfg.PostgresDSN = o.postgresDSN
	}
	if set["v"] {
		cfg.Verbose = o.verbose
	}
	if set["metrics-addr"] {
		cfg.MetricsAddr = o.metricsAddr
	}
}

func createWriter(ctx context.Context, cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputFile)
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.OutputFile, ".csv") + ".json"
		return pipeline.NewDualWriter(cfg.OutputFile, jsonFilename)
	case "postgres":
		return pipeline.NewPostgresWriter(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func printSummary(result *models.RunResult, duration time.Duration, cfg *config.Config, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.Persisted) / duration.Seconds()
	}

	fmt.Printf("  Products:      %d\n", result.Persisted)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	if cfg.OutputFormat == "postgres" {
		fmt.Println("  Output:        postgres")
	} else {
		fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
