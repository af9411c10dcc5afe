package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-ikea/config"
	"github.com/aluiziolira/go-scrape-ikea/extract"
	"github.com/aluiziolira/go-scrape-ikea/models"
	"github.com/aluiziolira/go-scrape-ikea/pipeline"
	"github.com/gocolly/colly/v2"
)

// Scraper drives the crawl: the colly collector fetches listing and
// detail pages, the extraction chains turn responses into candidates,
// and RunState arbitrates dedup and budgets across concurrent handlers.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	Metrics   *Metrics

	state        *RunState
	listingChain *extract.Chain
	detailChain  *extract.Chain

	pipe *pipeline.Pipeline
	ctx  context.Context

	// pending holds listing-derived partial records awaiting their
	// detail page, keyed by product id.
	pendingMu sync.Mutex
	pending   map[string]*models.Product

	requestCount int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	fetcher := extract.NewHTTPFetcher(cfg.Timeout, cfg.UserAgent, 2)
	locale := extract.Locale{Country: cfg.Country, Language: cfg.Language}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		state:        NewRunState(cfg.MaxProducts, cfg.MaxPages),
		listingChain: extract.NewListingChain(fetcher, locale, cfg.Category),
		detailChain:  extract.NewDetailChain(),
		pending:      make(map[string]*models.Product),
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}
	s.retry = newRetryManager(collector, cfg, s.Metrics)
	return s, nil
}

// SetListingChain replaces the listing chain. Tests use this to inject
// instrumented strategies.
func (s *Scraper) SetListingChain(c *extract.Chain) { s.listingChain = c }

// SetDetailChain replaces the detail chain.
func (s *Scraper) SetDetailChain(c *extract.Chain) { s.detailChain = c }

// State exposes the run state for inspection.
func (s *Scraper) State() *RunState { return s.state }

// Run starts the crawl from the configured listing URLs and streams
// finalized records through the pipeline.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.pipe = p
	s.retry.SetContext(ctx)
	s.configureHandlers()

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.collector.Wait()
			s.retry.Stop()
		case <-done:
		}
	}()

	visited := 0
	for _, listingURL := range s.cfg.ListingURLs() {
		if !s.state.TryClaimPage() {
			s.Metrics.IncBudgetStop("pages")
			break
		}
		if err := s.collector.Visit(listingURL); err != nil {
			return nil, fmt.Errorf("initial visit %s: %w", listingURL, err)
		}
		visited++
	}
	if visited == 0 {
		return nil, fmt.Errorf("no listing URLs within page budget")
	}

	s.collector.Wait()
	s.retry.Stop()
	s.drainPending()
	s.collector.Wait()

	result := &models.RunResult{
		StartTime:    start,
		EndTime:      time.Now(),
		Persisted:    s.state.Persisted(),
		PageCount:    s.state.Pages(),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
		RetryCount:   s.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
	}
	return result, nil
}

func (s *Scraper) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			current := atomic.AddInt64(&s.requestCount, 1)
			s.Metrics.IncRequest("started")
			if current%50 == 0 {
				slog.Debug("scraper request progress",
					slog.Int64("requests", current),
					slog.Int("persisted", s.state.Persisted()),
					slog.String("url", r.URL.String()),
				)
			}
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
			if r.StatusCode >= http.StatusBadRequest {
				slog.Error("non-200 response",
					slog.Int("status", r.StatusCode),
					slog.String("url", r.Request.URL.String()),
				)
				return
			}

			pageURL := r.Request.URL.String()
			if extract.IsDetailURL(pageURL) {
				s.handleDetail(pageURL, r.Body)
				return
			}
			s.handleListing(pageURL, r.Body)
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			failedURL := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				failedURL = r.Request.URL.String()
			}
			slog.Error("request error",
				slog.String("url", failedURL),
				slog.String("category", category),
				slog.Any("error", err),
			)
			s.Metrics.IncError(category)

			if retriable(classified) && s.retry.Schedule(failedURL) {
				return
			}

			s.mu.Lock()
			s.failedURLs = append(s.failedURLs, failedURL)
			s.mu.Unlock()

			// A dead detail page degrades to the listing-only record.
			if extract.IsDetailURL(failedURL) {
				s.degradeDetail(failedURL)
			}
		})
	})
}

// handleListing runs the listing chain over one fetched category page,
// claims surviving candidates and either persists them or queues detail
// work, then decides whether traversal continues.
func (s *Scraper) handleListing(pageURL string, body []byte) {
	page := extract.NewPage(pageURL, extract.KindListing, body)

	// A response arriving after budget exhaustion is discarded, not
	// processed; its fetch was already in flight.
	if s.state.Exhausted() {
		s.Metrics.IncBudgetStop("products")
		return
	}

	candidates, strategy := s.listingChain.Extract(s.ctx, page)
	if len(candidates) == 0 {
		reason := "end_of_catalog"
		if extract.HasProductCards(page) {
			reason = "extraction_failed"
		}
		s.Metrics.IncEmptyPage(reason)
		slog.Info("listing page yielded no candidates, halting traversal",
			slog.String("url", pageURL),
			slog.String("reason", reason),
		)
		return
	}
	s.Metrics.IncStrategyHit(strategy, "listing")

	for _, candidate := range candidates {
		product, err := candidate.Normalize()
		if err != nil {
			if errors.Is(err, extract.ErrNoProductID) {
				s.Metrics.IncIDReject()
			}
			continue
		}

		switch s.state.TryClaim(product.ID) {
		case Duplicate:
			s.Metrics.IncDedupReject()
			continue
		case BudgetExhausted:
			s.Metrics.IncBudgetStop("products")
			continue
		}

		product.Category = s.cfg.Category
		if s.cfg.CollectDetails {
			s.enqueueDetail(product)
		} else {
			s.finalize(product)
		}
	}

	s.scheduleNext(page)
}

// scheduleNext continues traversal while budgets allow.
func (s *Scraper) scheduleNext(page *extract.Page) {
	if s.ctx != nil && s.ctx.Err() != nil {
		return
	}
	if s.state.Exhausted() {
		s.Metrics.IncBudgetStop("products")
		return
	}

	doc, err := page.Document()
	if err != nil {
		doc = nil
	}
	next := NextListingURL(page.URL, doc)
	if next == "" {
		return
	}
	if !s.state.TryClaimPage() {
		s.Metrics.IncBudgetStop("pages")
		return
	}
	if err := s.collector.Visit(next); err != nil {
		slog.Debug("next page visit failed", slog.String("url", next), slog.Any("error", err))
	}
}

// enqueueDetail registers a partial record and schedules its detail
// fetch. A record whose detail visit cannot even be scheduled degrades
// immediately.
func (s *Scraper) enqueueDetail(product *models.Product) {
	s.pendingMu.Lock()
	s.pending[product.ID] = product
	s.pendingMu.Unlock()

	if err := s.collector.Visit(product.SourceURL); err != nil {
		slog.Debug("detail visit failed", slog.String("url", product.SourceURL), slog.Any("error", err))
		s.degradeDetail(product.SourceURL)
	}
}

// handleDetail merges a detail page extraction onto its pending partial
// record and finalizes it.
func (s *Scraper) handleDetail(pageURL string, body []byte) {
	id, ok := extract.ProductID(pageURL)
	if !ok {
		return
	}
	partial := s.takePending(id)
	if partial == nil {
		return
	}

	page := extract.NewPage(pageURL, extract.KindDetail, body)
	candidates, strategy := s.detailChain.Extract(s.ctx, page)
	if len(candidates) > 0 {
		if detail, err := candidates[0].Normalize(); err == nil {
			partial.Merge(detail)
			s.Metrics.IncStrategyHit(strategy, "detail")
		}
	}
	s.finalize(partial)
}

// degradeDetail persists the listing-only record when the detail page is
// unreachable, provided the listing data is sufficient.
func (s *Scraper) degradeDetail(detailURL string) {
	id, ok := extract.ProductID(detailURL)
	if !ok {
		return
	}
	partial := s.takePending(id)
	if partial == nil {
		return
	}
	if partial.Name == "" {
		slog.Warn("dropping record: detail fetch failed and listing has no name",
			slog.String("id", partial.ID),
			slog.String("url", detailURL),
		)
		return
	}
	s.finalize(partial)
}

// drainPending degrades records whose detail fetches never completed,
// e.g. after cancellation.
func (s *Scraper) drainPending() {
	s.pendingMu.Lock()
	leftovers := make([]*models.Product, 0, len(s.pending))
	for id, product := range s.pending {
		leftovers = append(leftovers, product)
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	for _, product := range leftovers {
		s.finalize(product)
	}
}

// finalize stamps and persists one canonical record. A record that never
// acquired a name is dropped here, before it counts as persisted.
func (s *Scraper) finalize(product *models.Product) {
	if product.Name == "" {
		slog.Warn("dropping record without a name",
			slog.String("id", product.ID),
			slog.String("url", product.SourceURL),
		)
		return
	}
	if product.Availability == "" {
		product.Availability = models.AvailabilityUnknown
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	product.RetrievedAt = time.Now()

	s.Metrics.IncItems()
	if err := s.pipe.Process(product); err != nil {
		if !errors.Is(err, pipeline.ErrPipelineClosed) {
			slog.Error("pipeline process error", slog.Any("error", err))
		}
		return
	}
	s.state.RecordPersisted()
}

func (s *Scraper) takePending(id string) *models.Product {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	product := s.pending[id]
	delete(s.pending, id)
	return product
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

// WithTransport swaps the collector transport. Tests inject httpmock
// through this.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

type retryManager struct {
	collector *colly.Collector
	cfg       *config.Config
	metrics   *Metrics
	ctx       context.Context

	mu           sync.Mutex
	attempts     map[string]int
	timers       map[string]*time.Timer
	totalRetries int
	stopped      bool
}

func newRetryManager(collector *colly.Collector, cfg *config.Config, metrics *Metrics) *retryManager {
	return &retryManager{
		collector: collector,
		cfg:       cfg,
		attempts:  make(map[string]int),
		timers:    make(map[string]*time.Timer),
		metrics:   metrics,
		ctx:       context.Background(),
	}
}

// Schedule queues one more attempt for url, returning false once the
// per-URL retry budget is spent or the run is shutting down.
func (rm *retryManager) Schedule(url string) bool {
	if rm.cfg.MaxRetries == 0 {
		return false
	}

	rm.mu.Lock()

	if rm.stopped {
		rm.mu.Unlock()
		return false
	}
	if rm.ctx != nil && rm.ctx.Err() != nil {
		rm.mu.Unlock()
		return false
	}

	attempt := rm.attempts[url]
	if attempt >= rm.cfg.MaxRetries {
		rm.mu.Unlock()
		return false
	}

	attempt++
	rm.attempts[url] = attempt
	rm.totalRetries++
	rm.metrics.IncRetries()

	delay := rm.backoff(attempt)
	rm.resetTimerLocked(url)
	rm.timers[url] = time.AfterFunc(delay, func() {
		rm.fireRetry(url)
	})
	rm.mu.Unlock()
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) resetTimerLocked(url string) {
	if timer, ok := rm.timers[url]; ok {
		timer.Stop()
		delete(rm.timers, url)
	}
}

func (rm *retryManager) fireRetry(url string) {
	rm.mu.Lock()
	if rm.stopped {
		rm.mu.Unlock()
		return
	}
	ctx := rm.ctx
	rm.mu.Unlock()

	if ctx != nil && ctx.Err() != nil {
		return
	}
	if err := rm.collector.Visit(url); err != nil {
		slog.Debug("retry visit failed", slog.String("url", url), slog.Any("error", err))
	}

	rm.mu.Lock()
	delete(rm.timers, url)
	rm.mu.Unlock()
}

func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for url, timer := range rm.timers {
		timer.Stop()
		delete(rm.timers, url)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		rm.ctx = context.Background()
		return
	}
	rm.ctx = ctx
}
