package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ItemsScrapedTotal prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	StrategyHitsTotal *prometheus.CounterVec
	DedupRejectsTotal prometheus.Counter
	BudgetStopsTotal  *prometheus.CounterVec
	EmptyPagesTotal   *prometheus.CounterVec
	IDRejectsTotal    prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of records sent to the pipeline.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	strategyHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_strategy_hits_total",
			Help: "Pages won by each extraction strategy.",
		},
		[]string{"strategy", "kind"},
	)
	dedupRejects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_dedup_rejects_total",
			Help: "Candidates rejected because their id was already claimed.",
		},
	)
	budgetStops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_budget_stops_total",
			Help: "Work refused because a budget ceiling was reached.",
		},
		[]string{"budget"},
	)
	emptyPages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_empty_pages_total",
			Help: "Listing pages that yielded zero candidates, by reason.",
		},
		[]string{"reason"},
	)
	idRejects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_id_rejects_total",
			Help: "Candidates rejected for an unparsable product id.",
		},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, retries, errorsTotal,
		strategyHits, dedupRejects, budgetStops, emptyPages, idRejects)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ItemsScrapedTotal: itemsScraped,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		StrategyHitsTotal: strategyHits,
		DedupRejectsTotal: dedupRejects,
		BudgetStopsTotal:  budgetStops,
		EmptyPagesTotal:   emptyPages,
		IDRejectsTotal:    idRejects,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncStrategyHit records which strategy won a page.
func (m *Metrics) IncStrategyHit(strategy, kind string) {
	if m == nil {
		return
	}
	m.StrategyHitsTotal.WithLabelValues(strategy, kind).Inc()
}

// IncDedupReject counts an already-claimed id.
func (m *Metrics) IncDedupReject() {
	if m == nil {
		return
	}
	m.DedupRejectsTotal.Inc()
}

// IncBudgetStop counts work refused by a budget ceiling.
func (m *Metrics) IncBudgetStop(budget string) {
	if m == nil {
		return
	}
	m.BudgetStopsTotal.WithLabelValues(budget).Inc()
}

// IncEmptyPage counts a zero-yield listing page.
func (m *Metrics) IncEmptyPage(reason string) {
	if m == nil {
		return
	}
	m.EmptyPagesTotal.WithLabelValues(reason).Inc()
}

// IncIDReject counts a candidate with an unparsable id.
func (m *Metrics) IncIDReject() {
	if m == nil {
		return
	}
	m.IDRejectsTotal.Inc()
}
