package scraper

import "sync"

// Unbounded is the sentinel ceiling for "no limit". Using a plain large
// number keeps every budget comparison on one code path.
const Unbounded = 1 << 30

// RunState is the single shared-mutable resource of a run: the set of
// claimed product ids, the product and page budgets, and the persisted
// counter. Every mutation is one atomic step under the lock so that two
// concurrent page handlers can never both claim the same id or the last
// budget slot.
type RunState struct {
	mu sync.Mutex

	seen        map[string]struct{}
	maxProducts int
	maxPages    int

	claimed   int
	pages     int
	persisted int
}

// NewRunState builds run state with the given ceilings. Non-positive
// ceilings mean unbounded.
func NewRunState(maxProducts, maxPages int) *RunState {
	if maxProducts <= 0 {
		maxProducts = Unbounded
	}
	if maxPages <= 0 {
		maxPages = Unbounded
	}
	return &RunState{
		seen:        make(map[string]struct{}),
		maxProducts: maxProducts,
		maxPages:    maxPages,
	}
}

// ClaimResult reports why a claim was refused.
type ClaimResult int

const (
	Claimed ClaimResult = iota
	Duplicate
	BudgetExhausted
)

// TryClaim atomically claims a product id and one budget slot. It
// succeeds exactly once per id, and never once the product budget is
// spent. A claimed slot stays spent even if the record is later dropped,
// keeping the remaining budget monotonic.
func (rs *RunState) TryClaim(id string) ClaimResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, ok := rs.seen[id]; ok {
		return Duplicate
	}
	if rs.claimed >= rs.maxProducts {
		return BudgetExhausted
	}
	rs.seen[id] = struct{}{}
	rs.claimed++
	return Claimed
}

// TryClaimPage claims one page slot, returning false once the page
// budget is spent.
func (rs *RunState) TryClaimPage() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.pages >= rs.maxPages {
		return false
	}
	rs.pages++
	return true
}

// RecordPersisted bumps the persisted counter and returns the new total.
func (rs *RunState) RecordPersisted() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.persisted++
	return rs.persisted
}

// RemainingProducts returns how many more product slots may be claimed.
func (rs *RunState) RemainingProducts() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.maxProducts - rs.claimed
}

// RemainingPages returns how many more pages may be visited.
func (rs *RunState) RemainingPages() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.maxPages - rs.pages
}

// Exhausted reports whether the product budget is spent.
func (rs *RunState) Exhausted() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.claimed >= rs.maxProducts
}

// Persisted returns the number of records persisted so far.
func (rs *RunState) Persisted() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.persisted
}

// Pages returns the number of listing pages claimed so far.
func (rs *RunState) Pages() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.pages
}
