package page

import (
	"context"
	"sync"

	"arnime/internal/model"
)

// MaxPages bounds browse pagination
const MaxPages = 3

// PageFetcher loads one page of a list
type PageFetcher func(ctx context.Context, page int) ([]model.AnimeSummary, error)

// Result is one fetched page
type Result struct {
	Items   []model.AnimeSummary `json:"items"`
	Page    int                  `json:"page"`
	HasMore bool                 `json:"hasMore"`
}

// FetchPage loads page n. Past MaxPages it answers without fetching.
func FetchPage(ctx context.Context, n int, fetch PageFetcher) (Result, error) {
	if n < 1 {
		n = 1
	}
	if n > MaxPages {
		return Result{Items: []model.AnimeSummary{}, Page: n, HasMore: false}, nil
	}

	items, err := fetch(ctx, n)
	if err != nil {
		return Result{Page: n}, err
	}
	if items == nil {
		items = []model.AnimeSummary{}
	}
	return Result{Items: items, Page: n, HasMore: n < MaxPages && len(items) > 0}, nil
}

// Pager accumulates pages of one list for infinite scroll
type Pager struct {
	mu      sync.Mutex
	fetch   PageFetcher
	items   []model.AnimeSummary
	page    int
	hasMore bool
	loading bool
}

// NewPager creates a pager positioned before page 1
func NewPager(fetch PageFetcher) *Pager {
	return &Pager{fetch: fetch, hasMore: true, items: []model.AnimeSummary{}}
}

// LoadMore fetches the next page. It does nothing while a fetch is in
// flight or once no more pages remain, and reports whether it fetched.
func (p *Pager) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return false, nil
	}
	p.loading = true
	next := p.page + 1
	p.mu.Unlock()

	res, err := FetchPage(ctx, next, p.fetch)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if err != nil {
		return true, err
	}
	p.page = res.Page
	p.items = append(p.items, res.Items...)
	p.hasMore = res.HasMore
	return true, nil
}

// Items returns everything loaded so far
func (p *Pager) Items() []model.AnimeSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.AnimeSummary(nil), p.items...)
}

// Page returns the last loaded page number
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// HasMore reports whether another page may be fetched
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}
