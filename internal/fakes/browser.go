// Package fakes holds in-memory port implementations shared by tests.
package fakes

import (
	"context"
	"fmt"
	"sync"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
)

var _ output.BrowserPort = (*Browser)(nil)

// Browser serves canned pages and search hits. Pages missing from Pages fail
// with entity.ErrBrowser.
type Browser struct {
	Hits      []entity.SearchResult
	SearchErr error
	Pages     map[string]*entity.ScrapeResult
	// FailFirst makes the first n visits of a URL fail before it is served.
	FailFirst map[string]int
	Shot      *entity.Screenshot

	mu      sync.Mutex
	visits  map[string]int
	Queries []string
	Closed  bool
}

func (b *Browser) Scrape(ctx context.Context, url, selector, waitFor string) (*entity.ScrapeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.visits == nil {
		b.visits = make(map[string]int)
	}
	b.visits[url]++
	n := b.visits[url]
	b.mu.Unlock()

	if n <= b.FailFirst[url] {
		return nil, fmt.Errorf("%w: transient failure %d for %s", entity.ErrBrowser, n, url)
	}

	page, ok := b.Pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: no page at %s", entity.ErrBrowser, url)
	}
	res := *page
	res.Selector = selector
	if selector == "" {
		res.Items = nil
	} else {
		res.Content = ""
	}
	return &res, nil
}

func (b *Browser) Search(ctx context.Context, query string, limit int) ([]entity.SearchResult, error) {
	b.mu.Lock()
	b.Queries = append(b.Queries, query)
	b.mu.Unlock()

	if b.SearchErr != nil {
		return nil, b.SearchErr
	}
	hits := b.Hits
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (b *Browser) Screenshot(ctx context.Context, url string) (*entity.Screenshot, error) {
	if b.Shot == nil {
		return nil, fmt.Errorf("%w: screenshot unavailable", entity.ErrBrowser)
	}
	return b.Shot, nil
}

func (b *Browser) Close() {
	b.mu.Lock()
	b.Closed = true
	b.mu.Unlock()
}

// Visits reports how many times url was scraped.
func (b *Browser) Visits(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visits[url]
}
