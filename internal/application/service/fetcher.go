package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/batch"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/retry"
)

type FetcherConfig struct {
	Concurrency int
	Retry       retry.Policy
	// Interval is the minimum spacing between page visits. Zero disables pacing.
	Interval time.Duration
	Logger   output.LoggerPort
}

// PageFetcher searches and then visits the hits with bounded concurrency,
// retrying each visit and pacing them with a shared limiter.
type PageFetcher struct {
	browser output.BrowserPort
	cfg     FetcherConfig
	limiter *rate.Limiter
}

func NewPageFetcher(browser output.BrowserPort, cfg FetcherConfig) (*PageFetcher, error) {
	if cfg.Concurrency < 1 {
		return nil, entity.ConfigError("fetch concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}

	return &PageFetcher{
		browser: browser,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// SearchAndFetch returns one entry per search hit, in search order. Only a
// failed search is returned as an error; failed visits are kept in their entry.
func (f *PageFetcher) SearchAndFetch(ctx context.Context, query string, limit int) ([]entity.FetchedPage, error) {
	hits, err := f.browser.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return f.Fetch(ctx, hits)
}

func (f *PageFetcher) Fetch(ctx context.Context, hits []entity.SearchResult) ([]entity.FetchedPage, error) {
	ops := make([]batch.Op[*entity.ScrapeResult], len(hits))
	for i, hit := range hits {
		ops[i] = func(ctx context.Context) (*entity.ScrapeResult, error) {
			return retry.Do(ctx, f.cfg.Retry, func(ctx context.Context) (*entity.ScrapeResult, error) {
				if err := f.limiter.Wait(ctx); err != nil {
					return nil, err
				}
				return f.browser.Scrape(ctx, hit.URL, "", "")
			})
		}
	}

	results, err := batch.Run(ctx, f.cfg.Concurrency, ops)
	if err != nil {
		return nil, err
	}

	pages := make([]entity.FetchedPage, len(hits))
	for i, res := range results {
		pages[i] = entity.FetchedPage{Hit: hits[i], Page: res.Value, Err: res.Err}
		if res.Err != nil && f.cfg.Logger != nil {
			f.cfg.Logger.Warn("Page fetch failed", "url", hits[i].URL, "error", res.Err)
		}
	}
	if f.cfg.Logger != nil {
		f.cfg.Logger.Debug("Pages fetched", "loaded", len(batch.Values(results)), "total", len(hits))
	}
	return pages, nil
}
