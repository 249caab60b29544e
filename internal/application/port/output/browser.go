package output

import (
	"context"

	"exo-agent/internal/domain/entity"
)

// BrowserPort is safe for concurrent use: every call runs on its own page.
type BrowserPort interface {
	Scrape(ctx context.Context, url, selector, waitFor string) (*entity.ScrapeResult, error)
	Search(ctx context.Context, query string, limit int) ([]entity.SearchResult, error)
	Screenshot(ctx context.Context, url string) (*entity.Screenshot, error)

	Close()
}
