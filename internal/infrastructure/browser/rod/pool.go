package rod

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
	"golang.org/x/sync/semaphore"
)

// pagePool hands out at most size pages at a time. Idle pages are reused; a slot
// whose page could not be created is released again.
type pagePool struct {
	slots  *semaphore.Weighted
	create func() (*rod.Page, error)

	mu   sync.Mutex
	idle []*rod.Page
}

func newPagePool(size int, create func() (*rod.Page, error)) *pagePool {
	return &pagePool{
		slots:  semaphore.NewWeighted(int64(size)),
		create: create,
	}
}

// get waits for a free slot until ctx is done.
func (p *pagePool) get(ctx context.Context) (*rod.Page, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		page := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return page, nil
	}
	p.mu.Unlock()

	page, err := p.create()
	if err != nil {
		p.slots.Release(1)
		return nil, err
	}
	return page, nil
}

// put returns a page taken with get. A nil page only frees the slot.
func (p *pagePool) put(page *rod.Page) {
	if page != nil {
		p.mu.Lock()
		p.idle = append(p.idle, page)
		p.mu.Unlock()
	}
	p.slots.Release(1)
}

// drain removes every idle page and passes it to fn.
func (p *pagePool) drain(fn func(*rod.Page)) {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, page := range idle {
		fn(page)
	}
}
