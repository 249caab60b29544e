package rod

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"exo-agent/internal/domain/entity"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// crashedClient fails every CDP call, like a browser whose target died.
type crashedClient struct {
	calls atomic.Int32
}

func (c *crashedClient) Event() <-chan *cdp.Event { return make(chan *cdp.Event) }

func (c *crashedClient) Call(ctx context.Context, sessionID, method string, params interface{}) ([]byte, error) {
	c.calls.Add(1)
	return nil, errors.New("target crashed")
}

func TestPagePool_FailedCreateFreesSlot(t *testing.T) {
	var created atomic.Int32
	pool := newPagePool(2, func() (*rod.Page, error) {
		created.Add(1)
		return nil, errors.New("target crashed")
	})

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		_, err := pool.get(ctx)
		cancel()
		require.Error(t, err)
		assert.NotErrorIs(t, err, context.DeadlineExceeded, "call %d", i)
	}
	assert.Equal(t, int32(5), created.Load())
}

func TestPagePool_ReusesIdlePages(t *testing.T) {
	var created atomic.Int32
	pool := newPagePool(1, func() (*rod.Page, error) {
		created.Add(1)
		return &rod.Page{}, nil
	})

	page, err := pool.get(context.Background())
	require.NoError(t, err)
	pool.put(page)

	again, err := pool.get(context.Background())
	require.NoError(t, err)
	assert.Same(t, page, again)
	assert.Equal(t, int32(1), created.Load())

	pool.put(again)
	var drained []*rod.Page
	pool.drain(func(p *rod.Page) { drained = append(drained, p) })
	assert.Equal(t, []*rod.Page{page}, drained)
}

func TestPagePool_WaitHonoursContext(t *testing.T) {
	pool := newPagePool(1, func() (*rod.Page, error) { return &rod.Page{}, nil })

	held, err := pool.get(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = pool.get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	pool.put(held)
	_, err = pool.get(context.Background())
	assert.NoError(t, err)
}

func TestBrowserAdapter_CrashedBrowserDoesNotExhaustPool(t *testing.T) {
	client := &crashedClient{}
	cfg := DefaultConfig()
	cfg.PoolSize = 2
	b := newAdapter(rod.New().Client(client), nil, cfg)

	for i := 0; i < 4; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		done := make(chan error, 1)
		go func() {
			_, err := b.Scrape(ctx, "http://example.test", "", "")
			done <- err
		}()

		select {
		case err := <-done:
			require.Error(t, err)
			assert.ErrorIs(t, err, entity.ErrBrowser)
			assert.Contains(t, err.Error(), "target crashed")
		case <-time.After(2 * time.Second):
			t.Fatalf("scrape %d blocked on an exhausted page pool", i)
		}
		cancel()
	}
	assert.GreaterOrEqual(t, client.calls.Load(), int32(4))
}
