package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"exo-agent/internal/application/service"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/fakes"
	"exo-agent/internal/infrastructure/logger"
	"exo-agent/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBrowser() *fakes.Browser {
	return &fakes.Browser{
		Hits: []entity.SearchResult{
			{Title: "Go", URL: "https://go.dev"},
			{Title: "Missing", URL: "https://missing.example"},
		},
		Pages: map[string]*entity.ScrapeResult{
			"https://go.dev": {
				URL:     "https://go.dev",
				Content: strings.Repeat("g", 1200),
				Items:   []string{"one", "two", "three", "four", "five", "six", strings.Repeat("x", 250)},
			},
		},
		Shot: &entity.Screenshot{Data: []byte{0xff, 0xd8, 0xff}, Format: "jpeg", Width: 1024, Height: 768},
	}
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	return m
}

func TestWebSearchTool_Execute(t *testing.T) {
	browser := newBrowser()
	fetcher, err := service.NewPageFetcher(browser, service.FetcherConfig{
		Concurrency: 2,
		Retry:       retry.Policy{MaxRetries: 1},
	})
	require.NoError(t, err)
	tool := NewWebSearchTool(fetcher, logger.NewNopLogger())

	out, err := tool.Execute(context.Background(), `{"query":"golang","num_results":"2"}`)
	require.NoError(t, err)

	m := decode(t, out)
	assert.Equal(t, "golang", m["query"])
	results := m["results"].([]any)
	require.Len(t, results, 2)

	first := results[0].(string)
	assert.True(t, strings.HasPrefix(first, "From https://go.dev:\n"))
	assert.True(t, strings.HasSuffix(first, "..."))
	assert.Len(t, first, len("From https://go.dev:\n")+1000+3)

	assert.True(t, strings.HasPrefix(results[1].(string), "Error: "))
	assert.Equal(t, []string{"golang"}, browser.Queries)
}

func TestWebSearchTool_RequiresQuery(t *testing.T) {
	tool := NewWebSearchTool(nil, logger.NewNopLogger())

	_, err := tool.Execute(context.Background(), `{"num_results":3}`)
	assert.ErrorIs(t, err, entity.ErrConfiguration)

	_, err = tool.Execute(context.Background(), `not json`)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestScrapeWebsiteTool_Content(t *testing.T) {
	tool := NewScrapeWebsiteTool(newBrowser(), logger.NewNopLogger())

	out, err := tool.Execute(context.Background(), `{"url":"https://go.dev"}`)
	require.NoError(t, err)

	m := decode(t, out)
	assert.Equal(t, "https://go.dev", m["url"])
	assert.Equal(t, strings.Repeat("g", 1000)+"...", m["content"])
	assert.NotContains(t, m, "selector")
}

func TestScrapeWebsiteTool_Selector(t *testing.T) {
	tool := NewScrapeWebsiteTool(newBrowser(), logger.NewNopLogger())

	out, err := tool.Execute(context.Background(), `{"url":"https://go.dev","selector":"li"}`)
	require.NoError(t, err)

	m := decode(t, out)
	assert.Equal(t, "li", m["selector"])
	assert.Equal(t, float64(7), m["count"])
	results := m["results"].([]any)
	require.Len(t, results, maxItems)
	assert.Equal(t, "1. one", results[0])
	assert.Equal(t, "5. five", results[4])
}

func TestScrapeWebsiteTool_BrowserError(t *testing.T) {
	tool := NewScrapeWebsiteTool(newBrowser(), logger.NewNopLogger())

	_, err := tool.Execute(context.Background(), `{"url":"https://missing.example"}`)
	assert.ErrorIs(t, err, entity.ErrBrowser)
}

func TestScreenshotTool_WritesFile(t *testing.T) {
	tool := NewScreenshotTool(newBrowser(), logger.NewNopLogger())
	path := filepath.Join(t.TempDir(), "shot.jpg")

	out, err := tool.Execute(context.Background(), `{"url":"https://go.dev","path":"`+path+`"}`)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

	m := decode(t, out)
	assert.Equal(t, float64(1024), m["width"])
	assert.Equal(t, float64(3), m["bytes"])
}

func TestScreenshotTool_RequiresPath(t *testing.T) {
	tool := NewScreenshotTool(newBrowser(), logger.NewNopLogger())

	_, err := tool.Execute(context.Background(), `{"url":"https://go.dev"}`)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 3))
	assert.Equal(t, "ab...", clip("abc", 2))
	assert.Equal(t, "пр...", clip("привет", 2))
}

func TestFirstItems(t *testing.T) {
	items := firstItems([]string{strings.Repeat("a", 201), "b"})
	assert.Equal(t, strings.Repeat("a", 200)+"...", items[0])
	assert.Equal(t, "b", items[1])
}
