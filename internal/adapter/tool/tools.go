// Package tool exposes browser capabilities as model-callable tools. Each tool
// takes its arguments as a JSON object and answers with a JSON document.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
)

const (
	defaultNumResults = 3
	maxNumResults     = 10
	maxContentChars   = 1000
	maxItems          = 5
	maxItemChars      = 200
)

// PageFetcher searches and visits the hits.
type PageFetcher interface {
	SearchAndFetch(ctx context.Context, query string, limit int) ([]entity.FetchedPage, error)
}

var (
	_ output.ToolPort = (*WebSearchTool)(nil)
	_ output.ToolPort = (*ScrapeWebsiteTool)(nil)
	_ output.ToolPort = (*ScreenshotTool)(nil)
)

type WebSearchTool struct {
	fetcher PageFetcher
	logger  output.LoggerPort
}

func NewWebSearchTool(fetcher PageFetcher, logger output.LoggerPort) *WebSearchTool {
	return &WebSearchTool{fetcher: fetcher, logger: logger}
}

func (t *WebSearchTool) Name() entity.ToolName { return entity.ToolWebSearch }
func (t *WebSearchTool) Description() string {
	return "Search the web for information on a specific topic. Returns the text of the top results."
}
func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
			"num_results": map[string]interface{}{
				"type":        "integer",
				"description": "Number of results to return",
				"default":     defaultNumResults,
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Query      string  `json:"query"`
		NumResults flexInt `json:"num_results"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", entity.ConfigError("query is required")
	}

	n := int(input.NumResults)
	if n < 1 {
		n = defaultNumResults
	}
	if n > maxNumResults {
		n = maxNumResults
	}

	t.logger.Info("Web search", "query", input.Query, "numResults", n)

	pages, err := t.fetcher.SearchAndFetch(ctx, input.Query, n)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}

	results := make([]string, 0, len(pages))
	for _, p := range pages {
		switch {
		case p.Err != nil:
			results = append(results, "Error: "+p.Err.Error())
		case p.Page.Count() > 0:
			results = append(results, fmt.Sprintf("From %s (%d results):", p.Hit.URL, p.Page.Count()))
			for i, item := range firstItems(p.Page.Items) {
				results = append(results, fmt.Sprintf("  %d. %s", i+1, item))
			}
		default:
			results = append(results, fmt.Sprintf("From %s:\n%s", p.Hit.URL, clip(p.Page.Content, maxContentChars)))
		}
	}

	return encode(map[string]any{
		"query":   input.Query,
		"results": results,
	})
}

type ScrapeWebsiteTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewScrapeWebsiteTool(browser output.BrowserPort, logger output.LoggerPort) *ScrapeWebsiteTool {
	return &ScrapeWebsiteTool{browser: browser, logger: logger}
}

func (t *ScrapeWebsiteTool) Name() entity.ToolName { return entity.ToolScrapeWebsite }
func (t *ScrapeWebsiteTool) Description() string {
	return "Scrape content from a specific website. Pass a CSS selector to get only the matching elements."
}
func (t *ScrapeWebsiteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to scrape",
			},
			"selector": map[string]interface{}{
				"type":        "string",
				"description": "CSS selector to target specific elements",
			},
		},
		"required": []string{"url"},
	}
}

func (t *ScrapeWebsiteTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		URL      string `json:"url"`
		Selector string `json:"selector"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.URL) == "" {
		return "", entity.ConfigError("url is required")
	}

	t.logger.Info("Scraping website", "url", input.URL, "selector", input.Selector)

	page, err := t.browser.Scrape(ctx, input.URL, input.Selector, "")
	if err != nil {
		return "", err
	}

	if input.Selector == "" {
		return encode(map[string]any{
			"url":     input.URL,
			"content": clip(page.Content, maxContentChars),
		})
	}

	items := firstItems(page.Items)
	numbered := make([]string, len(items))
	for i, item := range items {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return encode(map[string]any{
		"url":      input.URL,
		"selector": input.Selector,
		"count":    page.Count(),
		"results":  numbered,
	})
}

type ScreenshotTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewScreenshotTool(browser output.BrowserPort, logger output.LoggerPort) *ScreenshotTool {
	return &ScreenshotTool{browser: browser, logger: logger}
}

func (t *ScreenshotTool) Name() entity.ToolName { return entity.ToolScreenshot }
func (t *ScreenshotTool) Description() string {
	return "Take a full-page screenshot of a website and save it as a JPEG file."
}
func (t *ScreenshotTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to capture",
			},
			"path": map[string]interface{}{
				"type":        "string",
				"description": "File to write the JPEG to",
			},
		},
		"required": []string{"url", "path"},
	}
}

func (t *ScreenshotTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		URL  string `json:"url"`
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if input.URL == "" || input.Path == "" {
		return "", entity.ConfigError("url and path are required")
	}

	shot, err := t.browser.Screenshot(ctx, input.URL)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(input.Path, shot.Data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}

	t.logger.Info("Screenshot saved", "url", input.URL, "path", input.Path, "bytes", len(shot.Data))

	return encode(map[string]any{
		"url":    input.URL,
		"path":   input.Path,
		"width":  shot.Width,
		"height": shot.Height,
		"bytes":  len(shot.Data),
	})
}

func decodeArgs(args string, v any) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return entity.ConfigError("invalid tool arguments: %v", err)
	}
	return nil
}

func encode(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func firstItems(items []string) []string {
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = clip(item, maxItemChars)
	}
	return out
}

// clip cuts s to max runes and marks the cut with "...".
func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// flexInt accepts both 3 and "3"; models emit either.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not an integer: %s", data)
	}
	*n = flexInt(v)
	return nil
}
