package prompts

import (
	"strings"
	"testing"

	"exo-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateWebAgentPrompt(t *testing.T) {
	tools := []entity.ToolDefinition{
		{
			Name:        entity.ToolScrapeWebsite,
			Description: "Scrape content from a specific website",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"url": map[string]interface{}{"type": "string", "description": "The URL to scrape"},
				},
			},
		},
		{Name: entity.ToolWebSearch, Description: "Search the web"},
	}

	prompt, err := GenerateWebAgentPrompt(WebAgentPrompt, tools)
	require.NoError(t, err)

	search := strings.Index(prompt, "- web_search: Search the web")
	scrape := strings.Index(prompt, "- scrape_website: Scrape content from a specific website")
	require.NotEqual(t, -1, search)
	require.NotEqual(t, -1, scrape)
	assert.Less(t, scrape, search, "tools are listed by name")

	assert.Contains(t, prompt, `arguments: {"url":"string, The URL to scrape"}`)
	assert.Contains(t, prompt, `{"tool": "<tool name>", "arguments": {<arguments>}}`)
	assert.Equal(t, entity.ToolScrapeWebsite, tools[0].Name, "input order is untouched")
}

func TestGenerateResearchPrompt(t *testing.T) {
	sources := []entity.ResearchSource{
		{Title: "Go", URL: "https://go.dev", Content: "Go is a language."},
		{Title: "Down", URL: "https://down.example", Error: "timeout"},
	}

	prompt, err := GenerateResearchPrompt(ResearchPrompt, "what is go", sources)
	require.NoError(t, err)

	assert.Contains(t, prompt, "Query: what is go")
	assert.Contains(t, prompt, "[1] Go (https://go.dev)\nGo is a language.")
	assert.Contains(t, prompt, "[2] Down (https://down.example)\nFailed to load: timeout")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(prompt), "Summary:"))
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := GenerateWebAgentPrompt("{{ .Missing", nil)
	assert.Error(t, err)
}
