package rod

import (
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/browser/pageparse"
)

type searchEngine struct {
	searchURL string
	parse     func(rawHTML, pageURL string, limit int) []entity.SearchResult
}

var engines = map[string]searchEngine{
	EngineGoogle: {
		searchURL: "https://www.google.com/search?q=",
		parse:     pageparse.ParseGoogleResults,
	},
	EngineDuckDuckGo: {
		searchURL: "https://html.duckduckgo.com/html/?q=",
		parse:     pageparse.ParseDuckDuckGoResults,
	},
}
