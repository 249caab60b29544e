// Package research builds a sourced summary for a query: search, visit each hit,
// then ask a backend to summarize what was found.
package research

import (
	"context"
	"fmt"
	"strings"

	"exo-agent/internal/application/port/input"
	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/browser/pageparse"
	"exo-agent/internal/infrastructure/prompts"
)

var _ input.Researcher = (*UseCase)(nil)

type Completer interface {
	Generate(ctx context.Context, backendID string, req entity.GenerationRequest) (*entity.GenerationResult, error)
}

type PageFetcher interface {
	SearchAndFetch(ctx context.Context, query string, limit int) ([]entity.FetchedPage, error)
}

type Config struct {
	BackendID string
	// MaxSourceLength caps each source's text in the summary prompt, in runes.
	MaxSourceLength int
	Params          entity.GenerationParams
}

func DefaultConfig() Config {
	return Config{MaxSourceLength: 3000}
}

type UseCase struct {
	completer Completer
	fetcher   PageFetcher
	logger    output.LoggerPort
	cfg       Config
}

func New(completer Completer, fetcher PageFetcher, logger output.LoggerPort, cfg Config) *UseCase {
	return &UseCase{
		completer: completer,
		fetcher:   fetcher,
		logger:    logger,
		cfg:       cfg,
	}
}

// Research fails only when the search or the summary fails. Sources that could
// not be loaded stay in the report with their error.
func (uc *UseCase) Research(ctx context.Context, query string, maxResults int) (*entity.ResearchReport, error) {
	if strings.TrimSpace(query) == "" {
		return nil, entity.ConfigError("research query is empty")
	}
	if maxResults < 1 {
		return nil, entity.ConfigError("max results must be at least 1, got %d", maxResults)
	}

	log := uc.logger.WithField("query", query)
	log.Info("Research started", "maxResults", maxResults)

	pages, err := uc.fetcher.SearchAndFetch(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	report := &entity.ResearchReport{
		Query:   query,
		Sources: make([]entity.ResearchSource, len(pages)),
	}
	loaded := 0
	for i, p := range pages {
		src := entity.ResearchSource{Title: p.Hit.Title, URL: p.Hit.URL}
		if p.Err != nil {
			src.Error = p.Err.Error()
		} else {
			src.Content = pageparse.Truncate(p.Page.Content, uc.cfg.MaxSourceLength)
			loaded++
		}
		report.Sources[i] = src
	}

	if loaded == 0 {
		log.Warn("No sources could be loaded", "hits", len(pages))
		report.Summary = "No sources could be loaded for this query."
		return report, nil
	}

	prompt, err := prompts.GenerateResearchPrompt(prompts.ResearchPrompt, query, report.Sources)
	if err != nil {
		return nil, fmt.Errorf("render research prompt: %w", err)
	}

	res, err := uc.completer.Generate(ctx, uc.cfg.BackendID, entity.GenerationRequest{
		Prompt: prompt,
		Params: uc.cfg.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	report.Summary = strings.TrimSpace(res.Text)

	log.Info("Research completed", "sources", len(pages), "loaded", loaded)
	return report, nil
}
