// Package ollama adapts a local or self-hosted Ollama server to the generation
// backend port. Generation goes through langchaingo; the model catalogue is read
// with the Ollama API client.
package ollama

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/llm/httpx"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/tmc/langchaingo/llms"
	lcollama "github.com/tmc/langchaingo/llms/ollama"
)

const (
	BackendID      = "ollama"
	DefaultBaseURL = "http://localhost:11434"

	defaultNumCtx        = 4096
	defaultRepeatPenalty = 1.1
)

var _ output.GenerationBackend = (*OllamaAdapter)(nil)

type Config struct {
	Backend entity.BackendConfig
	Logger  output.LoggerPort
}

func DefaultConfig() Config {
	return Config{
		Backend: entity.BackendConfig{
			Model:       "llama3",
			BaseURL:     DefaultBaseURL,
			Temperature: entity.Float32(0.7),
			TopP:        entity.Float32(0.9),
			TopK:        entity.Int(40),
		},
	}
}

type OllamaAdapter struct {
	cfg    entity.BackendConfig
	logger output.LoggerPort

	llm     *lcollama.LLM
	catalog *ollamaapi.Client

	numCtx        int
	repeatPenalty float64
}

func NewOllamaAdapter(cfg Config) *OllamaAdapter {
	return &OllamaAdapter{
		cfg:    cfg.Backend,
		logger: cfg.Logger,
	}
}

func Factory(base Config) output.BackendFactory {
	return func(cfg entity.BackendConfig) (output.GenerationBackend, error) {
		c := base
		c.Backend = c.Backend.Merge(cfg)
		return NewOllamaAdapter(c), nil
	}
}

func (a *OllamaAdapter) Name() string { return BackendID }

// Initialize needs no credentials. Extra accepts num_ctx, repeat_penalty and
// keep_alive.
func (a *OllamaAdapter) Initialize(ctx context.Context, cfg entity.BackendConfig) error {
	merged := a.cfg.Merge(cfg)
	if merged.Model == "" {
		return entity.ConfigError("%s: model is required", BackendID)
	}
	if merged.BaseURL == "" {
		merged.BaseURL = DefaultBaseURL
	}

	base, err := url.Parse(merged.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return entity.ConfigError("%s: invalid base_url %q", BackendID, merged.BaseURL)
	}

	numCtx, err := extraInt(merged.Extra, "num_ctx", defaultNumCtx)
	if err != nil {
		return err
	}
	repeatPenalty, err := extraFloat(merged.Extra, "repeat_penalty", defaultRepeatPenalty)
	if err != nil {
		return err
	}

	httpClient := httpx.NewClient(merged.Timeout, a.logger)

	opts := []lcollama.Option{
		lcollama.WithModel(merged.Model),
		lcollama.WithServerURL(merged.BaseURL),
		lcollama.WithHTTPClient(httpClient),
		lcollama.WithRunnerNumCtx(numCtx),
	}
	if keepAlive := merged.Extra["keep_alive"]; keepAlive != "" {
		opts = append(opts, lcollama.WithKeepAlive(keepAlive))
	}

	llm, err := lcollama.New(opts...)
	if err != nil {
		return entity.NewBackendError(BackendID, "initialize", err)
	}

	a.cfg = merged
	a.llm = llm
	a.catalog = ollamaapi.NewClient(base, httpClient)
	a.numCtx = numCtx
	a.repeatPenalty = repeatPenalty

	if a.logger != nil {
		a.logger.Info("Initialized backend", "backend", BackendID, "model", merged.Model, "baseURL", merged.BaseURL)
	}
	return nil
}

func (a *OllamaAdapter) Generate(ctx context.Context, prompt string, params entity.GenerationParams) (*entity.GenerationResult, error) {
	if a.llm == nil {
		return nil, entity.UninitializedError(BackendID)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, entity.ConfigError("prompt is empty")
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, a.llm, prompt, a.callOptions(params)...)
	if err != nil {
		return nil, entity.NewBackendError(BackendID, "generate", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, entity.NewBackendError(BackendID, "generate", errors.New("empty response"))
	}

	return &entity.GenerationResult{
		Text:    text,
		Backend: BackendID,
		Model:   a.cfg.Model,
	}, nil
}

// ListModels reports the models pulled on the server.
func (a *OllamaAdapter) ListModels(ctx context.Context) ([]string, error) {
	if a.catalog == nil {
		return nil, entity.UninitializedError(BackendID)
	}

	resp, err := a.catalog.List(ctx)
	if err != nil {
		return nil, entity.NewBackendError(BackendID, "list models", err)
	}

	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (a *OllamaAdapter) ModelInfo() entity.ModelInfo {
	params := a.cfg.Params().AsMap()
	if a.numCtx > 0 {
		params["num_ctx"] = a.numCtx
		params["repeat_penalty"] = a.repeatPenalty
	}
	return entity.ModelInfo{
		Backend:    BackendID,
		Model:      a.cfg.Model,
		BaseURL:    a.cfg.BaseURL,
		Parameters: params,
	}
}

func (a *OllamaAdapter) Close() error {
	a.llm = nil
	a.catalog = nil
	return nil
}

func (a *OllamaAdapter) callOptions(params entity.GenerationParams) []llms.CallOption {
	p := a.cfg.Params().Merge(params)

	opts := []llms.CallOption{llms.WithRepetitionPenalty(a.repeatPenalty)}
	if p.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*p.Temperature)))
	}
	if p.TopP != nil {
		opts = append(opts, llms.WithTopP(float64(*p.TopP)))
	}
	if p.TopK != nil {
		opts = append(opts, llms.WithTopK(*p.TopK))
	}
	if p.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*p.MaxTokens))
	}
	return opts
}

func extraInt(extra map[string]string, key string, def int) (int, error) {
	raw, ok := extra[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, entity.ConfigError("%s: %s must be a positive integer, got %q", BackendID, key, raw)
	}
	return v, nil
}

func extraFloat(extra map[string]string, key string, def float64) (float64, error) {
	raw, ok := extra[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, entity.ConfigError("%s: %s must be a non-negative number, got %q", BackendID, key, raw)
	}
	return v, nil
}
