// Package openai adapts the OpenAI chat completions API, and any endpoint that
// speaks it such as OpenRouter, to the generation backend port.
package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/llm/httpx"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	BackendID    = "openai"
	OpenRouterID = "openrouter"

	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

var _ output.GenerationBackend = (*OpenAIAdapter)(nil)

type Config struct {
	// ID is reported in results and errors.
	ID      string
	Backend entity.BackendConfig
	// APIKeyEnv is consulted through Env when Backend.APIKey is empty.
	APIKeyEnv string
	Env       output.ConfigPort
	Logger    output.LoggerPort
}

func DefaultConfig() Config {
	return Config{
		ID: BackendID,
		Backend: entity.BackendConfig{
			Model:       "gpt-4o-mini",
			Temperature: entity.Float32(0.7),
			TopP:        entity.Float32(0.9),
			MaxTokens:   entity.Int(2048),
		},
		APIKeyEnv: "OPENAI_API_KEY",
	}
}

func OpenRouterConfig() Config {
	cfg := DefaultConfig()
	cfg.ID = OpenRouterID
	cfg.Backend.Model = "openai/gpt-4o-mini"
	cfg.Backend.BaseURL = OpenRouterBaseURL
	cfg.APIKeyEnv = "OPENROUTER_API_KEY"
	return cfg
}

type OpenAIAdapter struct {
	id     string
	cfg    entity.BackendConfig
	keyEnv string
	env    output.ConfigPort
	logger output.LoggerPort
	client *goopenai.Client
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	id := cfg.ID
	if id == "" {
		id = BackendID
	}
	return &OpenAIAdapter{
		id:     id,
		cfg:    cfg.Backend,
		keyEnv: cfg.APIKeyEnv,
		env:    cfg.Env,
		logger: cfg.Logger,
	}
}

// Factory returns a registry factory whose instances start from base with the
// registry-supplied options applied on top.
func Factory(base Config) output.BackendFactory {
	return func(cfg entity.BackendConfig) (output.GenerationBackend, error) {
		c := base
		c.Backend = c.Backend.Merge(cfg)
		return NewOpenAIAdapter(c), nil
	}
}

func (a *OpenAIAdapter) Name() string { return a.id }

func (a *OpenAIAdapter) Initialize(ctx context.Context, cfg entity.BackendConfig) error {
	merged := a.cfg.Merge(cfg)
	if merged.APIKey == "" && a.env != nil && a.keyEnv != "" {
		merged.APIKey = a.env.Get(a.keyEnv)
	}
	if merged.APIKey == "" {
		return entity.ConfigError("%s: api key is required, set api_key or %s", a.id, a.keyEnv)
	}
	if merged.Model == "" {
		return entity.ConfigError("%s: model is required", a.id)
	}

	clientCfg := goopenai.DefaultConfig(merged.APIKey)
	if merged.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(merged.BaseURL, "/")
	}
	clientCfg.HTTPClient = httpx.NewClient(merged.Timeout, a.logger)

	a.cfg = merged
	a.client = goopenai.NewClientWithConfig(clientCfg)

	if a.logger != nil {
		a.logger.Info("Initialized backend", "backend", a.id, "model", merged.Model)
	}
	return nil
}

func (a *OpenAIAdapter) Generate(ctx context.Context, prompt string, params entity.GenerationParams) (*entity.GenerationResult, error) {
	if a.client == nil {
		return nil, entity.UninitializedError(a.id)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, entity.ConfigError("prompt is empty")
	}

	resp, err := a.client.CreateChatCompletion(ctx, buildRequest(a.cfg, prompt, params))
	if err != nil {
		return nil, entity.NewBackendError(a.id, "generate", err)
	}
	if len(resp.Choices) == 0 {
		return nil, entity.NewBackendError(a.id, "generate", errors.New("no choices in response"))
	}

	choice := resp.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, entity.NewBackendError(a.id, "generate", fmt.Errorf("empty response, finish reason %q", choice.FinishReason))
	}

	return &entity.GenerationResult{
		Text:    choice.Message.Content,
		Backend: a.id,
		Model:   a.cfg.Model,
	}, nil
}

func (a *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	if a.client == nil {
		return nil, entity.UninitializedError(a.id)
	}

	list, err := a.client.ListModels(ctx)
	if err != nil {
		return nil, entity.NewBackendError(a.id, "list models", err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *OpenAIAdapter) ModelInfo() entity.ModelInfo {
	params := a.cfg.Params().AsMap()
	params["presence_penalty"] = a.cfg.PresencePenalty
	params["frequency_penalty"] = a.cfg.FrequencyPenalty

	return entity.ModelInfo{
		Backend:    a.id,
		Model:      a.cfg.Model,
		BaseURL:    a.cfg.BaseURL,
		Parameters: params,
	}
}

func (a *OpenAIAdapter) Close() error {
	a.client = nil
	return nil
}

// buildRequest sends the prompt as a single user message. Top-k has no
// counterpart in the chat completions API and is dropped.
func buildRequest(cfg entity.BackendConfig, prompt string, params entity.GenerationParams) goopenai.ChatCompletionRequest {
	p := cfg.Params().Merge(params)

	req := goopenai.ChatCompletionRequest{
		Model: cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		PresencePenalty:  cfg.PresencePenalty,
		FrequencyPenalty: cfg.FrequencyPenalty,
	}
	if p.Temperature != nil {
		req.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		req.TopP = *p.TopP
	}
	if p.MaxTokens != nil {
		req.MaxTokens = *p.MaxTokens
	}
	return req
}
