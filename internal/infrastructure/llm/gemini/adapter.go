// Package gemini adapts the Google Gemini API to the generation backend port.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/llm/httpx"

	"google.golang.org/genai"
)

const BackendID = "gemini"

// Both variables are accepted, GOOGLE_API_KEY first.
var apiKeyEnvs = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}

var _ output.GenerationBackend = (*GeminiAdapter)(nil)

type Config struct {
	Backend entity.BackendConfig
	Env     output.ConfigPort
	Logger  output.LoggerPort
}

func DefaultConfig() Config {
	return Config{
		Backend: entity.BackendConfig{
			Model:       "gemini-2.0-flash",
			Temperature: entity.Float32(0.7),
			TopP:        entity.Float32(0.9),
			TopK:        entity.Int(40),
			MaxTokens:   entity.Int(2048),
		},
	}
}

type GeminiAdapter struct {
	cfg    entity.BackendConfig
	env    output.ConfigPort
	logger output.LoggerPort
	client *genai.Client
	safety []*genai.SafetySetting
}

func NewGeminiAdapter(cfg Config) *GeminiAdapter {
	return &GeminiAdapter{
		cfg:    cfg.Backend,
		env:    cfg.Env,
		logger: cfg.Logger,
	}
}

func Factory(base Config) output.BackendFactory {
	return func(cfg entity.BackendConfig) (output.GenerationBackend, error) {
		c := base
		c.Backend = c.Backend.Merge(cfg)
		return NewGeminiAdapter(c), nil
	}
}

func (a *GeminiAdapter) Name() string { return BackendID }

func (a *GeminiAdapter) Initialize(ctx context.Context, cfg entity.BackendConfig) error {
	merged := a.cfg.Merge(cfg)
	if merged.APIKey == "" && a.env != nil {
		for _, key := range apiKeyEnvs {
			if v := a.env.Get(key); v != "" {
				merged.APIKey = v
				break
			}
		}
	}
	if merged.APIKey == "" {
		return entity.ConfigError("%s: api key is required, set api_key or %s", BackendID, strings.Join(apiKeyEnvs, "/"))
	}
	if merged.Model == "" {
		return entity.ConfigError("%s: model is required", BackendID)
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     merged.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpx.NewClient(merged.Timeout, a.logger),
	}
	if merged.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = merged.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return entity.NewBackendError(BackendID, "initialize", err)
	}

	a.cfg = merged
	a.client = client
	a.safety = safetySettings(merged.Extra["safety_threshold"])

	if a.logger != nil {
		a.logger.Info("Initialized backend", "backend", BackendID, "model", merged.Model)
	}
	return nil
}

func (a *GeminiAdapter) Generate(ctx context.Context, prompt string, params entity.GenerationParams) (*entity.GenerationResult, error) {
	if a.client == nil {
		return nil, entity.UninitializedError(BackendID)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, entity.ConfigError("prompt is empty")
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.cfg.Model, genai.Text(prompt), a.contentConfig(params))
	if err != nil {
		return nil, entity.NewBackendError(BackendID, "generate", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, entity.NewBackendError(BackendID, "generate", emptyReason(resp))
	}

	return &entity.GenerationResult{
		Text:    text,
		Backend: BackendID,
		Model:   a.cfg.Model,
	}, nil
}

func (a *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	if a.client == nil {
		return nil, entity.UninitializedError(BackendID)
	}

	var names []string
	for model, err := range a.client.Models.All(ctx) {
		if err != nil {
			return nil, entity.NewBackendError(BackendID, "list models", err)
		}
		names = append(names, strings.TrimPrefix(model.Name, "models/"))
	}
	sort.Strings(names)
	return names, nil
}

func (a *GeminiAdapter) ModelInfo() entity.ModelInfo {
	return entity.ModelInfo{
		Backend:    BackendID,
		Model:      a.cfg.Model,
		BaseURL:    a.cfg.BaseURL,
		Parameters: a.cfg.Params().AsMap(),
	}
}

// Close drops the client; genai clients hold no resources of their own.
func (a *GeminiAdapter) Close() error {
	a.client = nil
	return nil
}

func (a *GeminiAdapter) contentConfig(params entity.GenerationParams) *genai.GenerateContentConfig {
	p := a.cfg.Params().Merge(params)

	gc := &genai.GenerateContentConfig{
		Temperature:    p.Temperature,
		TopP:           p.TopP,
		SafetySettings: a.safety,
	}
	if p.TopK != nil {
		gc.TopK = genai.Ptr(float32(*p.TopK))
	}
	if p.MaxTokens != nil {
		gc.MaxOutputTokens = int32(*p.MaxTokens)
	}
	if a.cfg.PresencePenalty != 0 {
		gc.PresencePenalty = genai.Ptr(a.cfg.PresencePenalty)
	}
	if a.cfg.FrequencyPenalty != 0 {
		gc.FrequencyPenalty = genai.Ptr(a.cfg.FrequencyPenalty)
	}
	return gc
}

// emptyReason explains a response that carries no text: a blocked prompt or the
// finish reason of the first candidate.
func emptyReason(resp *genai.GenerateContentResponse) error {
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		if fb.BlockReasonMessage != "" {
			return fmt.Errorf("prompt blocked: %s (%s)", fb.BlockReason, fb.BlockReasonMessage)
		}
		return fmt.Errorf("prompt blocked: %s", fb.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil && resp.Candidates[0].FinishReason != "" {
		return fmt.Errorf("empty response, finish reason %s", resp.Candidates[0].FinishReason)
	}
	return errors.New("empty response")
}

// safetySettings blocks medium-and-above harm in the four core categories unless
// another threshold name is given.
func safetySettings(threshold string) []*genai.SafetySetting {
	t := genai.HarmBlockThresholdBlockMediumAndAbove
	if threshold != "" {
		t = genai.HarmBlockThreshold(strings.ToUpper(threshold))
	}

	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{Category: c, Threshold: t})
	}
	return settings
}
