// Package huggingface adapts the hosted HuggingFace Inference API to the
// generation backend port.
package huggingface

import (
	"context"
	"errors"
	"strings"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/llm/httpx"

	"github.com/tmc/langchaingo/llms"
	lchf "github.com/tmc/langchaingo/llms/huggingface"
)

const BackendID = "huggingface"

var tokenEnvs = []string{"HF_TOKEN", "HUGGINGFACEHUB_API_TOKEN"}

// The Inference API has no listing endpoint; these are the text-generation
// models the backend is known to work with.
var knownModels = []string{
	"google/gemma-2b-it",
	"google/gemma-7b-it",
	"meta-llama/Llama-2-13b-chat-hf",
	"meta-llama/Llama-2-70b-chat-hf",
	"meta-llama/Llama-2-7b-chat-hf",
	"mistralai/Mistral-7B-Instruct-v0.1",
	"mistralai/Mixtral-8x7B-Instruct-v0.1",
}

var _ output.GenerationBackend = (*HuggingFaceAdapter)(nil)

type Config struct {
	Backend entity.BackendConfig
	Env     output.ConfigPort
	Logger  output.LoggerPort
}

func DefaultConfig() Config {
	return Config{
		Backend: entity.BackendConfig{
			Model:       "mistralai/Mistral-7B-Instruct-v0.1",
			Temperature: entity.Float32(0.7),
			TopP:        entity.Float32(0.9),
			MaxTokens:   entity.Int(2048),
		},
	}
}

type HuggingFaceAdapter struct {
	cfg    entity.BackendConfig
	env    output.ConfigPort
	logger output.LoggerPort
	llm    *lchf.LLM
}

func NewHuggingFaceAdapter(cfg Config) *HuggingFaceAdapter {
	return &HuggingFaceAdapter{
		cfg:    cfg.Backend,
		env:    cfg.Env,
		logger: cfg.Logger,
	}
}

func Factory(base Config) output.BackendFactory {
	return func(cfg entity.BackendConfig) (output.GenerationBackend, error) {
		c := base
		c.Backend = c.Backend.Merge(cfg)
		return NewHuggingFaceAdapter(c), nil
	}
}

func (a *HuggingFaceAdapter) Name() string { return BackendID }

// Initialize accepts Extra["provider"] to route through an inference provider.
func (a *HuggingFaceAdapter) Initialize(ctx context.Context, cfg entity.BackendConfig) error {
	merged := a.cfg.Merge(cfg)
	if merged.APIKey == "" && a.env != nil {
		for _, key := range tokenEnvs {
			if v := a.env.Get(key); v != "" {
				merged.APIKey = v
				break
			}
		}
	}
	if merged.Model == "" {
		return entity.ConfigError("%s: model is required", BackendID)
	}

	opts := []lchf.Option{
		lchf.WithModel(merged.Model),
		lchf.WithHTTPClient(httpx.NewClient(merged.Timeout, a.logger)),
	}
	if merged.APIKey != "" {
		opts = append(opts, lchf.WithToken(merged.APIKey))
	}
	if merged.BaseURL != "" {
		opts = append(opts, lchf.WithURL(strings.TrimRight(merged.BaseURL, "/")))
	}
	if provider := merged.Extra["provider"]; provider != "" {
		opts = append(opts, lchf.WithInferenceProvider(provider))
	}

	llm, err := lchf.New(opts...)
	if errors.Is(err, lchf.ErrMissingToken) {
		return entity.ConfigError("%s: api key is required, set api_key or %s", BackendID, strings.Join(tokenEnvs, "/"))
	}
	if err != nil {
		return entity.NewBackendError(BackendID, "initialize", err)
	}

	a.cfg = merged
	a.llm = llm

	if a.logger != nil {
		a.logger.Info("Initialized backend", "backend", BackendID, "model", merged.Model)
	}
	return nil
}

func (a *HuggingFaceAdapter) Generate(ctx context.Context, prompt string, params entity.GenerationParams) (*entity.GenerationResult, error) {
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

	text = stripEcho(text, prompt)
	if strings.TrimSpace(text) == "" {
		return nil, entity.NewBackendError(BackendID, "generate", errors.New("empty response, model only repeated the prompt"))
	}

	return &entity.GenerationResult{
		Text:    text,
		Backend: BackendID,
		Model:   a.cfg.Model,
	}, nil
}

func (a *HuggingFaceAdapter) ListModels(ctx context.Context) ([]string, error) {
	if a.llm == nil {
		return nil, entity.UninitializedError(BackendID)
	}
	models := make([]string, len(knownModels))
	copy(models, knownModels)
	return models, nil
}

func (a *HuggingFaceAdapter) ModelInfo() entity.ModelInfo {
	return entity.ModelInfo{
		Backend:    BackendID,
		Model:      a.cfg.Model,
		BaseURL:    a.cfg.BaseURL,
		Parameters: a.cfg.Params().AsMap(),
	}
}

func (a *HuggingFaceAdapter) Close() error {
	a.llm = nil
	return nil
}

func (a *HuggingFaceAdapter) callOptions(params entity.GenerationParams) []llms.CallOption {
	p := a.cfg.Params().Merge(params)

	var opts []llms.CallOption
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
		opts = append(opts, llms.WithMaxLength(*p.MaxTokens))
	}
	return opts
}

// stripEcho removes the prompt that text-generation models repeat at the start
// of their output.
func stripEcho(text, prompt string) string {
	if strings.HasPrefix(text, prompt) {
		return strings.TrimSpace(text[len(prompt):])
	}
	return text
}
