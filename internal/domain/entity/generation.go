package entity

import (
	"strings"
	"time"
)

// GenerationParams holds sampling hints. A nil field means "use the backend default";
// backends may ignore or clamp any of them.
type GenerationParams struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Merge returns a copy of p with every non-nil field of over applied on top.
func (p GenerationParams) Merge(over GenerationParams) GenerationParams {
	if over.Temperature != nil {
		p.Temperature = over.Temperature
	}
	if over.TopP != nil {
		p.TopP = over.TopP
	}
	if over.TopK != nil {
		p.TopK = over.TopK
	}
	if over.MaxTokens != nil {
		p.MaxTokens = over.MaxTokens
	}
	return p
}

// AsMap flattens the set fields, mostly for logging and model info.
func (p GenerationParams) AsMap() map[string]any {
	m := make(map[string]any, 4)
	if p.Temperature != nil {
		m["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		m["top_p"] = *p.TopP
	}
	if p.TopK != nil {
		m["top_k"] = *p.TopK
	}
	if p.MaxTokens != nil {
		m["max_tokens"] = *p.MaxTokens
	}
	return m
}

type GenerationRequest struct {
	Prompt string           `json:"prompt"`
	Params GenerationParams `json:"params"`
}

func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ConfigError("prompt is empty")
	}
	return nil
}

type GenerationResult struct {
	Text    string `json:"text"`
	Backend string `json:"backend"`
	Model   string `json:"model"`
}

// BackendConfig is the flat option mapping a backend is constructed and initialized from.
type BackendConfig struct {
	APIKey           string            `mapstructure:"api_key" json:"api_key,omitempty"`
	Model            string            `mapstructure:"model" json:"model,omitempty"`
	BaseURL          string            `mapstructure:"base_url" json:"base_url,omitempty" validate:"omitempty,url"`
	Temperature      *float32          `mapstructure:"temperature" json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP             *float32          `mapstructure:"top_p" json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK             *int              `mapstructure:"top_k" json:"top_k,omitempty" validate:"omitempty,gte=0"`
	MaxTokens        *int              `mapstructure:"max_tokens" json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
	PresencePenalty  float32           `mapstructure:"presence_penalty" json:"presence_penalty,omitempty"`
	FrequencyPenalty float32           `mapstructure:"frequency_penalty" json:"frequency_penalty,omitempty"`
	Timeout          time.Duration     `mapstructure:"timeout" json:"timeout,omitempty" validate:"gte=0"`
	Extra            map[string]string `mapstructure:"extra" json:"extra,omitempty"`
}

// Params converts the sampling options of the config into generation hints.
func (c BackendConfig) Params() GenerationParams {
	return GenerationParams{
		Temperature: c.Temperature,
		TopP:        c.TopP,
		TopK:        c.TopK,
		MaxTokens:   c.MaxTokens,
	}
}

// Merge overlays every set field of over onto c.
func (c BackendConfig) Merge(over BackendConfig) BackendConfig {
	if over.APIKey != "" {
		c.APIKey = over.APIKey
	}
	if over.Model != "" {
		c.Model = over.Model
	}
	if over.BaseURL != "" {
		c.BaseURL = over.BaseURL
	}
	if over.Temperature != nil {
		c.Temperature = over.Temperature
	}
	if over.TopP != nil {
		c.TopP = over.TopP
	}
	if over.TopK != nil {
		c.TopK = over.TopK
	}
	if over.MaxTokens != nil {
		c.MaxTokens = over.MaxTokens
	}
	if over.PresencePenalty != 0 {
		c.PresencePenalty = over.PresencePenalty
	}
	if over.FrequencyPenalty != 0 {
		c.FrequencyPenalty = over.FrequencyPenalty
	}
	if over.Timeout != 0 {
		c.Timeout = over.Timeout
	}
	if len(over.Extra) > 0 {
		extra := make(map[string]string, len(c.Extra)+len(over.Extra))
		for k, v := range c.Extra {
			extra[k] = v
		}
		for k, v := range over.Extra {
			extra[k] = v
		}
		c.Extra = extra
	}
	return c
}

// ModelInfo describes the model a backend is bound to.
type ModelInfo struct {
	Backend    string         `json:"backend"`
	Model      string         `json:"model"`
	BaseURL    string         `json:"base_url,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func Float32(v float32) *float32 { return &v }

func Int(v int) *int { return &v }
