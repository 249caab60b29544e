// Package echo provides a backend that returns its prompt unchanged. It needs no
// credentials and is used for local runs and wiring checks.
package echo

import (
	"context"
	"strings"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
)

const (
	BackendID    = "echo"
	defaultModel = "echo"
)

var _ output.GenerationBackend = (*EchoAdapter)(nil)

type EchoAdapter struct {
	cfg         entity.BackendConfig
	initialized bool
}

func NewEchoAdapter(cfg entity.BackendConfig) *EchoAdapter {
	return &EchoAdapter{cfg: cfg}
}

func Factory() output.BackendFactory {
	return func(cfg entity.BackendConfig) (output.GenerationBackend, error) {
		return NewEchoAdapter(cfg), nil
	}
}

func (a *EchoAdapter) Name() string { return BackendID }

func (a *EchoAdapter) Initialize(ctx context.Context, cfg entity.BackendConfig) error {
	a.cfg = a.cfg.Merge(cfg)
	if a.cfg.Model == "" {
		a.cfg.Model = defaultModel
	}
	a.initialized = true
	return nil
}

func (a *EchoAdapter) Generate(ctx context.Context, prompt string, params entity.GenerationParams) (*entity.GenerationResult, error) {
	if !a.initialized {
		return nil, entity.UninitializedError(BackendID)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, entity.ConfigError("prompt is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, entity.NewBackendError(BackendID, "generate", err)
	}

	text := prompt
	if prefix := a.cfg.Extra["prefix"]; prefix != "" {
		text = prefix + text
	}

	return &entity.GenerationResult{
		Text:    text,
		Backend: BackendID,
		Model:   a.cfg.Model,
	}, nil
}

func (a *EchoAdapter) ListModels(ctx context.Context) ([]string, error) {
	if !a.initialized {
		return nil, entity.UninitializedError(BackendID)
	}
	return []string{a.cfg.Model}, nil
}

func (a *EchoAdapter) ModelInfo() entity.ModelInfo {
	return entity.ModelInfo{
		Backend:    BackendID,
		Model:      a.cfg.Model,
		Parameters: a.cfg.Params().AsMap(),
	}
}

func (a *EchoAdapter) Close() error {
	a.initialized = false
	return nil
}
