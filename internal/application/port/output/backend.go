package output

import (
	"context"

	"exo-agent/internal/domain/entity"
)

// GenerationBackend is a text-generation capability over one vendor API or local runtime.
// Generate and ListModels fail with entity.ErrUninitialized until Initialize succeeds.
// Generate may run concurrently; Initialize and Close must not overlap any other call.
type GenerationBackend interface {
	Name() string
	Initialize(ctx context.Context, cfg entity.BackendConfig) error
	Generate(ctx context.Context, prompt string, params entity.GenerationParams) (*entity.GenerationResult, error)
	ListModels(ctx context.Context) ([]string, error)
	ModelInfo() entity.ModelInfo
	Close() error
}

type BackendFactory func(cfg entity.BackendConfig) (GenerationBackend, error)

type BackendRegistry interface {
	Register(id string, factory BackendFactory) error
	Resolve(id string, cfg entity.BackendConfig) (GenerationBackend, error)
	Open(ctx context.Context, id string, cfg entity.BackendConfig) (GenerationBackend, error)
	List() []string
}
