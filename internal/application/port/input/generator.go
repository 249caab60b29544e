package input

import (
	"context"

	"exo-agent/internal/domain/entity"
)

// BatchItem is the outcome of one prompt in a batch. Exactly one of Result and Err is set.
type BatchItem struct {
	ID     string                   `json:"id"`
	Index  int                      `json:"index"`
	Result *entity.GenerationResult `json:"result,omitempty"`
	Err    error                    `json:"-"`
}

type Generator interface {
	Generate(ctx context.Context, backendID string, req entity.GenerationRequest) (*entity.GenerationResult, error)
	GenerateBatch(ctx context.Context, backendID string, reqs []entity.GenerationRequest, concurrency int) ([]BatchItem, error)
	ListModels(ctx context.Context, backendID string) ([]string, error)
	Backends() []string
}
