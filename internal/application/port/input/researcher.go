package input

import (
	"context"

	"exo-agent/internal/domain/entity"
)

type Researcher interface {
	Research(ctx context.Context, query string, maxResults int) (*entity.ResearchReport, error)
}
