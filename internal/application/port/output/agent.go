package output

import (
	"context"

	"exo-agent/internal/domain/entity"
)

type Agent interface {
	Type() entity.AgentType
	Process(ctx context.Context, message string) (*entity.AgentResponse, error)
	Info() entity.AgentInfo
}
