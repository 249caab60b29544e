package fakes

import (
	"context"
	"strings"
	"sync"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
)

var _ output.GenerationBackend = (*Backend)(nil)

// Backend replays Replies in order and records every prompt. Once Replies is
// exhausted the last reply is repeated. Errs, when set, is consumed first: each
// entry is returned by one Generate call before any reply.
type Backend struct {
	ID      string
	Model   string
	Replies []string
	Errs    []error

	mu          sync.Mutex
	Prompts     []string
	initialized bool
	closed      int
}

func NewBackend(id string, replies ...string) *Backend {
	return &Backend{ID: id, Model: id + "-model", Replies: replies}
}

// Factory always hands out b itself.
func (b *Backend) Factory() output.BackendFactory {
	return func(cfg entity.BackendConfig) (output.GenerationBackend, error) {
		return b, nil
	}
}

func (b *Backend) Name() string { return b.ID }

func (b *Backend) Initialize(ctx context.Context, cfg entity.BackendConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cfg.Model != "" {
		b.Model = cfg.Model
	}
	b.initialized = true
	return nil
}

func (b *Backend) Generate(ctx context.Context, prompt string, params entity.GenerationParams) (*entity.GenerationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil, entity.UninitializedError(b.ID)
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, entity.ConfigError("prompt is empty")
	}
	b.Prompts = append(b.Prompts, prompt)

	if len(b.Errs) > 0 {
		err := b.Errs[0]
		b.Errs = b.Errs[1:]
		if err != nil {
			return nil, err
		}
	}

	text := prompt
	if len(b.Replies) > 0 {
		text = b.Replies[0]
		if len(b.Replies) > 1 {
			b.Replies = b.Replies[1:]
		}
	}
	return &entity.GenerationResult{Text: text, Backend: b.ID, Model: b.Model}, nil
}

func (b *Backend) ListModels(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return nil, entity.UninitializedError(b.ID)
	}
	return []string{b.Model}, nil
}

func (b *Backend) ModelInfo() entity.ModelInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return entity.ModelInfo{Backend: b.ID, Model: b.Model}
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = false
	b.closed++
	return nil
}

func (b *Backend) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Backend) PromptLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.Prompts...)
}

// FailNext queues errs for the next Generate calls.
func (b *Backend) FailNext(errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Errs = append(b.Errs, errs...)
}
