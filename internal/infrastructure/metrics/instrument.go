package metrics

import (
	"context"
	"time"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
)

var _ output.GenerationBackend = (*instrumented)(nil)

type instrumented struct {
	output.GenerationBackend
	c *Collector
}

// Instrument wraps backend so that Generate and ListModels are counted and timed.
// A nil collector returns backend unchanged.
func Instrument(backend output.GenerationBackend, c *Collector) output.GenerationBackend {
	if c == nil {
		return backend
	}
	return &instrumented{GenerationBackend: backend, c: c}
}

func (i *instrumented) Generate(ctx context.Context, prompt string, params entity.GenerationParams) (*entity.GenerationResult, error) {
	start := time.Now()
	res, err := i.GenerationBackend.Generate(ctx, prompt, params)
	i.c.RecordBackendCall(i.Name(), "generate", time.Since(start), err)
	return res, err
}

func (i *instrumented) ListModels(ctx context.Context) ([]string, error) {
	start := time.Now()
	models, err := i.GenerationBackend.ListModels(ctx)
	i.c.RecordBackendCall(i.Name(), "list_models", time.Since(start), err)
	return models, err
}

// InstrumentFactory applies Instrument to every backend the factory builds.
func InstrumentFactory(factory output.BackendFactory, c *Collector) output.BackendFactory {
	return func(cfg entity.BackendConfig) (output.GenerationBackend, error) {
		backend, err := factory(cfg)
		if err != nil {
			return nil, err
		}
		return Instrument(backend, c), nil
	}
}
