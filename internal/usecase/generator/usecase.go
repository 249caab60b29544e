// Package generator runs generation requests against registered backends with
// retries, and fans batches out with a concurrency cap.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"exo-agent/internal/application/port/input"
	"exo-agent/internal/application/port/output"
	"exo-agent/internal/batch"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/retry"
)

var _ input.Generator = (*UseCase)(nil)

type Config struct {
	// DefaultBackend is used when a call names no backend.
	DefaultBackend string
	// Backends holds per-backend options passed to Open.
	Backends map[string]entity.BackendConfig
	Retry    retry.Policy
	// Concurrency is the batch limit used when a call passes zero.
	Concurrency int
}

// UseCase owns every backend it opens. Backends are opened on first use and
// kept until Close. Generate may run concurrently on one backend; Close waits
// for every call in flight before releasing backends.
type UseCase struct {
	registry output.BackendRegistry
	cfg      Config
	logger   output.LoggerPort

	mu       sync.Mutex
	opened   map[string]output.GenerationBackend
	closed   atomic.Bool
	inflight sync.WaitGroup
}

func New(registry output.BackendRegistry, cfg Config, logger output.LoggerPort) (*UseCase, error) {
	if err := cfg.Retry.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &UseCase{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		opened:   make(map[string]output.GenerationBackend),
	}, nil
}

func (uc *UseCase) Generate(ctx context.Context, backendID string, req entity.GenerationRequest) (*entity.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	backend, release, err := uc.acquire(ctx, backendID)
	if err != nil {
		return nil, err
	}
	defer release()
	return uc.generate(ctx, backend, uuid.NewString(), req)
}

func (uc *UseCase) GenerateBatch(ctx context.Context, backendID string, reqs []entity.GenerationRequest, concurrency int) ([]input.BatchItem, error) {
	if concurrency == 0 {
		concurrency = uc.cfg.Concurrency
	}
	if concurrency < 1 {
		return nil, entity.ConfigError("concurrency must be at least 1, got %d", concurrency)
	}

	backend, release, err := uc.acquire(ctx, backendID)
	if err != nil {
		return nil, err
	}
	defer release()

	ids := make([]string, len(reqs))
	ops := make([]batch.Op[*entity.GenerationResult], len(reqs))
	for i, req := range reqs {
		ids[i] = uuid.NewString()
		id := ids[i]
		ops[i] = func(ctx context.Context) (*entity.GenerationResult, error) {
			if err := req.Validate(); err != nil {
				return nil, err
			}
			if uc.closed.Load() {
				return nil, entity.UninitializedError(backend.Name())
			}
			return uc.generate(ctx, backend, id, req)
		}
	}

	uc.logger.Info("Running batch", "backend", backend.Name(), "size", len(reqs), "concurrency", concurrency)

	results, err := batch.Run(ctx, concurrency, ops)
	if err != nil {
		return nil, err
	}

	items := make([]input.BatchItem, len(results))
	for i, r := range results {
		items[i] = input.BatchItem{ID: ids[i], Index: r.Index, Result: r.Value, Err: r.Err}
		if r.Err != nil {
			items[i].Result = nil
		}
	}

	if failed := batch.Failed(results); failed > 0 {
		uc.logger.Warn("Batch finished with failures", "backend", backend.Name(), "failed", failed, "size", len(reqs))
	}
	return items, nil
}

func (uc *UseCase) ListModels(ctx context.Context, backendID string) ([]string, error) {
	backend, release, err := uc.acquire(ctx, backendID)
	if err != nil {
		return nil, err
	}
	defer release()
	return backend.ListModels(ctx)
}

// ModelInfo opens the backend if needed and reports what it is bound to.
func (uc *UseCase) ModelInfo(ctx context.Context, backendID string) (entity.ModelInfo, error) {
	backend, release, err := uc.acquire(ctx, backendID)
	if err != nil {
		return entity.ModelInfo{}, err
	}
	defer release()
	return backend.ModelInfo(), nil
}

func (uc *UseCase) Backends() []string {
	return uc.registry.List()
}

// Close rejects new calls, waits for the ones in flight and releases every
// opened backend. Batch items that have not started yet fail with
// entity.ErrUninitialized. The use case is unusable afterwards.
func (uc *UseCase) Close() error {
	uc.mu.Lock()
	uc.closed.Store(true)
	opened := uc.opened
	uc.opened = make(map[string]output.GenerationBackend)
	uc.mu.Unlock()

	uc.inflight.Wait()

	var errs []error
	for id, backend := range opened {
		if err := backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (uc *UseCase) generate(ctx context.Context, backend output.GenerationBackend, id string, req entity.GenerationRequest) (*entity.GenerationResult, error) {
	log := uc.logger.WithFields(map[string]any{"request": id, "backend": backend.Name()})

	policy := retry.ForBackends(uc.cfg.Retry)
	policy.OnRetry = func(attempt int, err error) {
		log.Warn("Generation failed, retrying", "attempt", attempt, "error", err)
	}

	res, err := retry.Do(ctx, policy, func(ctx context.Context) (*entity.GenerationResult, error) {
		return backend.Generate(ctx, req.Prompt, req.Params)
	})
	if err != nil {
		log.Error("Generation failed", "error", err)
		return nil, err
	}

	log.Debug("Generation completed", "model", res.Model, "chars", len(res.Text))
	return res, nil
}

// acquire returns the backend for id, opening it on first use, and counts one
// call in flight until release runs.
func (uc *UseCase) acquire(ctx context.Context, id string) (output.GenerationBackend, func(), error) {
	if id == "" {
		id = uc.cfg.DefaultBackend
	}
	if id == "" {
		return nil, nil, entity.ConfigError("no backend selected")
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.closed.Load() {
		return nil, nil, entity.UninitializedError(id)
	}
	b, ok := uc.opened[id]
	if !ok {
		var err error
		b, err = uc.registry.Open(ctx, id, uc.cfg.Backends[id])
		if err != nil {
			return nil, nil, err
		}
		uc.opened[id] = b
		uc.logger.Info("Backend opened", "backend", id, "model", b.ModelInfo().Model)
	}

	uc.inflight.Add(1)
	return b, uc.inflight.Done, nil
}
