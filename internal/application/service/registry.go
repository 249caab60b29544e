package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
)

var _ output.BackendRegistry = (*BackendRegistryImpl)(nil)

// BackendRegistryImpl maps backend identifiers to factories. Registration happens at
// start-up; lookups may come from any goroutine.
type BackendRegistryImpl struct {
	mu        sync.RWMutex
	factories map[string]output.BackendFactory
}

func NewBackendRegistry() *BackendRegistryImpl {
	return &BackendRegistryImpl{
		factories: make(map[string]output.BackendFactory),
	}
}

func (r *BackendRegistryImpl) Register(id string, factory output.BackendFactory) error {
	id = normalizeID(id)
	if id == "" {
		return entity.ConfigError("backend id is empty")
	}
	if factory == nil {
		return entity.ConfigError("backend %q: factory is nil", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("%w: %s", entity.ErrDuplicateBackend, id)
	}
	r.factories[id] = factory
	return nil
}

func (r *BackendRegistryImpl) Resolve(id string, cfg entity.BackendConfig) (output.GenerationBackend, error) {
	id = normalizeID(id)

	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrUnknownBackend, id)
	}

	backend, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("construct backend %s: %w", id, err)
	}
	return backend, nil
}

// Open resolves id and initializes the instance with cfg. The instance is closed
// again if initialization fails.
func (r *BackendRegistryImpl) Open(ctx context.Context, id string, cfg entity.BackendConfig) (output.GenerationBackend, error) {
	backend, err := r.Resolve(id, cfg)
	if err != nil {
		return nil, err
	}
	if err := backend.Initialize(ctx, cfg); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("initialize backend %s: %w", id, err)
	}
	return backend, nil
}

func (r *BackendRegistryImpl) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// normalizeID makes registration and lookup agree on surrounding whitespace.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

type ToolRegistryImpl struct {
	tools map[entity.ToolName]output.ToolPort
	order []entity.ToolName
}

func NewToolRegistry() *ToolRegistryImpl {
	return &ToolRegistryImpl{
		tools: make(map[entity.ToolName]output.ToolPort),
	}
}

func (r *ToolRegistryImpl) Register(tool output.ToolPort) error {
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", entity.ErrDuplicateTool, name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

func (r *ToolRegistryImpl) Get(name entity.ToolName) (output.ToolPort, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns tools in registration order.
func (r *ToolRegistryImpl) All() []output.ToolPort {
	result := make([]output.ToolPort, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

func (r *ToolRegistryImpl) Definitions() []entity.ToolDefinition {
	result := make([]entity.ToolDefinition, 0, len(r.order))
	for _, tool := range r.All() {
		result = append(result, entity.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return result
}
