package service

import (
	"context"
	"errors"
	"testing"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/llm/echo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingInitBackend struct {
	output.GenerationBackend
	closed bool
}

func (b *failingInitBackend) Initialize(ctx context.Context, cfg entity.BackendConfig) error {
	return entity.ConfigError("api key is required")
}

func (b *failingInitBackend) Close() error {
	b.closed = true
	return nil
}

func TestBackendRegistry_EchoScenario(t *testing.T) {
	ctx := context.Background()
	reg := NewBackendRegistry()
	require.NoError(t, reg.Register("echo", echo.Factory()))

	backend, err := reg.Resolve("echo", entity.BackendConfig{})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(ctx, entity.BackendConfig{}))
	defer backend.Close()

	res, err := backend.Generate(ctx, "hello", entity.GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
}

func TestBackendRegistry_Duplicate(t *testing.T) {
	reg := NewBackendRegistry()
	require.NoError(t, reg.Register("echo", echo.Factory()))

	err := reg.Register("echo", echo.Factory())
	assert.ErrorIs(t, err, entity.ErrDuplicateBackend)
}

func TestBackendRegistry_IDWhitespace(t *testing.T) {
	reg := NewBackendRegistry()
	require.NoError(t, reg.Register(" echo ", echo.Factory()))
	assert.Equal(t, []string{"echo"}, reg.List())

	for _, id := range []string{" echo ", "echo", "echo\t"} {
		backend, err := reg.Resolve(id, entity.BackendConfig{})
		require.NoError(t, err, "id %q", id)
		assert.Equal(t, echo.BackendID, backend.Name())
	}

	err := reg.Register("echo ", echo.Factory())
	assert.ErrorIs(t, err, entity.ErrDuplicateBackend)
}

func TestBackendRegistry_Unknown(t *testing.T) {
	reg := NewBackendRegistry()

	_, err := reg.Resolve("nope", entity.BackendConfig{})
	assert.ErrorIs(t, err, entity.ErrUnknownBackend)

	_, err = reg.Open(context.Background(), "nope", entity.BackendConfig{})
	assert.ErrorIs(t, err, entity.ErrUnknownBackend)
}

func TestBackendRegistry_InvalidRegistration(t *testing.T) {
	reg := NewBackendRegistry()

	assert.ErrorIs(t, reg.Register("", echo.Factory()), entity.ErrConfiguration)
	assert.ErrorIs(t, reg.Register("x", nil), entity.ErrConfiguration)
}

func TestBackendRegistry_FactoryFailurePropagates(t *testing.T) {
	reg := NewBackendRegistry()
	boom := errors.New("bad endpoint")
	require.NoError(t, reg.Register("broken", func(entity.BackendConfig) (output.GenerationBackend, error) {
		return nil, boom
	}))

	_, err := reg.Resolve("broken", entity.BackendConfig{})
	assert.ErrorIs(t, err, boom)
}

func TestBackendRegistry_OpenClosesOnInitFailure(t *testing.T) {
	reg := NewBackendRegistry()
	b := &failingInitBackend{}
	require.NoError(t, reg.Register("flaky", func(entity.BackendConfig) (output.GenerationBackend, error) {
		return b, nil
	}))

	_, err := reg.Open(context.Background(), "flaky", entity.BackendConfig{})
	assert.ErrorIs(t, err, entity.ErrConfiguration)
	assert.True(t, b.closed)
}

func TestBackendRegistry_ListSorted(t *testing.T) {
	reg := NewBackendRegistry()
	require.NoError(t, reg.Register("ollama", echo.Factory()))
	require.NoError(t, reg.Register("echo", echo.Factory()))
	require.NoError(t, reg.Register("gemini", echo.Factory()))

	assert.Equal(t, []string{"echo", "gemini", "ollama"}, reg.List())
}

type stubTool struct {
	name entity.ToolName
}

func (s stubTool) Name() entity.ToolName              { return s.name }
func (s stubTool) Description() string                { return "stub " + string(s.name) }
func (s stubTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (s stubTool) Execute(ctx context.Context, args string) (string, error) {
	return args, nil
}

func TestToolRegistry(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register(stubTool{name: entity.ToolWebSearch}))
	require.NoError(t, reg.Register(stubTool{name: entity.ToolScrapeWebsite}))

	assert.ErrorIs(t, reg.Register(stubTool{name: entity.ToolWebSearch}), entity.ErrDuplicateTool)

	tool, ok := reg.Get(entity.ToolScrapeWebsite)
	require.True(t, ok)
	assert.Equal(t, entity.ToolScrapeWebsite, tool.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, entity.ToolWebSearch, defs[0].Name)
	assert.Equal(t, "stub scrape_website", defs[1].Description)
}
