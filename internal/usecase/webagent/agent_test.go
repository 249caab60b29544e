package webagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"exo-agent/internal/application/service"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/fakes"
	"exo-agent/internal/infrastructure/logger"
	"exo-agent/internal/retry"
	"exo-agent/internal/usecase/generator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTool struct {
	name   entity.ToolName
	result string
	err    error
	args   []string
}

func (t *recordingTool) Name() entity.ToolName { return t.name }

func (t *recordingTool) Description() string { return "test tool " + string(t.name) }

func (t *recordingTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (t *recordingTool) Execute(ctx context.Context, args string) (string, error) {
	t.args = append(t.args, args)
	return t.result, t.err
}

func newAgent(t *testing.T, backend *fakes.Backend, maxIterations int, tools ...*recordingTool) *Agent {
	t.Helper()
	registry := service.NewBackendRegistry()
	require.NoError(t, registry.Register(backend.ID, backend.Factory()))

	gen, err := generator.New(registry, generator.Config{
		DefaultBackend: backend.ID,
		Retry:          retry.Policy{MaxRetries: 1},
	}, logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gen.Close() })

	toolRegistry := service.NewToolRegistry()
	for _, tool := range tools {
		require.NoError(t, toolRegistry.Register(tool))
	}

	cfg := DefaultConfig()
	cfg.MaxIterations = maxIterations
	cfg.MaxObservationLength = 20

	agent, err := New(context.Background(), gen, toolRegistry, logger.NewNopLogger(), cfg)
	require.NoError(t, err)
	return agent
}

func TestProcess_DirectAnswer(t *testing.T) {
	backend := fakes.NewBackend("fake", "  Paris is the capital.  ")
	agent := newAgent(t, backend, 3)

	resp, err := agent.Process(context.Background(), "capital of France?")
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital.", resp.Answer)
	assert.Equal(t, 1, resp.Iterations)
	assert.Empty(t, resp.ToolCalls)

	prompts := backend.PromptLog()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "User: capital of France?")
	assert.True(t, strings.HasSuffix(prompts[0], "Assistant:"))
}

func TestProcess_ToolRoundTrip(t *testing.T) {
	backend := fakes.NewBackend("fake",
		`Let me look. {"tool": "web_search", "arguments": {"query": "go 1.24"}}`,
		"Go 1.24 shipped in February.",
	)
	search := &recordingTool{name: entity.ToolWebSearch, result: "release notes"}
	agent := newAgent(t, backend, 3, search)

	resp, err := agent.Process(context.Background(), "when was go 1.24 released?")
	require.NoError(t, err)

	assert.Equal(t, "Go 1.24 shipped in February.", resp.Answer)
	assert.Equal(t, 2, resp.Iterations)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, entity.ToolWebSearch, resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"go 1.24"}`, search.args[0])

	prompts := backend.PromptLog()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "Observation from web_search:\nrelease notes")
}

func TestProcess_ToolFailureBecomesObservation(t *testing.T) {
	backend := fakes.NewBackend("fake",
		`{"tool": "scrape_website", "arguments": {"url": "https://x"}}`,
		"The site is down.",
	)
	scrape := &recordingTool{name: entity.ToolScrapeWebsite, err: errors.New("browser error: timeout")}
	agent := newAgent(t, backend, 3, scrape)

	resp, err := agent.Process(context.Background(), "what is on x?")
	require.NoError(t, err)

	assert.Equal(t, "The site is down.", resp.Answer)
	assert.Contains(t, backend.PromptLog()[1], "Error: browser error: timeout")
}

func TestProcess_UnknownTool(t *testing.T) {
	backend := fakes.NewBackend("fake", `{"tool": "teleport", "arguments": {}}`, "sorry")
	agent := newAgent(t, backend, 3)

	resp, err := agent.Process(context.Background(), "go")
	require.NoError(t, err)

	assert.Equal(t, "sorry", resp.Answer)
	assert.Contains(t, backend.PromptLog()[1], "Error: unknown tool 'teleport'")
}

func TestProcess_ObservationTruncated(t *testing.T) {
	backend := fakes.NewBackend("fake", `{"tool": "web_search", "arguments": {"query": "q"}}`, "done")
	search := &recordingTool{name: entity.ToolWebSearch, result: strings.Repeat("z", 100)}
	agent := newAgent(t, backend, 3, search)

	_, err := agent.Process(context.Background(), "q")
	require.NoError(t, err)

	prompt := backend.PromptLog()[1]
	assert.Contains(t, prompt, strings.Repeat("z", 20)+"\n... (truncated)")
	assert.NotContains(t, prompt, strings.Repeat("z", 21))
}

func TestProcess_IterationBudget(t *testing.T) {
	backend := fakes.NewBackend("fake",
		`{"tool": "web_search", "arguments": {"query": "a"}}`,
		`{"tool": "web_search", "arguments": {"query": "b"}}`,
		"best effort answer",
	)
	search := &recordingTool{name: entity.ToolWebSearch, result: "r"}
	agent := newAgent(t, backend, 2, search)

	resp, err := agent.Process(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, "best effort answer", resp.Answer)
	assert.Equal(t, 3, resp.Iterations)
	assert.Len(t, resp.ToolCalls, 2)
	assert.Contains(t, backend.PromptLog()[2], "Do not call any more tools.")
}

func TestProcess_BackendFailure(t *testing.T) {
	backend := fakes.NewBackend("fake", "unused")
	backend.Errs = []error{entity.NewBackendError("fake", "generate", errors.New("quota"))}
	agent := newAgent(t, backend, 3)

	_, err := agent.Process(context.Background(), "q")
	assert.True(t, entity.IsBackendError(err))
}

func TestProcess_EmptyMessage(t *testing.T) {
	agent := newAgent(t, fakes.NewBackend("fake"), 3)

	_, err := agent.Process(context.Background(), "   ")
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestInfo(t *testing.T) {
	search := &recordingTool{name: entity.ToolWebSearch}
	scrape := &recordingTool{name: entity.ToolScrapeWebsite}
	agent := newAgent(t, fakes.NewBackend("fake"), 3, search, scrape)

	info := agent.Info()
	assert.Equal(t, entity.AgentTypeWeb, info.Name)
	assert.Equal(t, "fake", info.Model.Backend)
	assert.Equal(t, []entity.ToolName{entity.ToolWebSearch, entity.ToolScrapeWebsite}, info.Tools)
	assert.True(t, info.Initialized)
	assert.Equal(t, entity.AgentTypeWeb, agent.Type())
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) IterationStarted(iteration, maxIterations int) {
	o.events = append(o.events, fmt.Sprintf("iteration %d/%d", iteration, maxIterations))
}

func (o *recordingObserver) ToolStarted(call entity.ToolCall) {
	o.events = append(o.events, "start "+call.Name.String())
}

func (o *recordingObserver) ToolFinished(call entity.ToolCall, observation string, err error) {
	o.events = append(o.events, fmt.Sprintf("finish %s %q %v", call.Name, observation, err))
}

func TestProcess_NotifiesObserver(t *testing.T) {
	backend := fakes.NewBackend("fake",
		`{"tool": "web_search", "arguments": {"query": "q"}}`,
		`{"tool": "nope", "arguments": {}}`,
		"done",
	)
	search := &recordingTool{name: entity.ToolWebSearch, result: "r"}
	agent := newAgent(t, backend, 3, search)
	observer := &recordingObserver{}
	agent.cfg.Observer = observer

	_, err := agent.Process(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"iteration 1/3",
		"start web_search",
		`finish web_search "r" <nil>`,
		"iteration 2/3",
		"start nope",
		`finish nope "" unknown tool 'nope'`,
		"iteration 3/3",
	}, observer.events)
}
