// Package webagent answers user messages with a generation backend that may call
// web tools. The model requests a tool by replying with a JSON object; the tool
// output is fed back as an observation until the model answers in plain text.
package webagent

import (
	"context"
	"fmt"
	"strings"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/prompts"
)

var _ output.Agent = (*Agent)(nil)

// Completer runs a request against a named backend, retrying vendor failures.
type Completer interface {
	Generate(ctx context.Context, backendID string, req entity.GenerationRequest) (*entity.GenerationResult, error)
	ModelInfo(ctx context.Context, backendID string) (entity.ModelInfo, error)
}

// Observer is told about each step of Process.
type Observer interface {
	IterationStarted(iteration, maxIterations int)
	ToolStarted(call entity.ToolCall)
	ToolFinished(call entity.ToolCall, observation string, err error)
}

type Config struct {
	BackendID     string
	MaxIterations int
	// MaxObservationLength caps each tool result in bytes before it reaches the model.
	MaxObservationLength int
	Params               entity.GenerationParams
	SystemPrompt         string
	// Observer may be nil.
	Observer Observer
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:        5,
		MaxObservationLength: 4000,
		SystemPrompt:         prompts.WebAgentPrompt,
	}
}

type Agent struct {
	completer    Completer
	tools        output.ToolRegistry
	logger       output.LoggerPort
	cfg          Config
	systemPrompt string
	model        entity.ModelInfo
}

// New binds the agent to its backend, opening it through completer.
func New(ctx context.Context, completer Completer, tools output.ToolRegistry, logger output.LoggerPort, cfg Config) (*Agent, error) {
	if cfg.MaxIterations < 1 {
		return nil, entity.ConfigError("max iterations must be at least 1, got %d", cfg.MaxIterations)
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompts.WebAgentPrompt
	}

	systemPrompt, err := prompts.GenerateWebAgentPrompt(cfg.SystemPrompt, tools.Definitions())
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	model, err := completer.ModelInfo(ctx, cfg.BackendID)
	if err != nil {
		return nil, err
	}

	logger.Info("Initialized web agent", "backend", model.Backend, "model", model.Model, "tools", len(tools.All()))

	return &Agent{
		completer:    completer,
		tools:        tools,
		logger:       logger,
		cfg:          cfg,
		systemPrompt: systemPrompt,
		model:        model,
	}, nil
}

func (a *Agent) Type() entity.AgentType { return entity.AgentTypeWeb }

func (a *Agent) Process(ctx context.Context, message string) (*entity.AgentResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, entity.ConfigError("message is empty")
	}

	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: a.systemPrompt},
		{Role: entity.RoleUser, Content: message},
	}
	resp := &entity.AgentResponse{}

	for iteration := 1; iteration <= a.cfg.MaxIterations; iteration++ {
		a.logger.Debug("Starting iteration", "iteration", iteration)
		if a.cfg.Observer != nil {
			a.cfg.Observer.IterationStarted(iteration, a.cfg.MaxIterations)
		}

		reply, err := a.complete(ctx, messages)
		if err != nil {
			return nil, err
		}
		resp.Iterations = iteration
		messages = append(messages, entity.Message{Role: entity.RoleAssistant, Content: reply})

		call, ok := ParseToolCall(reply)
		if !ok {
			resp.Answer = strings.TrimSpace(reply)
			return resp, nil
		}

		resp.ToolCalls = append(resp.ToolCalls, call)
		messages = append(messages, entity.Message{
			Role:    entity.RoleTool,
			Name:    call.Name.String(),
			Content: a.executeTool(ctx, call),
		})
	}

	// Out of tool rounds: ask once more for a plain answer.
	messages = append(messages, entity.Message{
		Role:    entity.RoleUser,
		Content: "Do not call any more tools. Answer now using the observations above.",
	})
	reply, err := a.complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	resp.Iterations++
	resp.Answer = strings.TrimSpace(reply)

	a.logger.Warn("Tool budget exhausted", "maxIterations", a.cfg.MaxIterations, "toolCalls", len(resp.ToolCalls))
	return resp, nil
}

func (a *Agent) Info() entity.AgentInfo {
	tools := a.tools.All()
	names := make([]entity.ToolName, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return entity.AgentInfo{
		Name:        entity.AgentTypeWeb,
		Model:       a.model,
		Tools:       names,
		Initialized: true,
	}
}

func (a *Agent) complete(ctx context.Context, messages []entity.Message) (string, error) {
	res, err := a.completer.Generate(ctx, a.cfg.BackendID, entity.GenerationRequest{
		Prompt: renderTranscript(messages),
		Params: a.cfg.Params,
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return res.Text, nil
}

func (a *Agent) executeTool(ctx context.Context, tc entity.ToolCall) string {
	if a.cfg.Observer != nil {
		a.cfg.Observer.ToolStarted(tc)
	}

	tool, ok := a.tools.Get(tc.Name)
	if !ok {
		a.logger.Warn("Unknown tool called", "name", tc.Name)
		err := fmt.Errorf("%w '%s'", entity.ErrUnknownTool, tc.Name)
		a.toolFinished(tc, "", err)
		return "Error: " + err.Error()
	}

	a.logger.Info("Executing tool", "name", tc.Name, "args", tc.Arguments)

	result, err := tool.Execute(ctx, tc.Arguments)
	if err != nil {
		a.logger.Error("Tool execution failed", "name", tc.Name, "error", err)
		a.toolFinished(tc, "", err)
		return "Error: " + err.Error()
	}
	a.toolFinished(tc, result, nil)

	if max := a.cfg.MaxObservationLength; max > 0 && len(result) > max {
		result = strings.ToValidUTF8(result[:max], "") + "\n... (truncated)"
	}

	a.logger.Debug("Tool completed", "name", tc.Name, "resultLen", len(result))
	return result
}

func (a *Agent) toolFinished(tc entity.ToolCall, observation string, err error) {
	if a.cfg.Observer != nil {
		a.cfg.Observer.ToolFinished(tc, observation, err)
	}
}

func renderTranscript(messages []entity.Message) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case entity.RoleSystem:
			b.WriteString(m.Content)
		case entity.RoleUser:
			b.WriteString("\n\nUser: ")
			b.WriteString(m.Content)
		case entity.RoleAssistant:
			b.WriteString("\n\nAssistant: ")
			b.WriteString(m.Content)
		case entity.RoleTool:
			fmt.Fprintf(&b, "\n\nObservation from %s:\n%s", m.Name, m.Content)
		}
	}
	b.WriteString("\n\nAssistant:")
	return b.String()
}
