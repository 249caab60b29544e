// Package userinteraction renders agent progress on a terminal and reads user
// messages for interactive sessions.
package userinteraction

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"exo-agent/internal/domain/entity"
	"exo-agent/internal/usecase/webagent"
)

var _ webagent.Observer = (*Console)(nil)

type Console struct {
	in  *bufio.Reader
	out io.Writer

	heading *color.Color
	tool    *color.Color
	dim     *color.Color
	ok      *color.Color
	fail    *color.Color
	answer  *color.Color
}

// NewConsole writes to out and reads from in. With colorize false output is plain text.
func NewConsole(in io.Reader, out io.Writer, colorize bool) *Console {
	c := &Console{
		in:      bufio.NewReader(in),
		out:     out,
		heading: color.New(color.FgCyan, color.Bold),
		tool:    color.New(color.FgYellow, color.Bold),
		dim:     color.New(color.Faint),
		ok:      color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		answer:  color.New(color.Bold),
	}
	for _, col := range []*color.Color{c.heading, c.tool, c.dim, c.ok, c.fail, c.answer} {
		if colorize {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// Ask prints prompt and returns the next line of input. io.EOF ends the session.
func (c *Console) Ask(prompt string) (string, error) {
	fmt.Fprintf(c.out, "\n%s\n> ", prompt)

	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Console) IterationStarted(iteration, maxIterations int) {
	c.heading.Fprintf(c.out, "\n--- Iteration %d/%d ---\n", iteration, maxIterations)
}

func (c *Console) ToolStarted(call entity.ToolCall) {
	c.tool.Fprintf(c.out, "\n> %s\n", call.Name)
	if summary := formatToolArguments(call.Arguments); summary != "" {
		c.dim.Fprintf(c.out, "   %s\n", summary)
	}
}

func (c *Console) ToolFinished(call entity.ToolCall, observation string, err error) {
	if err != nil {
		c.fail.Fprint(c.out, "x Error: ")
		c.dim.Fprintln(c.out, truncate(err.Error(), 300))
		return
	}
	c.ok.Fprintf(c.out, "ok %s\n", formatToolResult(call.Name, observation))
}

func (c *Console) ShowAnswer(resp *entity.AgentResponse) {
	c.answer.Fprintln(c.out, "\nAnswer:")
	fmt.Fprintln(c.out, resp.Answer)
	c.dim.Fprintf(c.out, "(%d iterations, %d tool calls)\n", resp.Iterations, len(resp.ToolCalls))
}

func (c *Console) ShowError(err error) {
	c.fail.Fprintf(c.out, "\nError: %v\n", err)
}

// formatToolArguments lists the call arguments as key=value pairs in key order.
func formatToolArguments(arguments string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || len(args) == 0 {
		return ""
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, truncate(fmt.Sprint(args[k]), 60)))
	}
	return strings.Join(parts, " ")
}

func formatToolResult(name entity.ToolName, result string) string {
	var doc map[string]any
	if err := json.Unmarshal([]byte(result), &doc); err != nil {
		return truncate(result, 100)
	}

	switch name {
	case entity.ToolWebSearch:
		if results, ok := doc["results"].([]any); ok {
			return fmt.Sprintf("%d result entries", len(results))
		}
	case entity.ToolScrapeWebsite:
		if count, ok := doc["count"].(float64); ok {
			return fmt.Sprintf("%d elements matched", int(count))
		}
		if content, ok := doc["content"].(string); ok {
			return fmt.Sprintf("%d characters of text", len([]rune(content)))
		}
	case entity.ToolScreenshot:
		if path, ok := doc["path"].(string); ok {
			return "saved to " + path
		}
	}
	return truncate(result, 100)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
