package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"exo-agent/internal/adapter/httpapi"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/metrics"
	"exo-agent/internal/infrastructure/userinteraction"
)

type command func(ctx context.Context, env *cmdEnv, args []string) error

var commands = map[string]command{
	"generate": generateCmd,
	"batch":    batchCmd,
	"models":   modelsCmd,
	"backends": backendsCmd,
	"agent":    agentCmd,
	"research": researchCmd,
	"scrape":   scrapeCmd,
	"serve":    serveCmd,
}

func generateCmd(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("generate")
	backend := fs.StringP("backend", "b", "", "backend id (default from config)")
	temperature := fs.Float32("temperature", -1, "sampling temperature")
	maxTokens := fs.Int("max-tokens", 0, "maximum tokens to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompt, err := env.text(fs.Args())
	if err != nil {
		return err
	}

	res, err := env.container.Generator.Generate(ctx, *backend, entity.GenerationRequest{
		Prompt: prompt,
		Params: params(*temperature, *maxTokens),
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, res.Text)
	return nil
}

func batchCmd(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("batch")
	backend := fs.StringP("backend", "b", "", "backend id (default from config)")
	concurrency := fs.IntP("concurrency", "n", 0, "maximum requests in flight (default from config)")
	file := fs.StringP("file", "f", "-", "file with one prompt per line, - for stdin")
	temperature := fs.Float32("temperature", -1, "sampling temperature")
	maxTokens := fs.Int("max-tokens", 0, "maximum tokens to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prompts, err := env.lines(*file)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		return entity.ConfigError("no prompts given")
	}

	p := params(*temperature, *maxTokens)
	reqs := make([]entity.GenerationRequest, len(prompts))
	for i, prompt := range prompts {
		reqs[i] = entity.GenerationRequest{Prompt: prompt, Params: p}
	}

	items, err := env.container.Generator.GenerateBatch(ctx, *backend, reqs, *concurrency)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(env.stdout)
	failed := 0
	for _, it := range items {
		line := map[string]any{"id": it.ID, "index": it.Index, "prompt": prompts[it.Index]}
		if it.Err != nil {
			failed++
			line["error"] = it.Err.Error()
			line["kind"] = metrics.Status(it.Err)
		} else {
			line["text"] = it.Result.Text
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d prompts failed", failed, len(items))
	}
	return nil
}

func modelsCmd(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("models")
	backend := fs.StringP("backend", "b", "", "backend id (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	models, err := env.container.Generator.ListModels(ctx, *backend)
	if err != nil {
		return err
	}
	for _, m := range models {
		fmt.Fprintln(env.stdout, m)
	}
	return nil
}

func backendsCmd(ctx context.Context, env *cmdEnv, args []string) error {
	def := env.container.Config.DefaultBackend
	for _, id := range env.container.Generator.Backends() {
		marker := " "
		if id == def {
			marker = "*"
		}
		fmt.Fprintf(env.stdout, "%s %s\n", marker, id)
	}
	return nil
}

func agentCmd(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("agent")
	backend := fs.StringP("backend", "b", "", "backend id (default from config)")
	interactive := fs.BoolP("interactive", "i", false, "read messages until EOF and show tool progress")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *interactive {
		return agentSession(ctx, env, *backend)
	}

	message, err := env.text(fs.Args())
	if err != nil {
		return err
	}

	agent, err := env.container.WebAgent(ctx, *backend, nil)
	if err != nil {
		return err
	}

	resp, err := agent.Process(ctx, message)
	if err != nil {
		return err
	}
	env.container.Logger.Info("Agent finished", "iterations", resp.Iterations, "toolCalls", len(resp.ToolCalls))
	fmt.Fprintln(env.stdout, resp.Answer)
	return nil
}

func agentSession(ctx context.Context, env *cmdEnv, backend string) error {
	console := userinteraction.NewConsole(env.stdin, env.stdout, isTerminal(env.stdout))

	agent, err := env.container.WebAgent(ctx, backend, console)
	if err != nil {
		return err
	}

	for ctx.Err() == nil {
		message, err := console.Ask("Message (empty line or Ctrl-D to quit):")
		if errors.Is(err, io.EOF) || (err == nil && message == "") {
			return nil
		}
		if err != nil {
			return err
		}

		resp, err := agent.Process(ctx, message)
		if err != nil {
			console.ShowError(err)
			continue
		}
		console.ShowAnswer(resp)
	}
	return ctx.Err()
}

func researchCmd(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("research")
	backend := fs.StringP("backend", "b", "", "backend id (default from config)")
	results := fs.IntP("results", "n", 3, "number of search results to read")
	asJSON := fs.Bool("json", false, "print the full report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query, err := env.text(fs.Args())
	if err != nil {
		return err
	}

	uc, err := env.container.Researcher(ctx, *backend)
	if err != nil {
		return err
	}
	report, err := uc.Research(ctx, query, *results)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintln(env.stdout, report.Summary)
	fmt.Fprintln(env.stdout)
	for i, s := range report.Sources {
		status := ""
		if s.Error != "" {
			status = " (failed: " + s.Error + ")"
		}
		fmt.Fprintf(env.stdout, "[%d] %s %s%s\n", i+1, s.Title, s.URL, status)
	}
	return nil
}

func scrapeCmd(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("scrape")
	selector := fs.StringP("selector", "s", "", "CSS selector; print matching elements only")
	waitFor := fs.String("wait-for", "", "CSS selector to wait for before reading")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return entity.ConfigError("scrape takes exactly one url")
	}

	browser, err := env.container.Browser(ctx)
	if err != nil {
		return err
	}
	page, err := browser.Scrape(ctx, fs.Arg(0), *selector, *waitFor)
	if err != nil {
		return err
	}

	if *selector == "" {
		fmt.Fprintln(env.stdout, page.Content)
		return nil
	}
	for i, item := range page.Items {
		fmt.Fprintf(env.stdout, "%d. %s\n", i+1, strings.ReplaceAll(item, "\n", " "))
	}
	return nil
}

func serveCmd(ctx context.Context, env *cmdEnv, args []string) error {
	fs := env.flags("serve")
	addr := fs.String("addr", env.container.Config.HTTP.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    *addr,
		Handler: httpapi.NewRouter(env.container.HTTPDeps()),
	}

	errCh := make(chan error, 1)
	go func() {
		env.container.Logger.Info("HTTP API listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	env.container.Logger.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// params turns flag values into hints; negative temperature and zero tokens mean unset.
func params(temperature float32, maxTokens int) entity.GenerationParams {
	var p entity.GenerationParams
	if temperature >= 0 {
		p.Temperature = entity.Float32(temperature)
	}
	if maxTokens > 0 {
		p.MaxTokens = entity.Int(maxTokens)
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
