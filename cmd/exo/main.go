package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"exo-agent/internal/di"
)

const usage = `Usage: exo [--config file] <command> [flags] [args]

Commands:
  generate   generate text for a prompt
  batch      generate for many prompts, one per line of --file or stdin
  models     list the models of a backend
  backends   list registered backends
  agent      answer a message with the web agent
  research   search, read and summarize a query
  scrape     print the text of a page
  serve      run the HTTP API
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := pflag.NewFlagSet("exo", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(stderr)
	configPath := global.StringP("config", "c", os.Getenv("EXO_CONFIG"), "YAML config file")
	global.Usage = func() { fmt.Fprint(stderr, usage) }

	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	name, rest := global.Arg(0), global.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		global.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, di.Options{ConfigPath: *configPath, RunName: name})
	if err != nil {
		fmt.Fprintf(stderr, "init: %v\n", err)
		return 1
	}
	defer container.Close()

	env := &cmdEnv{
		container: container,
		stdin:     stdin,
		stdout:    stdout,
		stderr:    stderr,
	}
	if err := cmd(ctx, env, rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		container.Logger.Error("Command failed", "command", name, "error", err)
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
	return 0
}

type cmdEnv struct {
	container *di.Container
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
}

func (e *cmdEnv) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// text joins args, or reads all of stdin when there are none.
func (e *cmdEnv) text(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(e.stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (e *cmdEnv) lines(path string) ([]string, error) {
	r := e.stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

const shutdownTimeout = 10 * time.Second
