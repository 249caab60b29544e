// Package di wires configuration, backends, the browser and the use cases.
package di

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"exo-agent/internal/adapter/httpapi"
	"exo-agent/internal/adapter/tool"
	"exo-agent/internal/application/port/output"
	"exo-agent/internal/application/service"
	"exo-agent/internal/infrastructure/browser/rod"
	"exo-agent/internal/infrastructure/config"
	"exo-agent/internal/infrastructure/env"
	"exo-agent/internal/infrastructure/llm/echo"
	"exo-agent/internal/infrastructure/llm/gemini"
	"exo-agent/internal/infrastructure/llm/huggingface"
	"exo-agent/internal/infrastructure/llm/ollama"
	"exo-agent/internal/infrastructure/llm/openai"
	"exo-agent/internal/infrastructure/logger"
	"exo-agent/internal/infrastructure/metrics"
	"exo-agent/internal/usecase/generator"
	"exo-agent/internal/usecase/research"
	"exo-agent/internal/usecase/webagent"
)

const metricsNamespace = "exo"

type Options struct {
	// ConfigPath is an optional YAML file.
	ConfigPath string
	// RunName names the per-run log file.
	RunName string
}

// Container owns every long-lived resource. The browser and the agents are
// created on first use; Close releases whatever was created.
type Container struct {
	Config    *config.Config
	Logger    output.LoggerPort
	Env       *env.EnvService
	Metrics   *metrics.Collector
	Prom      *prometheus.Registry
	Backends  *service.BackendRegistryImpl
	Generator *generator.UseCase

	mu       sync.Mutex
	browser  output.BrowserPort
	fetcher  *service.PageFetcher
	tools    *service.ToolRegistryImpl
	agent    *webagent.Agent
	research *research.UseCase
}

func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	// The configured logger depends on the environment, so env files are
	// reported through a warn-level console logger.
	bootCfg := logger.DefaultConfig(opts.RunName)
	bootCfg.Level = "warn"
	boot, err := logger.NewLoggerAdapter(bootCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	envSvc := env.NewEnvService(boot)
	_ = boot.Close()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logCfg := logger.DefaultConfig(opts.RunName)
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	if cfg.Logging.Dir != "" {
		logCfg.Dir = cfg.Logging.Dir
	}
	log, err := logger.NewLoggerAdapter(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	prom := prometheus.NewRegistry()
	prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(metricsNamespace, prom)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	backends := service.NewBackendRegistry()
	if err := registerBackends(backends, envSvc, log, collector); err != nil {
		log.Close()
		return nil, err
	}

	gen, err := generator.New(backends, generator.Config{
		DefaultBackend: cfg.DefaultBackend,
		Backends:       cfg.Backends,
		Retry:          cfg.Scraping.RetryPolicy(),
		Concurrency:    cfg.Scraping.Concurrency,
	}, log.WithField("component", "generator"))
	if err != nil {
		log.Close()
		return nil, err
	}

	log.Info("Container ready", "env", cfg.Env, "appEnv", envSvc.AppEnv(), "defaultBackend", cfg.DefaultBackend, "backends", backends.List())

	return &Container{
		Config:    cfg,
		Logger:    log,
		Env:       envSvc,
		Metrics:   collector,
		Prom:      prom,
		Backends:  backends,
		Generator: gen,
	}, nil
}

func registerBackends(r *service.BackendRegistryImpl, envSvc output.ConfigPort, log output.LoggerPort, c *metrics.Collector) error {
	openaiCfg := openai.DefaultConfig()
	openaiCfg.Env, openaiCfg.Logger = envSvc, log

	routerCfg := openai.OpenRouterConfig()
	routerCfg.Env, routerCfg.Logger = envSvc, log

	geminiCfg := gemini.DefaultConfig()
	geminiCfg.Env, geminiCfg.Logger = envSvc, log

	ollamaCfg := ollama.DefaultConfig()
	ollamaCfg.Logger = log

	hfCfg := huggingface.DefaultConfig()
	hfCfg.Env, hfCfg.Logger = envSvc, log

	factories := map[string]output.BackendFactory{
		echo.BackendID:        echo.Factory(),
		openai.BackendID:      openai.Factory(openaiCfg),
		openai.OpenRouterID:   openai.Factory(routerCfg),
		gemini.BackendID:      gemini.Factory(geminiCfg),
		ollama.BackendID:      ollama.Factory(ollamaCfg),
		huggingface.BackendID: huggingface.Factory(hfCfg),
	}
	for id, f := range factories {
		if err := r.Register(id, metrics.InstrumentFactory(f, c)); err != nil {
			return err
		}
	}
	return nil
}

// Browser launches the browser on first call.
func (c *Container) Browser(ctx context.Context) (output.BrowserPort, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browserLocked(ctx)
}

func (c *Container) browserLocked(ctx context.Context) (output.BrowserPort, error) {
	if c.browser != nil {
		return c.browser, nil
	}

	bc := c.Config.Browser
	cfg := rod.DefaultConfig()
	cfg.Headless = bc.Headless
	cfg.Timeout = bc.Timeout
	cfg.BinPath = bc.BinPath
	cfg.PoolSize = bc.PoolSize
	cfg.ViewportWidth = bc.Viewport.Width
	cfg.ViewportHeight = bc.Viewport.Height
	cfg.SearchEngine = bc.SearchEngine
	cfg.MaxContentLength = c.Config.Scraping.MaxContentLength
	cfg.Logger = c.Logger.WithField("component", "browser")

	browser, err := rod.NewBrowserAdapter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	c.browser = browser
	return browser, nil
}

func (c *Container) fetcherLocked(ctx context.Context) (*service.PageFetcher, error) {
	if c.fetcher != nil {
		return c.fetcher, nil
	}
	browser, err := c.browserLocked(ctx)
	if err != nil {
		return nil, err
	}

	sc := c.Config.Scraping
	fetcher, err := service.NewPageFetcher(browser, service.FetcherConfig{
		Concurrency: sc.Concurrency,
		Retry:       sc.RetryPolicy(),
		Interval:    sc.DelayBetweenRequests,
		Logger:      c.Logger.WithField("component", "fetcher"),
	})
	if err != nil {
		return nil, err
	}
	c.fetcher = fetcher
	return fetcher, nil
}

// Tools returns the web tool registry, launching the browser if needed.
func (c *Container) Tools(ctx context.Context) (output.ToolRegistry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toolsLocked(ctx)
}

func (c *Container) toolsLocked(ctx context.Context) (*service.ToolRegistryImpl, error) {
	if c.tools != nil {
		return c.tools, nil
	}
	browser, err := c.browserLocked(ctx)
	if err != nil {
		return nil, err
	}
	fetcher, err := c.fetcherLocked(ctx)
	if err != nil {
		return nil, err
	}

	log := c.Logger.WithField("component", "tools")
	tools := service.NewToolRegistry()
	for _, t := range []output.ToolPort{
		tool.NewWebSearchTool(fetcher, log),
		tool.NewScrapeWebsiteTool(browser, log),
		tool.NewScreenshotTool(browser, log),
	} {
		if err := tools.Register(t); err != nil {
			return nil, err
		}
	}
	c.tools = tools
	return tools, nil
}

// WebAgent returns the tool-calling agent bound to backendID, or to the
// default backend when backendID is empty. Only the default agent without an
// observer is cached.
func (c *Container) WebAgent(ctx context.Context, backendID string, observer webagent.Observer) (output.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	shared := backendID == "" && observer == nil
	if shared && c.agent != nil {
		return c.agent, nil
	}

	tools, err := c.toolsLocked(ctx)
	if err != nil {
		return nil, err
	}

	cfg := webagent.DefaultConfig()
	cfg.BackendID = backendID
	cfg.MaxIterations = c.Config.Agent.MaxIterations
	cfg.MaxObservationLength = c.Config.Agent.MaxObservationLength
	cfg.Observer = observer

	agent, err := webagent.New(ctx, c.Generator, tools, c.Logger.WithField("component", "webagent"), cfg)
	if err != nil {
		return nil, err
	}
	if shared {
		c.agent = agent
	}
	return agent, nil
}

// Researcher returns the research use case bound to backendID or the default backend.
func (c *Container) Researcher(ctx context.Context, backendID string) (*research.UseCase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.research != nil && backendID == "" {
		return c.research, nil
	}

	fetcher, err := c.fetcherLocked(ctx)
	if err != nil {
		return nil, err
	}

	cfg := research.DefaultConfig()
	cfg.BackendID = backendID
	uc := research.New(c.Generator, fetcher, c.Logger.WithField("component", "research"), cfg)
	if backendID == "" {
		c.research = uc
	}
	return uc, nil
}

// HTTPDeps wires the API handlers to this container.
func (c *Container) HTTPDeps() httpapi.Deps {
	return httpapi.Deps{
		Generator: c.Generator,
		Agent: func(ctx context.Context) (output.Agent, error) {
			return c.WebAgent(ctx, "", nil)
		},
		Collector:  c.Metrics,
		Gatherer:   c.Prom,
		Logger:     c.Logger.WithField("component", "http"),
		RequestLog: true,
	}
}

func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.Generator != nil {
		if err := c.Generator.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.browser != nil {
		c.browser.Close()
		c.browser = nil
	}
	if c.Logger != nil {
		if err := c.Logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
