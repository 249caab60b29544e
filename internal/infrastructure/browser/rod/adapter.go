package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/url"
	"strings"
	"sync"
	"time"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/browser/pageparse"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

const (
	EngineGoogle     = "google"
	EngineDuckDuckGo = "duckduckgo"

	defaultTimeout   = 30 * time.Second
	defaultPoolSize  = 4
	idleWait         = 2 * time.Second
	maxScreenshotDim = 1024
)

var _ output.BrowserPort = (*BrowserAdapter)(nil)

// BrowserAdapter owns one browser process. Every call takes its own page from a
// bounded pool, so calls may run concurrently up to PoolSize.
type BrowserAdapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	pages    *pagePool
	cfg      BrowserConfig
	logger   output.LoggerPort

	closeOnce sync.Once
}

type BrowserConfig struct {
	Headless  bool
	Timeout   time.Duration
	NoSandbox bool
	// BinPath selects the browser binary. Empty lets the launcher find or fetch one.
	BinPath        string
	PoolSize       int
	ViewportWidth  int
	ViewportHeight int
	SearchEngine   string
	// SearchURL overrides the engine's results page URL; the escaped query is appended.
	SearchURL        string
	MaxContentLength int
	Logger           output.LoggerPort
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:         true,
		Timeout:          defaultTimeout,
		NoSandbox:        true,
		PoolSize:         defaultPoolSize,
		ViewportWidth:    1280,
		ViewportHeight:   720,
		SearchEngine:     EngineDuckDuckGo,
		MaxContentLength: pageparse.DefaultCleanConfig.MaxOutputSize,
	}
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig) (*BrowserAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PoolSize < 1 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.SearchEngine == "" {
		cfg.SearchEngine = EngineDuckDuckGo
	}
	if _, ok := engines[cfg.SearchEngine]; !ok {
		return nil, entity.ConfigError("unknown search engine %q", cfg.SearchEngine)
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain")
	if cfg.BinPath != "" {
		l = l.Bin(cfg.BinPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %w", entity.ErrBrowser, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("%w: connect browser: %w", entity.ErrBrowser, err)
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("Browser started", "headless", cfg.Headless, "poolSize", cfg.PoolSize, "engine", cfg.SearchEngine)
	}

	return newAdapter(browser, l, cfg), nil
}

func newAdapter(browser *rod.Browser, l *launcher.Launcher, cfg BrowserConfig) *BrowserAdapter {
	b := &BrowserAdapter{
		browser:  browser,
		launcher: l,
		cfg:      cfg,
		logger:   cfg.Logger,
	}
	b.pages = newPagePool(cfg.PoolSize, b.newPage)
	return b
}

func (b *BrowserAdapter) Scrape(ctx context.Context, pageURL, selector, waitFor string) (*entity.ScrapeResult, error) {
	result := &entity.ScrapeResult{URL: pageURL, Selector: selector}

	err := b.withPage(ctx, func(p *rod.Page) error {
		if err := b.open(p, pageURL); err != nil {
			return err
		}

		if waitFor != "" {
			if _, err := p.Element(waitFor); err != nil {
				return fmt.Errorf("wait for %s: %w", waitFor, err)
			}
		}

		if info, err := p.Info(); err == nil {
			result.Title = info.Title
		}

		if selector != "" {
			elements, err := p.Elements(selector)
			if err != nil {
				return fmt.Errorf("query %s: %w", selector, err)
			}
			result.Items = make([]string, 0, len(elements))
			for _, el := range elements {
				text, err := el.Text()
				if err != nil {
					continue
				}
				result.Items = append(result.Items, strings.TrimSpace(text))
			}
			return nil
		}

		raw, err := p.HTML()
		if err != nil {
			return fmt.Errorf("read html: %w", err)
		}
		cleanCfg := pageparse.DefaultCleanConfig
		cleanCfg.MaxOutputSize = b.cfg.MaxContentLength
		result.Content = pageparse.ExtractText(raw, &cleanCfg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scrape %s: %w", entity.ErrBrowser, pageURL, err)
	}
	return result, nil
}

func (b *BrowserAdapter) Search(ctx context.Context, query string, limit int) ([]entity.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, entity.ConfigError("search query is empty")
	}

	engine := engines[b.cfg.SearchEngine]
	searchURL := engine.searchURL
	if b.cfg.SearchURL != "" {
		searchURL = b.cfg.SearchURL
	}
	pageURL := searchURL + url.QueryEscape(query)

	var results []entity.SearchResult
	err := b.withPage(ctx, func(p *rod.Page) error {
		if err := b.open(p, pageURL); err != nil {
			return err
		}
		raw, err := p.HTML()
		if err != nil {
			return fmt.Errorf("read html: %w", err)
		}
		results = engine.parse(raw, pageURL, limit)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search %q: %w", entity.ErrBrowser, query, err)
	}

	if b.logger != nil {
		b.logger.Debug("Search completed", "engine", b.cfg.SearchEngine, "query", query, "results", len(results))
	}
	return results, nil
}

// Screenshot captures the full page as JPEG, scaled down to at most 1024px wide.
func (b *BrowserAdapter) Screenshot(ctx context.Context, pageURL string) (*entity.Screenshot, error) {
	var shot *entity.Screenshot
	err := b.withPage(ctx, func(p *rod.Page) error {
		if err := b.open(p, pageURL); err != nil {
			return err
		}

		imgBytes, err := p.Screenshot(true, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: gson.Int(80),
		})
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}

		shot, err = encodeScreenshot(imgBytes)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot %s: %w", entity.ErrBrowser, pageURL, err)
	}
	return shot, nil
}

func (b *BrowserAdapter) Close() {
	b.closeOnce.Do(func() {
		b.pages.drain(func(p *rod.Page) { _ = p.Close() })
		if b.browser != nil {
			_ = b.browser.Close()
		}
		if b.launcher != nil {
			b.launcher.Kill()
			b.launcher.Cleanup()
		}
	})
}

// withPage runs fn on a pooled page bound to ctx and the configured timeout.
func (b *BrowserAdapter) withPage(ctx context.Context, fn func(p *rod.Page) error) error {
	page, err := b.pages.get(ctx)
	if err != nil {
		return fmt.Errorf("acquire page: %w", err)
	}
	defer b.pages.put(page)

	p := page.Context(ctx).Timeout(b.cfg.Timeout)
	defer p.CancelTimeout()

	return fn(p)
}

func (b *BrowserAdapter) newPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	if b.cfg.ViewportWidth > 0 && b.cfg.ViewportHeight > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.cfg.ViewportWidth,
			Height:            b.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = page.Close()
			return nil, err
		}
	}
	return page, nil
}

func (b *BrowserAdapter) open(p *rod.Page, pageURL string) error {
	if err := p.Navigate(pageURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	// Best effort: pages that keep polling never go idle.
	_ = p.WaitIdle(idleWait)
	return nil
}

func encodeScreenshot(raw []byte) (*entity.Screenshot, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if img.Bounds().Dx() > maxScreenshotDim {
		img = imaging.Resize(img, maxScreenshotDim, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}

	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}
