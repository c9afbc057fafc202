package rod

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

const (
	BindingName    = "__formfill_binding"
	StyleID        = "__formfill_selector_style"
	HighlightClass = "__formfill_selector_highlight"
	// RootAttr marks the last captured element so write-back resolves inside it.
	RootAttr = "data-formfill-root"

	previewMaxWidth = 1024
	defaultTimeout  = 10 * time.Second
)

var (
	//go:embed scripts/overlay.js
	overlayJS string
	//go:embed scripts/teardown.js
	teardownJS string
	//go:embed scripts/apply.js
	applyJS string
)

var _ output.PagePort = (*PageAdapter)(nil)

type PageAdapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	timeout  time.Duration
	logger   output.LoggerPort

	mu            sync.Mutex
	bindingAdded  bool
	stopListening context.CancelFunc
}

type BrowserConfig struct {
	Headless   bool
	SlowMotion time.Duration
	Timeout    time.Duration
	NoSandbox  bool
	DevTools   bool
	// RemoteURL attaches to an already running browser instead of launching one.
	RemoteURL string
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless:  false,
		Timeout:   defaultTimeout,
		NoSandbox: false,
	}
}

func NewPageAdapter(ctx context.Context, cfg BrowserConfig, logger output.LoggerPort) (*PageAdapter, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	var (
		l          *launcher.Launcher
		controlURL string
		err        error
	)
	if cfg.RemoteURL != "" {
		controlURL, err = launcher.ResolveURL(cfg.RemoteURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve browser url: %w", err)
		}
	} else {
		l = launcher.New().
			Context(ctx).
			Headless(cfg.Headless).
			Devtools(cfg.DevTools).
			NoSandbox(cfg.NoSandbox).
			Delete("use-mock-keychain")
		controlURL, err = l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	}

	browser := rod.New().
		ControlURL(controlURL).
		SlowMotion(cfg.SlowMotion)
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	logger.Info("Browser ready", "remote", cfg.RemoteURL != "", "headless", cfg.Headless)

	return &PageAdapter{
		browser:  browser,
		launcher: l,
		page:     page,
		timeout:  cfg.Timeout,
		logger:   logger,
	}, nil
}

func (p *PageAdapter) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.Timeout(p.timeout).WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (p *PageAdapter) Info(ctx context.Context) (entity.PageInfo, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return entity.PageInfo{}, fmt.Errorf("page info: %w", err)
	}
	return entity.PageInfo{URL: info.URL, Title: info.Title}, nil
}

// InstallSelectionOverlay injects the picker and forwards its events to sink until
// the overlay is removed or reinstalled.
func (p *PageAdapter) InstallSelectionOverlay(ctx context.Context, sink output.SelectionSink) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopListening != nil {
		p.stopListening()
		p.stopListening = nil
	}

	if !p.bindingAdded {
		if err := (proto.RuntimeAddBinding{Name: BindingName}).Call(p.page); err != nil {
			return fmt.Errorf("add binding: %w", err)
		}
		p.bindingAdded = true
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	wait := p.page.Context(listenCtx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingName {
			return
		}
		var ev entity.SelectionEvent
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			p.logger.Warn("Overlay payload rejected", "error", err)
			return
		}
		sink(ev)
	})
	go wait()

	if _, err := p.page.Context(ctx).Timeout(p.timeout).Eval(overlayJS, BindingName, StyleID, HighlightClass, RootAttr); err != nil {
		cancel()
		return fmt.Errorf("inject overlay: %w", err)
	}
	p.stopListening = cancel

	p.logger.Debug("Selection overlay installed")
	return nil
}

func (p *PageAdapter) RemoveSelectionOverlay(ctx context.Context) error {
	p.mu.Lock()
	if p.stopListening != nil {
		p.stopListening()
		p.stopListening = nil
	}
	p.mu.Unlock()

	if _, err := p.page.Context(ctx).Timeout(p.timeout).Eval(teardownJS, StyleID, HighlightClass); err != nil {
		return fmt.Errorf("remove overlay: %w", err)
	}
	return nil
}

// ApplyValues writes every pair in one page evaluation and returns the page's
// per-field outcomes.
func (p *PageAdapter) ApplyValues(ctx context.Context, pairs []entity.FillPair) (entity.FillReport, error) {
	if len(pairs) == 0 {
		return entity.FillReport{}, nil
	}

	res, err := p.page.Context(ctx).Timeout(p.timeout).Eval(applyJS, pairs, RootAttr, entity.TextInputTypes)
	if err != nil {
		return entity.FillReport{}, fmt.Errorf("apply values: %w", err)
	}

	var outcomes []entity.FieldOutcome
	if err := res.Value.Unmarshal(&outcomes); err != nil {
		return entity.FillReport{}, fmt.Errorf("decode outcomes: %w", err)
	}
	return entity.FillReport{Outcomes: outcomes}, nil
}

// LifecycleContext is cancelled when the main frame navigates.
func (p *PageAdapter) LifecycleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	lctx, cancel := context.WithCancel(ctx)
	wait := p.page.Context(lctx).EachEvent(func(e *proto.PageFrameNavigated) bool {
		if e.Frame == nil || e.Frame.ParentID != "" {
			return false
		}
		p.logger.Debug("Page navigated", "url", e.Frame.URL)
		cancel()
		return true
	})
	go wait()
	return lctx, cancel
}

func (p *PageAdapter) ScreenshotRect(ctx context.Context, rect entity.Rect) (*entity.Screenshot, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("screenshot: empty rect")
	}

	data, err := p.page.Context(ctx).Timeout(p.timeout).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(80),
		Clip: &proto.PageViewport{
			X:      rect.X,
			Y:      rect.Y,
			Width:  rect.Width,
			Height: rect.Height,
			Scale:  1,
		},
		CaptureBeyondViewport: true,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}

	if img.Bounds().Dx() > previewMaxWidth {
		img = imaging.Resize(img, previewMaxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("failed to encode screenshot: %w", err)
	}

	bounds := img.Bounds()
	return &entity.Screenshot{
		Data:   buf.Bytes(),
		Format: "jpeg",
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

func (p *PageAdapter) Close() {
	p.mu.Lock()
	if p.stopListening != nil {
		p.stopListening()
		p.stopListening = nil
	}
	p.mu.Unlock()

	if p.launcher == nil {
		// Attached browsers keep running; only our tab goes away.
		if p.page != nil {
			_ = p.page.Close()
		}
		return
	}
	if p.browser != nil {
		_ = p.browser.Close()
	}
	p.launcher.Kill()
	p.launcher.Cleanup()
}
