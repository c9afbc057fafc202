package di

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"formfill/internal/adapter/handlers"
	"formfill/internal/application/port/output"
	"formfill/internal/application/service"
	"formfill/internal/infrastructure/browser/rod"
	"formfill/internal/infrastructure/llm"
	"formfill/internal/infrastructure/logger"
	"formfill/internal/infrastructure/seed"
	"formfill/internal/infrastructure/storage/sqlite"
	"formfill/internal/infrastructure/transport"
	"formfill/internal/infrastructure/userinteraction"
	"formfill/internal/usecase/fill"
	"formfill/internal/usecase/mapper"
	"formfill/internal/usecase/normalizer"
	"formfill/internal/usecase/selection"
	"formfill/internal/usecase/settings"
	"formfill/internal/usecase/writeback"
)

type Container struct {
	Logger    output.LoggerPort
	Store     output.SettingsPort
	Settings  *settings.Service
	Page      output.PagePort
	UI        output.UserInteractionPort
	Selection *selection.Controller
	Fill      *fill.UseCase
	Registry  output.HandlerRegistry
	Bus       *transport.Bus
	Server    *transport.Server
}

type Config struct {
	LogDir     string
	LogLevel   string
	LogConsole bool

	SettingsDB   string
	SettingsSeed string

	Browser     rod.BrowserConfig
	StartURL    string
	ControlAddr string

	CompletionTimeout time.Duration
	OpenAIBaseURL     string
	AnthropicBaseURL  string
	GeminiBaseURL     string
	CapturePreview    bool
}

// ConfigFromEnv reads the container configuration from the environment.
func ConfigFromEnv(env output.ConfigPort) Config {
	browser := rod.DefaultConfig()
	browser.Headless = env.GetBool("BROWSER_HEADLESS", false)
	browser.NoSandbox = env.GetBool("BROWSER_NO_SANDBOX", false)
	browser.RemoteURL = env.Get("BROWSER_REMOTE_URL")
	browser.Timeout = env.GetDuration("BROWSER_TIMEOUT_SEC", browser.Timeout)

	return Config{
		LogDir:            env.GetWithDefault("LOG_DIR", "log"),
		LogLevel:          env.GetWithDefault("LOG_LEVEL", "info"),
		LogConsole:        env.GetBool("LOG_CONSOLE", false),
		SettingsDB:        env.GetWithDefault("SETTINGS_DB", filepath.Join("data", "settings.db")),
		SettingsSeed:      env.Get("SETTINGS_SEED"),
		Browser:           browser,
		StartURL:          env.Get("FORMFILL_START_URL"),
		ControlAddr:       env.GetWithDefault("CONTROL_ADDR", "127.0.0.1:8765"),
		CompletionTimeout: env.GetDuration("COMPLETION_TIMEOUT_SEC", 60*time.Second),
		OpenAIBaseURL:     env.Get("OPENAI_BASE_URL"),
		AnthropicBaseURL:  env.Get("ANTHROPIC_BASE_URL"),
		GeminiBaseURL:     env.Get("GEMINI_BASE_URL"),
		CapturePreview:    env.GetBool("CAPTURE_PREVIEW", false),
	}
}

// NewSettingsContainer wires only the logger and the settings store, for commands
// that never touch a browser.
func NewSettingsContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{
		Dir:     cfg.LogDir,
		Name:    "formfill",
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c := &Container{Logger: log}

	store, err := sqlite.Open(cfg.SettingsDB)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	c.Store = store
	c.Settings = settings.NewService(store, log)

	seedData, err := seed.Load(cfg.SettingsSeed)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load settings seed: %w", err)
	}
	if err := c.Settings.ApplySeed(ctx, seedData); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to apply settings seed: %w", err)
	}

	return c, nil
}

// NewContainer wires the full form-filling pipeline around one browser page.
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	c, err := NewSettingsContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	page, err := rod.NewPageAdapter(ctx, cfg.Browser, c.Logger.WithField("component", "browser"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}
	c.Page = page
	c.UI = userinteraction.NewConsoleUserInteraction()

	m, err := mapper.New(mapper.Config{Timeout: cfg.CompletionTimeout}, c.Logger.WithField("component", "mapper"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create mapper: %w", err)
	}

	factory := llm.NewFactory(llm.FactoryConfig{
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		GeminiBaseURL:    cfg.GeminiBaseURL,
		HTTPTimeout:      cfg.CompletionTimeout,
	}, c.Logger)

	fillCfg := fill.Config{}
	if cfg.CapturePreview {
		fillCfg.PreviewDir = filepath.Join(cfg.LogDir, "previews")
	}

	c.Fill = fill.NewUseCase(
		normalizer.New(nil),
		c.Settings,
		factory,
		m,
		writeback.NewEngine(page, c.Logger.WithField("component", "writeback")),
		page,
		c.UI,
		c.Logger.WithField("component", "fill"),
		fillCfg,
	)
	c.Selection = selection.NewController(page, c.UI, c.Logger, c.Fill.HandleCapture)

	registry := service.NewHandlerRegistry()
	handlers.RegisterAll(registry, c.Selection, c.Fill, c.Fill, c.Settings)
	c.Registry = registry
	c.Bus = transport.NewBus(registry, c.Logger.WithField("component", "bus"))
	c.Server = transport.NewServer(cfg.ControlAddr, c.Bus, c.Logger.WithField("component", "http"))

	return c, nil
}

// Close stops the picker, aborts the running episode and waits for both before
// releasing the browser and the store.
func (c *Container) Close() {
	var sel selectionStopper
	if c.Selection != nil {
		sel = c.Selection
	}
	var ep episodeStopper
	if c.Fill != nil {
		ep = c.Fill
	}
	stopEpisodes(context.Background(), sel, ep, c.Logger)

	if c.Page != nil {
		c.Page.Close()
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil && c.Logger != nil {
			c.Logger.Warn("Settings store close failed", "error", err)
		}
	}
	if c.Logger != nil {
		_ = c.Logger.Close()
	}
}

type selectionStopper interface {
	Cancel(ctx context.Context) error
	Wait()
}

type episodeStopper interface {
	Abort()
	Wait()
}

// stopEpisodes disarms the picker and drains its capture dispatch before aborting,
// so a capture that lands during shutdown cannot start an episode nobody aborts.
func stopEpisodes(ctx context.Context, sel selectionStopper, ep episodeStopper, log output.LoggerPort) {
	if sel != nil {
		if err := sel.Cancel(ctx); err != nil && log != nil {
			log.Warn("Selection cancel failed", "error", err)
		}
		sel.Wait()
	}
	if ep != nil {
		ep.Abort()
		ep.Wait()
	}
}
