// Package llm selects a completion backend for a provider.
package llm

import (
	"context"
	"fmt"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
	"formfill/internal/infrastructure/llm/anthropic"
	"formfill/internal/infrastructure/llm/gemini"
	"formfill/internal/infrastructure/llm/openai"
)

var _ output.CompletionFactory = (*Factory)(nil)

type FactoryConfig struct {
	// OpenAIBaseURL routes the openai provider elsewhere, e.g. OpenRouter.
	OpenAIBaseURL    string
	AnthropicBaseURL string
	GeminiBaseURL    string
	// HTTPTimeout bounds a single HTTP round trip; the mapper bounds the whole call.
	HTTPTimeout time.Duration
}

type Factory struct {
	cfg    FactoryConfig
	logger output.LoggerPort
}

func NewFactory(cfg FactoryConfig, logger output.LoggerPort) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

func (f *Factory) NewCompletion(provider entity.Provider, apiKey, model string) (output.CompletionPort, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("empty api key for %s", provider)
	}
	log := f.logger.WithFields(map[string]any{"provider": provider, "model": model})

	switch provider {
	case entity.ProviderOpenAI:
		return openai.NewAdapter(openai.Config{
			APIKey:  apiKey,
			Model:   model,
			BaseURL: f.cfg.OpenAIBaseURL,
			Timeout: f.cfg.HTTPTimeout,
			Logger:  log,
		}), nil

	case entity.ProviderAnthropic:
		a, err := anthropic.NewAdapter(anthropic.Config{
			APIKey:  apiKey,
			Model:   model,
			BaseURL: f.cfg.AnthropicBaseURL,
			Timeout: f.cfg.HTTPTimeout,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		return a, nil

	case entity.ProviderGoogle:
		g, err := gemini.NewAdapter(context.Background(), gemini.Config{
			APIKey:  apiKey,
			Model:   model,
			BaseURL: f.cfg.GeminiBaseURL,
			Timeout: f.cfg.HTTPTimeout,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		return g, nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
