package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
	"formfill/internal/infrastructure/llm/httpclient"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

var _ output.CompletionPort = (*Adapter)(nil)

const defaultMaxTokens = 4096

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the Anthropic endpoint; empty keeps the default.
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Logger    output.LoggerPort
}

type Adapter struct {
	llm       llms.Model
	model     string
	maxTokens int
	logger    output.LoggerPort
}

func NewAdapter(cfg Config) (*Adapter, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
		anthropic.WithHTTPClient(httpclient.New(cfg.Logger, cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create anthropic client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Adapter{
		llm:       llm,
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    cfg.Logger,
	}, nil
}

func (a *Adapter) Provider() entity.Provider {
	return entity.ProviderAnthropic
}

// Complete embeds the item schema in the system turn and returns the reply text
// with any code fence removed.
func (a *Adapter) Complete(ctx context.Context, req output.CompletionRequest) (string, error) {
	system, err := systemWithSchema(req)
	if err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, req.User),
	}

	resp, err := a.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(float64(req.Temperature)),
		llms.WithMaxTokens(a.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	choice := resp.Choices[0]
	if a.logger != nil {
		a.logger.Debug("Anthropic completion finished",
			"model", a.model,
			"stop_reason", choice.StopReason,
			"content_len", len(choice.Content))
	}

	return StripCodeFence(choice.Content), nil
}

func systemWithSchema(req output.CompletionRequest) (string, error) {
	schema, err := json.Marshal(&req.Schema)
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(req.System)
	sb.WriteString("\n\nReply with a JSON array and nothing else. Every element must validate against this JSON schema:\n")
	sb.Write(schema)
	return sb.String(), nil
}

// StripCodeFence trims whitespace and at most one surrounding Markdown code fence.
// Everything else, including prose or an object wrapped around the array, is left
// for answer validation to reject.
func StripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s[3:], "```")
	// The opening fence may carry a language tag up to the first newline.
	if nl := strings.IndexByte(body, '\n'); nl != -1 && !strings.ContainsAny(body[:nl], "[{") {
		body = body[nl+1:]
	}
	return strings.TrimSpace(body)
}
