package openai

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

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var _ output.CompletionPort = (*Adapter)(nil)

// OpenRouterBaseURL serves OpenAI-compatible models through OpenRouter.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

const schemaName = "form_answers"

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the OpenAI endpoint; empty keeps the default.
	BaseURL string
	Timeout time.Duration
	Logger  output.LoggerPort
}

type Adapter struct {
	client *openai.Client
	model  string
	logger output.LoggerPort
}

func NewAdapter(cfg Config) *Adapter {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = httpclient.New(cfg.Logger, cfg.Timeout)

	return &Adapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

func (a *Adapter) Provider() entity.Provider {
	return entity.ProviderOpenAI
}

// Complete asks for a strict json_schema object whose "answers" property holds
// the array, since structured outputs require an object at the root.
func (a *Adapter) Complete(ctx context.Context, req output.CompletionRequest) (string, error) {
	schema := wrapSchema(req.Schema)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: &schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}

	if a.logger != nil {
		a.logger.Debug("Chat completion finished",
			"model", a.model,
			"finish_reason", choice.FinishReason,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens)
	}

	return unwrapAnswers(choice.Message.Content)
}

func wrapSchema(item jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"answers": {
				Type:  jsonschema.Array,
				Items: &item,
			},
		},
		Required:             []string{"answers"},
		AdditionalProperties: false,
	}
}

// unwrapAnswers returns the "answers" array. Content that already is an array
// (OpenAI-compatible endpoints that ignore the schema) is passed through.
func unwrapAnswers(content string) (string, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "[") {
		return content, nil
	}

	var wrapper struct {
		Answers json.RawMessage `json:"answers"`
	}
	if err := json.Unmarshal([]byte(content), &wrapper); err != nil {
		return "", fmt.Errorf("decode structured output: %w", err)
	}
	if len(wrapper.Answers) == 0 {
		return "", errors.New(`structured output has no "answers" property`)
	}
	return string(wrapper.Answers), nil
}
