package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
	"formfill/internal/infrastructure/llm/httpclient"

	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/genai"
)

var _ output.CompletionPort = (*Adapter)(nil)

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the Gemini API endpoint; empty keeps the default.
	BaseURL string
	Timeout time.Duration
	Logger  output.LoggerPort
}

type Adapter struct {
	client *genai.Client
	model  string
	logger output.LoggerPort
}

func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpclient.New(cfg.Logger, cfg.Timeout),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Adapter{
		client: client,
		model:  cfg.Model,
		logger: cfg.Logger,
	}, nil
}

func (a *Adapter) Provider() entity.Provider {
	return entity.ProviderGoogle
}

// Complete requests application/json constrained by an array response schema.
func (a *Adapter) Complete(ctx context.Context, req output.CompletionRequest) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(req.Temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema: &genai.Schema{
			Type:  genai.TypeArray,
			Items: toSchema(req.Schema),
		},
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(req.User), config)
	if err != nil {
		return "", fmt.Errorf("generate content failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		reason := "empty response"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			reason = "finish reason " + string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("no content: %s", reason)
	}

	if a.logger != nil {
		a.logger.Debug("Gemini completion finished",
			"model", a.model,
			"content_len", len(text))
	}
	return text, nil
}

// toSchema converts a JSON schema definition into the genai subset.
func toSchema(def jsonschema.Definition) *genai.Schema {
	s := &genai.Schema{
		Type:        schemaType(def.Type),
		Description: def.Description,
		Required:    def.Required,
		Enum:        def.Enum,
	}
	if def.Items != nil {
		s.Items = toSchema(*def.Items)
	}
	if len(def.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(def.Properties))
		for name, prop := range def.Properties {
			s.Properties[name] = toSchema(prop)
		}
		// keep the order the model sees stable
		s.PropertyOrdering = append([]string(nil), def.Required...)
	}
	return s
}

func schemaType(t jsonschema.DataType) genai.Type {
	switch t {
	case jsonschema.Object:
		return genai.TypeObject
	case jsonschema.Array:
		return genai.TypeArray
	case jsonschema.String:
		return genai.TypeString
	case jsonschema.Integer:
		return genai.TypeInteger
	case jsonschema.Number:
		return genai.TypeNumber
	case jsonschema.Boolean:
		return genai.TypeBoolean
	default:
		return genai.TypeUnspecified
	}
}
