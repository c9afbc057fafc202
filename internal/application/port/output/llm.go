package output

import (
	"context"

	"formfill/internal/domain/entity"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// CompletionPort is one structured-generation backend bound to a credential and model.
type CompletionPort interface {
	Provider() entity.Provider
	// Complete returns the raw JSON array text produced by the model.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type CompletionRequest struct {
	System string
	User   string
	// Schema describes one array item.
	Schema      jsonschema.Definition
	Temperature float32
}

type CompletionFactory interface {
	NewCompletion(provider entity.Provider, apiKey, model string) (CompletionPort, error)
}
