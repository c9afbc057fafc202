package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
	"formfill/internal/infrastructure/logger"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestToSchema(t *testing.T) {
	def := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"fieldId": {Type: jsonschema.Integer, Description: "id"},
			"value":   {Type: jsonschema.String},
		},
		Required: []string{"fieldId", "value"},
	}

	s := toSchema(def)

	assert.Equal(t, genai.TypeObject, s.Type)
	require.Len(t, s.Properties, 2)
	assert.Equal(t, genai.TypeInteger, s.Properties["fieldId"].Type)
	assert.Equal(t, "id", s.Properties["fieldId"].Description)
	assert.Equal(t, genai.TypeString, s.Properties["value"].Type)
	assert.Equal(t, []string{"fieldId", "value"}, s.Required)
	assert.Equal(t, []string{"fieldId", "value"}, s.PropertyOrdering)
}

func TestToSchema_Array(t *testing.T) {
	s := toSchema(jsonschema.Definition{
		Type:  jsonschema.Array,
		Items: &jsonschema.Definition{Type: jsonschema.String, Enum: []string{"a", "b"}},
	})
	assert.Equal(t, genai.TypeArray, s.Type)
	require.NotNil(t, s.Items)
	assert.Equal(t, []string{"a", "b"}, s.Items.Enum)
}

func TestSchemaType_Unknown(t *testing.T) {
	assert.Equal(t, genai.TypeUnspecified, schemaType("tuple"))
}

func TestNewAdapter_RequiresKey(t *testing.T) {
	_, err := NewAdapter(t.Context(), Config{Model: "gemini-2.5-pro"})
	assert.Error(t, err)
}

var itemSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"fieldId": {Type: jsonschema.Integer},
		"value":   {Type: jsonschema.String},
	},
	Required: []string{"fieldId", "value"},
}

func fakeGemini(t *testing.T, reply string, captured *map[string]any) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)
		assert.Equal(t, "g-test", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			assert.NoError(t, json.Unmarshal(body, captured))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a, err := NewAdapter(context.Background(), Config{
		APIKey:  "g-test",
		Model:   "gemini-2.5-flash",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Logger:  logger.NewNop(),
	})
	require.NoError(t, err)
	return a
}

func TestAdapter_Complete(t *testing.T) {
	var captured map[string]any
	ts := fakeGemini(t, `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "[{\"fieldId\":1,\"value\":\"US\"}]"}]},
			"finishReason": "STOP"
		}]
	}`, &captured)

	a := newTestAdapter(t, ts.URL)
	assert.Equal(t, entity.ProviderGoogle, a.Provider())

	raw, err := a.Complete(context.Background(), output.CompletionRequest{
		System:      "Fill the form.",
		User:        "<form></form>",
		Temperature: 0.5,
		Schema:      itemSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, `[{"fieldId":1,"value":"US"}]`, raw)

	assert.Contains(t, fmt.Sprint(captured["systemInstruction"]), "Fill the form.")
	assert.Contains(t, fmt.Sprint(captured["contents"]), "<form></form>")

	gen := captured["generationConfig"].(map[string]any)
	assert.InDelta(t, 0.5, gen["temperature"], 1e-9)
	assert.Equal(t, "application/json", gen["responseMimeType"])

	schema := gen["responseSchema"].(map[string]any)
	assert.Equal(t, "ARRAY", schema["type"])
	items := schema["items"].(map[string]any)
	assert.Equal(t, "OBJECT", items["type"])
	assert.Equal(t, []any{"fieldId", "value"}, items["required"])
	assert.Equal(t, "INTEGER", items["properties"].(map[string]any)["fieldId"].(map[string]any)["type"])
}

func TestAdapter_CompleteEmptyResponse(t *testing.T) {
	ts := fakeGemini(t, `{
		"candidates": [{
			"content": {"role": "model", "parts": []},
			"finishReason": "SAFETY"
		}]
	}`, nil)

	_, err := newTestAdapter(t, ts.URL).Complete(context.Background(), output.CompletionRequest{User: "x", Schema: itemSchema})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestAdapter_CompleteNoCandidates(t *testing.T) {
	ts := fakeGemini(t, `{"candidates": []}`, nil)

	_, err := newTestAdapter(t, ts.URL).Complete(context.Background(), output.CompletionRequest{User: "x", Schema: itemSchema})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}
