package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
	"formfill/internal/infrastructure/logger"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"fieldId": {Type: jsonschema.Integer},
		"value":   {Type: jsonschema.String},
	},
	Required: []string{"fieldId", "value"},
}

func TestUnwrapAnswers(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{name: "wrapped", content: `{"answers":[{"fieldId":0,"value":"x"}]}`, want: `[{"fieldId":0,"value":"x"}]`},
		{name: "bare array", content: ` [{"fieldId":0,"value":"x"}] `, want: `[{"fieldId":0,"value":"x"}]`},
		{name: "missing property", content: `{"result":[]}`, wantErr: true},
		{name: "not json", content: `sorry`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unwrapAnswers(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestWrapSchema(t *testing.T) {
	data, err := json.Marshal(wrapSchema(itemSchema))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "object", got["type"])
	assert.Equal(t, []any{"answers"}, got["required"])

	answers := got["properties"].(map[string]any)["answers"].(map[string]any)
	assert.Equal(t, "array", answers["type"])
	assert.Equal(t, "object", answers["items"].(map[string]any)["type"])
}

func TestAdapter_Complete(t *testing.T) {
	var captured map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"answers\":[{\"fieldId\":1,\"value\":\"US\"}]}"}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer ts.Close()

	a := NewAdapter(Config{APIKey: "sk-test", Model: "gpt-4o", BaseURL: ts.URL, Timeout: 5 * time.Second, Logger: logger.NewNop()})
	assert.Equal(t, entity.ProviderOpenAI, a.Provider())

	raw, err := a.Complete(context.Background(), output.CompletionRequest{System: "sys", User: "user", Schema: itemSchema})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"fieldId":1,"value":"US"}]`, raw)

	assert.Equal(t, "gpt-4o", captured["model"])
	format := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, schemaName, format["json_schema"].(map[string]any)["name"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestAdapter_CompleteHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	a := NewAdapter(Config{APIKey: "sk-bad", Model: "gpt-4o", BaseURL: ts.URL})
	_, err := a.Complete(context.Background(), output.CompletionRequest{Schema: itemSchema})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}
