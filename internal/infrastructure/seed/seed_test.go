package seed

import (
	"os"
	"path/filepath"
	"testing"

	"formfill/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
api_keys:
  - name: personal
    provider: anthropic
    api_key: ${FORMFILL_SEED_TEST_KEY}
prompts:
  - name: me
    prompt: |
      John Doe, john@example.com, lives in the US
selected_api_keys: [personal]
selected_prompt: me
selected_model: claude-sonnet-4-20250514
`

func TestParse(t *testing.T) {
	t.Setenv("FORMFILL_SEED_TEST_KEY", "sk-ant-123")

	s, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.Len(t, s.APIKeys, 1)
	assert.Equal(t, entity.ProviderAnthropic, s.APIKeys[0].Provider)
	assert.Equal(t, "sk-ant-123", s.APIKeys[0].APIKey)
	require.Len(t, s.Prompts, 1)
	assert.Contains(t, s.Prompts[0].Prompt, "john@example.com")
	assert.Equal(t, []string{"personal"}, s.SelectedAPIKeys)
	assert.Equal(t, "me", s.SelectedPrompt)
	assert.Equal(t, "claude-sonnet-4-20250514", s.SelectedModel)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("selected_modle: gpt-4o\n"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, s.APIKeys)
}

func TestLoad(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.Prompts)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selected_model: gpt-4o\n"), 0o644))
	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", s.SelectedModel)
}
