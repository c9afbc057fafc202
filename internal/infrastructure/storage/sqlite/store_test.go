package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetSetRemove(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "selectedModel")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "selectedModel", "gpt-4o"))
	v, ok, err := s.Get(ctx, "selectedModel")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o", v)

	require.NoError(t, s.Set(ctx, "selectedModel", "o3-mini"))
	v, _, err = s.Get(ctx, "selectedModel")
	require.NoError(t, err)
	assert.Equal(t, "o3-mini", v, "last write wins")

	require.NoError(t, s.Remove(ctx, "selectedModel"))
	_, ok, err = s.Get(ctx, "selectedModel")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove(ctx, "never-set"))
}

func TestStore_EmptyValueIsPresent(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "selectedPrompt", ""))
	v, ok, err := s.Get(ctx, "selectedPrompt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestStore_Keys(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "prompts", "[]"))
	require.NoError(t, s.Set(ctx, "apiKeys", "[]"))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"apiKeys", "prompts"}, keys)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "apiKeys", `[{"name":"a"}]`))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get(ctx, "apiKeys")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"name":"a"}]`, v)
}
