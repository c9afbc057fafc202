package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerAdapter_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()

	log, err := NewLoggerAdapter(Config{Dir: dir, Name: "run one", Level: "debug"})
	require.NoError(t, err)

	log.WithField("episode", "e-1").Info("Episode finished", "applied", 2)
	require.NoError(t, log.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "run_one")

	f, err := os.Open(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	require.True(t, scanner.Scan())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "Episode finished", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "e-1", entry["episode"])
	assert.EqualValues(t, 2, entry["applied"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestLoggerAdapter_LevelFilter(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := NewFromZap(zap.New(core))

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown", "k", "v")
	log.Error("shown too")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "shown", logs.All()[0].Message)
	assert.Equal(t, "v", logs.All()[0].ContextMap()["k"])
}

func TestLoggerAdapter_WithFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := NewFromZap(zap.New(core))

	log.WithFields(map[string]any{"a": 1, "b": "two"}).Debug("msg")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.EqualValues(t, 1, ctx["a"])
	assert.Equal(t, "two", ctx["b"])
}

func TestNewLoggerAdapter_InvalidLevel(t *testing.T) {
	_, err := NewLoggerAdapter(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLoggerAdapter_NoSinksIsNop(t *testing.T) {
	log, err := NewLoggerAdapter(Config{})
	require.NoError(t, err)
	log.Info("nothing happens")
	assert.NoError(t, log.Close())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b-c", sanitize("a b-c"))
	assert.Equal(t, "formfill", sanitize(""))
	assert.Len(t, sanitize(string(make([]byte, 100))), 60)
}
