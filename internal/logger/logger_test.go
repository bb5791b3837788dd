package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfo(t *testing.T) {
	log, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestDebugForcesDebugLevel(t *testing.T) {
	log, err := New(Config{Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestLevelParsed(t *testing.T) {
	log, err := New(Config{Level: "error"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.ErrorLevel, log.GetLevel())
}

func TestInvalidLevelRejected(t *testing.T) {
	_, err := New(Config{Level: "shouting"})
	assert.Error(t, err)
}

func TestWithComponentTagsEntries(t *testing.T) {
	var buf bytes.Buffer
	log := WithComponent(zerolog.New(&buf), "relay")
	log.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "relay", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}

func TestDefaultConfigReadsEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEBUG", "1")
	cfg := DefaultConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.Debug)
}
