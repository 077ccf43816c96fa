package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "studykit.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-flash-8b"}, cfg.Gemini.Models)
	assert.Equal(t, 500, cfg.Gemini.RetryDelayMs)
	assert.InDelta(t, 0.7, cfg.Gemini.Temperature, 0.001)

	assert.Equal(t, 1500, cfg.Pipeline.ChunkSize)
	assert.InDelta(t, 0.25, cfg.Pipeline.OverlapPercent, 0.001)
	assert.Equal(t, 3, cfg.Pipeline.BatchSize)
	assert.Equal(t, 1, cfg.Pipeline.BatchIntervalSec)
}

func TestLoad_APIKeysFromEnv(t *testing.T) {
	t.Setenv("STUDYKIT_GEMINI_API_KEYS", "key-1, key-2,key-3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"key-1", "key-2", "key-3"}, cfg.Gemini.APIKeys)
}

func TestLoad_ModelsFromEnv(t *testing.T) {
	t.Setenv("STUDYKIT_GEMINI_MODELS", "model-a,model-b")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"model-a", "model-b"}, cfg.Gemini.Models)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Gemini: GeminiConfig{
			APIKeys: []string{"k"},
			Models:  []string{"m"},
		},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Gemini.APIKeys = nil
	assert.Error(t, cfg.Validate())

	cfg.Gemini.APIKeys = []string{"k"}
	cfg.Gemini.Models = nil
	assert.Error(t, cfg.Validate())
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
