package common

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("TEXT_LAYER_MIN_CHARS", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("PRICING_BATCH_SIZE", "")

	cfg := LoadConfig()
	assert.Equal(t, 500, cfg.TextLayer.MinTextChars)
	assert.Equal(t, 50, cfg.TextLayer.MinChunkChars)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Pricing.BatchSize)
	assert.True(t, cfg.Pricing.Verify)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("LLM_TIMEOUT", "2m")
	t.Setenv("PRICING_VERIFY", "false")
	t.Setenv("QUEUE_WORKERS", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout)
	assert.False(t, cfg.Pricing.Verify)
	assert.Equal(t, 2, cfg.Ingest.Workers)
}

func TestValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	cfg.LLM.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())

	cfg.Database.DSN = ""
	require.Error(t, cfg.ValidateServer())
	cfg.Database.DSN = "sqlite::memory:"
	require.NoError(t, cfg.ValidateServer())
}
