package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "LLM_PROVIDER", "DATABASE_URL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_AppliesDefaultsWhenUnset(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/ragmux")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "cosine", cfg.Qdrant.DefaultMetric)
	assert.Equal(t, 20, cfg.Memory.WorkingMemoryCapacity)
}

func TestLoad_FailsWithoutDatabaseURL(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_FailsWithoutActiveProviderKey(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/ragmux")
	t.Setenv("LLM_PROVIDER", "anthropic")

	_, err := Load()
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}

func TestLoad_RejectsUnsupportedProvider(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/ragmux")
	t.Setenv("LLM_PROVIDER", "cohere")

	_, err := Load()
	assert.ErrorContains(t, err, "unsupported LLM_PROVIDER")
}

func TestValidate_PassesWithGoogleProviderAndKey(t *testing.T) {
	cfg := Config{
		Postgres: PostgresConfig{DSN: "postgres://x"},
		LLM:      LLMConfig{Provider: "google", Google: ProviderConfig{APIKey: "key"}},
	}
	assert.NoError(t, cfg.Validate())
}

func TestIntFromEnv_FallsBackToDefaultOnUnparseableValue(t *testing.T) {
	t.Setenv("SOME_TEST_INT", "not-a-number")
	assert.Equal(t, 42, intFromEnv("SOME_TEST_INT", 42))
}

func TestBoolFromEnv_AcceptsVariousTruthySpellings(t *testing.T) {
	t.Setenv("SOME_TEST_BOOL", "Yes")
	assert.True(t, boolFromEnv("SOME_TEST_BOOL", false))
}

func TestFirstNonEmpty_SkipsBlankValues(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
}
