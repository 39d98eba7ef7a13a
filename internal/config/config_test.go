package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow/finflow/internal/llm"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("llm.default.provider", "ollama")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.RateLimit.PerMinute)
	assert.Equal(t, 1000, cfg.RateLimit.PerHour)
	assert.Equal(t, 1000, cfg.Cache.Entries)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 2, cfg.Breaker.SuccessThreshold)
	assert.Equal(t, 60*time.Second, cfg.Breaker.Timeout)
	assert.Equal(t, 50, cfg.Gmail.MaxResults)
	assert.Equal(t, "INR", cfg.Extraction.DefaultCurrency)
	assert.NotContains(t, cfg.Database.Path, "$HOME")
}

func TestLoadRequiresDefaultProvider(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("llm.default.provider", "ollama")
	viper.Set("server.addr", ":9999")
	viper.Set("rate_limit.per_minute", 5)
	viper.Set("cache.ttl", "30m")
	viper.Set("breaker.failure_threshold", 3)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.RateLimit.PerMinute)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
}

func TestClientConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("llm.default.provider", "ollama")
	viper.Set("llm.default.model", "llama3.2")
	viper.Set("llm.extraction.provider", "anthropic")
	viper.Set("llm.extraction.api_key", "sk-test")
	viper.Set("llm.extraction.model", "claude-3-5-haiku-20241022")

	cfg, err := Load()
	require.NoError(t, err)

	t.Run("explicit use case", func(t *testing.T) {
		cc, err := cfg.ClientConfig(llm.UseCaseExtraction)
		require.NoError(t, err)
		assert.Equal(t, llm.ProviderAnthropic, cc.Provider)
		assert.Equal(t, "sk-test", cc.APIKey)
		assert.Equal(t, "claude-3-5-haiku-20241022", cc.Model)
	})

	t.Run("falls back to default", func(t *testing.T) {
		cc, err := cfg.ClientConfig(llm.UseCaseSummary)
		require.NoError(t, err)
		assert.Equal(t, llm.ProviderOllama, cc.Provider)
		assert.Equal(t, "llama3.2", cc.Model)
	})

	t.Run("bad provider name", func(t *testing.T) {
		viper.Set("llm.chat.provider", "bedrock")
		cfg2, err := Load()
		require.NoError(t, err)
		_, err = cfg2.ClientConfig(llm.UseCaseChat)
		assert.Error(t, err)
	})
}

func TestExpandPath(t *testing.T) {
	t.Setenv("FINFLOW_TEST_DIR", "/tmp/finflow")
	assert.Equal(t, "/tmp/finflow/x.db", ExpandPath("$FINFLOW_TEST_DIR/x.db"))
	assert.Equal(t, "", ExpandPath(""))
}
