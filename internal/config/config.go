package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/finflow/finflow/internal/llm"
)

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string
}

// RateLimitConfig holds the per-key request budgets.
type RateLimitConfig struct {
	PerMinute int
	PerHour   int
}

// CacheConfig sizes the LLM response cache.
type CacheConfig struct {
	TTL     time.Duration
	Entries int
}

// BreakerConfig holds the circuit breaker thresholds shared by all providers.
type BreakerConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	SuccessThreshold int
}

// MetricsConfig locates the LLM call log.
type MetricsConfig struct {
	File string
}

// GmailConfig holds Gmail OAuth credentials and fetch defaults.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	TokenFile    string
	Query        string
	MaxResults   int
}

// ExtractionConfig holds transaction extraction settings.
type ExtractionConfig struct {
	DefaultCurrency string
	PromptDir       string
	PromptVersion   string
}

// LLMConfig selects and authenticates a single provider.
type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

// Config is the full application configuration.
type Config struct {
	LLM        map[llm.UseCase]LLMConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Metrics    MetricsConfig
	Gmail      GmailConfig
	Extraction ExtractionConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Breaker    BreakerConfig
}

// Load assembles the configuration from Viper and environment variables.
// Precedence per key: Viper (config file or FINFLOW_ env vars), then
// well-known environment variables, then defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: getString("database.path", "", "$HOME/.local/share/finflow/finflow.db"),
		},
		Server: ServerConfig{
			Addr: getString("server.addr", "", ":8000"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getInt("rate_limit.per_minute", 100),
			PerHour:   getInt("rate_limit.per_hour", 1000),
		},
		Cache: CacheConfig{
			Entries: getInt("cache.entries", 1000),
			TTL:     getDuration("cache.ttl", time.Hour),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getInt("breaker.failure_threshold", 5),
			SuccessThreshold: getInt("breaker.success_threshold", 2),
			Timeout:          getDuration("breaker.timeout", 60*time.Second),
		},
		Metrics: MetricsConfig{
			File: getString("metrics.file", "", "$HOME/.local/share/finflow/llm_calls.jsonl"),
		},
		Gmail: GmailConfig{
			ClientID:     getString("gmail.client_id", "GMAIL_CLIENT_ID", ""),
			ClientSecret: getString("gmail.client_secret", "GMAIL_CLIENT_SECRET", ""),
			TokenFile:    getString("gmail.token_file", "", "$HOME/.config/finflow/gmail_token.json"),
			Query:        getString("gmail.query", "", ""),
			MaxResults:   getInt("gmail.max_results", 50),
		},
		Extraction: ExtractionConfig{
			DefaultCurrency: getString("extraction.default_currency", "", "INR"),
			PromptDir:       getString("extraction.prompt_dir", "", ""),
			PromptVersion:   getString("extraction.prompt_version", "", ""),
		},
		LLM: make(map[llm.UseCase]LLMConfig),
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.Metrics.File = ExpandPath(cfg.Metrics.File)
	cfg.Gmail.TokenFile = ExpandPath(cfg.Gmail.TokenFile)

	for _, uc := range []llm.UseCase{llm.UseCaseDefault, llm.UseCaseExtraction, llm.UseCaseChat, llm.UseCaseSummary, llm.UseCaseAnalysis} {
		if lc, ok := loadLLM(uc); ok {
			cfg.LLM[uc] = lc
		}
	}
	if _, ok := cfg.LLM[llm.UseCaseDefault]; !ok {
		return nil, fmt.Errorf("no default LLM provider configured (set llm.default.provider)")
	}

	return cfg, nil
}

// ClientConfig converts the selection for a use case into an llm.Config,
// falling back to the default provider when the use case has no entry.
func (c *Config) ClientConfig(uc llm.UseCase) (llm.Config, error) {
	lc, ok := c.LLM[uc]
	if !ok {
		lc, ok = c.LLM[llm.UseCaseDefault]
	}
	if !ok {
		return llm.Config{}, fmt.Errorf("no LLM provider configured for use case %q", uc)
	}

	provider, err := llm.ParseProvider(lc.Provider)
	if err != nil {
		return llm.Config{}, err
	}

	return llm.Config{
		Provider: provider,
		APIKey:   lc.APIKey,
		Model:    lc.Model,
		BaseURL:  lc.BaseURL,
	}, nil
}

func loadLLM(uc llm.UseCase) (LLMConfig, bool) {
	prefix := "llm." + string(uc) + "."

	lc := LLMConfig{
		Provider: viper.GetString(prefix + "provider"),
		APIKey:   viper.GetString(prefix + "api_key"),
		Model:    viper.GetString(prefix + "model"),
		BaseURL:  viper.GetString(prefix + "base_url"),
	}
	if lc.Provider == "" {
		return LLMConfig{}, false
	}

	// API keys usually live in the environment rather than the config file.
	if lc.APIKey == "" {
		switch lc.Provider {
		case "anthropic":
			lc.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			lc.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	return lc, true
}

func getString(key, envVar, def string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	if envVar != "" {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := viper.GetInt(key); v != 0 {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := viper.GetDuration(key); v != 0 {
		return v
	}
	return def
}
