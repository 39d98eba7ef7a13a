package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finflow/finflow/internal/breaker"
	"github.com/finflow/finflow/internal/config"
	"github.com/finflow/finflow/internal/extract"
	"github.com/finflow/finflow/internal/gmail"
	"github.com/finflow/finflow/internal/llm"
	"github.com/finflow/finflow/internal/metrics"
	"github.com/finflow/finflow/internal/ratelimit"
	"github.com/finflow/finflow/internal/service"
	"github.com/finflow/finflow/internal/storage"
)

// app bundles the long-lived components a command needs.
type app struct {
	cfg       *config.Config
	store     service.Storage
	router    *llm.Router
	cache     *llm.ResponseCache
	breakers  *breaker.Registry
	tracker   *metrics.Tracker
	limiter   *ratelimit.Limiter
	extractor *extract.Extractor
	prices    metrics.PriceTable
}

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context, cfg *config.Config) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initApp wires the full extraction stack from configuration.
func initApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger := slog.Default()

	defaultCfg, err := cfg.ClientConfig(llm.UseCaseDefault)
	if err != nil {
		return nil, err
	}
	fallback, err := llm.NewClient(defaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create default LLM client: %w", err)
	}

	router, err := llm.NewRouter(fallback)
	if err != nil {
		return nil, err
	}
	for uc := range cfg.LLM {
		if uc == llm.UseCaseDefault {
			continue
		}
		clientCfg, cfgErr := cfg.ClientConfig(uc)
		if cfgErr != nil {
			return nil, cfgErr
		}
		client, clientErr := llm.NewClient(clientCfg)
		if clientErr != nil {
			return nil, fmt.Errorf("failed to create %s LLM client: %w", uc, clientErr)
		}
		router.Register(uc, client)
	}

	prices := metrics.DefaultPrices()
	tracker := metrics.NewTracker(prices, cfg.Metrics.File, logger)
	cache := llm.NewResponseCache(cfg.Cache.Entries, cfg.Cache.TTL)
	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		Timeout:          cfg.Breaker.Timeout,
	}, logger)
	limiter := ratelimit.New(cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour, logger)

	extractor, err := extract.New(extract.Config{
		DefaultCurrency: cfg.Extraction.DefaultCurrency,
		PromptDir:       cfg.Extraction.PromptDir,
		PromptVersion:   cfg.Extraction.PromptVersion,
	}, router, cache, breakers, tracker, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	return &app{
		cfg:       cfg,
		store:     store,
		router:    router,
		cache:     cache,
		breakers:  breakers,
		tracker:   tracker,
		limiter:   limiter,
		extractor: extractor,
		prices:    prices,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close storage", "error", err)
	}
}

// initGmail builds an authenticated Gmail client, refreshing or creating
// the cached OAuth token as needed.
func initGmail(ctx context.Context, cfg *config.Config) (*gmail.Client, error) {
	oauthCfg := gmail.OAuth2Config{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		TokenFile:    cfg.Gmail.TokenFile,
	}
	if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
		return nil, fmt.Errorf("gmail credentials not configured (set gmail.client_id and gmail.client_secret)")
	}

	token, err := gmail.GetOrCreateToken(ctx, oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("gmail authentication failed: %w", err)
	}

	return gmail.NewClient(ctx, oauthCfg, token, slog.Default())
}
