package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/finflow/finflow/internal/config"
	"github.com/finflow/finflow/internal/llm"
	"github.com/finflow/finflow/internal/metrics"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show LLM usage and cost statistics",
		Long: `Summarize recorded LLM calls: token counts, latency percentiles,
success rate, and cost broken down by provider and use case.`,
		RunE: runStats,
	}

	cmd.Flags().Duration("since", 0, "only include calls newer than this (e.g. 24h)")
	cmd.Flags().String("provider", "", "filter by provider (anthropic, openai, ollama)")

	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The tracker replays the call log on startup; no storage or LLM
	// clients are needed to read it.
	tracker := metrics.NewTracker(metrics.DefaultPrices(), cfg.Metrics.File, slog.Default())

	filter := metrics.Filter{}
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		filter.Since = time.Now().Add(-since)
	}
	if name, _ := cmd.Flags().GetString("provider"); name != "" {
		provider, parseErr := llm.ParseProvider(name)
		if parseErr != nil {
			return parseErr
		}
		filter.Provider = provider
	}

	out := map[string]any{
		"summary":          tracker.Summary(),
		"cost_usd":         tracker.TotalCost(filter),
		"success_rate":     tracker.SuccessRate(filter),
		"latency":          tracker.LatencyStats(filter),
		"cost_by_provider": tracker.CostByProvider(),
		"cost_by_use_case": tracker.CostByUseCase(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	return nil
}
