package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/finflow/finflow/internal/common"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch alert emails and extract transactions",
		Long: `Fetch transaction alert emails from Gmail, extract structured
transactions with the configured LLM provider, and store them.

Already-seen emails are skipped, so fetch is safe to run repeatedly.`,
		RunE: runFetch,
	}

	cmd.Flags().String("query", "", "Gmail search query (default: bank alert subjects)")
	cmd.Flags().Int("max-results", 0, "maximum emails to fetch (default: 50)")
	cmd.Flags().Bool("dry-run", false, "extract but do not store")

	return cmd
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		query = app.cfg.Gmail.Query
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")
	if maxResults <= 0 {
		maxResults = app.cfg.Gmail.MaxResults
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	source, err := initGmail(ctx, app.cfg)
	if err != nil {
		return err
	}

	messages, err := source.FetchMessages(ctx, query, maxResults)
	if err != nil {
		if errors.Is(err, common.ErrNoMessages) {
			slog.Info("No matching emails found", "query", query)
			return nil
		}
		return fmt.Errorf("failed to fetch emails: %w", err)
	}
	slog.Info("Fetched emails", "count", len(messages))

	bar := progressbar.NewOptions(len(messages),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Extracting transactions...[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	var stored, duplicates, skipped, failed int
	for _, msg := range messages {
		txn, extractErr := app.extractor.Extract(ctx, msg)
		_ = bar.Add(1)

		switch {
		case extractErr != nil:
			failed++
			slog.Warn("Extraction failed", "email_id", msg.ID, "error", extractErr)
			continue
		case txn == nil:
			skipped++
			continue
		case dryRun:
			stored++
			continue
		}

		inserted, insertErr := app.store.InsertTransaction(ctx, txn)
		switch {
		case insertErr != nil:
			failed++
			slog.Warn("Failed to store transaction", "email_id", msg.ID, "error", insertErr)
		case inserted:
			stored++
		default:
			duplicates++
		}
	}

	slog.Info("Fetch complete",
		"fetched", len(messages),
		"stored", stored,
		"duplicates", duplicates,
		"skipped", skipped,
		"failed", failed,
		"dry_run", dryRun,
	)
	return nil
}
