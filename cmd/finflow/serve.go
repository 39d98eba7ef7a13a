package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/finflow/finflow/internal/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve transactions, analytics, and LLM usage stats over HTTP.

The server also exposes POST /fetch to trigger an ingestion run when
Gmail credentials are configured.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default: :8000)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	app, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = app.cfg.Server.Addr
	}

	deps := api.Deps{
		Storage:   app.store,
		Extractor: app.extractor,
		Limiter:   app.limiter,
		Breakers:  app.breakers,
		Tracker:   app.tracker,
		Cache:     app.cache,
		Prices:    app.prices,
		Logger:    slog.Default(),
	}

	// The Gmail source is optional; without it POST /fetch returns 503.
	if source, gmailErr := initGmail(ctx, app.cfg); gmailErr != nil {
		slog.Warn("Gmail unavailable, /fetch disabled", "error", gmailErr)
	} else {
		deps.Source = source
	}

	server, err := api.NewServer(deps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
