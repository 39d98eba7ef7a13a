package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/finflow/finflow/internal/config"
	"github.com/finflow/finflow/internal/gmail"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with external services",
	}

	cmd.AddCommand(authGmailCmd())

	return cmd
}

func authGmailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gmail",
		Short: "Authorize read-only Gmail access",
		Long: `Run the OAuth2 installed-app flow for Gmail.

This command will:
1. Start a local web server on port 8080
2. Print an authorization URL to open in your browser
3. Save the resulting token for future use

Re-run it if the saved token stops refreshing.`,
		RunE: runAuthGmail,
	}
}

func runAuthGmail(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	oauthCfg := gmail.OAuth2Config{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		TokenFile:    cfg.Gmail.TokenFile,
	}
	if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
		return fmt.Errorf("gmail credentials not configured (set gmail.client_id and gmail.client_secret)")
	}

	token, err := gmail.AuthenticateInteractive(cmd.Context(), oauthCfg)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	slog.Info("Gmail authorized", "token_file", oauthCfg.TokenFile, "expires", token.Expiry)
	return nil
}
