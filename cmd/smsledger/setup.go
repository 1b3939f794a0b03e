package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/smsledger/internal/plugins"
	"github.com/ArionMiles/smsledger/pkg/client"
)

func setupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Authorize access to Google for the gmail reader and sheets writer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "=== smsledger Setup ===")
			fmt.Fprintln(out)

			scopes, err := plugins.Default().Scopes(cfg.Reader, cfg.Writer)
			if err != nil {
				return err
			}
			if len(scopes) == 0 {
				fmt.Fprintf(out, "Reader %q and writer %q need no Google access. Nothing to do.\n", cfg.Reader, cfg.Writer)
				return nil
			}

			secretsPath := cfg.SecretsFile
			if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
				return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
					"1. Go to https://console.cloud.google.com/apis/credentials\n"+
					"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
					"3. Download the JSON file and save it as '%s'", secretsPath, secretsPath)
			}

			if !force {
				if _, err := os.Stat(client.DefaultTokenFile); err == nil {
					fmt.Fprintf(out, "Already authenticated! Token file exists: %s\n", client.DefaultTokenFile)
					fmt.Fprintln(out)
					fmt.Fprintln(out, "To re-authenticate, run: smsledger setup --force")
					return nil
				}
			} else {
				if err := os.Remove(client.DefaultTokenFile); err != nil && !os.IsNotExist(err) {
					logger.Warn("failed to remove existing token", "error", err)
				}
				fmt.Fprintln(out, "Forcing re-authentication...")
				fmt.Fprintln(out)
			}

			fmt.Fprintln(out, "Requested permissions:")
			for _, s := range scopes {
				fmt.Fprintf(out, "  - %s\n", s)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Starting authentication...")

			if _, err := client.New(secretsPath, client.DefaultTokenFile, scopes...); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "=== Setup Complete ===")
			fmt.Fprintf(out, "Token saved to: %s\n", client.DefaultTokenFile)
			fmt.Fprintln(out, "Run 'smsledger status' to check the installation, then 'smsledger run'.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-authenticate even if a token exists")
	return cmd
}
