package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/smsledger/internal/daemon"
	"github.com/ArionMiles/smsledger/internal/plugins"
	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/client"
	"github.com/ArionMiles/smsledger/pkg/config"
	"github.com/ArionMiles/smsledger/pkg/ingest"
)

func runCmd() *cobra.Command {
	var readerName, writerName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ingestion daemon",
		Long: `Read messages from the configured source, ingest them into the ledger and
mirror stored transactions to the configured writer. Messages that cannot be
stored while the ledger is unavailable are kept in the offline spool.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if readerName != "" {
				cfg.Reader = readerName
			}
			if writerName != "" {
				cfg.Writer = writerName
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&readerName, "reader", "", "message source: spool, mbox or gmail (overrides READER)")
	cmd.Flags().StringVar(&writerName, "writer", "", "mirror writer: csv, json or sheets (overrides WRITER)")
	return cmd
}

func runDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing stores", "error", err)
		}
	}()

	registry := plugins.Default()
	httpClient, err := googleClient(registry, cfg)
	if err != nil {
		return err
	}
	deps := plugins.Deps{Config: cfg, HTTPClient: httpClient, Spool: a.spool}

	reader, err := registry.CreateReader(ctx, cfg.Reader, deps, logger.With("component", cfg.Reader+"_reader"))
	if err != nil {
		return fmt.Errorf("creating %s reader: %w", cfg.Reader, err)
	}

	var writer api.Writer
	if cfg.Writer != "" {
		writer, err = registry.CreateWriter(ctx, cfg.Writer, deps, logger.With("component", cfg.Writer+"_writer"))
		if err != nil {
			return fmt.Errorf("creating %s writer: %w", cfg.Writer, err)
		}
	}

	logger.Info("starting smsledger",
		"ledger", cfg.LedgerDriver,
		"reader", cfg.Reader,
		"writer", cfg.Writer,
		"classifier", a.classifier.State().String(),
	)

	stats, err := daemon.New(a.pipeline, a.spool, logger.With("component", "daemon")).Run(ctx, reader, writer)
	if err != nil {
		return err
	}

	fmt.Printf("Received %d messages: %d created, %d merged, %d spooled, %d failed\n",
		stats.Received, stats.Outcomes[ingest.OutcomeCreated], stats.Outcomes[ingest.OutcomeMerged], stats.Spooled, stats.Failed)
	return nil
}

// googleClient returns an authorized client when the selected plugins need
// Google scopes, and nil otherwise. It never starts the browser flow.
func googleClient(registry *plugins.Registry, cfg *config.Config) (*http.Client, error) {
	scopes, err := registry.Scopes(cfg.Reader, cfg.Writer)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return nil, nil
	}

	httpClient, err := client.Cached(cfg.SecretsFile, client.DefaultTokenFile, scopes...)
	if err != nil {
		return nil, fmt.Errorf("loading Google credentials (run 'smsledger setup'): %w", err)
	}
	return httpClient, nil
}
