// Command smsledger turns bank SMS and alert mail into a categorized ledger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/smsledger/pkg/config"
	"github.com/ArionMiles/smsledger/pkg/logging"
)

var (
	cfgFile  string
	logLevel string
	logJSON  bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "smsledger",
		Short: "Bank SMS to ledger pipeline",
		Long: `smsledger parses bank transaction alerts, categorizes them with a
self-training classifier and records them in a ledger, merging alerts with
transactions you entered by hand.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "JSON config file (environment variables override it)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (DEBUG, INFO, WARN, ERROR); overrides LOG_LEVEL")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log in JSON format")

	root.AddCommand(runCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(replayCmd())
	root.AddCommand(dumpCmd())
	root.AddCommand(reviewCmd())
	root.AddCommand(correctCmd())
	root.AddCommand(modelCmd())
	root.AddCommand(mappingsCmd())
	root.AddCommand(setupCmd())
	root.AddCommand(statusCmd())

	return root
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and sets up the default logger from it and
// the logging flags.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg), nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	logCfg := logging.DefaultConfig()
	if cfg != nil {
		logCfg.Level = logging.ParseLevel(cfg.LogLevel)
		logCfg.JSON = cfg.LogJSON
	}
	if logLevel != "" {
		logCfg.Level = logging.ParseLevel(logLevel)
	}
	if logJSON {
		logCfg.JSON = true
	}
	return logging.Setup(logCfg)
}
