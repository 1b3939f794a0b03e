package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ArionMiles/smsledger/internal/plugins"
	"github.com/ArionMiles/smsledger/pkg/client"
	"github.com/ArionMiles/smsledger/pkg/config"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	warnMark = color.New(color.FgYellow).SprintFunc()
)

// report prints one line per check and remembers whether any failed.
type report struct {
	w       io.Writer
	allGood bool
}

func newReport(w io.Writer) *report {
	return &report{w: w, allGood: true}
}

func (r *report) ok(label, format string, args ...any) {
	fmt.Fprintf(r.w, "%s: %s %s\n", label, okMark("✓"), fmt.Sprintf(format, args...))
}

func (r *report) warn(label, format string, args ...any) {
	fmt.Fprintf(r.w, "%s: %s %s\n", label, warnMark("⚠"), fmt.Sprintf(format, args...))
}

func (r *report) fail(label string, err error) {
	r.allGood = false
	fmt.Fprintf(r.w, "%s: %s %v\n", label, failMark("✗"), err)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, credentials and stores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "=== smsledger Status ===")
			fmt.Fprintln(out)

			r := newReport(out)
			runStatus(cmd.Context(), r)

			fmt.Fprintln(out)
			if r.allGood {
				fmt.Fprintf(out, "Status: %s Ready to run\n", okMark("✓"))
				fmt.Fprintln(out, "Run 'smsledger run' to start ingesting messages.")
			} else {
				fmt.Fprintf(out, "Status: %s Configuration issues detected\n", failMark("✗"))
				fmt.Fprintln(out, "Fix the issues above, then run 'smsledger status' again.")
			}
			return nil
		},
	}
}

func runStatus(ctx context.Context, r *report) {
	label := "Configuration"
	if cfgFile != "" {
		label = fmt.Sprintf("Config file (%s)", cfgFile)
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		r.fail(label, err)
		return
	}
	r.ok(label, "valid (reader %s, writer %s, ledger %s)", cfg.Reader, orDash(cfg.Writer), cfg.LedgerDriver)
	logger := setupLogger(cfg)

	checkGoogle(r, cfg)

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		r.fail("Stores", err)
		return
	}
	defer a.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.ledger.Ping(pingCtx); err != nil {
		r.fail("Ledger", err)
	} else {
		r.ok("Ledger", "reachable (%s)", cfg.LedgerDriver)
	}

	stats := a.classifier.Stats(ctx)
	r.ok("Classifier", "%s, %d documents, %d words, version %d",
		a.classifier.State(), stats.Documents, stats.Vocabulary, stats.Version)

	if n, err := a.models.SeenCount(); err != nil {
		r.fail("Processed messages", err)
	} else {
		r.ok("Processed messages", "%d remembered (cap %d)", n, cfg.SeenCap)
	}

	if n, err := a.spool.Len(); err != nil {
		r.fail("Offline spool", err)
	} else if n > 0 {
		r.warn("Offline spool", "%d messages waiting (run 'smsledger replay')", n)
	} else {
		r.ok("Offline spool", "empty")
	}
}

// checkGoogle verifies credentials and token when the selected plugins need
// Google access.
func checkGoogle(r *report, cfg *config.Config) {
	scopes, err := plugins.Default().Scopes(cfg.Reader, cfg.Writer)
	if err != nil {
		r.fail("Plugins", err)
		return
	}
	if len(scopes) == 0 {
		return
	}

	if _, err := os.Stat(cfg.SecretsFile); err != nil {
		r.fail(fmt.Sprintf("Credentials file (%s)", cfg.SecretsFile), errors.New("not found"))
	} else {
		r.ok(fmt.Sprintf("Credentials file (%s)", cfg.SecretsFile), "found")
	}

	label := fmt.Sprintf("OAuth token (%s)", client.DefaultTokenFile)
	token, err := client.LoadToken(client.DefaultTokenFile)
	switch {
	case errors.Is(err, client.ErrNoToken):
		r.fail(label, errors.New("not found (run 'smsledger setup')"))
	case err != nil:
		r.fail(label, err)
	case !token.Expiry.IsZero() && token.Expiry.Before(time.Now()):
		r.warn(label, "expired (will refresh on next run)")
	default:
		r.ok(label, "valid (expires: %s)", token.Expiry.Format(time.RFC3339))
	}
}
