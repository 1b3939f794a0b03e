package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/classifier"
)

func reviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review",
		Short: "List transactions that need review",
		Long: `List auto-added transactions whose category the classifier was unsure of.
Fix one with 'smsledger correct <id> <category>'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			txs, err := a.correction.NeedsReview(cmd.Context())
			if err != nil {
				return err
			}
			if len(txs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to review.")
				return nil
			}
			return writeReviewTable(cmd.OutOrStdout(), txs)
		},
	}
}

func writeReviewTable(out io.Writer, txs []*api.Transaction) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTYPE\tAMOUNT\tMERCHANT\tCATEGORY\tCONFIDENCE")
	for _, t := range txs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\t%.0f%%\n",
			t.ID, t.Date.Local().Format(time.DateOnly), t.Type, t.Amount,
			orDash(t.Merchant), t.Category, t.CategoryConfidence*100)
	}
	return w.Flush()
}

func correctCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct <transaction-id> <category>",
		Short: "Correct a transaction's category",
		Long: `Set the category of a transaction. The classifier learns from the correction
and the merchant is remembered for future messages.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			tx, err := a.correction.CorrectCategory(cmd.Context(), id, args[1])
			if errors.Is(err, api.ErrNotFound) {
				return fmt.Errorf("no transaction with id %s", id)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s\n", tx.ID, tx.Category)
			return nil
		},
	}
}

func mappingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "List learned merchant categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			mappings, err := a.ledger.ListMappings(cmd.Context())
			if err != nil {
				return err
			}
			if len(mappings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No merchant mappings yet.")
				return nil
			}
			return writeMappingsTable(cmd.OutOrStdout(), mappings)
		},
	}
}

func writeMappingsTable(out io.Writer, mappings []*api.CategoryMapping) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MERCHANT\tCATEGORY\tCONFIDENCE\tUSED\tLAST USED")
	for _, m := range mappings {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%s\n",
			m.Merchant, m.Category, m.Confidence, m.TimesUsed, m.LastUsed.Local().Format(time.DateOnly))
	}
	return w.Flush()
}

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect or reset the classifier model",
	}
	cmd.AddCommand(modelStatsCmd())
	cmd.AddCommand(modelResetCmd())
	return cmd
}

func modelStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show classifier model statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			writeModelStats(cmd.OutOrStdout(), a.classifier.State(), a.classifier.Stats(cmd.Context()))
			return nil
		},
	}
}

func writeModelStats(w io.Writer, state classifier.State, stats classifier.Stats) {
	fmt.Fprintf(w, "State:        %s\n", state)
	fmt.Fprintf(w, "Documents:    %d\n", stats.Documents)
	fmt.Fprintf(w, "Vocabulary:   %d\n", stats.Vocabulary)
	fmt.Fprintf(w, "Categories:   %d\n", stats.Categories)
	fmt.Fprintf(w, "Version:      %d\n", stats.Version)
	if !stats.LastUpdated.IsZero() {
		fmt.Fprintf(w, "Last updated: %s\n", stats.LastUpdated.Local().Format(time.DateTime))
	}
}

func modelResetCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard learned corrections and retrain from the keyword table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("model reset discards every learned correction; pass --yes to confirm")
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.classifier.Reset(cmd.Context()); err != nil {
				return err
			}
			writeModelStats(cmd.OutOrStdout(), a.classifier.State(), a.classifier.Stats(cmd.Context()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the reset")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
