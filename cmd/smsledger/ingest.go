package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/ingest"
)

//go:embed config/samples.json
var samplesInput []byte

// sample is a canned bank message.
type sample struct {
	Name   string `json:"name"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

func parseSamples(data []byte) ([]sample, error) {
	var samples []sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parsing samples: %w", err)
	}
	return samples, nil
}

func findSample(samples []sample, name string) (sample, error) {
	names := make([]string, 0, len(samples))
	for _, s := range samples {
		if s.Name == name {
			return s, nil
		}
		names = append(names, s.Name)
	}
	return sample{}, fmt.Errorf("unknown sample %q (available: %s)", name, strings.Join(names, ", "))
}

// buildMessage assembles a raw message from flags. An empty text is read from
// stdin; a zero time means now.
func buildMessage(sender, text string, at time.Time, stdin io.Reader) (*api.RawMessage, error) {
	if text == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading message from stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("message text is empty")
	}
	if sender == "" {
		sender = "UNKNOWN"
	}
	if at.IsZero() {
		at = time.Now()
	}
	return api.NewRawMessage(sender, text, at), nil
}

func ingestCmd() *cobra.Command {
	var (
		sender     string
		text       string
		at         string
		sampleName string
		listOnly   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest one message",
		Long: `Ingest a single message into the ledger. The text comes from --text, from
--sample, or from stdin when neither is given.`,
		Example: `  smsledger ingest --sender VM-HDFCBK --text "Rs 500 debited from A/c XX1234 ..."
  smsledger ingest --sample paytm_wallet
  pbpaste | smsledger ingest --sender AD-ICICIB`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			samples, err := parseSamples(samplesInput)
			if err != nil {
				return err
			}
			if listOnly {
				for _, s := range samples {
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", s.Name, s.Text)
				}
				return nil
			}

			if sampleName != "" {
				s, err := findSample(samples, sampleName)
				if err != nil {
					return err
				}
				sender, text = s.Sender, s.Text
			}

			var receivedAt time.Time
			if at != "" {
				receivedAt, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			msg, err := buildMessage(sender, text, receivedAt, cmd.InOrStdin())
			if err != nil {
				return err
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

			res, err := a.pipeline.Ingest(cmd.Context(), msg)
			if ingest.IsRetryable(err) {
				if spoolErr := a.spool.Add(msg); spoolErr != nil {
					return errors.Join(err, spoolErr)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Ledger unavailable; message kept in the spool for 'smsledger replay'.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Outcome: %s\n", res.Outcome)
			if res.Transaction != nil {
				printTransaction(cmd.OutOrStdout(), res.Transaction)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "message sender, e.g. VM-HDFCBK")
	cmd.Flags().StringVar(&text, "text", "", "message text (read from stdin when empty)")
	cmd.Flags().StringVar(&at, "at", "", "receive time in RFC3339 (default now)")
	cmd.Flags().StringVar(&sampleName, "sample", "", "ingest a built-in sample bank message")
	cmd.Flags().BoolVar(&listOnly, "list-samples", false, "list the built-in sample messages")
	return cmd
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Ingest messages buffered in the offline spool",
		Long: `Drain the offline spool through the ingestion pipeline in receive order.
Draining stops at the first message the ledger still cannot store.`,
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

			stats, err := a.spool.Drain(cmd.Context(), func(ctx context.Context, msg *api.RawMessage) error {
				_, err := a.pipeline.Ingest(ctx, msg)
				return err
			}, ingest.IsRetryable)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Processed %d, dropped %d, %d still buffered\n",
				stats.Processed, stats.Dropped, stats.Remaining)
			return nil
		},
	}
}

func printTransaction(w io.Writer, t *api.Transaction) {
	fmt.Fprintf(w, "  ID:        %s\n", t.ID)
	fmt.Fprintf(w, "  Date:      %s\n", t.Date.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Type:      %s\n", t.Type)
	fmt.Fprintf(w, "  Amount:    %.2f\n", t.Amount)
	fmt.Fprintf(w, "  Merchant:  %s\n", t.Merchant)
	fmt.Fprintf(w, "  Category:  %s (%.0f%%)\n", t.Category, t.CategoryConfidence*100)
	if t.NeedsReview {
		fmt.Fprintln(w, "  Review:    needed")
	}
}
