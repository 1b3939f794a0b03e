package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArionMiles/smsledger/internal/plugins"
	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/mask"
)

const defaultDumpDir = "testdata/dump"

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\s]`)
	repeatedUnderscores = regexp.MustCompile(`_+`)
)

func dumpCmd() *cobra.Command {
	var (
		dir        string
		limit      int
		readerName string
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Save masked message texts as test fixtures",
		Long: `Read messages from the configured source and write each masked text to its
own file. Messages are not acknowledged, so Gmail alerts stay unread.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if readerName != "" {
				cfg.Reader = readerName
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if cfg.Reader == "spool" {
				return errors.New("dump reads from mbox or gmail; the spool holds unmasked texts already")
			}

			registry := plugins.Default()
			httpClient, err := googleClient(registry, cfg)
			if err != nil {
				return err
			}
			reader, err := registry.CreateReader(cmd.Context(), cfg.Reader, plugins.Deps{Config: cfg, HTTPClient: httpClient}, logger.With("component", cfg.Reader+"_reader"))
			if err != nil {
				return err
			}

			n, err := dumpMessages(cmd.Context(), reader, dir, limit, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dumped %d messages to %s\n", n, dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", defaultDumpDir, "directory to write fixtures to")
	cmd.Flags().IntVar(&limit, "limit", 10, "stop after this many messages")
	cmd.Flags().StringVar(&readerName, "reader", "", "message source: mbox or gmail (overrides READER)")
	return cmd
}

// dumpMessages writes up to limit masked message texts from reader into dir.
// Existing files are left alone.
func dumpMessages(ctx context.Context, reader api.Reader, dir string, limit int, logger *slog.Logger) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating dump directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := make(chan *api.RawMessage, 10)
	readerDone := make(chan error, 1)
	go func() {
		readerDone <- reader.Read(ctx, messages, make(chan string))
	}()

	count := 0
	for msg := range messages {
		if limit > 0 && count >= limit {
			cancel()
			continue
		}

		name := sanitizeFilename(fmt.Sprintf("%s_%s", msg.Sender, msg.ReceivedAt.Format("2006-01-02_150405"))) + ".txt"
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			logger.Debug("file already exists, skipping", "file", name)
			continue
		}
		if err := os.WriteFile(path, []byte(mask.Sensitive(msg.Text)+"\n"), 0o644); err != nil {
			return count, fmt.Errorf("writing %s: %w", name, err)
		}
		logger.Info("dumped message", "file", name)
		count++

		if limit > 0 && count >= limit {
			cancel()
		}
	}

	if err := <-readerDone; err != nil && !errors.Is(err, context.Canceled) {
		return count, err
	}
	return count, nil
}

func sanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = repeatedUnderscores.ReplaceAllString(name, "_")

	name = strings.Trim(name, "_")
	if len(name) > 200 {
		name = name[:200]
	}
	return name
}
