// Package mbox implements a Reader over an mbox export of bank alert mail.
package mbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/emersion/go-mbox"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/reader/mailtext"
)

// Reader sends every alert in an mbox file once, in file order.
type Reader struct {
	path   string
	logger *slog.Logger
}

// Config holds configuration for the mbox reader.
type Config struct {
	// Path is the mbox file.
	Path string
}

// New creates an mbox reader. The file is opened on Read.
func New(cfg Config, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		return nil, errors.New("mbox path is required")
	}
	return &Reader{path: cfg.Path, logger: logger}, nil
}

// Read sends the file's messages to out and returns once all were sent.
// Acknowledgments are consumed and logged; the file itself is never modified.
func (r *Reader) Read(ctx context.Context, out chan<- *api.RawMessage, ackChan <-chan string) error {
	defer close(out)

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("opening mbox: %w", err)
	}
	defer f.Close()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case id, ok := <-ackChan:
				if !ok {
					return
				}
				r.logger.Debug("message acknowledged", "message_id", id)
			}
		}
	}()

	sent, err := Each(f, func(msg *api.RawMessage) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- msg:
			return nil
		}
	}, r.logger)
	r.logger.Info("mbox read complete", "file", r.path, "sent", sent)
	return err
}

// Each parses every message in an mbox stream and calls fn with the messages
// that have a body. Unparseable messages are logged and skipped. It returns
// the number of messages handed to fn.
func Each(src io.Reader, fn func(*api.RawMessage) error, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mr := mbox.NewReader(src)
	sent := 0
	for i := 0; ; i++ {
		raw, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("reading mbox message %d: %w", i, err)
		}

		msg, err := mailtext.Parse(raw)
		if err != nil {
			logger.Warn("skipping unparseable message", "index", i, "error", err)
			continue
		}
		if msg.Text == "" {
			logger.Debug("skipping message without text", "index", i, "subject", msg.Subject)
			continue
		}
		receivedAt := msg.Date
		if receivedAt.IsZero() {
			receivedAt = time.Now()
		}

		if err := fn(api.NewRawMessage(msg.From, msg.Text, receivedAt)); err != nil {
			return sent, err
		}
		sent++
	}
}
