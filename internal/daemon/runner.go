// Package daemon runs the ingestion loop: a reader feeds raw messages through
// the pipeline and stored transactions are mirrored to an optional writer.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/ingest"
	"github.com/ArionMiles/smsledger/pkg/spool"
)

// Ingester is the part of the pipeline the runner drives.
type Ingester interface {
	Ingest(ctx context.Context, msg *api.RawMessage) (ingest.Result, error)
}

// Buffer holds messages that could not be ingested because the ledger was
// unavailable. spool.Spool implements it; Add returns spool.ErrGaveUp once a
// message has failed too often.
type Buffer interface {
	Add(msg *api.RawMessage) error
}

// Stats counts what happened during one Run.
type Stats struct {
	Received int
	Outcomes map[ingest.Outcome]int
	// Spooled messages hit a retryable failure and were buffered.
	Spooled int
	// Failed messages hit a permanent failure and were dropped.
	Failed int
}

// Runner manages the ingestion daemon lifecycle.
type Runner struct {
	pipeline Ingester
	buffer   Buffer
	logger   *slog.Logger
}

// New creates a new daemon runner. buffer may be nil, in which case messages
// failing with a retryable error are left unacknowledged at their source.
func New(pipeline Ingester, buffer Buffer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		pipeline: pipeline,
		buffer:   buffer,
		logger:   logger,
	}
}

// Run reads from reader until it finishes or ctx is canceled. Messages are
// ingested one at a time in delivery order. A message is acknowledged to the
// reader once its outcome is final; created and merged transactions are sent
// to writer when one is given.
func (r *Runner) Run(ctx context.Context, reader api.Reader, writer api.Writer) (Stats, error) {
	stats := Stats{Outcomes: make(map[ingest.Outcome]int)}

	messages := make(chan *api.RawMessage, 100)
	ackChan := make(chan string, 100)

	var mirror chan *api.Transaction
	var wg sync.WaitGroup
	if writer != nil {
		mirror = make(chan *api.Transaction, 100)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := writer.Write(ctx, mirror); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("writer error", "error", err)
			}
		}()
	}

	readerDone := make(chan error, 1)
	go func() {
		readerDone <- reader.Read(ctx, messages, ackChan)
	}()

	r.logger.Info("daemon started", "mirror", writer != nil)

	for msg := range messages {
		stats.Received++
		if r.handle(ctx, msg, mirror, &stats) {
			select {
			case ackChan <- msg.ID:
			case <-ctx.Done():
			}
		}
	}

	if mirror != nil {
		close(mirror)
	}
	wg.Wait()

	err := <-readerDone
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("reader error", "error", err)
	} else {
		err = nil
	}

	r.logger.Info("daemon stopped",
		"received", stats.Received,
		"created", stats.Outcomes[ingest.OutcomeCreated],
		"merged", stats.Outcomes[ingest.OutcomeMerged],
		"spooled", stats.Spooled,
		"failed", stats.Failed,
	)
	return stats, err
}

// handle ingests one message and reports whether it may be acknowledged.
func (r *Runner) handle(ctx context.Context, msg *api.RawMessage, mirror chan<- *api.Transaction, stats *Stats) bool {
	logger := r.logger.With("message_id", msg.ID)

	res, err := r.pipeline.Ingest(ctx, msg)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return false
	case ingest.IsRetryable(err):
		if r.buffer == nil {
			logger.Warn("ledger unavailable, leaving message at source", "error", err)
			return false
		}
		addErr := r.buffer.Add(msg)
		if errors.Is(addErr, spool.ErrGaveUp) {
			logger.Error("dropping message after repeated ledger failures", "error", err)
			stats.Failed++
			return true
		}
		if addErr != nil {
			logger.Error("spooling message failed", "error", addErr)
			return false
		}
		logger.Warn("ledger unavailable, message spooled", "error", err)
		stats.Spooled++
		return false
	default:
		logger.Error("dropping message that failed ingestion", "error", err)
		stats.Failed++
		return true
	}

	stats.Outcomes[res.Outcome]++
	if mirror != nil && res.Transaction != nil && (res.Outcome == ingest.OutcomeCreated || res.Outcome == ingest.OutcomeMerged) {
		select {
		case mirror <- res.Transaction:
		case <-ctx.Done():
		}
	}
	return true
}
