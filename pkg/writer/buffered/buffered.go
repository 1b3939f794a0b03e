// Package buffered provides a buffered writer base for batch writes.
//
// Pending rows are keyed by transaction ID: a transaction sent again before
// its batch is flushed, as happens when an SMS merges into an entry already
// waiting, replaces the earlier copy in place. A batch whose flush fails is
// put back in front of newer rows, up to MaxPending rows.
package buffered

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/smsledger/pkg/api"
)

// DefaultBatchSize is the default number of transactions to buffer before flushing.
const DefaultBatchSize = 10

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// DefaultMaxPending is the default cap on rows held across failed flushes.
const DefaultMaxPending = 1000

// Flusher is called when the buffer needs to be flushed.
type Flusher func(ctx context.Context, transactions []*api.Transaction) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize is the number of transactions to buffer before flushing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
	// MaxPending caps the rows kept after failed flushes; the oldest are
	// dropped beyond it. Defaults to DefaultMaxPending.
	MaxPending int
}

// Writer buffers transactions and flushes them in batches.
type Writer struct {
	buffer  []*api.Transaction
	index   map[uuid.UUID]int
	mu      sync.Mutex
	flusher Flusher
	config  Config
	logger  *slog.Logger
}

// New creates a new buffered writer with the given flusher function.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.MaxPending < cfg.BatchSize {
		cfg.MaxPending = max(DefaultMaxPending, cfg.BatchSize)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer{
		buffer:  make([]*api.Transaction, 0, cfg.BatchSize),
		index:   make(map[uuid.UUID]int),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes transactions from the input channel and buffers them for batch writes.
// It returns nil once in is closed and drained, or context.Canceled after a
// final flush when ctx ends.
func (w *Writer) Write(ctx context.Context, in <-chan *api.Transaction) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Info("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return w.handleShutdown()
		case <-ticker.C:
			w.handleTimerFlush(ctx)
		case tx, ok := <-in:
			if done, err := w.handleTransaction(ctx, tx, ok); done {
				return err
			}
		}
	}
}

func (w *Writer) handleShutdown() error {
	w.logger.Info("buffered writer stopping, flushing remaining buffer")
	// The caller's context is already done; give the last flush its own.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.flush(ctx); err != nil {
		w.logger.Error("failed to flush on shutdown", "error", err)
	}
	return context.Canceled
}

func (w *Writer) handleTimerFlush(ctx context.Context) {
	if err := w.flush(ctx); err != nil {
		w.logger.Error("failed to flush on interval", "error", err)
	}
}

func (w *Writer) handleTransaction(ctx context.Context, tx *api.Transaction, ok bool) (bool, error) {
	if !ok {
		w.logger.Info("input channel closed, flushing remaining buffer")
		if err := w.flush(ctx); err != nil {
			w.logger.Error("failed to flush on close", "error", err)
			return true, err
		}
		return true, nil
	}

	w.mu.Lock()
	w.add(tx)
	shouldFlush := len(w.buffer) >= w.config.BatchSize
	w.mu.Unlock()

	if shouldFlush {
		if err := w.flush(ctx); err != nil {
			w.logger.Error("failed to flush on batch size", "error", err)
		}
	}
	return false, nil
}

// add must be called with w.mu held.
func (w *Writer) add(tx *api.Transaction) {
	if tx.ID != uuid.Nil {
		if i, ok := w.index[tx.ID]; ok {
			w.buffer[i] = tx
			return
		}
		w.index[tx.ID] = len(w.buffer)
	}
	w.buffer = append(w.buffer, tx)
}

// reset must be called with w.mu held.
func (w *Writer) reset(txs []*api.Transaction) {
	w.buffer = w.buffer[:0]
	clear(w.index)
	for _, tx := range txs {
		w.add(tx)
	}
}

// flush writes all buffered transactions using the flusher function. On
// failure the batch goes back in front of anything buffered since.
func (w *Writer) flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}

	toFlush := make([]*api.Transaction, len(w.buffer))
	copy(toFlush, w.buffer)
	w.reset(nil)
	w.mu.Unlock()

	w.logger.Debug("flushing buffer", "count", len(toFlush))

	if err := w.flusher(ctx, toFlush); err != nil {
		w.requeue(toFlush)
		return err
	}

	w.logger.Info("flushed transactions", "count", len(toFlush))
	return nil
}

func (w *Writer) requeue(failed []*api.Transaction) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pending := append(failed, w.buffer...)
	if over := len(pending) - w.config.MaxPending; over > 0 {
		w.logger.Warn("mirror backlog full, dropping oldest rows", "dropped", over, "max_pending", w.config.MaxPending)
		pending = pending[over:]
	}
	w.reset(pending)
}

// BufferLen returns the current number of buffered transactions.
func (w *Writer) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
