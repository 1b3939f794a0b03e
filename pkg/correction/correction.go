// Package correction applies human category corrections and feeds them back
// into the classifier and merchant memory.
package correction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ArionMiles/smsledger/pkg/api"
)

// ErrEmptyCategory is returned when a correction names no category.
var ErrEmptyCategory = errors.New("category must not be empty")

// Learner is trained on corrected transactions.
type Learner interface {
	Learn(ctx context.Context, text, category string) error
}

// Service applies corrections to a Ledger.
type Service struct {
	ledger  api.Ledger
	learner Learner
	memory  api.MerchantMemory
	logger  *slog.Logger
}

// New creates a Service. learner and memory may be nil.
func New(ledger api.Ledger, learner Learner, memory api.MerchantMemory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: ledger, learner: learner, memory: memory, logger: logger}
}

// CorrectCategory sets a transaction's category as human-verified, then
// trains the classifier on it and records the merchant mapping. Only the
// ledger update can fail the call; learning and mapping failures are logged.
func (s *Service) CorrectCategory(ctx context.Context, id uuid.UUID, category string) (*api.Transaction, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, ErrEmptyCategory
	}

	tx, err := s.ledger.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting transaction %s: %w", id, err)
	}

	previous := tx.Category
	tx.Category = category
	tx.NeedsReview = false
	tx.Confidence = 1
	tx.CategoryConfidence = 1
	if err := s.ledger.Update(ctx, tx); err != nil {
		return nil, fmt.Errorf("updating transaction %s: %w", id, err)
	}

	logger := s.logger.With("transaction_id", id, "category", category)
	logger.Info("corrected category", "previous", previous)

	if text := TrainingText(tx); s.learner != nil && text != "" {
		if err := s.learner.Learn(ctx, text, category); err != nil {
			logger.Warn("learning from correction failed", "error", err)
		}
	}

	if s.memory != nil && strings.TrimSpace(tx.Merchant) != "" {
		if _, err := s.memory.UpsertMapping(ctx, tx.Merchant, category); err != nil {
			logger.Warn("saving merchant mapping failed", "merchant", tx.Merchant, "error", err)
		}
	}
	return tx, nil
}

// NeedsReview lists transactions waiting for a human decision.
func (s *Service) NeedsReview(ctx context.Context) ([]*api.Transaction, error) {
	txs, err := s.ledger.ListNeedingReview(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing transactions needing review: %w", err)
	}
	return txs, nil
}

// TrainingText is the document a corrected transaction contributes to the
// classifier: its description followed by the stored message text.
func TrainingText(tx *api.Transaction) string {
	return strings.TrimSpace(tx.Description + " " + tx.RawData)
}
