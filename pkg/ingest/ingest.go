// Package ingest turns raw bank notifications into ledger transactions.
//
// A message passes through a fixed sequence: the financial gate, parsing,
// classification, duplicate detection, the manual-entry merge and finally
// creation. Each stage can end processing; Result.Outcome records which one
// did.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/classifier"
	"github.com/ArionMiles/smsledger/pkg/extractor"
	"github.com/ArionMiles/smsledger/pkg/mask"
	"github.com/ArionMiles/smsledger/pkg/parser"
)

// DefaultDescription is used for transactions whose merchant is unknown.
const DefaultDescription = "SMS Transaction"

// ErrStoreUnavailable wraps ledger failures that persisted through retries.
// The message can be ingested again later.
var ErrStoreUnavailable = errors.New("ledger unavailable")

// IsRetryable reports whether err leaves the message safe to retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Outcome names the stage that finished processing a message.
type Outcome string

const (
	OutcomeNotFinancial Outcome = "skipped-not-financial"
	OutcomeNoAmount     Outcome = "skipped-no-amount"
	OutcomeDuplicate    Outcome = "skipped-duplicate"
	OutcomeSeen         Outcome = "skipped-seen"
	OutcomeMerged       Outcome = "merged"
	OutcomeCreated      Outcome = "created"
)

// Result describes what happened to one message. Transaction is set for
// OutcomeMerged, OutcomeCreated and OutcomeDuplicate.
type Result struct {
	Outcome     Outcome
	Transaction *api.Transaction
}

// Predictor classifies free text into a category.
type Predictor interface {
	Predict(ctx context.Context, text string) classifier.Prediction
}

// SeenStore remembers the IDs of processed messages.
type SeenStore interface {
	Seen(ctx context.Context, id string) (bool, error)
	MarkSeen(ctx context.Context, id string) error
}

// Config tunes duplicate detection and ledger retries.
type Config struct {
	// Window is the half-width of the time window around a message's
	// timestamp searched for duplicates and manual entries.
	Window time.Duration
	// AmountTolerance is the largest absolute amount difference, in rupees,
	// still treated as the same transaction.
	AmountTolerance float64

	RetryAttempts uint
	RetryDelay    time.Duration
}

// DefaultConfig returns the default pipeline configuration.
func DefaultConfig() Config {
	return Config{
		Window:          10 * time.Minute,
		AmountTolerance: 2,
		RetryAttempts:   3,
		RetryDelay:      500 * time.Millisecond,
	}
}

// Pipeline ingests raw messages into a Ledger.
type Pipeline struct {
	cfg        Config
	parser     *parser.Parser
	classifier Predictor
	ledger     api.Ledger
	seen       SeenStore
	logger     *slog.Logger

	// mu serializes the duplicate check with the write that follows it.
	mu sync.Mutex
}

// New creates a Pipeline. seen may be nil, in which case re-delivered
// messages rely on duplicate detection alone. Zero Config fields take their
// defaults; a negative RetryDelay disables the delay.
func New(cfg Config, p *parser.Parser, c Predictor, ledger api.Ledger, seen SeenStore, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = parser.New(nil, logger)
	}
	if c == nil {
		c = classifier.New(nil, nil, nil, logger)
	}

	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.AmountTolerance <= 0 {
		cfg.AmountTolerance = def.AmountTolerance
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	switch {
	case cfg.RetryDelay == 0:
		cfg.RetryDelay = def.RetryDelay
	case cfg.RetryDelay < 0:
		cfg.RetryDelay = 0
	}

	return &Pipeline{
		cfg:        cfg,
		parser:     p,
		classifier: c,
		ledger:     ledger,
		seen:       seen,
		logger:     logger,
	}
}

// Ingest processes one message. A returned error satisfying IsRetryable
// means the ledger could not be reached and nothing was written.
func (p *Pipeline) Ingest(ctx context.Context, msg *api.RawMessage) (Result, error) {
	if msg == nil {
		return Result{}, errors.New("nil message")
	}
	logger := p.logger.With("message_id", msg.ID)

	if p.alreadySeen(ctx, msg.ID, logger) {
		logger.Debug("message already processed")
		return Result{Outcome: OutcomeSeen}, nil
	}

	if !extractor.IsFinancial(msg.Text) {
		logger.Debug("not a financial message")
		p.markSeen(ctx, msg.ID, logger)
		return Result{Outcome: OutcomeNotFinancial}, nil
	}

	parsed, err := p.parser.Parse(ctx, msg)
	if err != nil {
		return Result{}, fmt.Errorf("parsing message: %w", err)
	}
	if parsed == nil {
		logger.Debug("no amount in message")
		p.markSeen(ctx, msg.ID, logger)
		return Result{Outcome: OutcomeNoAmount}, nil
	}

	prediction := p.classifier.Predict(ctx, strings.TrimSpace(parsed.Merchant+" "+msg.Text))
	needsReview := extractor.NeedsReview(parsed.Direction, parsed.ParseConfidence, prediction.Confidence)

	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.store(ctx, parsed, prediction, needsReview)
	if err != nil {
		return Result{}, err
	}

	logger.Info("ingested message",
		"outcome", res.Outcome,
		"transaction_id", res.Transaction.ID,
		"amount", res.Transaction.Amount,
		"category", res.Transaction.Category,
	)
	p.markSeen(ctx, msg.ID, logger)
	return res, nil
}

func (p *Pipeline) store(ctx context.Context, parsed *api.ParsedMessage, prediction classifier.Prediction, needsReview bool) (Result, error) {
	dup, err := p.findDuplicate(ctx, parsed)
	if err != nil {
		return Result{}, err
	}
	if dup != nil {
		return Result{Outcome: OutcomeDuplicate, Transaction: dup}, nil
	}

	candidate, err := p.findMergeCandidate(ctx, parsed)
	if err != nil {
		return Result{}, err
	}
	if candidate != nil {
		candidate.VerifiedVia = api.VerifiedViaSMS
		candidate.RawData = mask.Sensitive(parsed.RawText)
		if parsed.ReferenceID != "" {
			candidate.ReferenceID = parsed.ReferenceID
		}
		candidate.Confidence = prediction.Confidence
		if err := p.withRetry(ctx, "updating transaction", func() error {
			return p.ledger.Update(ctx, candidate)
		}); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeMerged, Transaction: candidate}, nil
	}

	tx := newTransaction(parsed, prediction, needsReview)
	if err := p.withRetry(ctx, "creating transaction", func() error {
		return p.ledger.Create(ctx, tx)
	}); err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeCreated, Transaction: tx}, nil
}

func newTransaction(parsed *api.ParsedMessage, prediction classifier.Prediction, needsReview bool) *api.Transaction {
	description := parsed.Merchant
	if description == "" {
		description = DefaultDescription
	}
	return &api.Transaction{
		Type:               api.TypeFor(parsed.Direction),
		Amount:             *parsed.Amount,
		Description:        description,
		Merchant:           parsed.Merchant,
		Category:           prediction.Category,
		Date:               parsed.OccurredAt,
		Source:             api.SourceSMS,
		IsAutoAdded:        true,
		VerifiedVia:        api.VerifiedViaSMS,
		Verified:           !needsReview,
		Confidence:         prediction.Confidence,
		CategoryConfidence: prediction.Confidence,
		NeedsReview:        needsReview,
		PaymentMethod:      parsed.Method,
		Last4Digits:        parsed.Last4,
		ReferenceID:        parsed.ReferenceID,
		RawData:            mask.Sensitive(parsed.RawText),
	}
}

// findDuplicate looks for a stored transaction with the same reference, or
// one of near-identical amount inside the time window. Manual entries that
// are still waiting for SMS verification are left for the merge step.
func (p *Pipeline) findDuplicate(ctx context.Context, parsed *api.ParsedMessage) (*api.Transaction, error) {
	if parsed.ReferenceID != "" {
		var found *api.Transaction
		err := p.withRetry(ctx, "finding by reference", func() error {
			var err error
			found, err = p.ledger.FindByReferenceID(ctx, parsed.ReferenceID)
			return err
		})
		switch {
		case err == nil:
			return found, nil
		case !errors.Is(err, api.ErrNotFound):
			return nil, err
		}
	}

	from, to := p.window(parsed.OccurredAt)
	var nearby []*api.Transaction
	if err := p.withRetry(ctx, "listing nearby transactions", func() error {
		var err error
		nearby, err = p.ledger.ListBetween(ctx, from, to)
		return err
	}); err != nil {
		return nil, err
	}

	for _, t := range nearby {
		if awaitingVerification(t) {
			continue
		}
		if p.amountMatches(t.Amount, *parsed.Amount) {
			return t, nil
		}
	}
	return nil, nil
}

// findMergeCandidate returns the manual entry an SMS should verify, preferring
// one whose description or merchant mentions the parsed merchant.
func (p *Pipeline) findMergeCandidate(ctx context.Context, parsed *api.ParsedMessage) (*api.Transaction, error) {
	from, to := p.window(parsed.OccurredAt)
	var manual []*api.Transaction
	if err := p.withRetry(ctx, "finding manual entries", func() error {
		var err error
		manual, err = p.ledger.FindManualCandidates(ctx, from, to)
		return err
	}); err != nil {
		return nil, err
	}

	wantType := api.TypeFor(parsed.Direction)
	merchant := strings.ToLower(strings.TrimSpace(parsed.Merchant))

	var first *api.Transaction
	for _, t := range manual {
		if t.Type != wantType || !p.amountMatches(t.Amount, *parsed.Amount) {
			continue
		}
		if merchant != "" &&
			(strings.Contains(strings.ToLower(t.Description), merchant) ||
				strings.Contains(strings.ToLower(t.Merchant), merchant)) {
			return t, nil
		}
		if first == nil {
			first = t
		}
	}
	return first, nil
}

func awaitingVerification(t *api.Transaction) bool {
	return t.Source == api.SourceManual && !t.IsAutoAdded && t.VerifiedVia != api.VerifiedViaSMS
}

func (p *Pipeline) window(at time.Time) (time.Time, time.Time) {
	return at.Add(-p.cfg.Window), at.Add(p.cfg.Window)
}

func (p *Pipeline) amountMatches(a, b float64) bool {
	return math.Abs(a-b) <= p.cfg.AmountTolerance
}

// withRetry runs a ledger call, retrying failures other than not-found and
// context cancellation.
func (p *Pipeline) withRetry(ctx context.Context, op string, fn func() error) error {
	err := retry.Do(fn,
		retry.Context(ctx),
		retry.RetryIf(transient),
		retry.Attempts(p.cfg.RetryAttempts),
		retry.Delay(p.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("ledger call failed, retrying", "op", op, "attempt", n+1, "error", err)
		}),
	)
	if err == nil || !transient(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func transient(err error) bool {
	return !errors.Is(err, api.ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (p *Pipeline) alreadySeen(ctx context.Context, id string, logger *slog.Logger) bool {
	if p.seen == nil || id == "" {
		return false
	}
	seen, err := p.seen.Seen(ctx, id)
	if err != nil {
		logger.Warn("checking processed messages failed", "error", err)
		return false
	}
	return seen
}

func (p *Pipeline) markSeen(ctx context.Context, id string, logger *slog.Logger) {
	if p.seen == nil || id == "" {
		return
	}
	if err := p.seen.MarkSeen(ctx, id); err != nil {
		logger.Warn("recording processed message failed", "error", err)
	}
}
