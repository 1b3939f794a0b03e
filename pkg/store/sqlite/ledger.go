package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/smsledger/pkg/api"
)

const transactionColumns = `id, type, amount, description, merchant, category, date, source,
	is_auto_added, verified_via, verified, confidence, category_confidence, needs_review,
	payment_method, last4_digits, reference_id, raw_data, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*api.Transaction, error) {
	var (
		t                                   api.Transaction
		id                                  string
		date, createdAt, updatedAt          int64
		autoAdded, verified, needsReview    int
		txType, source, verifiedVia, method string
	)
	if err := row.Scan(
		&id, &txType, &t.Amount, &t.Description, &t.Merchant, &t.Category, &date, &source,
		&autoAdded, &verifiedVia, &verified, &t.Confidence, &t.CategoryConfidence, &needsReview,
		&method, &t.Last4Digits, &t.ReferenceID, &t.RawData, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing transaction id %q: %w", id, err)
	}
	t.ID = parsed
	t.Type = api.TransactionType(txType)
	t.Source = api.Source(source)
	t.VerifiedVia = api.VerifiedVia(verifiedVia)
	t.PaymentMethod = api.Method(method)
	t.Date = fromMillis(date)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	t.IsAutoAdded = autoAdded == 1
	t.Verified = verified == 1
	t.NeedsReview = needsReview == 1
	return &t, nil
}

func queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]*api.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*api.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindByReferenceID returns the transaction carrying ref.
func (s *Store) FindByReferenceID(ctx context.Context, ref string) (*api.Transaction, error) {
	if ref == "" {
		return nil, api.ErrNotFound
	}
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference_id = ? ORDER BY created_at LIMIT 1`, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding transaction by reference: %w", err)
	}
	return t, nil
}

// ListBetween returns transactions dated in [from, to], oldest first.
func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]*api.Transaction, error) {
	txs, err := queryTransactions(ctx, s.db,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE date BETWEEN ? AND ? ORDER BY date, created_at`,
		toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txs, nil
}

// FindManualCandidates returns unverified manual entries dated in [from, to].
func (s *Store) FindManualCandidates(ctx context.Context, from, to time.Time) ([]*api.Transaction, error) {
	txs, err := queryTransactions(ctx, s.db,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE source = ? AND is_auto_added = 0 AND verified_via != ?
			AND date BETWEEN ? AND ?
		ORDER BY date, created_at`,
		string(api.SourceManual), string(api.VerifiedViaSMS), toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("finding manual candidates: %w", err)
	}
	return txs, nil
}

// Get returns a transaction by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*api.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction %s: %w", id, err)
	}
	return t, nil
}

// ListNeedingReview returns transactions flagged for review, newest first.
func (s *Store) ListNeedingReview(ctx context.Context) ([]*api.Transaction, error) {
	txs, err := queryTransactions(ctx, s.db,
		`SELECT `+transactionColumns+` FROM transactions WHERE needs_review = 1 ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing transactions needing review: %w", err)
	}
	return txs, nil
}

// Create inserts t, assigning an ID and timestamps when unset.
func (s *Store) Create(ctx context.Context, t *api.Transaction) error {
	now := s.now()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), string(t.Type), t.Amount, t.Description, t.Merchant, t.Category,
		toMillis(t.Date), string(t.Source), boolInt(t.IsAutoAdded), string(t.VerifiedVia),
		boolInt(t.Verified), t.Confidence, t.CategoryConfidence, boolInt(t.NeedsReview),
		string(t.PaymentMethod), t.Last4Digits, t.ReferenceID, t.RawData,
		toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

// Update overwrites every mutable field of t. It returns api.ErrNotFound when
// no row has t's ID.
func (s *Store) Update(ctx context.Context, t *api.Transaction) error {
	t.UpdatedAt = s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET
			type = ?, amount = ?, description = ?, merchant = ?, category = ?, date = ?,
			source = ?, is_auto_added = ?, verified_via = ?, verified = ?, confidence = ?,
			category_confidence = ?, needs_review = ?, payment_method = ?, last4_digits = ?,
			reference_id = ?, raw_data = ?, updated_at = ?
		WHERE id = ?`,
		string(t.Type), t.Amount, t.Description, t.Merchant, t.Category, toMillis(t.Date),
		string(t.Source), boolInt(t.IsAutoAdded), string(t.VerifiedVia), boolInt(t.Verified),
		t.Confidence, t.CategoryConfidence, boolInt(t.NeedsReview), string(t.PaymentMethod),
		t.Last4Digits, t.ReferenceID, t.RawData, toMillis(t.UpdatedAt),
		t.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", t.ID, err)
	}
	if n == 0 {
		return api.ErrNotFound
	}
	return nil
}
