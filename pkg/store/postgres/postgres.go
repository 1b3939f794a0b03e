// Package postgres implements the ledger and merchant memory on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/smsledger/pkg/api"
)

//go:embed 001_create_ledger.sql
var migrationSQL string

// Config holds the PostgreSQL connection settings.
type Config struct {
	// URL, when set, is used as the connection string and the discrete
	// fields below are ignored.
	URL string

	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// Store is an api.Ledger and api.MerchantMemory backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to PostgreSQL and runs the schema migration.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	connStr := cfg.URL
	if connStr == "" {
		connStr = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
		)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	s := &Store{pool: pool, logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	s.logger.Info("running database migrations")
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	s.logger.Info("migrations completed successfully")
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
	return nil
}

const transactionColumns = `id::text, type, amount, description, merchant, category, date, source,
	is_auto_added, verified_via, verified, confidence, category_confidence, needs_review,
	payment_method, last4_digits, reference_id, raw_data, created_at, updated_at`

func scanTransaction(row pgx.Row) (*api.Transaction, error) {
	var (
		t                                   api.Transaction
		id                                  string
		txType, source, verifiedVia, method string
	)
	if err := row.Scan(
		&id, &txType, &t.Amount, &t.Description, &t.Merchant, &t.Category, &t.Date, &source,
		&t.IsAutoAdded, &verifiedVia, &t.Verified, &t.Confidence, &t.CategoryConfidence, &t.NeedsReview,
		&method, &t.Last4Digits, &t.ReferenceID, &t.RawData, &t.CreatedAt, &t.UpdatedAt,
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
	return &t, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]*api.Transaction, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Store) queryTransaction(ctx context.Context, query string, args ...any) (*api.Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	return t, err
}

// FindByReferenceID returns the transaction carrying ref.
func (s *Store) FindByReferenceID(ctx context.Context, ref string) (*api.Transaction, error) {
	if ref == "" {
		return nil, api.ErrNotFound
	}
	t, err := s.queryTransaction(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference_id = $1 ORDER BY created_at LIMIT 1`, ref)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return nil, fmt.Errorf("finding transaction by reference: %w", err)
	}
	return t, err
}

// ListBetween returns transactions dated in [from, to], oldest first.
func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]*api.Transaction, error) {
	txs, err := s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE date BETWEEN $1 AND $2 ORDER BY date, created_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txs, nil
}

// FindManualCandidates returns unverified manual entries dated in [from, to].
func (s *Store) FindManualCandidates(ctx context.Context, from, to time.Time) ([]*api.Transaction, error) {
	txs, err := s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE source = $1 AND NOT is_auto_added AND verified_via <> $2
			AND date BETWEEN $3 AND $4
		ORDER BY date, created_at`,
		string(api.SourceManual), string(api.VerifiedViaSMS), from, to)
	if err != nil {
		return nil, fmt.Errorf("finding manual candidates: %w", err)
	}
	return txs, nil
}

// Get returns a transaction by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*api.Transaction, error) {
	t, err := s.queryTransaction(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1::uuid`, id.String())
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return nil, fmt.Errorf("getting transaction %s: %w", id, err)
	}
	return t, err
}

// ListNeedingReview returns transactions flagged for review, newest first.
func (s *Store) ListNeedingReview(ctx context.Context) ([]*api.Transaction, error) {
	txs, err := s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE needs_review ORDER BY date DESC`)
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

	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			id, type, amount, description, merchant, category, date, source,
			is_auto_added, verified_via, verified, confidence, category_confidence, needs_review,
			payment_method, last4_digits, reference_id, raw_data, created_at, updated_at
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		t.ID.String(), string(t.Type), t.Amount, t.Description, t.Merchant, t.Category,
		t.Date, string(t.Source), t.IsAutoAdded, string(t.VerifiedVia),
		t.Verified, t.Confidence, t.CategoryConfidence, t.NeedsReview,
		string(t.PaymentMethod), t.Last4Digits, t.ReferenceID, t.RawData,
		t.CreatedAt, t.UpdatedAt,
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
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions SET
			type = $1, amount = $2, description = $3, merchant = $4, category = $5, date = $6,
			source = $7, is_auto_added = $8, verified_via = $9, verified = $10, confidence = $11,
			category_confidence = $12, needs_review = $13, payment_method = $14, last4_digits = $15,
			reference_id = $16, raw_data = $17, updated_at = $18
		WHERE id = $19::uuid`,
		string(t.Type), t.Amount, t.Description, t.Merchant, t.Category, t.Date,
		string(t.Source), t.IsAutoAdded, string(t.VerifiedVia), t.Verified,
		t.Confidence, t.CategoryConfidence, t.NeedsReview, string(t.PaymentMethod),
		t.Last4Digits, t.ReferenceID, t.RawData, t.UpdatedAt,
		t.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating transaction %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}
