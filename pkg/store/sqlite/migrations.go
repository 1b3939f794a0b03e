package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the schema version this package expects.
const SchemaVersion = 2

type migration struct {
	version     int
	description string
	statements  []string
}

var migrations = []migration{
	{
		version:     1,
		description: "transactions and category mappings",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL,
				amount REAL NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				merchant TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL DEFAULT '',
				date INTEGER NOT NULL,
				source TEXT NOT NULL,
				is_auto_added INTEGER NOT NULL DEFAULT 0,
				verified_via TEXT NOT NULL DEFAULT '',
				verified INTEGER NOT NULL DEFAULT 0,
				confidence REAL NOT NULL DEFAULT 0,
				category_confidence REAL NOT NULL DEFAULT 0,
				needs_review INTEGER NOT NULL DEFAULT 0,
				payment_method TEXT NOT NULL DEFAULT '',
				last4_digits TEXT NOT NULL DEFAULT '',
				reference_id TEXT NOT NULL DEFAULT '',
				raw_data TEXT NOT NULL DEFAULT '',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(reference_id) WHERE reference_id != ''`,
			`CREATE TABLE IF NOT EXISTS category_mappings (
				merchant TEXT PRIMARY KEY,
				category TEXT NOT NULL,
				confidence REAL NOT NULL,
				times_used INTEGER NOT NULL DEFAULT 1,
				last_used INTEGER NOT NULL
			)`,
		},
	},
	{
		version:     2,
		description: "needs-review index",
		statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_transactions_review ON transactions(needs_review) WHERE needs_review = 1`,
		},
	},
}

// Migrate applies pending migrations, tracking progress in PRAGMA user_version.
func (s *Store) Migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		s.logger.Info("applied migration", "version", m.version, "description", m.description)
	}

	var final int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return fmt.Errorf("verifying schema version: %w", err)
	}
	if final != SchemaVersion {
		return fmt.Errorf("schema version mismatch: expected %d, got %d", SchemaVersion, final)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", m.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("updating schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", m.version, err)
	}
	return nil
}

// queryable is satisfied by *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
