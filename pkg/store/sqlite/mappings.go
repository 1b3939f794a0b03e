package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ArionMiles/smsledger/pkg/api"
)

const mappingColumns = `merchant, category, confidence, times_used, last_used`

func scanMapping(row scanner) (*api.CategoryMapping, error) {
	var (
		m        api.CategoryMapping
		lastUsed int64
	)
	if err := row.Scan(&m.Merchant, &m.Category, &m.Confidence, &m.TimesUsed, &lastUsed); err != nil {
		return nil, err
	}
	m.LastUsed = fromMillis(lastUsed)
	return &m, nil
}

// LookupMerchant returns the mapping stored under merchant's key.
func (s *Store) LookupMerchant(ctx context.Context, merchant string) (*api.CategoryMapping, error) {
	key := api.MerchantKey(merchant)
	if key == "" {
		return nil, api.ErrNotFound
	}
	m, err := scanMapping(s.db.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM category_mappings WHERE merchant = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up merchant: %w", err)
	}
	return m, nil
}

// MatchMerchant returns the mapping whose key contains merchant or is
// contained in it. The most used mapping wins.
func (s *Store) MatchMerchant(ctx context.Context, merchant string) (*api.CategoryMapping, error) {
	key := api.MerchantKey(merchant)
	if key == "" {
		return nil, api.ErrNotFound
	}
	m, err := scanMapping(s.db.QueryRowContext(ctx,
		`SELECT `+mappingColumns+` FROM category_mappings
		WHERE instr(merchant, ?1) > 0 OR instr(?1, merchant) > 0
		ORDER BY times_used DESC, last_used DESC, merchant
		LIMIT 1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("matching merchant: %w", err)
	}
	return m, nil
}

// UpsertMapping records a correction of merchant to category.
func (s *Store) UpsertMapping(ctx context.Context, merchant, category string) (*api.CategoryMapping, error) {
	key := api.MerchantKey(merchant)
	if key == "" {
		return nil, fmt.Errorf("merchant must not be empty")
	}
	m, err := scanMapping(s.db.QueryRowContext(ctx,
		`INSERT INTO category_mappings (`+mappingColumns+`)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(merchant) DO UPDATE SET
			confidence = CASE
				WHEN category_mappings.category = excluded.category
				THEN MIN(1.0, category_mappings.confidence + ?)
				ELSE excluded.confidence
			END,
			category = excluded.category,
			times_used = category_mappings.times_used + 1,
			last_used = excluded.last_used
		RETURNING `+mappingColumns,
		key, category, api.MappingInitialConfidence, toMillis(s.now()), api.MappingConfidenceStep))
	if err != nil {
		return nil, fmt.Errorf("saving mapping: %w", err)
	}
	return m, nil
}

// ListMappings returns every mapping, most used first.
func (s *Store) ListMappings(ctx context.Context) ([]*api.CategoryMapping, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mappingColumns+` FROM category_mappings ORDER BY times_used DESC, merchant`)
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	defer rows.Close()

	var out []*api.CategoryMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
