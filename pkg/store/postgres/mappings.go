package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ArionMiles/smsledger/pkg/api"
)

const mappingColumns = `merchant, category, confidence, times_used, last_used`

func scanMapping(row pgx.Row) (*api.CategoryMapping, error) {
	var m api.CategoryMapping
	if err := row.Scan(&m.Merchant, &m.Category, &m.Confidence, &m.TimesUsed, &m.LastUsed); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) queryMapping(ctx context.Context, query string, args ...any) (*api.CategoryMapping, error) {
	m, err := scanMapping(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.ErrNotFound
	}
	return m, err
}

// LookupMerchant returns the mapping stored under merchant's key.
func (s *Store) LookupMerchant(ctx context.Context, merchant string) (*api.CategoryMapping, error) {
	key := api.MerchantKey(merchant)
	if key == "" {
		return nil, api.ErrNotFound
	}
	m, err := s.queryMapping(ctx,
		`SELECT `+mappingColumns+` FROM category_mappings WHERE merchant = $1`, key)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return nil, fmt.Errorf("looking up merchant: %w", err)
	}
	return m, err
}

// MatchMerchant returns the mapping whose key contains merchant or is
// contained in it. The most used mapping wins.
func (s *Store) MatchMerchant(ctx context.Context, merchant string) (*api.CategoryMapping, error) {
	key := api.MerchantKey(merchant)
	if key == "" {
		return nil, api.ErrNotFound
	}
	m, err := s.queryMapping(ctx,
		`SELECT `+mappingColumns+` FROM category_mappings
		WHERE strpos(merchant, $1) > 0 OR strpos($1, merchant) > 0
		ORDER BY times_used DESC, last_used DESC, merchant
		LIMIT 1`, key)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return nil, fmt.Errorf("matching merchant: %w", err)
	}
	return m, err
}

// UpsertMapping records a correction of merchant to category.
func (s *Store) UpsertMapping(ctx context.Context, merchant, category string) (*api.CategoryMapping, error) {
	key := api.MerchantKey(merchant)
	if key == "" {
		return nil, fmt.Errorf("merchant must not be empty")
	}
	m, err := scanMapping(s.pool.QueryRow(ctx, `
		INSERT INTO category_mappings (merchant, category, confidence, times_used, last_used)
		VALUES ($1, $2, $3, 1, $4)
		ON CONFLICT (merchant) DO UPDATE SET
			confidence = CASE
				WHEN category_mappings.category = EXCLUDED.category
				THEN LEAST(1.0, category_mappings.confidence + $5)
				ELSE EXCLUDED.confidence
			END,
			category = EXCLUDED.category,
			times_used = category_mappings.times_used + 1,
			last_used = EXCLUDED.last_used
		RETURNING `+mappingColumns,
		key, category, api.MappingInitialConfidence, s.now(), api.MappingConfidenceStep))
	if err != nil {
		return nil, fmt.Errorf("saving mapping: %w", err)
	}
	return m, nil
}

// ListMappings returns every mapping, most used first.
func (s *Store) ListMappings(ctx context.Context) ([]*api.CategoryMapping, error) {
	rows, err := s.pool.Query(ctx,
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
