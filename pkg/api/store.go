package api

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:generate mockgen -source=store.go -destination=store_mock.go -package=api

// Ledger is the read/write contract the pipeline needs from transaction storage.
type Ledger interface {
	// FindByReferenceID returns ErrNotFound when no transaction carries ref.
	FindByReferenceID(ctx context.Context, ref string) (*Transaction, error)
	// ListBetween returns transactions whose date lies in [from, to], oldest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]*Transaction, error)
	// FindManualCandidates returns manual, non auto-added, not yet SMS verified
	// transactions whose date lies in [from, to], oldest first.
	FindManualCandidates(ctx context.Context, from, to time.Time) ([]*Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*Transaction, error)
	Create(ctx context.Context, tx *Transaction) error
	Update(ctx context.Context, tx *Transaction) error
	ListNeedingReview(ctx context.Context) ([]*Transaction, error)
}

// MerchantMemory is the learned merchant to category table.
type MerchantMemory interface {
	// LookupMerchant returns ErrNotFound for unknown merchants.
	LookupMerchant(ctx context.Context, merchant string) (*CategoryMapping, error)
	// MatchMerchant returns the first mapping whose key contains merchant or is
	// contained in it, case-insensitively. ErrNotFound when none does.
	MatchMerchant(ctx context.Context, merchant string) (*CategoryMapping, error)
	UpsertMapping(ctx context.Context, merchant, category string) (*CategoryMapping, error)
	ListMappings(ctx context.Context) ([]*CategoryMapping, error)
}

// Merchant memory confidence. A new mapping starts at MappingInitialConfidence;
// every repeat correction to the same category adds MappingConfidenceStep, up
// to 1. A correction to a different category starts over.
const (
	MappingInitialConfidence = 0.9
	MappingConfidenceStep    = 0.05
)

// MerchantKey normalizes a merchant label into its memory key.
func MerchantKey(merchant string) string {
	return cases.Lower(language.Und).String(strings.Join(strings.Fields(merchant), " "))
}
