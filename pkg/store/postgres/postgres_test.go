package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/smsledger/pkg/api"
)

// TestOpen_ConnectionFailure tests that Open returns an error when the server is unreachable.
func TestOpen_ConnectionFailure(t *testing.T) {
	cfg := Config{
		Host:     "nonexistent-host",
		Port:     5432,
		Database: "smsledger",
		User:     "smsledger",
		Password: "password",
		SSLMode:  "disable",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Open(ctx, cfg, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err == nil {
		t.Error("expected error when connecting to nonexistent host, got nil")
	}
}

// TestOpen_BadURL tests that a malformed connection URL is rejected before dialing.
func TestOpen_BadURL(t *testing.T) {
	_, err := Open(context.Background(), Config{URL: "postgres://%zz"}, nil)
	if err == nil {
		t.Error("expected error for malformed URL, got nil")
	}
}

func envConfig(t *testing.T) Config {
	t.Helper()
	if os.Getenv("TEST_POSTGRES_HOST") == "" {
		t.Skip("TEST_POSTGRES_HOST not set, skipping integration test")
	}
	return Config{
		Host:     os.Getenv("TEST_POSTGRES_HOST"),
		Database: os.Getenv("TEST_POSTGRES_DB"),
		User:     os.Getenv("TEST_POSTGRES_USER"),
		Password: os.Getenv("TEST_POSTGRES_PASSWORD"),
	}
}

func TestStore_Env(t *testing.T) {
	cfg := envConfig(t)
	store, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}

// exerciseStore runs the ledger and merchant memory contract against a live
// database. Every row it writes is keyed by a fresh reference or merchant so
// reruns against the same database do not collide.
func exerciseStore(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	base := time.Now().UTC().Truncate(time.Millisecond)

	manual := &api.Transaction{
		Type:        api.TypeExpense,
		Amount:      500,
		Description: "groceries " + suffix,
		Category:    "Groceries",
		Date:        base,
		Source:      api.SourceManual,
	}
	require.NoError(t, s.Create(ctx, manual))

	got, err := s.Get(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Amount)
	assert.True(t, base.Equal(got.Date))

	candidates, err := s.FindManualCandidates(ctx, base.Add(-time.Minute), base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, containsID(candidates, manual.ID))

	manual.VerifiedVia = api.VerifiedViaSMS
	manual.ReferenceID = "REF-" + suffix
	manual.NeedsReview = true
	require.NoError(t, s.Update(ctx, manual))

	byRef, err := s.FindByReferenceID(ctx, "REF-"+suffix)
	require.NoError(t, err)
	assert.Equal(t, manual.ID, byRef.ID)
	assert.Equal(t, api.VerifiedViaSMS, byRef.VerifiedVia)

	candidates, err = s.FindManualCandidates(ctx, base.Add(-time.Minute), base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, containsID(candidates, manual.ID), "sms-verified entries are not merge candidates")

	between, err := s.ListBetween(ctx, base.Add(-time.Minute), base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, containsID(between, manual.ID))

	review, err := s.ListNeedingReview(ctx)
	require.NoError(t, err)
	assert.True(t, containsID(review, manual.ID))

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, api.ErrNotFound)
	_, err = s.FindByReferenceID(ctx, "")
	assert.ErrorIs(t, err, api.ErrNotFound)

	missing := &api.Transaction{ID: uuid.New(), Type: api.TypeExpense, Date: base, Source: api.SourceSMS}
	assert.ErrorIs(t, s.Update(ctx, missing), api.ErrNotFound)

	merchant := "Kirana " + suffix
	m, err := s.UpsertMapping(ctx, merchant, "Groceries")
	require.NoError(t, err)
	assert.InDelta(t, api.MappingInitialConfidence, m.Confidence, 1e-9)
	m, err = s.UpsertMapping(ctx, merchant, "Groceries")
	require.NoError(t, err)
	assert.InDelta(t, 0.95, m.Confidence, 1e-9)
	assert.Equal(t, 2, m.TimesUsed)
	m, err = s.UpsertMapping(ctx, merchant, "Household")
	require.NoError(t, err)
	assert.InDelta(t, api.MappingInitialConfidence, m.Confidence, 1e-9)
	assert.Equal(t, 3, m.TimesUsed)

	m, err = s.LookupMerchant(ctx, "  KIRANA "+suffix)
	require.NoError(t, err)
	assert.Equal(t, "Household", m.Category)

	m, err = s.MatchMerchant(ctx, "UPI kirana "+suffix+" mumbai")
	require.NoError(t, err)
	assert.Equal(t, api.MerchantKey(merchant), m.Merchant)

	_, err = s.LookupMerchant(ctx, "unknown "+suffix)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func containsID(txs []*api.Transaction, id uuid.UUID) bool {
	for _, t := range txs {
		if t.ID == id {
			return true
		}
	}
	return false
}
