package boltdb

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/classifier"
)

func openTestStore(t *testing.T, path string, seenCap int) *Store {
	t.Helper()
	s, err := Open(Config{Path: path, SeenCap: seenCap}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{}, nil)
	assert.Error(t, err)
}

func TestStore_ModelRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "model.db")
	s := openTestStore(t, path, 0)

	_, err := s.LoadModel(ctx)
	require.ErrorIs(t, err, api.ErrNotFound)

	c := classifier.New(nil, s, nil, nil)
	require.NoError(t, c.Learn(ctx, "Ramesh Kirana monthly ration", "Custom Category"))
	want := c.Stats(ctx)

	loaded, err := s.LoadModel(ctx)
	require.NoError(t, err)
	require.NoError(t, loaded.Validate())
	assert.Equal(t, want.Documents, loaded.TotalDocuments)
	assert.Equal(t, want.Vocabulary, loaded.VocabularySize())
	assert.Equal(t, want.Version, loaded.Version)
	assert.True(t, want.LastUpdated.Equal(loaded.LastUpdated))
	assert.Equal(t, 4, loaded.CategoryCounts["Custom Category"])
	assert.Equal(t, 4, loaded.WordCounts["kirana"]["Custom Category"])

	require.NoError(t, s.DeleteModel(ctx))
	_, err = s.LoadModel(ctx)
	assert.ErrorIs(t, err, api.ErrNotFound)

	// Deleting twice is not an error.
	assert.NoError(t, s.DeleteModel(ctx))
}

func TestStore_ModelSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "model.db")

	s, err := Open(Config{Path: path}, nil)
	require.NoError(t, err)
	first := classifier.New(nil, s, nil, nil)
	require.NoError(t, first.Learn(ctx, "corner shop", "Groceries"))
	want := first.Stats(ctx)
	require.NoError(t, s.Close())

	reopened := openTestStore(t, path, 0)
	second := classifier.New(nil, reopened, nil, nil)
	got := second.Stats(ctx)
	assert.Equal(t, want.Documents, got.Documents)
	assert.Equal(t, want.Version, got.Version)
}

func TestStore_SeenEvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "model.db"), 3)

	for i := range 5 {
		require.NoError(t, s.MarkSeen(ctx, fmt.Sprintf("msg-%d", i)))
	}

	n, err := s.SeenCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tests := []struct {
		id   string
		want bool
	}{
		{"msg-0", false},
		{"msg-1", false},
		{"msg-2", true},
		{"msg-3", true},
		{"msg-4", true},
		{"never", false},
	}
	for _, tc := range tests {
		got, err := s.Seen(ctx, tc.id)
		require.NoError(t, err)
		if got != tc.want {
			t.Errorf("Seen(%q): got %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestStore_MarkSeenIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, filepath.Join(t.TempDir(), "model.db"), 2)

	require.NoError(t, s.MarkSeen(ctx, "a"))
	require.NoError(t, s.MarkSeen(ctx, "b"))
	require.NoError(t, s.MarkSeen(ctx, "a"))

	n, err := s.SeenCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	seen, err := s.Seen(ctx, "a")
	require.NoError(t, err)
	assert.True(t, seen, "re-marking must not evict the entry")
}
