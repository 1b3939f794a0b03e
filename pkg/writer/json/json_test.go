package json

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/smsledger/pkg/api"
)

func run(t *testing.T, w *Writer, in ...*api.Transaction) {
	t.Helper()
	ch := make(chan *api.Transaction, len(in))
	for _, tx := range in {
		ch <- tx
	}
	close(ch)
	require.NoError(t, w.Write(context.Background(), ch))
}

func TestWriter_AppendsAndReplacesByID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")

	merged := &api.Transaction{ID: uuid.New(), Amount: 500, Description: "Dmart groceries", Source: api.SourceManual}
	other := &api.Transaction{ID: uuid.New(), Amount: 45, Description: "SMS Transaction", Source: api.SourceSMS}

	w, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	run(t, w, merged, other)
	assert.Equal(t, 2, w.TransactionCount())

	// A later run sees the file and replaces the merged entry in place.
	verified := *merged
	verified.VerifiedVia = api.VerifiedViaSMS
	w, err = New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, w.TransactionCount())
	run(t, w, &verified)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []*api.Transaction
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, merged.ID, got[0].ID)
	assert.Equal(t, api.VerifiedViaSMS, got[0].VerifiedVia)
	assert.Equal(t, other.ID, got[1].ID)
}

func TestNew_IgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	w, err := New(Config{FilePath: path}, nil)
	require.NoError(t, err)
	assert.Zero(t, w.TransactionCount())
}
