package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/smsledger/pkg/api"
)

type fixedReader struct {
	msgs []*api.RawMessage
}

func (r fixedReader) Read(ctx context.Context, out chan<- *api.RawMessage, _ <-chan string) error {
	defer close(out)
	for _, m := range r.msgs {
		select {
		case out <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func TestDumpMessages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	at := time.Date(2024, 12, 7, 9, 30, 15, 0, time.UTC)
	reader := fixedReader{msgs: []*api.RawMessage{
		api.NewRawMessage("alerts@hdfcbank.net", "Rs 500 debited from A/c 123456789012. Call 9876543210", at),
		api.NewRawMessage("alerts@hdfcbank.net", "same second, skipped", at),
		api.NewRawMessage("VM-SBIINB", "Rs 20 debited", at.Add(time.Minute)),
		api.NewRawMessage("VM-SBIINB", "over the limit", at.Add(2*time.Minute)),
	}}

	n, err := dumpMessages(context.Background(), reader, dir, 2, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(dir, "alerts@hdfcbank.net_2024-12-07_093015.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Rs 500 debited from A/c XXXX9012. Call 98XXXX3210\n", string(data))

	_, err = os.Stat(filepath.Join(dir, "VM-SBIINB_2024-12-07_093115.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "VM-SBIINB_2024-12-07_093215.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"VM-HDFCBK_2024", "VM-HDFCBK_2024"},
		{"Bank <alerts>: a/b", "Bank_alerts_a_b"},
		{"__trim__me__", "trim_me"},
	}
	for _, tc := range tests {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}
