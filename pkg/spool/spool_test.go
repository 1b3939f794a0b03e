package spool

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/smsledger/pkg/api"
)

var t0 = time.Date(2024, 12, 7, 9, 0, 0, 0, time.UTC)

func msgAt(minutes int) *api.RawMessage {
	return api.NewRawMessage("BANK", fmt.Sprintf("Rs %d debited from A/c XX1234", 100+minutes), t0.Add(time.Duration(minutes)*time.Minute))
}

func openSpool(t *testing.T, capacity int) *Spool {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "spool", "spool.json"), capacity, nil)
	require.NoError(t, err)
	return s
}

func ids(msgs []*api.RawMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestSpool_EmptyPending(t *testing.T) {
	s := openSpool(t, 0)
	got, err := s.Pending()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSpool_OrdersByReceipt(t *testing.T) {
	s := openSpool(t, 10)
	a, b, c := msgAt(5), msgAt(1), msgAt(3)
	for _, m := range []*api.RawMessage{a, b, c} {
		require.NoError(t, s.Add(m))
	}

	got, err := s.Pending()
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, ids(got))
}

func TestSpool_AddIgnoresDuplicates(t *testing.T) {
	s := openSpool(t, 10)
	m := msgAt(1)
	require.NoError(t, s.Add(m))
	require.NoError(t, s.Add(m))

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSpool_AddCountsAttempts(t *testing.T) {
	s := openSpool(t, 10)
	m := msgAt(1)

	for want := 1; want < MaxAttempts; want++ {
		require.NoError(t, s.Add(m))
		got, err := s.Attempts(m.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	err := s.Add(m)
	assert.ErrorIs(t, err, ErrGaveUp)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSpool_CapDropsOldest(t *testing.T) {
	s := openSpool(t, 3)
	var added []*api.RawMessage
	for i := range 5 {
		m := msgAt(i)
		added = append(added, m)
		require.NoError(t, s.Add(m))
	}

	got, err := s.Pending()
	require.NoError(t, err)
	assert.Equal(t, ids(added[2:]), ids(got))
}

func TestSpool_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.json")
	first, err := Open(path, 10, nil)
	require.NoError(t, err)
	m := msgAt(2)
	require.NoError(t, first.Add(m))

	second, err := Open(path, 10, nil)
	require.NoError(t, err)
	got, err := second.Pending()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, m.ID, got[0].ID)
	assert.Equal(t, m.Text, got[0].Text)
	assert.True(t, m.ReceivedAt.Equal(got[0].ReceivedAt))
}

func TestSpool_Drain(t *testing.T) {
	errDown := errors.New("ledger down")
	errBad := errors.New("bad message")
	retryable := func(err error) bool { return errors.Is(err, errDown) }

	tests := []struct {
		name          string
		failures      map[int]error
		attempts      map[int]int
		wantOrder     []int
		wantStats     DrainStats
		wantRemaining []int
	}{
		{
			name:      "all succeed",
			wantOrder: []int{0, 1, 2, 3},
			wantStats: DrainStats{Processed: 4},
		},
		{
			name:          "retryable failure stops and keeps the rest",
			failures:      map[int]error{2: errDown},
			wantOrder:     []int{0, 1, 2},
			wantStats:     DrainStats{Processed: 2, Remaining: 2},
			wantRemaining: []int{2, 3},
		},
		{
			name:      "message on its last attempt is dropped",
			failures:  map[int]error{1: errDown},
			attempts:  map[int]int{1: MaxAttempts - 1},
			wantOrder: []int{0, 1, 2, 3},
			wantStats: DrainStats{Processed: 3, Dropped: 1},
		},
		{
			name:      "permanent failure is dropped",
			failures:  map[int]error{1: errBad},
			wantOrder: []int{0, 1, 2, 3},
			wantStats: DrainStats{Processed: 3, Dropped: 1},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := openSpool(t, 10)
			msgs := []*api.RawMessage{msgAt(0), msgAt(1), msgAt(2), msgAt(3)}
			// Added out of order; Drain must still follow receive time.
			for _, i := range []int{3, 1, 0, 2} {
				require.NoError(t, s.Add(msgs[i]))
			}
			for i, n := range tc.attempts {
				for range n - 1 {
					require.NoError(t, s.Add(msgs[i]))
				}
			}
			index := make(map[string]int)
			for i, m := range msgs {
				index[m.ID] = i
			}

			var order []int
			stats, err := s.Drain(context.Background(), func(_ context.Context, m *api.RawMessage) error {
				i := index[m.ID]
				order = append(order, i)
				return tc.failures[i]
			}, retryable)
			require.NoError(t, err)

			assert.Equal(t, tc.wantOrder, order)
			assert.Equal(t, tc.wantStats, stats)

			left, err := s.Pending()
			require.NoError(t, err)
			var remaining []int
			for _, m := range left {
				remaining = append(remaining, index[m.ID])
			}
			assert.Equal(t, tc.wantRemaining, remaining)
		})
	}
}

func TestReader_SendsAndRemovesOnAck(t *testing.T) {
	s := openSpool(t, 10)
	a, b := msgAt(1), msgAt(0)
	require.NoError(t, s.Add(a))
	require.NoError(t, s.Add(b))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan *api.RawMessage, 10)
	acks := make(chan string, 10)
	r := &Reader{Spool: s, PollInterval: 20 * time.Millisecond, RedeliverAfter: time.Hour}

	done := make(chan error, 1)
	go func() { done <- r.Read(ctx, out, acks) }()

	first := <-out
	second := <-out
	assert.Equal(t, b.ID, first.ID, "oldest message first")
	assert.Equal(t, a.ID, second.ID)

	acks <- first.ID
	require.Eventually(t, func() bool {
		n, err := s.Len()
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)

	// The unacknowledged message is not redelivered inside RedeliverAfter.
	select {
	case m := <-out:
		t.Fatalf("unexpected redelivery of %s", m.ID)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	_, open := <-out
	assert.False(t, open, "Read must close its output channel")
}

func TestReader_RedeliversUnacknowledged(t *testing.T) {
	s := openSpool(t, 10)
	m := msgAt(0)
	require.NoError(t, s.Add(m))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan *api.RawMessage, 10)
	r := &Reader{Spool: s, PollInterval: 10 * time.Millisecond, RedeliverAfter: 30 * time.Millisecond}
	go func() { _ = r.Read(ctx, out, make(chan string)) }()

	assert.Equal(t, m.ID, (<-out).ID)
	select {
	case again := <-out:
		assert.Equal(t, m.ID, again.ID)
	case <-time.After(time.Second):
		t.Fatal("message was not redelivered")
	}
}
