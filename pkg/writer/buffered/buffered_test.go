package buffered

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/smsledger/pkg/api"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]*api.Transaction
	err     error
}

func (r *recorder) flush(_ context.Context, txs []*api.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, txs)
	return r.err
}

func (r *recorder) sizes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.batches))
	for i, b := range r.batches {
		out[i] = len(b)
	}
	return out
}

func txs(n int) []*api.Transaction {
	out := make([]*api.Transaction, n)
	for i := range out {
		out[i] = &api.Transaction{ID: uuid.New(), Amount: float64(100 + i), Description: "SMS Transaction"}
	}
	return out
}

func TestWriter_FlushesOnBatchSizeAndClose(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 2, FlushInterval: time.Hour}, nil)

	in := make(chan *api.Transaction, 5)
	for _, tx := range txs(5) {
		in <- tx
	}
	close(in)

	if err := w.Write(context.Background(), in); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got := rec.sizes()
	want := []int{2, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("batches = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, got[i], want[i])
		}
	}
	if w.BufferLen() != 0 {
		t.Errorf("BufferLen() = %d, want 0", w.BufferLen())
	}
}

func TestWriter_FlushesOnInterval(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan *api.Transaction)
	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, in) }()

	in <- txs(1)[0]

	deadline := time.After(time.Second)
	for len(rec.sizes()) == 0 {
		select {
		case <-deadline:
			t.Fatal("interval flush did not happen")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Write() error = %v, want context.Canceled", err)
	}
}

func TestWriter_FlushesOnShutdown(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 100, FlushInterval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *api.Transaction)
	done := make(chan error, 1)
	go func() { done <- w.Write(ctx, in) }()

	in <- txs(1)[0]
	in <- txs(1)[0]
	cancel()
	<-done

	got := rec.sizes()
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("batches = %v, want [2]", got)
	}
}

func TestWriter_CloseReturnsFlushError(t *testing.T) {
	rec := &recorder{err: errors.New("disk full")}
	w := New(rec.flush, Config{BatchSize: 10}, nil)

	in := make(chan *api.Transaction, 1)
	in <- txs(1)[0]
	close(in)

	if err := w.Write(context.Background(), in); err == nil {
		t.Error("Write() error = nil, want flush error")
	}
}

func TestWriter_ReplacesPendingTransactionWithSameID(t *testing.T) {
	rec := &recorder{}
	w := New(rec.flush, Config{BatchSize: 10, FlushInterval: time.Hour}, nil)

	manual := txs(2)
	merged := *manual[0]
	merged.VerifiedVia = api.VerifiedViaSMS

	in := make(chan *api.Transaction, 3)
	in <- manual[0]
	in <- manual[1]
	in <- &merged
	close(in)

	if err := w.Write(context.Background(), in); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if len(rec.batches) != 1 {
		t.Fatalf("batches = %v, want one batch", rec.sizes())
	}
	batch := rec.batches[0]
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batch))
	}
	if batch[0] != &merged {
		t.Errorf("batch[0] = %+v, want the merged copy in the original position", batch[0])
	}
	if batch[1] != manual[1] {
		t.Errorf("batch[1] = %+v, want %+v", batch[1], manual[1])
	}
}

func TestWriter_RequeuesFailedBatch(t *testing.T) {
	rec := &recorder{err: errors.New("quota exceeded")}
	w := New(rec.flush, Config{BatchSize: 2, FlushInterval: time.Hour, MaxPending: 3}, nil)
	ctx := context.Background()
	all := txs(4)

	w.handleTransaction(ctx, all[0], true)
	w.handleTransaction(ctx, all[1], true)
	if got := w.BufferLen(); got != 2 {
		t.Fatalf("BufferLen() after failed flush = %d, want 2", got)
	}

	w.handleTransaction(ctx, all[2], true)
	w.handleTransaction(ctx, all[3], true)
	if got := w.BufferLen(); got != 3 {
		t.Fatalf("BufferLen() at cap = %d, want 3", got)
	}

	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()
	if err := w.flush(ctx); err != nil {
		t.Fatalf("flush() error = %v", err)
	}

	last := rec.batches[len(rec.batches)-1]
	want := all[1:]
	if len(last) != len(want) {
		t.Fatalf("final batch size = %d, want %d", len(last), len(want))
	}
	for i := range want {
		if last[i] != want[i] {
			t.Errorf("final batch[%d] = %v, want %v", i, last[i].ID, want[i].ID)
		}
	}
}
