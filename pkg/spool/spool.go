// Package spool buffers raw messages on disk until they can be ingested.
//
// The spool is a single JSON file holding a bounded number of messages. When full,
// the oldest messages by receive time are dropped. Messages are handed out in
// receive order so duplicate and merge windows see them as they happened.
// Each message carries a count of failed ingestion attempts and is dropped
// once it reaches MaxAttempts.
package spool

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ArionMiles/smsledger/pkg/api"
)

// DefaultCap is the default number of retained messages.
const DefaultCap = 500

// MaxAttempts is the number of failed ingestion attempts after which a
// buffered message is given up on.
const MaxAttempts = 5

// ErrGaveUp is returned by Add when a message reached MaxAttempts and was
// removed from the spool.
var ErrGaveUp = errors.New("message failed too many times")

type entry struct {
	*api.RawMessage
	Attempts int `json:"attempts,omitempty"`
}

// Spool is a bounded, file-backed message buffer. It is safe for concurrent use
// within one process.
type Spool struct {
	mu     sync.Mutex
	path   string
	cap    int
	logger *slog.Logger
}

// Open returns a Spool stored at path, creating its directory if needed. The
// file itself is created on the first Add.
func Open(path string, capacity int, logger *slog.Logger) (*Spool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, errors.New("spool path is required")
	}
	if capacity <= 0 {
		capacity = DefaultCap
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &Spool{path: path, cap: capacity, logger: logger}, nil
}

// Add buffers msg after a failed ingestion attempt. Adding a message that is
// already buffered records another failed attempt instead of a second copy.
// A message reaching MaxAttempts is removed and ErrGaveUp returned.
func (s *Spool) Add(msg *api.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if i := slices.IndexFunc(entries, func(e entry) bool { return e.ID == msg.ID }); i >= 0 {
		entries[i].Attempts++
		if entries[i].Attempts < MaxAttempts {
			return s.save(entries)
		}
		s.logger.Error("dropping message after repeated failures", "message_id", msg.ID, "attempts", entries[i].Attempts)
		if err := s.save(slices.Delete(entries, i, i+1)); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrGaveUp, msg.ID)
	}

	entries = append(entries, entry{RawMessage: msg, Attempts: 1})
	sortByReceipt(entries)
	if over := len(entries) - s.cap; over > 0 {
		s.logger.Warn("spool full, dropping oldest messages", "dropped", over, "cap", s.cap)
		entries = entries[over:]
	}
	return s.save(entries)
}

// Pending returns the buffered messages in receive order.
func (s *Spool) Pending() ([]*api.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	sortByReceipt(entries)
	msgs := make([]*api.RawMessage, len(entries))
	for i, e := range entries {
		msgs[i] = e.RawMessage
	}
	return msgs, nil
}

// Attempts returns the failed attempt count of a buffered message, or zero
// when it is not buffered.
func (s *Spool) Attempts(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e.Attempts, nil
		}
	}
	return 0, nil
}

// Len returns the number of buffered messages.
func (s *Spool) Len() (int, error) {
	msgs, err := s.Pending()
	return len(msgs), err
}

// Remove drops the messages with the given IDs.
func (s *Spool) Remove(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(entries, func(e entry) bool {
		return slices.Contains(ids, e.ID)
	})
	return s.save(kept)
}

// DrainStats summarizes one Drain.
type DrainStats struct {
	Processed int
	Dropped   int
	Remaining int
}

// Drain hands buffered messages to fn in receive order. Messages fn accepts
// are removed. A message failing with an error for which retryable returns
// true has the attempt recorded and stops the drain, staying buffered with
// everything after it. If that attempt was its last, it is dropped and the
// drain goes on. Other failures are logged and the message is dropped.
func (s *Spool) Drain(ctx context.Context, fn func(context.Context, *api.RawMessage) error, retryable func(error) bool) (DrainStats, error) {
	var stats DrainStats

	msgs, err := s.Pending()
	if err != nil {
		return stats, err
	}

	var done []string
	for i, msg := range msgs {
		if err := ctx.Err(); err != nil {
			stats.Remaining = len(msgs) - i
			return stats, errors.Join(err, s.Remove(done...))
		}

		err := fn(ctx, msg)
		switch {
		case err == nil:
			stats.Processed++
		case retryable != nil && retryable(err):
			addErr := s.Add(msg)
			if errors.Is(addErr, ErrGaveUp) {
				stats.Dropped++
				continue
			}
			s.logger.Warn("stopping drain on retryable failure", "message_id", msg.ID, "error", err)
			stats.Remaining = len(msgs) - i
			return stats, errors.Join(addErr, s.Remove(done...))
		default:
			s.logger.Error("dropping message that failed ingestion", "message_id", msg.ID, "error", err)
			stats.Dropped++
		}
		done = append(done, msg.ID)
	}

	return stats, s.Remove(done...)
}

func sortByReceipt(entries []entry) {
	slices.SortStableFunc(entries, func(a, b entry) int {
		return cmp.Compare(a.ReceivedAt.UnixMilli(), b.ReceivedAt.UnixMilli())
	})
}

// load must be called with s.mu held.
func (s *Spool) load() ([]entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading spool: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding spool: %w", err)
	}
	return slices.DeleteFunc(entries, func(e entry) bool { return e.RawMessage == nil }), nil
}

// save must be called with s.mu held. The file is replaced atomically.
func (s *Spool) save(entries []entry) error {
	if entries == nil {
		entries = []entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding spool: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".spool-*.json")
	if err != nil {
		return fmt.Errorf("creating spool temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing spool: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing spool: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing spool: %w", err)
	}
	return nil
}

// Reader replays a Spool as an api.Reader. Every PollInterval it sends the
// buffered messages that are not already in flight, and removes a message
// once its ID comes back on the ack channel. A message left unacknowledged
// for longer than RedeliverAfter is sent again.
type Reader struct {
	Spool          *Spool
	PollInterval   time.Duration
	RedeliverAfter time.Duration
}

// Read implements api.Reader. It closes out when ctx is done.
func (r *Reader) Read(ctx context.Context, out chan<- *api.RawMessage, ackChan <-chan string) error {
	poll, redeliver := r.PollInterval, r.RedeliverAfter
	if poll <= 0 {
		poll = 10 * time.Second
	}
	if redeliver <= 0 {
		redeliver = time.Minute
	}
	return r.Spool.read(ctx, out, ackChan, poll, redeliver)
}

func (s *Spool) read(ctx context.Context, out chan<- *api.RawMessage, ackChan <-chan string, poll, redeliver time.Duration) error {
	defer close(out)

	inFlight := make(map[string]time.Time)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	send := func() error {
		msgs, err := s.Pending()
		if err != nil {
			s.logger.Error("reading spool failed", "error", err)
			return nil
		}
		now := time.Now()
		for _, msg := range msgs {
			if sent, ok := inFlight[msg.ID]; ok && now.Sub(sent) < redeliver {
				continue
			}
			select {
			case out <- msg:
				inFlight[msg.ID] = now
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	if err := send(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-ackChan:
			delete(inFlight, id)
			if err := s.Remove(id); err != nil {
				s.logger.Error("removing acknowledged message failed", "message_id", id, "error", err)
			}
		case <-ticker.C:
			if err := send(); err != nil {
				return err
			}
		}
	}
}
