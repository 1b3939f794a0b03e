// Package boltdb stores the classifier model and the processed-message
// memory in a single bolt file.
package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/classifier"
)

// DefaultSeenCap is the number of processed message IDs remembered.
const DefaultSeenCap = 1000

var (
	modelBucket = []byte("model")
	seenBucket  = []byte("seen")
	orderBucket = []byte("seen_order")

	modelKey = []byte("current")
)

// Config holds bolt store configuration.
type Config struct {
	Path    string
	SeenCap int
}

// Store is a bolt-backed classifier.ModelStore and processed-message memory.
type Store struct {
	db      *bolt.DB
	seenCap int
	logger  *slog.Logger
}

// Open opens or creates the bolt file at cfg.Path.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if cfg.SeenCap <= 0 {
		cfg.SeenCap = DefaultSeenCap
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt file %s: %w", cfg.Path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{modelBucket, seenBucket, orderBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("opened bolt store", "path", cfg.Path, "seen_cap", cfg.SeenCap)
	return &Store{db: db, seenCap: cfg.SeenCap, logger: logger}, nil
}

// LoadModel decodes the saved model. It returns api.ErrNotFound when no model
// has been saved.
func (s *Store) LoadModel(_ context.Context) (*classifier.Model, error) {
	var m *classifier.Model
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(modelBucket).Get(modelKey)
		if v == nil {
			return api.ErrNotFound
		}
		m = new(classifier.Model)
		if err := gob.NewDecoder(bytes.NewReader(v)).Decode(m); err != nil {
			return fmt.Errorf("decoding model of %d bytes: %w", len(v), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// SaveModel replaces the saved model. The write is synced before it returns.
func (s *Store) SaveModel(_ context.Context, m *classifier.Model) error {
	var val bytes.Buffer
	if err := gob.NewEncoder(&val).Encode(m); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(modelBucket).Put(modelKey, val.Bytes())
	}); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	return nil
}

// DeleteModel removes the saved model, if any.
func (s *Store) DeleteModel(_ context.Context) error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(modelBucket).Delete(modelKey)
	}); err != nil {
		return fmt.Errorf("deleting model: %w", err)
	}
	return nil
}

// Seen reports whether a message ID was marked as processed.
func (s *Store) Seen(_ context.Context, id string) (bool, error) {
	var seen bool
	err := s.db.View(func(tx *bolt.Tx) error {
		seen = tx.Bucket(seenBucket).Get([]byte(id)) != nil
		return nil
	})
	return seen, err
}

// MarkSeen remembers a processed message ID. Once more than the configured cap
// are remembered, the oldest are forgotten.
func (s *Store) MarkSeen(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		seen := tx.Bucket(seenBucket)
		order := tx.Bucket(orderBucket)
		if seen.Get([]byte(id)) != nil {
			return nil
		}

		seq, err := order.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := seen.Put([]byte(id), key); err != nil {
			return err
		}
		if err := order.Put(key, []byte(id)); err != nil {
			return err
		}

		excess := countKeys(order) - s.seenCap
		c := order.Cursor()
		for k, v := c.First(); k != nil && excess > 0; k, v = c.First() {
			if err := seen.Delete(v); err != nil {
				return err
			}
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// SeenCount is the number of remembered message IDs.
func (s *Store) SeenCount() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = countKeys(tx.Bucket(orderBucket))
		return nil
	})
	return n, err
}

func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// Close closes the bolt file.
func (s *Store) Close() error {
	return s.db.Close()
}
