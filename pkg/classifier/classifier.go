// Package classifier implements an online-learning multinomial Naive Bayes
// text classifier for transaction categories.
//
// A Classifier is bootstrapped from the keyword table's synthetic corpus the
// first time it is used, or loaded from its ModelStore when a saved model
// exists. Every mutation is persisted before the mutating call returns.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/keywords"
)

// FallbackThreshold is the model probability under which the keyword
// fallback is consulted.
const FallbackThreshold = 0.15

// mappingKeyLen is the number of characters of learned text kept as a
// merchant memory key.
const mappingKeyLen = 100

// ErrEmptyCategory is returned when training with a blank category.
var ErrEmptyCategory = errors.New("category must not be empty")

// ModelStore persists a Model. LoadModel returns api.ErrNotFound when nothing
// has been saved yet.
type ModelStore interface {
	LoadModel(ctx context.Context) (*Model, error)
	SaveModel(ctx context.Context, m *Model) error
	DeleteModel(ctx context.Context) error
}

// State is the lifecycle stage of a Classifier.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Prediction is the outcome of classifying one text.
type Prediction struct {
	Category   string
	Confidence float64
	// Probabilities holds the full posterior, or the single fallback entry
	// when the keyword fallback decided.
	Probabilities map[string]float64
	Fallback      bool
}

// Stats summarizes the model.
type Stats struct {
	Documents   int       `json:"documents"`
	Vocabulary  int       `json:"vocabulary"`
	Categories  int       `json:"categories"`
	Version     int       `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

// Classifier owns one Model. All access goes through a single mutex, so
// learning events never interleave.
type Classifier struct {
	mu    sync.Mutex
	state atomic.Int32
	model *Model

	keywords *keywords.Map
	store    ModelStore
	memory   api.MerchantMemory
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an uninitialized Classifier. store and memory may be nil, in
// which case the model lives only in memory and Learn records no mapping.
func New(km *keywords.Map, store ModelStore, memory api.MerchantMemory, logger *slog.Logger) *Classifier {
	if km == nil {
		km = keywords.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		keywords: km,
		store:    store,
		memory:   memory,
		logger:   logger,
		now:      time.Now,
	}
}

// State reports the lifecycle stage.
func (c *Classifier) State() State {
	return State(c.state.Load())
}

// Init loads the persisted model, or bootstraps one from the keyword table
// when none is stored, the stored one is empty, or loading fails. It never
// fails; a classifier can always serve predictions afterwards.
func (c *Classifier) Init(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureReady(ctx)
}

// ensureReady must be called with c.mu held.
func (c *Classifier) ensureReady(ctx context.Context) {
	if c.State() == StateReady {
		return
	}
	c.state.Store(int32(StateInitializing))

	if m := c.load(ctx); m != nil {
		c.model = m
		c.logger.Info("loaded classifier model",
			"documents", m.TotalDocuments,
			"vocabulary", m.VocabularySize(),
			"version", m.Version,
		)
	} else {
		c.bootstrap(ctx)
	}
	c.state.Store(int32(StateReady))
}

func (c *Classifier) load(ctx context.Context) *Model {
	if c.store == nil {
		return nil
	}
	m, err := c.store.LoadModel(ctx)
	switch {
	case errors.Is(err, api.ErrNotFound):
		return nil
	case err != nil:
		c.logger.Warn("loading classifier model failed, retraining", "error", err)
		return nil
	}
	if err := m.Validate(); err != nil {
		c.logger.Warn("stored classifier model is inconsistent, retraining", "error", err)
		return nil
	}
	if m.TotalDocuments == 0 {
		return nil
	}
	return m
}

func (c *Classifier) bootstrap(ctx context.Context) {
	c.model = NewModel(c.now())
	for _, doc := range c.keywords.TrainingData() {
		c.model.add(doc.Text, doc.Category)
	}
	c.logger.Info("trained classifier from keyword table",
		"documents", c.model.TotalDocuments,
		"vocabulary", c.model.VocabularySize(),
	)
	c.save(ctx)
}

// save persists the model. Failures are logged; the in-memory model stays
// authoritative.
func (c *Classifier) save(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveModel(ctx, c.model); err != nil {
		c.logger.Error("saving classifier model failed", "version", c.model.Version, "error", err)
	}
}

// categories is the keyword table's categories plus any learned ones, sorted.
func (c *Classifier) categories() []string {
	cats := c.keywords.Categories()
	for category := range c.model.CategoryCounts {
		if !slices.Contains(cats, category) {
			cats = append(cats, category)
		}
	}
	slices.Sort(cats)
	return cats
}

// Predict returns the most probable category for text. Confidence is the
// winning probability rounded to two decimals; Probabilities are unrounded.
// When the confidence is under FallbackThreshold and the keyword fallback is
// more confident, the fallback result is returned instead.
func (c *Classifier) Predict(ctx context.Context, text string) Prediction {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureReady(ctx)

	cats := c.categories()
	probs := c.model.probabilities(text, cats)

	best := Prediction{Category: c.keywords.DefaultCategory(), Probabilities: probs}
	for _, category := range cats {
		if p := probs[category]; p > best.Confidence {
			best.Category = category
			best.Confidence = p
		}
	}
	best.Confidence = math.Round(best.Confidence*100) / 100

	if best.Confidence < FallbackThreshold {
		fb := c.keywords.FallbackMatch(text)
		if fb.Confidence > best.Confidence {
			return Prediction{
				Category:      fb.Category,
				Confidence:    fb.Confidence,
				Probabilities: map[string]float64{fb.Category: fb.Confidence},
				Fallback:      true,
			}
		}
	}
	return best
}

// AddDocument trains the model on one labelled text and persists it.
func (c *Classifier) AddDocument(ctx context.Context, text, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return ErrEmptyCategory
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureReady(ctx)

	c.model.add(text, category)
	c.touch()
	c.save(ctx)
	return nil
}

// Learn applies a user correction. The text is added three times, plus once
// more as its normalized token string, so corrections outweigh the bootstrap
// corpus. A merchant memory entry keyed on the text is upserted afterwards;
// its failure is logged and not returned.
func (c *Classifier) Learn(ctx context.Context, text, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return ErrEmptyCategory
	}

	c.mu.Lock()
	c.ensureReady(ctx)
	for range 3 {
		c.model.add(text, category)
	}
	if tokens := Tokenize(text); len(tokens) > 0 {
		c.model.add(strings.Join(tokens, " "), category)
	}
	c.touch()
	c.save(ctx)
	version := c.model.Version
	c.mu.Unlock()

	c.logger.Info("learned correction", "category", category, "version", version)

	if c.memory == nil {
		return nil
	}
	key := MappingKey(text)
	if key == "" {
		return nil
	}
	if _, err := c.memory.UpsertMapping(ctx, key, category); err != nil {
		c.logger.Warn("saving learned mapping failed", "category", category, "error", err)
	}
	return nil
}

// MappingKey is the merchant memory key recorded for learned text.
func MappingKey(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > mappingKeyLen {
		r = r[:mappingKeyLen]
	}
	return strings.ToLower(strings.TrimSpace(string(r)))
}

func (c *Classifier) touch() {
	c.model.Version++
	if now := c.now(); now.After(c.model.LastUpdated) {
		c.model.LastUpdated = now
	}
}

// Stats reports model size and version. It initializes the classifier if needed.
func (c *Classifier) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureReady(ctx)

	return Stats{
		Documents:   c.model.TotalDocuments,
		Vocabulary:  c.model.VocabularySize(),
		Categories:  len(c.categories()),
		Version:     c.model.Version,
		LastUpdated: c.model.LastUpdated,
	}
}

// Reset discards the persisted and in-memory model and retrains from the
// keyword table. A failure to delete the stored model is returned after the
// in-memory model has been rebuilt.
func (c *Classifier) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var deleteErr error
	if c.store != nil {
		if err := c.store.DeleteModel(ctx); err != nil && !errors.Is(err, api.ErrNotFound) {
			deleteErr = fmt.Errorf("deleting stored model: %w", err)
		}
	}
	c.model = nil
	c.state.Store(int32(StateUninitialized))

	c.state.Store(int32(StateInitializing))
	c.bootstrap(ctx)
	c.state.Store(int32(StateReady))
	return deleteErr
}
