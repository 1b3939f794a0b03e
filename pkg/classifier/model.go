package classifier

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// Tokenize lower-cases text, replaces anything but ASCII letters, digits and
// whitespace with spaces, and drops single-character tokens.
func Tokenize(text string) []string {
	fields := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(text), " "))
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Model is the persisted multinomial Naive Bayes state. The vocabulary is the
// key set of WordCounts and is not stored separately.
type Model struct {
	// WordCounts maps word to category to occurrences.
	WordCounts     map[string]map[string]int `json:"word_counts"`
	CategoryCounts map[string]int            `json:"category_counts"`
	TotalDocuments int                       `json:"total_documents"`
	Version        int                       `json:"version"`
	LastUpdated    time.Time                 `json:"last_updated"`

	// categoryWords caches the sum of WordCounts[*][category].
	categoryWords map[string]int
}

// NewModel returns an empty model at version 1.
func NewModel(now time.Time) *Model {
	return &Model{
		WordCounts:     make(map[string]map[string]int),
		CategoryCounts: make(map[string]int),
		Version:        1,
		LastUpdated:    now,
		categoryWords:  make(map[string]int),
	}
}

// VocabularySize is the number of distinct words seen.
func (m *Model) VocabularySize() int {
	return len(m.WordCounts)
}

// Validate checks the document count invariant and rebuilds derived state.
// It must be called on every model that was not built through NewModel.
func (m *Model) Validate() error {
	if m.WordCounts == nil {
		m.WordCounts = make(map[string]map[string]int)
	}
	if m.CategoryCounts == nil {
		m.CategoryCounts = make(map[string]int)
	}

	sum := 0
	for _, n := range m.CategoryCounts {
		if n < 0 {
			return fmt.Errorf("negative document count")
		}
		sum += n
	}
	if sum != m.TotalDocuments {
		return fmt.Errorf("total documents %d does not match category counts %d", m.TotalDocuments, sum)
	}

	m.categoryWords = make(map[string]int)
	for _, byCategory := range m.WordCounts {
		for category, n := range byCategory {
			m.categoryWords[category] += n
		}
	}
	return nil
}

func (m *Model) add(text, category string) {
	m.CategoryCounts[category]++
	m.TotalDocuments++
	for _, word := range Tokenize(text) {
		byCategory, ok := m.WordCounts[word]
		if !ok {
			byCategory = make(map[string]int)
			m.WordCounts[word] = byCategory
		}
		byCategory[category]++
		m.categoryWords[category]++
	}
}

// probabilities returns the posterior over categories for text, normalized
// with a max-shifted softmax over the log scores.
func (m *Model) probabilities(text string, categories []string) map[string]float64 {
	words := Tokenize(text)
	vocab := float64(m.VocabularySize())
	total := float64(m.TotalDocuments)
	numCategories := float64(len(categories))

	scores := make([]float64, len(categories))
	maxScore := math.Inf(-1)
	for i, category := range categories {
		score := math.Log((float64(m.CategoryCounts[category]) + 1) / (total + numCategories))
		denom := max(float64(m.categoryWords[category])+vocab, 1)
		for _, w := range words {
			score += math.Log((float64(m.WordCounts[w][category]) + 1) / denom)
		}
		scores[i] = score
		maxScore = math.Max(maxScore, score)
	}

	sum := 0.0
	for i := range scores {
		scores[i] = math.Exp(scores[i] - maxScore)
		sum += scores[i]
	}
	probs := make(map[string]float64, len(categories))
	for i, category := range categories {
		probs[category] = scores[i] / sum
	}
	return probs
}
