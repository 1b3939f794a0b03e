// Package keywords holds the static keyword to category table used for
// parse-time categorization and for bootstrapping the classifier.
package keywords

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed keywords.json
var tableInput []byte

const (
	// DefaultConfidence is assigned when nothing in the table matches.
	DefaultConfidence = 0.3
	// FallbackHitConfidence is the classifier fallback confidence for a keyword hit.
	FallbackHitConfidence = 0.85
	// FallbackMissConfidence is the classifier fallback confidence without a hit.
	FallbackMissConfidence = 0.1

	maxKeywordConfidence = 0.9
)

// Entry is one keyword and the category it maps to.
type Entry struct {
	Keyword  string
	Category string
}

// Match is a categorization result.
type Match struct {
	Category   string
	Confidence float64
	Keyword    string
}

// Document is a labelled training sentence.
type Document struct {
	Text     string
	Category string
}

type table struct {
	Default    string `json:"default"`
	Categories []struct {
		Name     string   `json:"name"`
		Keywords []string `json:"keywords"`
	} `json:"categories"`
}

// Map is an immutable keyword table. Entries keep declaration order, which
// breaks ties between equally confident matches.
type Map struct {
	defaultCategory string
	categories      []string
	entries         []Entry
	byKeyword       map[string]string
}

var (
	defaultMap     *Map
	defaultMapOnce sync.Once
)

// Default returns the embedded table. It panics if the embedded JSON is invalid.
func Default() *Map {
	defaultMapOnce.Do(func() {
		m, err := Parse(tableInput)
		if err != nil {
			panic(fmt.Sprintf("keywords: parsing embedded table: %v", err))
		}
		defaultMap = m
	})
	return defaultMap
}

// Parse builds a Map from its JSON form. Keywords are folded to upper case and
// must be unique across categories.
func Parse(data []byte) (*Map, error) {
	var t table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding keyword table: %w", err)
	}
	if t.Default == "" {
		return nil, fmt.Errorf("keyword table has no default category")
	}

	upper := cases.Upper(language.Und)
	m := &Map{
		defaultCategory: t.Default,
		byKeyword:       make(map[string]string),
	}
	seen := make(map[string]bool)
	for _, c := range t.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("keyword table has a category without a name")
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("category %q declared twice", c.Name)
		}
		seen[c.Name] = true
		m.categories = append(m.categories, c.Name)

		for _, k := range c.Keywords {
			k = upper.String(strings.TrimSpace(k))
			if k == "" {
				continue
			}
			if prev, ok := m.byKeyword[k]; ok {
				return nil, fmt.Errorf("keyword %q maps to both %q and %q", k, prev, c.Name)
			}
			m.byKeyword[k] = c.Name
			m.entries = append(m.entries, Entry{Keyword: k, Category: c.Name})
		}
	}
	if !seen[t.Default] {
		m.categories = append(m.categories, t.Default)
	}
	return m, nil
}

// DefaultCategory is the catch-all category name.
func (m *Map) DefaultCategory() string {
	return m.defaultCategory
}

// Lookup returns the category for an exact keyword, case-insensitively.
func (m *Map) Lookup(keyword string) (string, bool) {
	c, ok := m.byKeyword[cases.Upper(language.Und).String(strings.TrimSpace(keyword))]
	return c, ok
}

// Categories returns every category name in declaration order.
func (m *Map) Categories() []string {
	out := make([]string, len(m.categories))
	copy(out, m.categories)
	return out
}

// Entries returns every keyword entry in declaration order.
func (m *Map) Entries() []Entry {
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len is the number of keywords in the table.
func (m *Map) Len() int {
	return len(m.entries)
}

// KeywordConfidence is the confidence of a substring hit on keyword.
// Longer keywords are more specific and score higher.
func KeywordConfidence(keyword string) float64 {
	return min(maxKeywordConfidence, 0.5+0.03*float64(len([]rune(keyword))))
}

// BestMatch scans text for every keyword and returns the most confident hit.
// Without a hit it returns the default category at DefaultConfidence.
func (m *Map) BestMatch(text string) Match {
	best := Match{Category: m.defaultCategory, Confidence: DefaultConfidence}
	haystack := cases.Upper(language.Und).String(text)
	for _, e := range m.entries {
		if !strings.Contains(haystack, e.Keyword) {
			continue
		}
		if c := KeywordConfidence(e.Keyword); c > best.Confidence {
			best = Match{Category: e.Category, Confidence: c, Keyword: e.Keyword}
		}
	}
	return best
}

// FallbackMatch is the classifier's keyword fallback. A hit scores
// FallbackHitConfidence whatever its length; the longest hit wins so the
// result does not depend on map iteration. Without a hit it returns the
// default category at FallbackMissConfidence.
func (m *Map) FallbackMatch(text string) Match {
	haystack := cases.Upper(language.Und).String(text)
	var hit *Entry
	for i, e := range m.entries {
		if strings.Contains(haystack, e.Keyword) && (hit == nil || len(e.Keyword) > len(hit.Keyword)) {
			hit = &m.entries[i]
		}
	}
	if hit == nil {
		return Match{Category: m.defaultCategory, Confidence: FallbackMissConfidence}
	}
	return Match{Category: hit.Category, Confidence: FallbackHitConfidence, Keyword: hit.Keyword}
}

// TrainingData synthesizes the bootstrap corpus: five sentences per keyword.
func (m *Map) TrainingData() []Document {
	lower := cases.Lower(language.Und)
	docs := make([]Document, 0, len(m.entries)*5)
	for _, e := range m.entries {
		k := lower.String(e.Keyword)
		docs = append(docs,
			Document{Text: k, Category: e.Category},
			Document{Text: "payment to " + k, Category: e.Category},
			Document{Text: k + " transaction", Category: e.Category},
			Document{Text: "debited for " + k, Category: e.Category},
			Document{Text: "credited from " + k, Category: e.Category},
		)
	}
	return docs
}
