package keywords

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ArionMiles/smsledger/pkg/api"
)

// MemoryConfidence is assigned to categories recalled from merchant memory.
const MemoryConfidence = 0.95

// Categorizer assigns parse-time categories. Learned merchant mappings win
// over the keyword table.
type Categorizer struct {
	keywords *Map
	memory   api.MerchantMemory
	logger   *slog.Logger
}

// NewCategorizer creates a Categorizer. memory may be nil, in which case only
// the keyword table is consulted.
func NewCategorizer(m *Map, memory api.MerchantMemory, logger *slog.Logger) *Categorizer {
	if m == nil {
		m = Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Categorizer{keywords: m, memory: memory, logger: logger}
}

// Categorize returns a category for a message text and its extracted merchant.
// A merchant memory failure is logged and categorization continues with the
// keyword table.
func (c *Categorizer) Categorize(ctx context.Context, text, merchant string) Match {
	merchant = strings.TrimSpace(merchant)
	if merchant != "" && c.memory != nil {
		mapping, err := c.memory.MatchMerchant(ctx, merchant)
		switch {
		case err == nil:
			return Match{Category: mapping.Category, Confidence: MemoryConfidence}
		case !errors.Is(err, api.ErrNotFound):
			c.logger.Warn("merchant memory lookup failed", "merchant", merchant, "error", err)
		}
	}
	return c.keywords.BestMatch(text + " " + merchant)
}
