// Package parser turns a raw notification into a confidence-scored ParsedMessage.
package parser

import (
	"context"
	"log/slog"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/extractor"
	"github.com/ArionMiles/smsledger/pkg/keywords"
)

// Parser composes the field extractor with the parse-time categorizer.
type Parser struct {
	categorizer *keywords.Categorizer
	logger      *slog.Logger
}

// New creates a Parser.
func New(categorizer *keywords.Categorizer, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	if categorizer == nil {
		categorizer = keywords.NewCategorizer(nil, nil, logger)
	}
	return &Parser{categorizer: categorizer, logger: logger}
}

// Parse extracts and categorizes msg. It returns nil without an error when the
// text carries no amount; such messages never become transactions.
func (p *Parser) Parse(ctx context.Context, msg *api.RawMessage) (*api.ParsedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := extractor.Extract(msg.Text, msg.ReceivedAt)
	if f.Amount == nil {
		p.logger.Debug("no amount found", "message_id", msg.ID)
		return nil, nil
	}

	match := p.categorizer.Categorize(ctx, msg.Text, f.Merchant)
	parseConfidence := extractor.ParseConfidence(f)

	return &api.ParsedMessage{
		Amount:             f.Amount,
		Direction:          f.Direction,
		Method:             f.Method,
		OccurredAt:         f.OccurredAt,
		HasDate:            f.HasDate,
		Merchant:           f.Merchant,
		Last4:              f.Last4,
		ReferenceID:        f.ReferenceID,
		AvailableBalance:   f.AvailableBalance,
		Category:           match.Category,
		CategoryConfidence: match.Confidence,
		ParseConfidence:    parseConfidence,
		NeedsReview:        extractor.NeedsReview(f.Direction, parseConfidence, match.Confidence),
		RawText:            msg.Text,
	}, nil
}
