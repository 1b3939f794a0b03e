// Package extractor pulls transaction fields out of free-form bank and
// payment-provider notification text using ordered regular expressions.
//
// Extraction is a pure function of the input text; it holds no state.
package extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ArionMiles/smsledger/pkg/api"
)

// MinIndicators is the number of financial indicators a message must match
// to be treated as a transaction message.
const MinIndicators = 2

// merchantMaxLen caps a free-text merchant label, in characters.
const merchantMaxLen = 50

// Confidence weights for each extracted field.
const (
	weightAmount    = 0.40
	weightDirection = 0.25
	weightMethod    = 0.15
	weightMerchant  = 0.10
	weightReference = 0.10
)

// ReviewThreshold is the confidence below which a parse or category needs a human.
const ReviewThreshold = 0.5

// Fields holds everything extracted from one message.
type Fields struct {
	Amount           *float64
	Direction        api.Direction
	Method           api.Method
	OccurredAt       time.Time
	HasDate          bool
	Merchant         string
	Last4            string
	ReferenceID      string
	AvailableBalance *float64
}

// Extract runs every field extractor over text. receivedAt is used when the
// text carries no date, and supplies the location for dates that it does carry.
func Extract(text string, receivedAt time.Time) Fields {
	occurredAt, hasDate := DateTime(text, receivedAt)
	return Fields{
		Amount:           Amount(text),
		Direction:        Direction(text),
		Method:           Method(text),
		OccurredAt:       occurredAt,
		HasDate:          hasDate,
		Merchant:         Merchant(text),
		Last4:            submatch(last4Pattern, text),
		ReferenceID:      submatch(refPattern, text),
		AvailableBalance: Balance(text),
	}
}

// Indicators counts how many of the five financial indicators match text.
func Indicators(text string) int {
	n := 0
	for _, p := range financialIndicators {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// IsFinancial reports whether text matches at least MinIndicators indicators.
// Promotional and informational bank messages rarely match more than one.
func IsFinancial(text string) bool {
	return Indicators(text) >= MinIndicators
}

// Amount returns the first currency-prefixed amount, falling back to an
// amount-keyword-prefixed one. Nil when neither is present.
func Amount(text string) *float64 {
	if v := firstNumber(amountPattern, text); v != nil {
		return v
	}
	return firstNumber(amountAltPattern, text)
}

// Balance returns the available balance, if the message states one.
func Balance(text string) *float64 {
	return firstNumber(balancePattern, text)
}

// Direction classifies text as debit, credit or unknown.
func Direction(text string) api.Direction {
	for _, r := range directionRules {
		if r.pattern.MatchString(text) {
			return r.direction
		}
	}
	return api.DirectionUnknown
}

// Method returns the payment rail of text by ordered precedence.
func Method(text string) api.Method {
	for _, r := range methodRules {
		if r.pattern.MatchString(text) {
			return r.method
		}
	}
	return api.MethodUnknown
}

// Merchant prefers a UPI handle, then a prepositional phrase, then a VPA token.
func Merchant(text string) string {
	if m := submatch(upiHandlePattern, text); m != "" {
		return m
	}
	if m := strings.TrimSpace(submatch(merchantPattern, text)); m != "" {
		if r := []rune(m); len(r) > merchantMaxLen {
			m = strings.TrimSpace(string(r[:merchantMaxLen]))
		}
		return m
	}
	return submatch(vpaPattern, text)
}

// ParseConfidence scores how complete an extraction is, in [0, 1].
func ParseConfidence(f Fields) float64 {
	score := 0.0
	if f.Amount != nil {
		score += weightAmount
	}
	if f.Direction != api.DirectionUnknown {
		score += weightDirection
	}
	if f.Method != api.MethodUnknown {
		score += weightMethod
	}
	if f.Merchant != "" {
		score += weightMerchant
	}
	if f.ReferenceID != "" {
		score += weightReference
	}
	return math.Min(1, score)
}

// NeedsReview reports whether a parse should be confirmed by a human.
func NeedsReview(direction api.Direction, parseConfidence, categoryConfidence float64) bool {
	return direction == api.DirectionUnknown ||
		parseConfidence < ReviewThreshold ||
		categoryConfidence < ReviewThreshold
}

func submatch(p *regexp.Regexp, text string) string {
	if m := p.FindStringSubmatch(text); len(m) > 1 {
		return m[1]
	}
	return ""
}

func firstNumber(p *regexp.Regexp, text string) *float64 {
	for _, m := range p.FindAllStringSubmatch(text, -1) {
		if v, ok := parseNumber(m[1]); ok {
			return &v
		}
	}
	return nil
}

// parseNumber strips grouping separators and parses what is left.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
