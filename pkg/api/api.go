// Package api defines the core interfaces and data structures for smsledger.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Direction is whether funds left (debit) or entered (credit) the account.
type Direction string

const (
	DirectionDebit   Direction = "debit"
	DirectionCredit  Direction = "credit"
	DirectionUnknown Direction = "unknown"
)

// Method is the payment rail a message refers to.
type Method string

const (
	MethodUPI        Method = "upi"
	MethodDebitCard  Method = "debit_card"
	MethodCreditCard Method = "credit_card"
	MethodNetbanking Method = "netbanking"
	MethodWallet     Method = "wallet"
	MethodATM        Method = "atm"
	MethodNEFT       Method = "neft"
	MethodRTGS       Method = "rtgs"
	MethodIMPS       Method = "imps"
	MethodUnknown    Method = "unknown"
)

// TransactionType is the ledger side of a transaction.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// TypeFor maps a message direction onto a ledger type. Unknown direction is
// booked as an expense.
func TypeFor(d Direction) TransactionType {
	if d == DirectionCredit {
		return TypeIncome
	}
	return TypeExpense
}

// Source records how a transaction entered the ledger.
type Source string

const (
	SourceSMS     Source = "sms"
	SourceReceipt Source = "receipt"
	SourceManual  Source = "manual"
)

// VerifiedVia records which channel corroborated a transaction. Empty means unverified.
type VerifiedVia string

const (
	VerifiedViaNone   VerifiedVia = ""
	VerifiedViaSMS    VerifiedVia = "sms"
	VerifiedViaManual VerifiedVia = "manual"
)

// RawMessage is a notification as delivered by the device or a mailbox.
type RawMessage struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewRawMessage builds a RawMessage and derives its processed-message ID.
func NewRawMessage(sender, text string, receivedAt time.Time) *RawMessage {
	return &RawMessage{
		ID:         MessageID(sender, receivedAt, text),
		Sender:     sender,
		Text:       text,
		ReceivedAt: receivedAt,
	}
}

// MessageID returns the stable identity of a raw message: sender, receive
// time in epoch milliseconds and the first 50 characters of the body.
func MessageID(sender string, receivedAt time.Time, text string) string {
	head := []rune(text)
	if len(head) > 50 {
		head = head[:50]
	}
	return fmt.Sprintf("%s_%d_%s", sender, receivedAt.UnixMilli(), string(head))
}

// ParsedMessage is the immutable result of parsing one raw message.
type ParsedMessage struct {
	// Amount is nil when no monetary value could be found.
	Amount             *float64  `json:"amount"`
	Direction          Direction `json:"direction"`
	Method             Method    `json:"method"`
	OccurredAt         time.Time `json:"occurred_at"`
	// HasDate is false when OccurredAt was taken from the receive time.
	HasDate            bool      `json:"has_date"`
	Merchant           string    `json:"merchant,omitempty"`
	Last4              string    `json:"last4,omitempty"`
	ReferenceID        string    `json:"reference_id,omitempty"`
	AvailableBalance   *float64  `json:"available_balance,omitempty"`
	Category           string    `json:"category"`
	CategoryConfidence float64   `json:"category_confidence"`
	ParseConfidence    float64   `json:"parse_confidence"`
	NeedsReview        bool      `json:"needs_review"`
	RawText            string    `json:"-"`
}

// CategoryMapping is one learned merchant to category association.
type CategoryMapping struct {
	Merchant   string    `json:"merchant"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	TimesUsed  int       `json:"times_used"`
	LastUsed   time.Time `json:"last_used"`
}

// Transaction is the persisted unit of record.
type Transaction struct {
	ID                 uuid.UUID       `json:"id"`
	Type               TransactionType `json:"type"`
	Amount             float64         `json:"amount"`
	Description        string          `json:"description"`
	Merchant           string          `json:"merchant,omitempty"`
	Category           string          `json:"category"`
	Date               time.Time       `json:"date"`
	Source             Source          `json:"source"`
	IsAutoAdded        bool            `json:"is_auto_added"`
	VerifiedVia        VerifiedVia     `json:"verified_via,omitempty"`
	Verified           bool            `json:"verified"`
	Confidence         float64         `json:"confidence"`
	CategoryConfidence float64         `json:"category_confidence"`
	NeedsReview        bool            `json:"needs_review"`
	PaymentMethod      Method          `json:"payment_method,omitempty"`
	Last4Digits        string          `json:"last4_digits,omitempty"`
	ReferenceID        string          `json:"reference_id,omitempty"`
	// RawData holds the masked message text.
	RawData   string    `json:"raw_data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reader reads raw messages from a source and sends them to the provided channel.
// Implementations close the channel when done.
// The ackChan receives IDs of messages the pipeline has finished with.
type Reader interface {
	Read(ctx context.Context, out chan<- *RawMessage, ackChan <-chan string) error
}

// Writer consumes ledger transactions from a channel and mirrors them to a destination.
type Writer interface {
	Write(ctx context.Context, in <-chan *Transaction) error
}
