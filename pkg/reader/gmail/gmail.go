// Package gmail implements a Reader that turns bank alert emails in Gmail into
// raw messages.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ArionMiles/smsledger/pkg/api"
	"github.com/ArionMiles/smsledger/pkg/reader/mailtext"
)

// Defaults for Config.
const (
	DefaultQuery          = "is:unread label:bank-alerts"
	DefaultInterval       = 10 * time.Second
	DefaultRateLimitDelay = 60 * time.Second
)

// Reader reads bank alerts from Gmail messages.
type Reader struct {
	client     *gmail.Service
	query      string
	interval   time.Duration
	retryDelay time.Duration
	logger     *slog.Logger

	mu sync.Mutex
	// pending maps a raw message ID to its Gmail message ID until acknowledged.
	pending map[string]string
	// inFlight holds Gmail IDs that were sent but not yet acknowledged.
	inFlight map[string]bool
}

// Config holds configuration for the Gmail reader.
type Config struct {
	// Query selects alert mail. Defaults to DefaultQuery.
	Query string
	// Interval between polls. Defaults to 10 seconds.
	Interval time.Duration
	// RateLimitDelay is the wait before retrying a rate-limited call.
	RateLimitDelay time.Duration
}

// New creates a new Gmail reader.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Reader, error) {
	client, err := gmail.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return NewWithService(client, cfg, logger), nil
}

// NewWithService creates a Gmail reader on an existing service.
func NewWithService(client *gmail.Service, cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Query == "" {
		cfg.Query = DefaultQuery
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = DefaultRateLimitDelay
	}

	return &Reader{
		client:     client,
		query:      cfg.Query,
		interval:   cfg.Interval,
		retryDelay: cfg.RateLimitDelay,
		logger:     logger,
		pending:    make(map[string]string),
		inFlight:   make(map[string]bool),
	}
}

// Read polls Gmail and sends matching alerts to the output channel until the
// context is canceled. A message is marked read only after its raw message ID
// comes back on ackChan, so unacknowledged mail is picked up again after a
// restart.
func (r *Reader) Read(ctx context.Context, out chan<- *api.RawMessage, ackChan <-chan string) error {
	defer close(out)

	go r.handleAcknowledgments(ctx, ackChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.poll(ctx, out)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("gmail reader stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			r.poll(ctx, out)
		}
	}
}

func (r *Reader) handleAcknowledgments(ctx context.Context, ackChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-ackChan:
			if !ok {
				r.logger.Info("acknowledgment channel closed")
				return
			}
			r.acknowledge(ctx, id)
		}
	}
}

func (r *Reader) acknowledge(ctx context.Context, id string) {
	r.mu.Lock()
	gmailID, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("acknowledgment for unknown message", "message_id", id)
		return
	}

	r.markAsRead(ctx, gmailID)

	r.mu.Lock()
	delete(r.inFlight, gmailID)
	r.mu.Unlock()
}

func (r *Reader) markAsRead(ctx context.Context, gmailID string) {
	err := r.withRetry(ctx, func() error {
		_, err := r.client.Users.Messages.Modify("me", gmailID, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{"UNREAD"},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		r.logger.Warn("failed to mark message as read", "gmail_id", gmailID, "error", err)
	} else {
		r.logger.Debug("marked message as read", "gmail_id", gmailID)
	}
}

func (r *Reader) poll(ctx context.Context, out chan<- *api.RawMessage) {
	var resp *gmail.ListMessagesResponse
	err := r.withRetry(ctx, func() error {
		var err error
		resp, err = r.client.Users.Messages.List("me").Q(r.query).Context(ctx).Do()
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("failed to list messages", "query", r.query, "error", err)
		}
		return
	}

	r.logger.Debug("found messages", "count", len(resp.Messages))

	for _, ref := range resp.Messages {
		r.mu.Lock()
		busy := r.inFlight[ref.Id]
		r.mu.Unlock()
		if busy {
			continue
		}

		if err := r.processMessage(ctx, ref.Id, out); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.logger.Error("failed to process message", "gmail_id", ref.Id, "error", err)
		}
	}
}

func (r *Reader) processMessage(ctx context.Context, gmailID string, out chan<- *api.RawMessage) error {
	var msg *gmail.Message
	err := r.withRetry(ctx, func() error {
		var err error
		msg, err = r.client.Users.Messages.Get("me", gmailID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}

	raw := RawMessage(msg)
	if raw.Text == "" {
		r.logger.Warn("empty message body", "gmail_id", gmailID, "subject", header(msg, "Subject"))
		return nil
	}

	r.mu.Lock()
	r.pending[raw.ID] = gmailID
	r.inFlight[gmailID] = true
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- raw:
	}

	r.logger.Debug("read alert", "gmail_id", gmailID, "message_id", raw.ID)
	return nil
}

func (r *Reader) withRetry(ctx context.Context, fn func() error) error {
	return retry.Do(
		fn,
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				r.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

// RawMessage converts a Gmail message into a raw message. The sender is the
// From address, the receive time is Gmail's internal date and the text is the
// message body with any HTML removed.
func RawMessage(msg *gmail.Message) *api.RawMessage {
	sender := header(msg, "From")
	if addr, err := mail.ParseAddress(sender); err == nil {
		sender = addr.Address
	}
	return api.NewRawMessage(sender, extractBody(msg), time.UnixMilli(msg.InternalDate))
}

func header(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody prefers a text/plain part anywhere in the tree, then text/html,
// then the payload body.
func extractBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	for _, mimeType := range []string{"text/plain", "text/html"} {
		if part := findPart(msg.Payload, mimeType); part != nil {
			if body, ok := decode(part.Body); ok {
				return mailtext.Text(mimeType, body)
			}
		}
	}
	if body, ok := decode(msg.Payload.Body); ok {
		return mailtext.Text(msg.Payload.MimeType, body)
	}
	return ""
}

func findPart(part *gmail.MessagePart, mimeType string) *gmail.MessagePart {
	for _, p := range part.Parts {
		if p.MimeType == mimeType && p.Body != nil && p.Body.Data != "" {
			return p
		}
		if found := findPart(p, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// decode accepts padded and unpadded base64url, as Gmail uses both.
func decode(body *gmail.MessagePartBody) ([]byte, bool) {
	if body == nil || body.Data == "" {
		return nil, false
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(body.Data, "="))
	if err != nil {
		return nil, false
	}
	return data, true
}
