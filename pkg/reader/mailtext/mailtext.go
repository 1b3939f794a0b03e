// Package mailtext turns bank alert emails into the plain notification text
// the parser expects.
package mailtext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
)

// Message is the part of an email the ledger cares about.
type Message struct {
	From    string
	Subject string
	Date    time.Time
	Text    string
}

// Parse reads an RFC 5322 message. The text/plain body is preferred; an HTML
// body is reduced to its visible text. Attachments are ignored.
func Parse(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("reading message header: %w", err)
	}
	defer mr.Close()

	msg := &Message{}
	if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.From = addrs[0].Address
	} else {
		msg.From = strings.TrimSpace(mr.Header.Get("From"))
	}
	msg.Subject, _ = mr.Header.Subject()
	msg.Date, _ = mr.Header.Date()

	var plain, htmlText string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("reading message part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("reading message body: %w", err)
		}

		switch {
		case contentType == "text/plain" && plain == "":
			plain = Text(contentType, body)
		case contentType == "text/html" && htmlText == "":
			htmlText = Text(contentType, body)
		}
	}

	msg.Text = plain
	if msg.Text == "" {
		msg.Text = htmlText
	}
	return msg, nil
}

// Text renders a decoded body as single-spaced text. HTML has its markup,
// scripts and styles removed.
func Text(contentType string, body []byte) string {
	if strings.HasPrefix(contentType, "text/html") {
		return collapse(StripHTML(body))
	}
	return collapse(string(body))
}

// StripHTML returns the visible text of an HTML document. Block-level
// boundaries become spaces so adjacent cells do not run together.
func StripHTML(body []byte) string {
	var sb strings.Builder
	z := html.NewTokenizer(bytes.NewReader(body))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			case "br", "p", "div", "td", "tr", "li", "table":
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			case "p", "div", "td", "tr", "li", "table":
				sb.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			sb.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
