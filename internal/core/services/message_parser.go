package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	// Registers decoders for non UTF-8 charsets used in headers and bodies.
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// Placeholder values written for messages whose bytes cannot be parsed.
const (
	MalformedSubject = "(unreadable message)"
	MalformedSender  = "(unknown sender)"
)

// DisplayDateLayout formats the mirrored display timestamp.
const DisplayDateLayout = "1/2/06 3:04 PM"

// maxBodyRead caps how much of a text part is read before truncation.
const maxBodyRead = 256 << 10

// MessageParser turns raw RFC 2822 bytes into mirror rows.
type MessageParser struct {
	location  *time.Location
	bodyLimit int
}

// NewMessageParser creates a parser. A nil location uses time.Local.
func NewMessageParser(location *time.Location, bodyLimit int) *MessageParser {
	if location == nil {
		location = time.Local
	}
	if bodyLimit <= 0 {
		bodyLimit = 1024
	}
	return &MessageParser{location: location, bodyLimit: bodyLimit}
}

// Parse returns the mirror row for raw.
// Returns domain.ErrMalformedMessage when the headers cannot be read.
func (p *MessageParser) Parse(accountID string, raw *domain.RawMessage) (*domain.MirroredMessage, error) {
	msg := p.base(accountID, raw)

	if len(raw.Raw) == 0 {
		return nil, fmt.Errorf("%w: empty message body", domain.ErrMalformedMessage)
	}

	r, err := mail.CreateReader(bytes.NewReader(raw.Raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedMessage, err)
	}
	defer r.Close()

	msg.Subject = subjectOf(r.Header)
	msg.Sender = SenderDisplay(r.Header)
	msg.Body = p.bodyOf(r)
	if msg.Body == "" {
		msg.Body = msg.Snippet
	}
	return msg, nil
}

// Placeholder returns the error-marked row used for unparseable messages.
func (p *MessageParser) Placeholder(accountID string, raw *domain.RawMessage) *domain.MirroredMessage {
	msg := p.base(accountID, raw)
	msg.Subject = MalformedSubject
	msg.Sender = MalformedSender
	msg.Body = msg.Snippet
	msg.Malformed = true
	return msg
}

func (p *MessageParser) base(accountID string, raw *domain.RawMessage) *domain.MirroredMessage {
	return &domain.MirroredMessage{
		AccountID:    accountID,
		MessageID:    raw.ID,
		ThreadID:     raw.ThreadID,
		HistoryID:    raw.HistoryID,
		InternalDate: raw.InternalDate,
		Date:         time.UnixMilli(raw.InternalDate).In(p.location).Format(DisplayDateLayout),
		Snippet:      raw.Snippet,
		IsRead:       !raw.HasLabel(domain.LabelUnread),
		Labels:       append([]string(nil), raw.LabelIDs...),
	}
}

func subjectOf(h mail.Header) string {
	s, err := h.Subject()
	if err != nil {
		return h.Get("Subject")
	}
	return s
}

// SenderDisplay picks the personal name, then the bare address, then the raw header.
func SenderDisplay(h mail.Header) string {
	raw := strings.TrimSpace(h.Get("From"))
	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		if raw == "" {
			return MalformedSender
		}
		return raw
	}
	if name := strings.TrimSpace(addrs[0].Name); name != "" {
		return name
	}
	if addrs[0].Address != "" {
		return addrs[0].Address
	}
	return raw
}

// bodyOf returns the first text/plain part, whitespace collapsed and truncated.
func (p *MessageParser) bodyOf(r *mail.Reader) string {
	for {
		part, err := r.NextPart()
		if errors.Is(err, io.EOF) {
			return ""
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// Broken MIME structure past the headers; the snippet stands in.
			return ""
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		if ct, _, _ := h.ContentType(); ct != "text/plain" {
			continue
		}

		b, err := io.ReadAll(io.LimitReader(part.Body, maxBodyRead))
		if err != nil {
			return ""
		}
		return truncateRunes(strings.Join(strings.Fields(string(b)), " "), p.bodyLimit)
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
