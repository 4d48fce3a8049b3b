// Package notify delivers new-message summaries produced by partial syncs.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
)

// Ensure NATSNotifier implements the interface.
var _ driven.Notifier = (*NATSNotifier)(nil)

const (
	// StreamName is the JetStream stream holding new-mail events.
	StreamName = "MAILMIRROR"
	// DefaultSubjectPrefix is used when no prefix is configured.
	DefaultSubjectPrefix = "mailmirror"

	eventNewMail = "mail.new"
)

// Publisher is the part of a JetStream context the notifier publishes through.
type Publisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSNotifier publishes one JetStream message per new mail.
type NATSNotifier struct {
	nc      *nats.Conn
	js      Publisher
	streams nats.JetStreamManager
	prefix  string
	logger  *zap.Logger
}

// NewNATSNotifier connects to the NATS server at url.
func NewNATSNotifier(url, prefix string, logger *zap.Logger) (*NATSNotifier, error) {
	nc, err := nats.Connect(url, nats.Name("mailmirror"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	n := newNATSNotifier(js, prefix, logger)
	n.nc = nc
	n.streams = js
	return n, nil
}

func newNATSNotifier(js Publisher, prefix string, logger *zap.Logger) *NATSNotifier {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSNotifier{js: js, prefix: prefix, logger: logger}
}

// EnsureStream creates the MAILMIRROR stream if it does not exist.
func (n *NATSNotifier) EnsureStream(ctx context.Context) error {
	if n.streams == nil {
		return nil
	}

	info, err := n.streams.StreamInfo(StreamName, nats.Context(ctx))
	if err == nil && info != nil {
		return nil
	}

	_, err = n.streams.AddStream(&nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{n.prefix + ".*." + eventNewMail},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		Duplicates: 10 * time.Minute,
		MaxAge:     7 * 24 * time.Hour,
	}, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil
		}
		return fmt.Errorf("failed to create stream: %w", err)
	}

	n.logger.Info("created notification stream", zap.String("stream", StreamName))
	return nil
}

// NotifyNewMessages publishes every summary. Publishing continues past
// failures; all errors are returned joined.
func (n *NATSNotifier) NotifyNewMessages(ctx context.Context, accountID string, messages []domain.MessageSummary) error {
	subject := n.Subject(accountID)

	var errs []error
	for _, m := range messages {
		payload, err := json.Marshal(m)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", m.MessageID, err))
			continue
		}

		msg := nats.NewMsg(subject)
		msg.Data = payload
		msg.Header.Set(nats.MsgIdHdr, MessageKey(accountID, m.MessageID))

		if _, err := n.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish %s: %w", m.MessageID, err))
		}
	}

	n.logger.Debug("published new messages",
		zap.String("account", accountID),
		zap.String("subject", subject),
		zap.Int("count", len(messages)),
		zap.Int("failed", len(errs)))
	return errors.Join(errs...)
}

// Subject returns the subject new mail for the account is published on.
func (n *NATSNotifier) Subject(accountID string) string {
	return n.prefix + "." + subjectToken(accountID) + "." + eventNewMail
}

// Close closes the NATS connection.
func (n *NATSNotifier) Close() {
	if n.nc != nil {
		n.nc.Close()
	}
}

// MessageKey is the deduplication id of a new-mail event.
func MessageKey(accountID, messageID string) string {
	return eventNewMail + "|" + accountID + "|" + messageID
}

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// subjectToken turns an account id into a single subject token.
func subjectToken(accountID string) string {
	return subjectReplacer.Replace(accountID)
}
