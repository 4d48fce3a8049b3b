package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
)

// MaterializerConfig controls message classification and parsing.
type MaterializerConfig struct {
	TrackedLabel     string
	IncludeSpamTrash bool
	BodyLimit        int
	Location         *time.Location
}

// Materialized is the outcome of materializing a set of ids.
type Materialized struct {
	// Messages ready to upsert, in input order.
	Messages []*domain.MirroredMessage
	// NotFound ids vanished on the remote before they could be fetched.
	NotFound []string
	// Excluded ids must not be mirrored (chat, outside the tracked label).
	Excluded []string
	// Malformed ids were mirrored as placeholder rows.
	Malformed []string
}

// MessageMaterializer fetches, parses and classifies messages.
type MessageMaterializer struct {
	client driven.RemoteMailClient
	parser *MessageParser
	cfg    MaterializerConfig
	logger *zap.Logger
}

// NewMessageMaterializer creates a materializer.
func NewMessageMaterializer(client driven.RemoteMailClient, cfg MaterializerConfig, logger *zap.Logger) *MessageMaterializer {
	if cfg.TrackedLabel == "" {
		cfg.TrackedLabel = domain.LabelInbox
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageMaterializer{
		client: client,
		parser: NewMessageParser(cfg.Location, cfg.BodyLimit),
		cfg:    cfg,
		logger: logger,
	}
}

// Materialize fetches every id. Missing and malformed messages never fail
// the call; any other remote error does.
func (m *MessageMaterializer) Materialize(ctx context.Context, accountID string, ids []string) (*Materialized, error) {
	out := &Materialized{Messages: make([]*domain.MirroredMessage, 0, len(ids))}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := m.client.FetchMessage(ctx, accountID, id)
		var fetchErr error
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrMessageNotFound):
			m.logger.Debug("message vanished before fetch", zap.String("account", accountID), zap.String("message", id))
			out.NotFound = append(out.NotFound, id)
			continue
		case errors.Is(err, domain.ErrMalformedMessage) && raw != nil:
			fetchErr = err
		default:
			return nil, fmt.Errorf("fetch message %s: %w", id, err)
		}

		if reason := m.exclusionReason(raw); reason != "" {
			m.logger.Debug("message excluded", zap.String("account", accountID),
				zap.String("message", id), zap.String("reason", reason))
			out.Excluded = append(out.Excluded, id)
			continue
		}

		msg, err := m.parse(accountID, raw, fetchErr)
		if err != nil {
			m.logger.Warn("mirroring placeholder for unparseable message",
				zap.String("account", accountID), zap.String("message", id), zap.Error(err))
			msg = m.parser.Placeholder(accountID, raw)
			out.Malformed = append(out.Malformed, id)
		}
		out.Messages = append(out.Messages, msg)
	}

	return out, nil
}

func (m *MessageMaterializer) parse(accountID string, raw *domain.RawMessage, fetchErr error) (*domain.MirroredMessage, error) {
	if fetchErr != nil {
		return nil, fetchErr
	}
	return m.parser.Parse(accountID, raw)
}

// exclusionReason returns why a message must not be mirrored, or "".
func (m *MessageMaterializer) exclusionReason(raw *domain.RawMessage) string {
	switch {
	case raw.HasLabel(domain.LabelChat):
		return "chat"
	case !m.cfg.IncludeSpamTrash && (raw.HasLabel(domain.LabelSpam) || raw.HasLabel(domain.LabelTrash)):
		return "spam or trash"
	case !raw.HasLabel(m.cfg.TrackedLabel):
		return "not in " + m.cfg.TrackedLabel
	}
	return ""
}
