package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
)

var _ driven.Notifier = (*LogNotifier)(nil)

// LogNotifier writes new messages to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// NotifyNewMessages logs one line per message.
func (n *LogNotifier) NotifyNewMessages(_ context.Context, accountID string, messages []domain.MessageSummary) error {
	for _, m := range messages {
		n.logger.Info("new message",
			zap.String("account", accountID),
			zap.String("id", m.MessageID),
			zap.String("from", m.Sender),
			zap.String("subject", m.Subject),
			zap.String("date", m.Date))
	}
	return nil
}
