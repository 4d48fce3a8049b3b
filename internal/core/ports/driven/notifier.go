package driven

import (
	"context"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// Notifier receives messages that arrived since the last partial sync.
// Delivery is fire-and-forget; errors never fail a sync run.
type Notifier interface {
	NotifyNewMessages(ctx context.Context, accountID string, messages []domain.MessageSummary) error
}
