package notify

import (
	"context"
	"errors"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
)

var _ driven.Notifier = (Multi)(nil)

// Multi fans out to every notifier in order.
type Multi []driven.Notifier

// NotifyNewMessages calls every notifier, even after one fails.
func (m Multi) NotifyNewMessages(ctx context.Context, accountID string, messages []domain.MessageSummary) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyNewMessages(ctx, accountID, messages); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
