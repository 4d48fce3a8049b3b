package driven

import (
	"context"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// RemoteMailClient reads (and, for user actions, modifies) the remote mailbox.
// Every call is scoped to one account; the account id selects the credential.
type RemoteMailClient interface {
	// ListAllMessageIDs returns every message id in the tracked label.
	// Pagination is hidden; each call starts from the first page.
	ListAllMessageIDs(ctx context.Context, accountID string) ([]string, error)

	// FetchMessage returns the full message.
	// Returns domain.ErrMessageNotFound when the message no longer exists.
	FetchMessage(ctx context.Context, accountID, messageID string) (*domain.RawMessage, error)

	// ListChanges returns one page of the change log starting at cursor.
	// Returns domain.ErrCursorInvalid when the cursor can no longer be resolved.
	ListChanges(ctx context.Context, accountID string, cursor domain.Cursor, pageToken string) (*domain.ChangePage, error)

	// CurrentCursor returns the mailbox's current change-log position.
	CurrentCursor(ctx context.Context, accountID string) (domain.Cursor, error)
}

// MailboxActions forwards user actions to the remote mailbox.
type MailboxActions interface {
	// TrashMessage moves a message to the trash.
	TrashMessage(ctx context.Context, accountID, messageID string) error
	// RemoveLabel removes a label from a message (archive removes INBOX).
	RemoveLabel(ctx context.Context, accountID, messageID, label string) error
}
