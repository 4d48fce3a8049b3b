package driven

import (
	"context"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// CursorStore persists the per-account sync cursor.
type CursorStore interface {
	// GetCursor returns the saved cursor. ok is false when none is stored yet.
	GetCursor(ctx context.Context, accountID string) (cursor domain.Cursor, ok bool, err error)
	// SetCursor saves the cursor. Only called after a batch has been applied.
	SetCursor(ctx context.Context, accountID string, cursor domain.Cursor) error
}

// Observer is called after a successful change to an account's mirror.
type Observer func(accountID string)

// MirrorStore is the local content store holding mirrored messages.
type MirrorStore interface {
	// ApplyBatch applies all operations of the batch as one unit.
	// On error nothing of the batch is visible.
	ApplyBatch(ctx context.Context, batch *domain.SyncBatch) (*domain.ApplyResult, error)
	// DeleteMessage removes one mirrored message. Deleting an absent id is a no-op.
	DeleteMessage(ctx context.Context, accountID, messageID string) error
	// DeleteAll removes every mirrored message of the account.
	DeleteAll(ctx context.Context, accountID string) error
	// QueryAccounts returns all linked accounts.
	QueryAccounts(ctx context.Context) ([]domain.Account, error)
	// ListMessages returns the account's mirrored messages, newest first.
	ListMessages(ctx context.Context, accountID string, q domain.MessageQuery) ([]domain.MirroredMessage, error)
	// GetMessage returns one mirrored message or domain.ErrNotFound.
	GetMessage(ctx context.Context, accountID, messageID string) (*domain.MirroredMessage, error)
	// Subscribe registers an observer. The returned func removes it.
	Subscribe(obs Observer) (unsubscribe func())
}

// AccountStore manages linked accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account domain.Account) error
	GetAccount(ctx context.Context, userID string) (*domain.Account, error)
	// DeleteAccount removes the account and cascades to its mirrored messages.
	DeleteAccount(ctx context.Context, userID string) error
	SetSyncEnabled(ctx context.Context, userID string, enabled bool) error
	// RecordSyncResult stores the outcome of the last run.
	RecordSyncResult(ctx context.Context, result *domain.SyncResult) error
}

// CredentialStore persists OAuth tokens per account.
type CredentialStore interface {
	SaveToken(ctx context.Context, accountID string, token *domain.OAuthToken) error
	GetToken(ctx context.Context, accountID string) (*domain.OAuthToken, error)
	DeleteToken(ctx context.Context, accountID string) error
}
