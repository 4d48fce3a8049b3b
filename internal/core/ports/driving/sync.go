package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// SyncOrchestrator runs the per-account synchronization state machine.
type SyncOrchestrator interface {
	// RunForAccount runs one sync for the account and reports its result.
	// Errors are carried in the result, never returned across accounts.
	RunForAccount(ctx context.Context, accountID string) *domain.SyncResult
	// RunAll runs every linked account. The error is set only when the
	// accounts could not be listed.
	RunAll(ctx context.Context) ([]*domain.SyncResult, error)
}

// AccountService manages linked accounts and forwards user actions.
type AccountService interface {
	Link(ctx context.Context, userID string, token *domain.OAuthToken) error
	// Relink replaces the credential of an already linked account.
	Relink(ctx context.Context, userID string, token *domain.OAuthToken) error
	Unlink(ctx context.Context, userID string) error
	List(ctx context.Context) ([]domain.Account, error)
	SetSyncEnabled(ctx context.Context, userID string, enabled bool) error
	Messages(ctx context.Context, userID string, q domain.MessageQuery) ([]domain.MirroredMessage, error)
	Archive(ctx context.Context, userID, messageID string) error
	Trash(ctx context.Context, userID, messageID string) error
	MarkRead(ctx context.Context, userID, messageID string) error
}

// Scheduler triggers sync runs periodically and on demand.
type Scheduler interface {
	Start(ctx context.Context)
	Stop()
	// TriggerNow queues a run; an empty account id runs every account.
	TriggerNow(accountID string) bool
	SetInterval(d time.Duration)
	Interval() time.Duration
}
