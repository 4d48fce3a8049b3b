package domain

import "time"

// Account is a linked remote mailbox.
type Account struct {
	// UserID is the stable user identifier (typically the email address).
	UserID string
	// Cursor is the last durably committed change-log position.
	Cursor Cursor
	// SyncEnabled turns scheduled and manual sync on or off for this account.
	SyncEnabled bool
	// CreatedAt is when the account was linked.
	CreatedAt time.Time
	// LastSyncedAt is when the last run finished, successful or not.
	LastSyncedAt time.Time
	// LastOutcome is the outcome of the last run.
	LastOutcome SyncOutcome
	// LastError is the error message of the last failed run.
	LastError string
}

// HasCursor returns true when a previous full sync has seeded the cursor.
func (a *Account) HasCursor() bool {
	return !a.Cursor.IsZero()
}
