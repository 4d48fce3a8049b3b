// Package messages defines the tea.Msg types exchanged between views.
package messages

import "github.com/custodia-labs/mailmirror/internal/core/domain"

// ErrorOccurred reports a failure to the active view.
type ErrorOccurred struct {
	Err error
}

// MessagesLoaded carries the mirrored messages of an account.
type MessagesLoaded struct {
	AccountID string
	Messages  []domain.MirroredMessage
	Err       error
}

// MirrorChanged is sent when the mirror of an account was modified.
type MirrorChanged struct {
	AccountID string
}

// Action is a user action on a message.
type Action string

// Actions.
const (
	ActionArchive  Action = "archive"
	ActionTrash    Action = "trash"
	ActionMarkRead Action = "read"
)

// ActionCompleted reports the outcome of a user action.
type ActionCompleted struct {
	Action    Action
	MessageID string
	Err       error
}

// SyncCompleted reports a sync started from the view.
type SyncCompleted struct {
	Result *domain.SyncResult
}
