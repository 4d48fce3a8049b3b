package domain

import "errors"

// Domain errors.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAccountExists indicates an account with the same user identifier is already linked.
	ErrAccountExists = errors.New("account already exists")

	// ErrInvalidInput indicates the input failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCursorInvalid indicates the remote change log can no longer resolve the cursor.
	// A full sync is required when this error occurs.
	ErrCursorInvalid = errors.New("sync cursor invalid or expired, full sync required")

	// ErrMessageNotFound indicates the message no longer exists on the remote mailbox.
	ErrMessageNotFound = errors.New("message not found on remote")

	// ErrAuthRequired indicates the account has no usable credential.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthInvalid indicates the credential was rejected by the remote system.
	ErrAuthInvalid = errors.New("authentication invalid")

	// ErrStorage indicates the mirror store failed to apply a change.
	ErrStorage = errors.New("mirror storage error")

	// ErrSyncInProgress indicates another run for the same account is active.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrSyncDisabled indicates sync is turned off globally or for the account.
	ErrSyncDisabled = errors.New("sync disabled")

	// ErrMalformedMessage indicates the raw message bytes could not be parsed.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrConnectorClosed indicates the remote client was closed.
	ErrConnectorClosed = errors.New("connector closed")
)

// IsAuthError reports whether err requires the credential repair flow.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthRequired) || errors.Is(err, ErrAuthInvalid)
}
