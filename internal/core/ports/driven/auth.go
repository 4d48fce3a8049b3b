package driven

import (
	"context"

	"golang.org/x/oauth2"
)

// CredentialProvider yields a usable token source per account.
// Implementations return domain.ErrAuthRequired when no credential exists and
// domain.ErrAuthInvalid when the remote system rejected it.
type CredentialProvider interface {
	CredentialFor(ctx context.Context, accountID string) (oauth2.TokenSource, error)
}
