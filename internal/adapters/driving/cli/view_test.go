package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

func TestResolveAccount(t *testing.T) {
	accounts := newMockAccountService()
	withServices(t, &Services{Accounts: accounts})
	ctx := context.Background()

	id, err := resolveAccount(ctx, []string{"named@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "named@example.com", id)

	_, err = resolveAccount(ctx, nil)
	assert.ErrorContains(t, err, "no linked accounts")

	accounts.accounts = []domain.Account{{UserID: "only@example.com"}}
	id, err = resolveAccount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "only@example.com", id)

	accounts.accounts = append(accounts.accounts, domain.Account{UserID: "other@example.com"})
	_, err = resolveAccount(ctx, nil)
	assert.EqualError(t, err, "2 accounts are linked: name one")
}

func TestView_RequiresService(t *testing.T) {
	withServices(t, nil)

	_, err := runCLI(t, "view")

	assert.EqualError(t, err, "account service not configured")
}
