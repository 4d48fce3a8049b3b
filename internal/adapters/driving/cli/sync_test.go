package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

func TestSync_SingleAccount(t *testing.T) {
	orch := &mockSyncOrchestrator{results: map[string]*domain.SyncResult{
		"me@example.com": {
			AccountID:   "me@example.com",
			Mode:        domain.SyncModePartial,
			Outcome:     domain.OutcomeSuccess,
			Upserted:    3,
			Deleted:     1,
			NewMessages: []domain.MessageSummary{{MessageID: "m1"}},
			Duration:    1500 * time.Millisecond,
		},
	}}
	withServices(t, &Services{Sync: orch})

	out, err := runCLI(t, "sync", "me@example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"me@example.com"}, orch.ran)
	assert.Contains(t, out, "me@example.com  success")
	assert.Contains(t, out, "mode=partial upserted=3 deleted=1")
	assert.Contains(t, out, "new=1")
	assert.Contains(t, out, "took 1.5s")
}

func TestSync_AllAccountsReportsFailures(t *testing.T) {
	orch := &mockSyncOrchestrator{all: []*domain.SyncResult{
		{AccountID: "a@example.com", Mode: domain.SyncModeFull, Outcome: domain.OutcomeSuccess, FallbackUsed: true},
		{AccountID: "b@example.com", Outcome: domain.OutcomeAuthRequired, Err: domain.ErrAuthRequired},
		{AccountID: "c@example.com", Outcome: domain.OutcomeFailed, Err: errors.New("backend unavailable")},
		{AccountID: "d@example.com", Outcome: domain.OutcomeDisabled, Err: domain.ErrSyncDisabled},
	}}
	withServices(t, &Services{Sync: orch})

	out, err := runCLI(t, "sync")

	require.EqualError(t, err, "2 of 4 account(s) failed")
	assert.Equal(t, []string{"*"}, orch.ran)
	assert.Contains(t, out, "mode=full")
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "run 'mailmirror account add' to authorise b@example.com again")
	assert.Contains(t, out, "backend unavailable")
	assert.Contains(t, out, "d@example.com  disabled")
}

func TestSync_AccountListingFails(t *testing.T) {
	withServices(t, &Services{Sync: &mockSyncOrchestrator{allErr: errors.New("list accounts: database is locked")}})

	out, err := runCLI(t, "sync")

	require.EqualError(t, err, "sync: list accounts: database is locked")
	assert.NotContains(t, out, "No linked accounts")
}

func TestSync_NoAccounts(t *testing.T) {
	withServices(t, &Services{Sync: &mockSyncOrchestrator{}})

	out, err := runCLI(t, "sync")

	require.NoError(t, err)
	assert.Contains(t, out, "No linked accounts.")
}

func TestSync_RequiresOrchestrator(t *testing.T) {
	withServices(t, &Services{Accounts: newMockAccountService()})

	_, err := runCLI(t, "sync")

	assert.EqualError(t, err, "sync orchestrator not configured")
}
