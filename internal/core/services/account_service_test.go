package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

func newTestAccountService() (*AccountService, *memStore, *mockTokenStore, *mockActions) {
	store := newMemStore()
	tokens := newMockTokenStore()
	actions := &mockActions{}
	return NewAccountService(store, tokens, store, actions, nil), store, tokens, actions
}

func seedMirror(t *testing.T, store *memStore, ids ...string) {
	t.Helper()
	batch := domain.NewSyncBatch(testAccount)
	for _, id := range ids {
		batch.Upsert(&domain.MirroredMessage{
			AccountID: testAccount,
			MessageID: id,
			Labels:    []string{domain.LabelInbox, domain.LabelUnread},
		})
	}
	_, err := store.ApplyBatch(context.Background(), batch)
	require.NoError(t, err)
}

func TestAccountService_Link(t *testing.T) {
	svc, store, tokens, _ := newTestAccountService()
	token := &domain.OAuthToken{AccessToken: "at", RefreshToken: "rt"}

	require.NoError(t, svc.Link(context.Background(), " me@example.com ", token))

	account, err := store.GetAccount(context.Background(), testAccount)
	require.NoError(t, err)
	assert.True(t, account.SyncEnabled)
	assert.False(t, account.CreatedAt.IsZero())
	assert.Same(t, token, tokens.tokens[testAccount])

	err = svc.Link(context.Background(), testAccount, token)
	assert.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestAccountService_LinkValidation(t *testing.T) {
	svc, _, _, _ := newTestAccountService()

	err := svc.Link(context.Background(), "", &domain.OAuthToken{AccessToken: "at"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = svc.Link(context.Background(), testAccount, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = svc.Link(context.Background(), testAccount, &domain.OAuthToken{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAccountService_LinkRollsBackOnTokenFailure(t *testing.T) {
	svc, store, tokens, _ := newTestAccountService()
	tokens.saveErr = errors.New("locked")

	err := svc.Link(context.Background(), testAccount, &domain.OAuthToken{AccessToken: "at"})
	require.Error(t, err)

	_, err = store.GetAccount(context.Background(), testAccount)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountService_Relink(t *testing.T) {
	svc, _, tokens, _ := newTestAccountService()
	ctx := context.Background()
	fresh := &domain.OAuthToken{AccessToken: "new", RefreshToken: "rt2"}

	err := svc.Relink(ctx, testAccount, fresh)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.Link(ctx, testAccount, &domain.OAuthToken{AccessToken: "old"}))
	require.NoError(t, svc.Relink(ctx, testAccount, fresh))
	assert.Same(t, fresh, tokens.tokens[testAccount])

	assert.ErrorIs(t, svc.Relink(ctx, testAccount, nil), domain.ErrInvalidInput)
}

func TestAccountService_Unlink(t *testing.T) {
	svc, store, tokens, _ := newTestAccountService()
	require.NoError(t, svc.Link(context.Background(), testAccount, &domain.OAuthToken{AccessToken: "at"}))
	seedMirror(t, store, "A")

	require.NoError(t, svc.Unlink(context.Background(), testAccount))

	assert.Empty(t, tokens.tokens)
	assert.Empty(t, store.ids(testAccount))
	assert.ErrorIs(t, svc.Unlink(context.Background(), testAccount), domain.ErrNotFound)
}

func TestAccountService_ListAndToggle(t *testing.T) {
	svc, _, _, _ := newTestAccountService()
	require.NoError(t, svc.Link(context.Background(), testAccount, &domain.OAuthToken{AccessToken: "at"}))

	require.NoError(t, svc.SetSyncEnabled(context.Background(), testAccount, false))

	accounts, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.False(t, accounts[0].SyncEnabled)

	assert.ErrorIs(t, svc.SetSyncEnabled(context.Background(), "x@example.com", true), domain.ErrNotFound)
}

func TestAccountService_Messages(t *testing.T) {
	svc, store, _, _ := newTestAccountService()
	store.link(testAccount)
	seedMirror(t, store, "A", "B")

	msgs, err := svc.Messages(context.Background(), testAccount, domain.MessageQuery{})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = svc.Messages(context.Background(), "x@example.com", domain.MessageQuery{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountService_Archive(t *testing.T) {
	svc, store, _, actions := newTestAccountService()
	store.link(testAccount)
	seedMirror(t, store, "A", "B")

	require.NoError(t, svc.Archive(context.Background(), testAccount, "A"))

	assert.Equal(t, []string{domain.LabelInbox}, actions.removed["A"])
	assert.Equal(t, []string{"B"}, store.ids(testAccount))

	assert.ErrorIs(t, svc.Archive(context.Background(), testAccount, "missing"), domain.ErrNotFound)
}

func TestAccountService_Trash(t *testing.T) {
	svc, store, _, actions := newTestAccountService()
	store.link(testAccount)
	seedMirror(t, store, "A")

	require.NoError(t, svc.Trash(context.Background(), testAccount, "A"))

	assert.Equal(t, []string{"A"}, actions.trashed)
	assert.Empty(t, store.ids(testAccount))
}

func TestAccountService_RemoteFailureKeepsMirror(t *testing.T) {
	svc, store, _, actions := newTestAccountService()
	store.link(testAccount)
	seedMirror(t, store, "A")
	actions.err = domain.ErrAuthInvalid

	err := svc.Trash(context.Background(), testAccount, "A")
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
	assert.Equal(t, []string{"A"}, store.ids(testAccount))
}

func TestAccountService_MarkRead(t *testing.T) {
	svc, store, _, actions := newTestAccountService()
	store.link(testAccount)
	seedMirror(t, store, "A")

	require.NoError(t, svc.MarkRead(context.Background(), testAccount, "A"))

	assert.Equal(t, []string{domain.LabelUnread}, actions.removed["A"])
	msg, ok := store.message(testAccount, "A")
	require.True(t, ok)
	assert.True(t, msg.IsRead)
	assert.Equal(t, []string{domain.LabelInbox}, msg.Labels)

	// Already read: no remote call.
	require.NoError(t, svc.MarkRead(context.Background(), testAccount, "A"))
	assert.Len(t, actions.removed["A"], 1)
}
