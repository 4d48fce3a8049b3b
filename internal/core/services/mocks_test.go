package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
)

// rawMail builds an RFC 2822 message.
func rawMail(from, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", from, subject, body))
}

func inboxMessage(id string, cursor uint64, subject string, extraLabels ...string) *domain.RawMessage {
	return &domain.RawMessage{
		ID:           id,
		ThreadID:     "t-" + id,
		HistoryID:    domain.CursorFromUint64(cursor),
		InternalDate: 1700000000000,
		Snippet:      "snippet of " + id,
		LabelIDs:     append([]string{domain.LabelInbox, domain.LabelUnread}, extraLabels...),
		Raw:          rawMail("Alice <alice@example.com>", subject, "Body of "+id),
	}
}

// mockRemote is an in-memory remote mailbox.
type mockRemote struct {
	mu sync.Mutex

	messages map[string]*domain.RawMessage
	// listed is returned by ListAllMessageIDs; it may include vanished ids.
	listed  []string
	current domain.Cursor
	// pages are served by ListChanges, keyed by page token.
	pages map[string]*domain.ChangePage

	changesErr error
	fetchErr   map[string]error
	listErr    error
	currentErr error

	changesCalls int
	listCalls    int
	currentCalls int
	fetchCalls   int

	// onList runs inside ListAllMessageIDs, after the listing was taken.
	onList func()
}

func newMockRemote() *mockRemote {
	return &mockRemote{
		messages: make(map[string]*domain.RawMessage),
		pages:    make(map[string]*domain.ChangePage),
		fetchErr: make(map[string]error),
	}
}

func (m *mockRemote) add(msg *domain.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = msg
	m.listed = append(m.listed, msg.ID)
}

func (m *mockRemote) setChanges(cursor uint64, events ...domain.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = map[string]*domain.ChangePage{
		"": {Events: events, Cursor: domain.CursorFromUint64(cursor)},
	}
}

func (m *mockRemote) ListAllMessageIDs(_ context.Context, _ string) ([]string, error) {
	m.mu.Lock()
	m.listCalls++
	if m.listErr != nil {
		m.mu.Unlock()
		return nil, m.listErr
	}
	ids := append([]string(nil), m.listed...)
	hook := m.onList
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return ids, nil
}

func (m *mockRemote) FetchMessage(_ context.Context, _, messageID string) (*domain.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if err := m.fetchErr[messageID]; err != nil {
		// Undecodable payloads still carry the metadata.
		if msg, ok := m.messages[messageID]; ok && errors.Is(err, domain.ErrMalformedMessage) {
			cp := *msg
			cp.Raw = nil
			return &cp, err
		}
		return nil, err
	}
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *mockRemote) ListChanges(_ context.Context, _ string, _ domain.Cursor, pageToken string) (*domain.ChangePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changesCalls++
	if m.changesErr != nil {
		return nil, m.changesErr
	}
	page, ok := m.pages[pageToken]
	if !ok {
		return &domain.ChangePage{}, nil
	}
	return page, nil
}

func (m *mockRemote) CurrentCursor(_ context.Context, _ string) (domain.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentCalls++
	if m.currentErr != nil {
		return "", m.currentErr
	}
	return m.current, nil
}

// memStore implements MirrorStore, AccountStore and CursorStore in memory.
type memStore struct {
	mu        sync.Mutex
	accounts  map[string]*domain.Account
	messages  map[string]map[string]domain.MirroredMessage
	observers []driven.Observer

	applyErr     error
	setCursorErr error
	queryErr     error
	applyCalls   int
	recorded     []*domain.SyncResult
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]*domain.Account),
		messages: make(map[string]map[string]domain.MirroredMessage),
	}
}

func (s *memStore) link(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = &domain.Account{UserID: userID, SyncEnabled: true}
	s.messages[userID] = make(map[string]domain.MirroredMessage)
}

func (s *memStore) ids(accountID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.messages[accountID]))
	for id := range s.messages[accountID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *memStore) message(accountID, id string) (domain.MirroredMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[accountID][id]
	return msg, ok
}

func (s *memStore) cursor(accountID string) domain.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].Cursor
}

func (s *memStore) ApplyBatch(_ context.Context, batch *domain.SyncBatch) (*domain.ApplyResult, error) {
	s.mu.Lock()
	s.applyCalls++
	if s.applyErr != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", domain.ErrStorage, s.applyErr)
	}

	before := s.messages[batch.AccountID]
	after := make(map[string]domain.MirroredMessage, len(before))
	if !batch.ReplaceAll {
		for id, msg := range before {
			after[id] = msg
		}
	}

	res := &domain.ApplyResult{}
	for _, op := range batch.Ops {
		switch op.Kind {
		case domain.OpUpsert:
			if _, existed := before[op.MessageID]; existed {
				res.Updated++
			} else if _, dup := after[op.MessageID]; !dup {
				res.Inserted = append(res.Inserted, op.MessageID)
			}
			after[op.MessageID] = *op.Message
		case domain.OpDelete:
			delete(after, op.MessageID)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			res.Deleted++
		}
	}
	s.messages[batch.AccountID] = after
	observers := append([]driven.Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, obs := range observers {
		obs(batch.AccountID)
	}
	return res, nil
}

func (s *memStore) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	b := domain.NewSyncBatch(accountID)
	b.Delete(messageID)
	_, err := s.ApplyBatch(ctx, b)
	return err
}

func (s *memStore) DeleteAll(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[accountID] = make(map[string]domain.MirroredMessage)
	return nil
}

func (s *memStore) QueryAccounts(_ context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memStore) ListMessages(_ context.Context, accountID string, q domain.MessageQuery) ([]domain.MirroredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MirroredMessage
	for _, msg := range s.messages[accountID] {
		if q.UnreadOnly && msg.IsRead {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MessageID < out[j].MessageID })
	return out, nil
}

func (s *memStore) GetMessage(_ context.Context, accountID, messageID string) (*domain.MirroredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[accountID][messageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &msg, nil
}

func (s *memStore) Subscribe(obs driven.Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
	idx := len(s.observers) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.observers[idx] = func(string) {}
	}
}

func (s *memStore) CreateAccount(_ context.Context, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.UserID]; ok {
		return domain.ErrAccountExists
	}
	s.accounts[account.UserID] = &account
	s.messages[account.UserID] = make(map[string]domain.MirroredMessage)
	return nil
}

func (s *memStore) GetAccount(_ context.Context, userID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) DeleteAccount(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.accounts, userID)
	delete(s.messages, userID)
	return nil
}

func (s *memStore) SetSyncEnabled(_ context.Context, userID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return domain.ErrNotFound
	}
	a.SyncEnabled = enabled
	return nil
}

func (s *memStore) RecordSyncResult(_ context.Context, result *domain.SyncResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, result)
	return nil
}

func (s *memStore) GetCursor(_ context.Context, accountID string) (domain.Cursor, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return "", false, domain.ErrNotFound
	}
	return a.Cursor, !a.Cursor.IsZero(), nil
}

func (s *memStore) SetCursor(ctx context.Context, accountID string, cursor domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.setCursorErr != nil {
		return s.setCursorErr
	}
	a, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Cursor = cursor
	return nil
}

// mockCredentials grants every account unless err is set.
type mockCredentials struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *mockCredentials) CredentialFor(_ context.Context, _ string) (oauth2.TokenSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test"}), nil
}

// mockNotifier records notifications.
type mockNotifier struct {
	mu    sync.Mutex
	err   error
	calls [][]domain.MessageSummary
}

func (m *mockNotifier) NotifyNewMessages(ctx context.Context, _ string, messages []domain.MessageSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.calls = append(m.calls, messages)
	return m.err
}

func (m *mockNotifier) notified() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, call := range m.calls {
		for _, s := range call {
			ids = append(ids, s.MessageID)
		}
	}
	return ids
}

// mockActions records remote user actions.
type mockActions struct {
	err     error
	trashed []string
	removed map[string][]string
}

func (m *mockActions) TrashMessage(_ context.Context, _, messageID string) error {
	if m.err != nil {
		return m.err
	}
	m.trashed = append(m.trashed, messageID)
	return nil
}

func (m *mockActions) RemoveLabel(_ context.Context, _, messageID, label string) error {
	if m.err != nil {
		return m.err
	}
	if m.removed == nil {
		m.removed = make(map[string][]string)
	}
	m.removed[messageID] = append(m.removed[messageID], label)
	return nil
}

// mockTokenStore is an in-memory CredentialStore.
type mockTokenStore struct {
	tokens  map[string]*domain.OAuthToken
	saveErr error
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{tokens: make(map[string]*domain.OAuthToken)}
}

func (m *mockTokenStore) SaveToken(_ context.Context, accountID string, token *domain.OAuthToken) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.tokens[accountID] = token
	return nil
}

func (m *mockTokenStore) GetToken(_ context.Context, accountID string) (*domain.OAuthToken, error) {
	t, ok := m.tokens[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (m *mockTokenStore) DeleteToken(_ context.Context, accountID string) error {
	if _, ok := m.tokens[accountID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tokens, accountID)
	return nil
}
