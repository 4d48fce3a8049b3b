package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// mockAccountService implements driving.AccountService for testing.
type mockAccountService struct {
	accounts []domain.Account
	messages []domain.MirroredMessage
	linkErr  error
	err      error

	linked    map[string]*domain.OAuthToken
	relinked  map[string]*domain.OAuthToken
	lastQuery domain.MessageQuery
	calls     []string
}

func newMockAccountService() *mockAccountService {
	return &mockAccountService{
		linked:   make(map[string]*domain.OAuthToken),
		relinked: make(map[string]*domain.OAuthToken),
	}
}

func (m *mockAccountService) record(call string) error {
	m.calls = append(m.calls, call)
	return m.err
}

func (m *mockAccountService) Link(_ context.Context, userID string, token *domain.OAuthToken) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	m.linked[userID] = token
	return nil
}

func (m *mockAccountService) Relink(_ context.Context, userID string, token *domain.OAuthToken) error {
	m.relinked[userID] = token
	return m.err
}

func (m *mockAccountService) Unlink(_ context.Context, userID string) error {
	return m.record("unlink " + userID)
}

func (m *mockAccountService) List(context.Context) ([]domain.Account, error) {
	return m.accounts, m.err
}

func (m *mockAccountService) SetSyncEnabled(_ context.Context, userID string, enabled bool) error {
	if enabled {
		return m.record("enable " + userID)
	}
	return m.record("disable " + userID)
}

func (m *mockAccountService) Messages(_ context.Context, _ string, q domain.MessageQuery) ([]domain.MirroredMessage, error) {
	m.lastQuery = q
	return m.messages, m.err
}

func (m *mockAccountService) Archive(_ context.Context, _, id string) error {
	return m.record("archive " + id)
}

func (m *mockAccountService) Trash(_ context.Context, _, id string) error {
	return m.record("trash " + id)
}

func (m *mockAccountService) MarkRead(_ context.Context, _, id string) error {
	return m.record("read " + id)
}

// mockSyncOrchestrator implements driving.SyncOrchestrator for testing.
type mockSyncOrchestrator struct {
	results map[string]*domain.SyncResult
	all     []*domain.SyncResult
	allErr  error
	ran     []string
}

func (m *mockSyncOrchestrator) RunForAccount(_ context.Context, accountID string) *domain.SyncResult {
	m.ran = append(m.ran, accountID)
	if r, ok := m.results[accountID]; ok {
		return r
	}
	return &domain.SyncResult{AccountID: accountID, Outcome: domain.OutcomeSuccess, Mode: domain.SyncModeNone}
}

func (m *mockSyncOrchestrator) RunAll(context.Context) ([]*domain.SyncResult, error) {
	m.ran = append(m.ran, "*")
	return m.all, m.allErr
}

// mockScheduler implements driving.Scheduler for testing.
type mockScheduler struct {
	mu       sync.Mutex
	started  int
	stopped  int
	interval time.Duration
}

func (m *mockScheduler) Start(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *mockScheduler) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
}

func (m *mockScheduler) TriggerNow(string) bool { return true }

func (m *mockScheduler) SetInterval(d time.Duration) { m.interval = d }

func (m *mockScheduler) Interval() time.Duration { return m.interval }

func (m *mockScheduler) counts() (started, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started, m.stopped
}

// mockOAuthFlow plays the browser: the consent URL immediately hits the
// loopback redirect with code (or errParam).
type mockOAuthFlow struct {
	code       string
	errParam   string
	email      string
	wrongState bool

	exchanged string
}

func (m *mockOAuthFlow) AuthCodeURL(redirectURL, state, _ string) string {
	q := url.Values{}
	q.Set("state", state)
	if m.wrongState {
		q.Set("state", "forged")
	}
	if m.code != "" {
		q.Set("code", m.code)
	}
	if m.errParam != "" {
		q.Set("error", m.errParam)
	}
	target := redirectURL + "?" + q.Encode()
	go func() {
		resp, err := http.Get(target) //nolint:gosec // loopback test server
		if err == nil {
			resp.Body.Close()
		}
	}()
	return "https://accounts.example.com/consent"
}

func (m *mockOAuthFlow) Exchange(_ context.Context, _, code, _ string) (*domain.OAuthToken, error) {
	m.exchanged = code
	return &domain.OAuthToken{AccessToken: "at-" + code, RefreshToken: "rt"}, nil
}

func (m *mockOAuthFlow) AccountEmail(context.Context, *domain.OAuthToken) (string, error) {
	return m.email, nil
}

// withServices installs s for the duration of the test.
func withServices(t *testing.T, s *Services) {
	t.Helper()
	oldBootstrap := bootstrap
	bootstrap = nil
	SetServices(&Services{})
	SetServices(s)
	t.Cleanup(func() {
		SetServices(&Services{})
		bootstrap = oldBootstrap
	})
}

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

func runCLIContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})

	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

// resetFlags restores every flag to its default; cobra keeps values between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
