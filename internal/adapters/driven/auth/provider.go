// Package auth supplies per-account OAuth token sources backed by the credential store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/mailmirror/internal/connectors/google"
	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.CredentialProvider = (*Provider)(nil)

const saveTimeout = 5 * time.Second

// Provider builds refreshing token sources from stored tokens.
// Refreshed tokens are written back to the store.
type Provider struct {
	store  driven.CredentialStore
	config *oauth2.Config
	logger *zap.Logger
}

// NewProvider creates a provider. config carries the OAuth client used for refresh.
func NewProvider(store driven.CredentialStore, config *oauth2.Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{store: store, config: config, logger: logger.Named("auth")}
}

// CredentialFor returns a token source for the account.
func (p *Provider) CredentialFor(ctx context.Context, accountID string) (oauth2.TokenSource, error) {
	stored, err := p.store.GetToken(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no credential for %s", domain.ErrAuthRequired, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if stored.RefreshToken == "" && stored.IsExpired() {
		return nil, fmt.Errorf("%w: credential for %s expired and cannot be refreshed", domain.ErrAuthRequired, accountID)
	}

	tok := google.ToOAuth2Token(stored)
	// Refreshes outlive the caller's deadline but keep its values (HTTP client).
	base := p.config.TokenSource(context.WithoutCancel(ctx), tok)
	return &persistingSource{
		base:      base,
		last:      tok.AccessToken,
		accountID: accountID,
		store:     p.store,
		logger:    p.logger,
	}, nil
}

// persistingSource saves every new access token it hands out.
type persistingSource struct {
	base      oauth2.TokenSource
	accountID string
	store     driven.CredentialStore
	logger    *zap.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("%w: refresh rejected for %s: %w", domain.ErrAuthInvalid, s.accountID, err)
		}
		return nil, fmt.Errorf("refresh token for %s: %w", s.accountID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.store.SaveToken(ctx, s.accountID, google.ToDomainToken(tok)); err != nil {
		// The token is still usable for this run.
		s.logger.Warn("failed to persist refreshed token",
			zap.String("account", s.accountID), zap.Error(err))
		return tok, nil
	}
	s.last = tok.AccessToken
	s.logger.Debug("persisted refreshed token",
		zap.String("account", s.accountID), zap.Time("expiry", tok.Expiry))
	return tok, nil
}
