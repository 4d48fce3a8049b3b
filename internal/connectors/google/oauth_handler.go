package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// DefaultScopes lets the mirror read mail and archive, trash or mark it read.
var DefaultScopes = []string{gmail.GmailModifyScope}

// CallbackPath is where the loopback redirect lands.
const CallbackPath = "/callback"

// OAuthHandler runs the Google authorisation code flow with PKCE.
type OAuthHandler struct {
	config *oauth2.Config
	// apiOpts are passed to the Gmail service used for the profile lookup.
	apiOpts []option.ClientOption
}

// NewOAuthHandler creates a handler for the given OAuth client.
func NewOAuthHandler(clientID, clientSecret string, scopes ...string) *OAuthHandler {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &OAuthHandler{config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       scopes,
	}}
}

// Config returns the oauth2 configuration, shared with token refresh.
func (h *OAuthHandler) Config() *oauth2.Config {
	return h.config
}

// AuthCodeURL builds the consent URL.
// access_type=offline and prompt=consent make Google return a refresh token.
func (h *OAuthHandler) AuthCodeURL(redirectURL, state, verifier string) string {
	cfg := *h.config
	cfg.RedirectURL = redirectURL
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange trades an authorisation code for tokens.
func (h *OAuthHandler) Exchange(ctx context.Context, redirectURL, code, verifier string) (*domain.OAuthToken, error) {
	cfg := *h.config
	cfg.RedirectURL = redirectURL
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %w", domain.ErrAuthInvalid, err)
	}
	return ToDomainToken(tok), nil
}

// AccountEmail returns the mailbox address a freshly exchanged token belongs to.
func (h *OAuthHandler) AccountEmail(ctx context.Context, token *domain.OAuthToken) (string, error) {
	ts := h.config.TokenSource(ctx, ToOAuth2Token(token))
	return ProfileEmail(ctx, ts, h.apiOpts...)
}

// AwaitCallback serves the loopback redirect on ln until a code arrives.
func AwaitCallback(ctx context.Context, ln net.Listener, state string) (string, error) {
	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res result
		switch {
		case q.Get("error") != "":
			res.err = fmt.Errorf("%w: consent denied: %s", domain.ErrAuthRequired, q.Get("error"))
		case q.Get("state") != state:
			res.err = fmt.Errorf("%w: state mismatch", domain.ErrAuthInvalid)
		case q.Get("code") == "":
			res.err = fmt.Errorf("%w: missing code", domain.ErrAuthInvalid)
		default:
			res.code = q.Get("code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = w.Write([]byte("mailmirror is linked. You can close this window."))
		}
		select {
		case results <- res:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- result{err: err}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		return res.code, res.err
	}
}

// ProfileEmail returns the mailbox address the token belongs to.
func ProfileEmail(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (string, error) {
	svc, err := NewGmailService(ctx, ts, opts...)
	if err != nil {
		return "", err
	}
	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get profile: %w", WrapError(err))
	}
	return profile.EmailAddress, nil
}

// ToDomainToken converts an oauth2 token.
func ToDomainToken(tok *oauth2.Token) *domain.OAuthToken {
	if tok == nil {
		return nil
	}
	return &domain.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}

// ToOAuth2Token converts a stored token.
func ToOAuth2Token(tok *domain.OAuthToken) *oauth2.Token {
	if tok == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}
