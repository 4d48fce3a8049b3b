// Package gmail implements the remote mailbox client on the Gmail API.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/custodia-labs/mailmirror/internal/connectors/google"
	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
)

// Ensure Client implements the interfaces.
var (
	_ driven.RemoteMailClient = (*Client)(nil)
	_ driven.MailboxActions   = (*Client)(nil)
)

const me = "me"

// serviceTTL bounds how long an authorised service is reused, so a replaced
// credential is picked up by long-running processes.
const serviceTTL = 5 * time.Minute

// Client talks to Gmail on behalf of linked accounts.
type Client struct {
	config      *Config
	credentials driven.CredentialProvider
	rateLimiter *google.RateLimiter
	opts        []option.ClientOption
	logger      *zap.Logger

	// newService is swapped in tests.
	newService func(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*gmail.Service, error)

	mu       sync.Mutex
	closed   bool
	services map[string]cachedService
	now      func() time.Time
}

type cachedService struct {
	svc     *gmail.Service
	expires time.Time
}

// New creates a Gmail client. opts are passed to every gmail.Service.
func New(cfg *Config, credentials driven.CredentialProvider, logger *zap.Logger, opts ...option.ClientOption) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Client{
		config:      cfg,
		credentials: credentials,
		rateLimiter: google.NewRateLimiter(cfg.RateLimit),
		opts:        opts,
		logger:      logger,
		newService:  google.NewGmailService,
		services:    make(map[string]cachedService),
		now:         time.Now,
	}
}

// Close stops the client; later calls fail with domain.ErrConnectorClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	clear(c.services)
	return nil
}

func (c *Client) checkClosed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectorClosed
	}
	return nil
}

// call runs fn with a rate-limited, time-bounded context and an authorised service.
func (c *Client) call(ctx context.Context, accountID string, fn func(ctx context.Context, svc *gmail.Service) error) error {
	if err := c.checkClosed(); err != nil {
		return err
	}

	svc, err := c.service(ctx, accountID)
	if err != nil {
		return err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	err = fn(callCtx, svc)
	if google.IsUnauthorized(err) || domain.IsAuthError(err) {
		c.forget(accountID)
	}
	if google.IsRateLimited(err) {
		c.logger.Warn("gmail quota exceeded, backing off",
			zap.String("account", accountID), zap.Duration("retry_after", google.RetryAfter(err)))
		c.rateLimiter.Backoff(google.RetryAfter(err))
	}
	return err
}

// service returns the account's authorised service, building it when the
// cached one is missing or stale.
func (c *Client) service(ctx context.Context, accountID string) (*gmail.Service, error) {
	c.mu.Lock()
	cached, ok := c.services[accountID]
	c.mu.Unlock()
	if ok && c.now().Before(cached.expires) {
		return cached.svc, nil
	}

	ts, err := c.credentials.CredentialFor(ctx, accountID)
	if err != nil {
		return nil, err
	}
	// The service outlives this call.
	svc, err := c.newService(context.WithoutCancel(ctx), ts, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthRequired, err)
	}

	c.mu.Lock()
	c.services[accountID] = cachedService{svc: svc, expires: c.now().Add(serviceTTL)}
	c.mu.Unlock()
	return svc, nil
}

func (c *Client) forget(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.services, accountID)
}

// ListAllMessageIDs returns the ids of every message in the tracked label.
func (c *Client) ListAllMessageIDs(ctx context.Context, accountID string) ([]string, error) {
	var (
		ids       []string
		pageToken string
	)
	for {
		var resp *gmail.ListMessagesResponse
		err := c.call(ctx, accountID, func(ctx context.Context, svc *gmail.Service) error {
			req := svc.Users.Messages.List(me).
				LabelIds(c.config.TrackedLabel).
				Q(c.config.Query()).
				IncludeSpamTrash(c.config.IncludeSpamTrash).
				MaxResults(c.config.PageSize)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			var err error
			resp, err = req.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", google.WrapError(err))
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return ids, nil
		}
	}
}

// FetchMessage retrieves a full message in raw RFC 2822 format.
func (c *Client) FetchMessage(ctx context.Context, accountID, messageID string) (*domain.RawMessage, error) {
	var msg *gmail.Message
	err := c.call(ctx, accountID, func(ctx context.Context, svc *gmail.Service) error {
		var err error
		msg, err = svc.Users.Messages.Get(me, messageID).Format("raw").Context(ctx).Do()
		return err
	})
	if err != nil {
		if google.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMessageNotFound, messageID)
		}
		return nil, fmt.Errorf("get message %s: %w", messageID, google.WrapError(err))
	}
	return toRawMessage(msg)
}

// ListChanges returns one page of history since cursor.
func (c *Client) ListChanges(ctx context.Context, accountID string, cursor domain.Cursor, pageToken string) (*domain.ChangePage, error) {
	start, ok := cursor.Uint64()
	if !ok || start == 0 {
		return nil, fmt.Errorf("%w: history id %q out of range", domain.ErrCursorInvalid, cursor)
	}

	var resp *gmail.ListHistoryResponse
	err := c.call(ctx, accountID, func(ctx context.Context, svc *gmail.Service) error {
		req := svc.Users.History.List(me).
			StartHistoryId(start).
			MaxResults(c.config.PageSize)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		var err error
		resp, err = req.Context(ctx).Do()
		return err
	})
	if err != nil {
		if google.IsHistoryIDExpired(err) {
			return nil, fmt.Errorf("%w: %w", domain.ErrCursorInvalid, err)
		}
		return nil, fmt.Errorf("list history: %w", google.WrapError(err))
	}

	return &domain.ChangePage{
		Events:        toChangeEvents(resp.History),
		Cursor:        domain.CursorFromUint64(resp.HistoryId),
		NextPageToken: resp.NextPageToken,
	}, nil
}

// CurrentCursor returns the mailbox's latest history id.
func (c *Client) CurrentCursor(ctx context.Context, accountID string) (domain.Cursor, error) {
	var profile *gmail.Profile
	err := c.call(ctx, accountID, func(ctx context.Context, svc *gmail.Service) error {
		var err error
		profile, err = svc.Users.GetProfile(me).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("get profile: %w", google.WrapError(err))
	}
	return domain.CursorFromUint64(profile.HistoryId), nil
}

// TrashMessage moves a message to the trash.
func (c *Client) TrashMessage(ctx context.Context, accountID, messageID string) error {
	err := c.call(ctx, accountID, func(ctx context.Context, svc *gmail.Service) error {
		_, err := svc.Users.Messages.Trash(me, messageID).Context(ctx).Do()
		return err
	})
	return c.actionError("trash", messageID, err)
}

// RemoveLabel removes one label from a message.
func (c *Client) RemoveLabel(ctx context.Context, accountID, messageID, label string) error {
	err := c.call(ctx, accountID, func(ctx context.Context, svc *gmail.Service) error {
		_, err := svc.Users.Messages.Modify(me, messageID, &gmail.ModifyMessageRequest{
			RemoveLabelIds: []string{label},
		}).Context(ctx).Do()
		return err
	})
	return c.actionError("modify", messageID, err)
}

func (c *Client) actionError(op, messageID string, err error) error {
	switch {
	case err == nil:
		return nil
	case google.IsNotFound(err):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, messageID)
	case errors.Is(err, domain.ErrConnectorClosed):
		return err
	}
	return fmt.Errorf("%s message %s: %w", op, messageID, google.WrapError(err))
}
