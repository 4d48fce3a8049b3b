package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driving"
)

// Ensure AccountService implements the interface.
var _ driving.AccountService = (*AccountService)(nil)

// AccountService manages linked accounts and forwards user actions to the
// remote mailbox before mirroring them locally.
type AccountService struct {
	accounts    driven.AccountStore
	credentials driven.CredentialStore
	mirror      driven.MirrorStore
	actions     driven.MailboxActions
	logger      *zap.Logger
	now         func() time.Time
}

// NewAccountService creates an account service.
func NewAccountService(
	accounts driven.AccountStore,
	credentials driven.CredentialStore,
	mirror driven.MirrorStore,
	actions driven.MailboxActions,
	logger *zap.Logger,
) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accounts:    accounts,
		credentials: credentials,
		mirror:      mirror,
		actions:     actions,
		logger:      logger,
		now:         time.Now,
	}
}

// Link stores a new account and its credential. Sync starts enabled.
func (s *AccountService) Link(ctx context.Context, userID string, token *domain.OAuthToken) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}

	account := domain.Account{
		UserID:      userID,
		SyncEnabled: true,
		CreatedAt:   s.now(),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return err
	}

	if err := s.credentials.SaveToken(ctx, userID, token); err != nil {
		if delErr := s.accounts.DeleteAccount(ctx, userID); delErr != nil {
			s.logger.Warn("failed to roll back account", zap.String("account", userID), zap.Error(delErr))
		}
		return fmt.Errorf("save token: %w", err)
	}

	s.logger.Info("account linked", zap.String("account", userID))
	return nil
}

// Relink replaces the credential of a linked account, repairing a run that
// ended in auth_required.
func (s *AccountService) Relink(ctx context.Context, userID string, token *domain.OAuthToken) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	if _, err := s.accounts.GetAccount(ctx, userID); err != nil {
		return err
	}
	if err := s.credentials.SaveToken(ctx, userID, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	s.logger.Info("credential replaced", zap.String("account", userID))
	return nil
}

// Unlink removes the account, its credential and its mirrored messages.
func (s *AccountService) Unlink(ctx context.Context, userID string) error {
	if _, err := s.accounts.GetAccount(ctx, userID); err != nil {
		return err
	}
	if err := s.credentials.DeleteToken(ctx, userID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete token: %w", err)
	}
	if err := s.accounts.DeleteAccount(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("account unlinked", zap.String("account", userID))
	return nil
}

// List returns all linked accounts.
func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	return s.mirror.QueryAccounts(ctx)
}

// SetSyncEnabled turns sync on or off for one account.
func (s *AccountService) SetSyncEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.accounts.SetSyncEnabled(ctx, userID, enabled)
}

// Messages returns the account's mirrored messages.
func (s *AccountService) Messages(ctx context.Context, userID string, q domain.MessageQuery) ([]domain.MirroredMessage, error) {
	if _, err := s.accounts.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	return s.mirror.ListMessages(ctx, userID, q)
}

// Archive removes the message from the inbox and from the mirror.
func (s *AccountService) Archive(ctx context.Context, userID, messageID string) error {
	if _, err := s.mirror.GetMessage(ctx, userID, messageID); err != nil {
		return err
	}
	if err := s.actions.RemoveLabel(ctx, userID, messageID, domain.LabelInbox); err != nil {
		return fmt.Errorf("archive on remote: %w", err)
	}
	return s.dropLocal(ctx, userID, messageID)
}

// Trash moves the message to the trash and drops it from the mirror.
func (s *AccountService) Trash(ctx context.Context, userID, messageID string) error {
	if _, err := s.mirror.GetMessage(ctx, userID, messageID); err != nil {
		return err
	}
	if err := s.actions.TrashMessage(ctx, userID, messageID); err != nil {
		return fmt.Errorf("trash on remote: %w", err)
	}
	return s.dropLocal(ctx, userID, messageID)
}

// MarkRead clears the unread flag remotely and in the mirror.
func (s *AccountService) MarkRead(ctx context.Context, userID, messageID string) error {
	msg, err := s.mirror.GetMessage(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if msg.IsRead {
		return nil
	}
	if err := s.actions.RemoveLabel(ctx, userID, messageID, domain.LabelUnread); err != nil {
		return fmt.Errorf("mark read on remote: %w", err)
	}

	msg.IsRead = true
	labels := msg.Labels[:0:0]
	for _, l := range msg.Labels {
		if l != domain.LabelUnread {
			labels = append(labels, l)
		}
	}
	msg.Labels = labels

	batch := domain.NewSyncBatch(userID)
	batch.Upsert(msg)
	if _, err := s.mirror.ApplyBatch(ctx, batch); err != nil {
		return fmt.Errorf("update mirror: %w", err)
	}
	return nil
}

func (s *AccountService) dropLocal(ctx context.Context, userID, messageID string) error {
	if err := s.mirror.DeleteMessage(ctx, userID, messageID); err != nil {
		return fmt.Errorf("update mirror: %w", err)
	}
	return nil
}
