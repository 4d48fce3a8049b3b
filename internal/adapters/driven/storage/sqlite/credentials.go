package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

// SaveToken stores or replaces the account's OAuth token.
func (s *Store) SaveToken(ctx context.Context, accountID string, token *domain.OAuthToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (account_id, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`,
		accountID, token.AccessToken, token.RefreshToken, token.TokenType,
		toMillis(token.Expiry), toMillis(s.now()))
	if err != nil {
		return storageErr("save token", err)
	}
	return nil
}

// GetToken returns the account's OAuth token.
func (s *Store) GetToken(ctx context.Context, accountID string) (*domain.OAuthToken, error) {
	var (
		t      domain.OAuthToken
		expiry int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, token_type, expiry FROM credentials WHERE account_id = ?`,
		accountID).Scan(&t.AccessToken, &t.RefreshToken, &t.TokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no token for %s", domain.ErrNotFound, accountID)
	}
	if err != nil {
		return nil, storageErr("get token", err)
	}
	t.Expiry = fromMillis(expiry)
	return &t, nil
}

// DeleteToken removes the account's OAuth token.
func (s *Store) DeleteToken(ctx context.Context, accountID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE account_id = ?`, accountID)
	if err != nil {
		return storageErr("delete token", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: no token for %s", domain.ErrNotFound, accountID)
	}
	return nil
}
