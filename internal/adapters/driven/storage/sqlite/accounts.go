package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

const accountColumns = `user_id, cursor, sync_enabled, created_at, last_synced_at, last_outcome, last_error`

// CreateAccount links a new account.
func (s *Store) CreateAccount(ctx context.Context, account domain.Account) error {
	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, cursor, sync_enabled, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		account.UserID, account.Cursor.String(), boolInt(account.SyncEnabled), toMillis(createdAt))
	if err != nil {
		return storageErr("create account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.UserID)
	}
	return nil
}

// GetAccount returns one account.
func (s *Store) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ?`, userID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, userID)
	}
	if err != nil {
		return nil, storageErr("get account", err)
	}
	return a, nil
}

// QueryAccounts returns all linked accounts ordered by user id.
func (s *Store) QueryAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, storageErr("query accounts", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, storageErr("scan account", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query accounts", err)
	}
	return out, nil
}

// DeleteAccount removes the account; messages and credentials cascade.
func (s *Store) DeleteAccount(ctx context.Context, userID string) error {
	unlock := s.lockAccount(userID)
	defer unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = ?`, userID)
	if err != nil {
		return storageErr("delete account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, userID)
	}
	s.notify(userID)
	return nil
}

// SetSyncEnabled turns sync on or off for the account.
func (s *Store) SetSyncEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.updateAccount(ctx, userID, "set sync enabled",
		`UPDATE accounts SET sync_enabled = ? WHERE user_id = ?`, boolInt(enabled), userID)
}

// RecordSyncResult stores when the last run finished and how.
func (s *Store) RecordSyncResult(ctx context.Context, result *domain.SyncResult) error {
	var lastErr string
	if result.Err != nil {
		lastErr = result.Err.Error()
	}
	finished := result.StartedAt.Add(result.Duration)
	return s.updateAccount(ctx, result.AccountID, "record sync result",
		`UPDATE accounts SET last_synced_at = ?, last_outcome = ?, last_error = ? WHERE user_id = ?`,
		toMillis(finished), string(result.Outcome), lastErr, result.AccountID)
}

// GetCursor returns the committed cursor.
func (s *Store) GetCursor(ctx context.Context, accountID string) (domain.Cursor, bool, error) {
	var cursor string
	err := s.db.QueryRowContext(ctx, `SELECT cursor FROM accounts WHERE user_id = ?`, accountID).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("%w: account %s", domain.ErrNotFound, accountID)
	}
	if err != nil {
		return "", false, storageErr("get cursor", err)
	}
	c := domain.Cursor(cursor)
	return c, !c.IsZero(), nil
}

// SetCursor stores the cursor.
func (s *Store) SetCursor(ctx context.Context, accountID string, cursor domain.Cursor) error {
	if _, err := domain.ParseCursor(cursor.String()); err != nil {
		return err
	}
	return s.updateAccount(ctx, accountID, "set cursor",
		`UPDATE accounts SET cursor = ? WHERE user_id = ?`, cursor.String(), accountID)
}

func (s *Store) updateAccount(ctx context.Context, userID, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return storageErr(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, userID)
	}
	return nil
}

func scanAccount(row scanner) (*domain.Account, error) {
	var (
		a                     domain.Account
		cursor, outcome       string
		enabled               int
		createdAt, lastSynced int64
	)
	if err := row.Scan(&a.UserID, &cursor, &enabled, &createdAt, &lastSynced, &outcome, &a.LastError); err != nil {
		return nil, err
	}
	a.Cursor = domain.Cursor(cursor)
	a.SyncEnabled = enabled != 0
	a.CreatedAt = fromMillis(createdAt)
	a.LastSyncedAt = fromMillis(lastSynced)
	a.LastOutcome = domain.SyncOutcome(outcome)
	return &a, nil
}
