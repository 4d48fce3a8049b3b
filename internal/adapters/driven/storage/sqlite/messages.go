package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
)

const messageColumns = `account_id, message_id, thread_id, history_id, internal_date, display_date,
	snippet, subject, sender, body, is_read, labels, malformed`

const upsertMessageSQL = `
	INSERT INTO messages (` + messageColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id, message_id) DO UPDATE SET
		thread_id = excluded.thread_id,
		history_id = excluded.history_id,
		internal_date = excluded.internal_date,
		display_date = excluded.display_date,
		snippet = excluded.snippet,
		subject = excluded.subject,
		sender = excluded.sender,
		body = excluded.body,
		is_read = excluded.is_read,
		labels = excluded.labels,
		malformed = excluded.malformed`

// ApplyBatch applies the batch in one transaction. On error nothing is visible.
// The batch cursor is not stored here; see SetCursor.
func (s *Store) ApplyBatch(ctx context.Context, batch *domain.SyncBatch) (*domain.ApplyResult, error) {
	unlock := s.lockAccount(batch.AccountID)
	defer unlock()

	var res *domain.ApplyResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		res, err = applyBatch(ctx, tx, batch)
		return err
	})
	if err != nil {
		return nil, storageErr("apply batch", err)
	}

	s.logger.Debug("applied batch",
		zap.String("account", batch.AccountID),
		zap.Bool("replace_all", batch.ReplaceAll),
		zap.Int("inserted", len(res.Inserted)),
		zap.Int("updated", res.Updated),
		zap.Int("deleted", res.Deleted))
	s.notify(batch.AccountID)
	return res, nil
}

func applyBatch(ctx context.Context, tx *sql.Tx, batch *domain.SyncBatch) (*domain.ApplyResult, error) {
	before, err := messageIDs(ctx, tx, batch.AccountID)
	if err != nil {
		return nil, err
	}

	if batch.ReplaceAll {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE account_id = ?`, batch.AccountID); err != nil {
			return nil, fmt.Errorf("clear account: %w", err)
		}
	}

	upsert, err := tx.PrepareContext(ctx, upsertMessageSQL)
	if err != nil {
		return nil, err
	}
	defer upsert.Close()

	res := &domain.ApplyResult{}
	present := make(map[string]bool, len(before))
	if !batch.ReplaceAll {
		for id := range before {
			present[id] = true
		}
	}

	for _, op := range batch.Ops {
		switch op.Kind {
		case domain.OpUpsert:
			if op.Message == nil {
				return nil, fmt.Errorf("%w: upsert of %s without message", domain.ErrInvalidInput, op.MessageID)
			}
			if err := execUpsert(ctx, upsert, batch.AccountID, op.Message); err != nil {
				return nil, fmt.Errorf("upsert %s: %w", op.MessageID, err)
			}
			switch {
			case before[op.MessageID]:
				res.Updated++
			case !present[op.MessageID]:
				res.Inserted = append(res.Inserted, op.MessageID)
			}
			present[op.MessageID] = true
		case domain.OpDelete:
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM messages WHERE account_id = ? AND message_id = ?`,
				batch.AccountID, op.MessageID); err != nil {
				return nil, fmt.Errorf("delete %s: %w", op.MessageID, err)
			}
			delete(present, op.MessageID)
		default:
			return nil, fmt.Errorf("%w: unknown op %q", domain.ErrInvalidInput, op.Kind)
		}
	}

	for id := range before {
		if !present[id] {
			res.Deleted++
		}
	}
	return res, nil
}

func messageIDs(ctx context.Context, tx *sql.Tx, accountID string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT message_id FROM messages WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func execUpsert(ctx context.Context, stmt *sql.Stmt, accountID string, m *domain.MirroredMessage) error {
	labels, err := json.Marshal(m.Labels)
	if err != nil {
		return err
	}
	if m.Labels == nil {
		labels = []byte("[]")
	}
	_, err = stmt.ExecContext(ctx,
		accountID, m.MessageID, m.ThreadID, m.HistoryID.String(), m.InternalDate, m.Date,
		m.Snippet, m.Subject, m.Sender, m.Body, boolInt(m.IsRead), string(labels), boolInt(m.Malformed))
	return err
}

// DeleteMessage removes one mirrored message.
func (s *Store) DeleteMessage(ctx context.Context, accountID, messageID string) error {
	b := domain.NewSyncBatch(accountID)
	b.Delete(messageID)
	_, err := s.ApplyBatch(ctx, b)
	return err
}

// DeleteAll removes every mirrored message of the account.
func (s *Store) DeleteAll(ctx context.Context, accountID string) error {
	unlock := s.lockAccount(accountID)
	defer unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE account_id = ?`, accountID); err != nil {
		return storageErr("delete all", err)
	}
	s.notify(accountID)
	return nil
}

// ListMessages returns mirrored messages newest first.
func (s *Store) ListMessages(ctx context.Context, accountID string, q domain.MessageQuery) ([]domain.MirroredMessage, error) {
	var (
		sb   strings.Builder
		args = []any{accountID}
	)
	sb.WriteString(`SELECT ` + messageColumns + ` FROM messages WHERE account_id = ?`)
	if q.UnreadOnly {
		sb.WriteString(` AND is_read = 0`)
	}
	sb.WriteString(` ORDER BY internal_date DESC, message_id`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, storageErr("list messages", err)
	}
	defer rows.Close()

	var out []domain.MirroredMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, storageErr("scan message", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list messages", err)
	}
	return out, nil
}

// GetMessage returns one mirrored message.
func (s *Store) GetMessage(ctx context.Context, accountID, messageID string) (*domain.MirroredMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE account_id = ? AND message_id = ?`,
		accountID, messageID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, messageID)
	}
	if err != nil {
		return nil, storageErr("get message", err)
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*domain.MirroredMessage, error) {
	var (
		m                 domain.MirroredMessage
		historyID, labels string
		isRead, malformed int
	)
	if err := row.Scan(&m.AccountID, &m.MessageID, &m.ThreadID, &historyID, &m.InternalDate, &m.Date,
		&m.Snippet, &m.Subject, &m.Sender, &m.Body, &isRead, &labels, &malformed); err != nil {
		return nil, err
	}
	m.HistoryID = domain.Cursor(historyID)
	m.IsRead = isRead != 0
	m.Malformed = malformed != 0
	if err := json.Unmarshal([]byte(labels), &m.Labels); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	return &m, nil
}
