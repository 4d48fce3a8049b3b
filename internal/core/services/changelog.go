package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
)

// DefaultMaxHistoryPages bounds change-log pagination per run.
const DefaultMaxHistoryPages = 1000

// ChangeLog is the accumulated change log of one run.
type ChangeLog struct {
	// Events in the order the remote log returned them.
	Events []domain.ChangeEvent
	// Cursor is the furthest position seen, never before the start cursor.
	Cursor domain.Cursor
	Pages  int
}

// ChangeLogFetcher pages through the remote change log.
type ChangeLogFetcher struct {
	client   driven.RemoteMailClient
	maxPages int
	logger   *zap.Logger
}

// NewChangeLogFetcher creates a fetcher. maxPages <= 0 uses the default.
func NewChangeLogFetcher(client driven.RemoteMailClient, maxPages int, logger *zap.Logger) *ChangeLogFetcher {
	if maxPages <= 0 {
		maxPages = DefaultMaxHistoryPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChangeLogFetcher{client: client, maxPages: maxPages, logger: logger}
}

// Fetch returns every change since start.
// If any page fails with domain.ErrCursorInvalid the whole fetch does.
func (f *ChangeLogFetcher) Fetch(ctx context.Context, accountID string, start domain.Cursor) (*ChangeLog, error) {
	log := &ChangeLog{Cursor: start}
	var pageToken string

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if log.Pages >= f.maxPages {
			return nil, fmt.Errorf("change log exceeded %d pages", f.maxPages)
		}

		page, err := f.client.ListChanges(ctx, accountID, start, pageToken)
		if err != nil {
			return nil, fmt.Errorf("list changes page %d: %w", log.Pages+1, err)
		}
		log.Pages++
		log.Events = append(log.Events, page.Events...)
		log.Cursor = domain.MaxCursor(log.Cursor, page.Cursor)

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	f.logger.Debug("fetched change log",
		zap.String("account", accountID),
		zap.Stringer("from", start),
		zap.Stringer("to", log.Cursor),
		zap.Int("pages", log.Pages),
		zap.Int("events", len(log.Events)))

	return log, nil
}
