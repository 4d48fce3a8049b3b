package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driven"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driving"
	"github.com/custodia-labs/mailmirror/internal/metrics"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// DefaultSyncConcurrency bounds how many accounts RunAll syncs at once.
const DefaultSyncConcurrency = 4

// SyncDeps are the collaborators of the orchestrator.
type SyncDeps struct {
	Remote      driven.RemoteMailClient
	Mirror      driven.MirrorStore
	Cursors     driven.CursorStore
	Accounts    driven.AccountStore
	Credentials driven.CredentialProvider
	// Notifier may be nil; new messages are then only reported in the result.
	Notifier driven.Notifier
	// Metrics may be nil.
	Metrics metrics.Recorder
}

// SyncOptions tune the orchestrator.
type SyncOptions struct {
	Enabled         bool
	Concurrency     int
	MaxHistoryPages int
	Materializer    MaterializerConfig
}

// SyncOrchestrator drives the per-account sync state machine:
// Idle, ProbingCursor, PartialSync or FullSync, Committing, back to Idle.
// Any step may end in Aborted, leaving the mirror and the cursor untouched.
type SyncOrchestrator struct {
	deps         SyncDeps
	fetcher      *ChangeLogFetcher
	resolver     *DiffResolver
	materializer *MessageMaterializer
	concurrency  int
	enabled      atomic.Bool
	locks        *keyedLock
	logger       *zap.Logger
	now          func() time.Time
}

// NewSyncOrchestrator creates an orchestrator.
func NewSyncOrchestrator(deps SyncDeps, opts SyncOptions, logger *zap.Logger) *SyncOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultSyncConcurrency
	}

	o := &SyncOrchestrator{
		deps:         deps,
		fetcher:      NewChangeLogFetcher(deps.Remote, opts.MaxHistoryPages, logger.Named("changelog")),
		resolver:     NewDiffResolver(opts.Materializer.TrackedLabel),
		materializer: NewMessageMaterializer(deps.Remote, opts.Materializer, logger.Named("materializer")),
		concurrency:  opts.Concurrency,
		locks:        newKeyedLock(),
		logger:       logger,
		now:          time.Now,
	}
	o.enabled.Store(opts.Enabled)
	return o
}

// SetEnabled switches sync on or off for every account.
func (o *SyncOrchestrator) SetEnabled(enabled bool) {
	o.enabled.Store(enabled)
}

// Enabled reports the global sync switch.
func (o *SyncOrchestrator) Enabled() bool {
	return o.enabled.Load()
}

// RunAll syncs every linked account with bounded concurrency.
// Results are returned in account order; one account failing never affects another.
func (o *SyncOrchestrator) RunAll(ctx context.Context) ([]*domain.SyncResult, error) {
	accounts, err := o.deps.Mirror.QueryAccounts(ctx)
	if err != nil {
		o.logger.Error("failed to list accounts", zap.Error(err))
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	results := make([]*domain.SyncResult, len(accounts))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i := range accounts {
		g.Go(func() error {
			results[i] = o.RunForAccount(ctx, accounts[i].UserID)
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// RunForAccount runs one sync. It never returns nil.
func (o *SyncOrchestrator) RunForAccount(ctx context.Context, accountID string) *domain.SyncResult {
	run := &syncRun{
		o: o,
		result: &domain.SyncResult{
			RunID:     uuid.NewString(),
			AccountID: accountID,
			Mode:      domain.SyncModeNone,
			StartedAt: o.now(),
		},
	}
	run.logger = o.logger.With(zap.String("account", accountID), zap.String("run_id", run.result.RunID))
	run.enter(domain.StateIdle)

	if !o.Enabled() {
		run.result.Outcome = domain.OutcomeDisabled
		return run.result
	}

	unlock, ok := o.locks.TryLock(accountID)
	if !ok {
		run.result.Outcome = domain.OutcomeBusy
		run.result.Err = domain.ErrSyncInProgress
		run.logger.Debug("sync already running")
		return run.result
	}
	defer unlock()

	account, err := o.deps.Accounts.GetAccount(ctx, accountID)
	if err != nil {
		run.abort(fmt.Errorf("load account: %w", err))
		return o.finish(ctx, run)
	}
	if !account.SyncEnabled {
		run.result.Outcome = domain.OutcomeDisabled
		return run.result
	}

	run.execute(ctx)
	return o.finish(ctx, run)
}

// finish records the run on the account, updates metrics and logs it.
func (o *SyncOrchestrator) finish(ctx context.Context, run *syncRun) *domain.SyncResult {
	r := run.result
	r.Duration = o.now().Sub(r.StartedAt)
	if r.Outcome == "" {
		r.Outcome = domain.OutcomeSuccess
	}

	// Recording is bookkeeping; it must not turn a committed run into a failure.
	if err := o.deps.Accounts.RecordSyncResult(context.WithoutCancel(ctx), r); err != nil {
		run.logger.Warn("failed to record sync result", zap.Error(err))
	}
	o.deps.Metrics.RecordRun(r)

	fields := []zap.Field{
		zap.String("mode", string(r.Mode)),
		zap.String("outcome", string(r.Outcome)),
		zap.Int("upserted", r.Upserted),
		zap.Int("deleted", r.Deleted),
		zap.Int("new", len(r.NewMessages)),
		zap.Stringer("cursor", r.Cursor),
		zap.Duration("duration", r.Duration),
	}
	switch {
	case r.Err != nil:
		run.logger.Warn("sync aborted", append(fields, zap.Error(r.Err))...)
	default:
		run.logger.Info("sync finished", fields...)
	}
	return r
}

// syncRun carries the state of one RunForAccount call.
type syncRun struct {
	o      *SyncOrchestrator
	result *domain.SyncResult
	logger *zap.Logger
}

func (r *syncRun) enter(s domain.SyncState) {
	r.result.States = append(r.result.States, s)
	if r.logger != nil {
		r.logger.Debug("sync state", zap.String("state", string(s)))
	}
}

func (r *syncRun) abort(err error) {
	r.enter(domain.StateAborted)
	r.result.Err = err
	r.result.Outcome = domain.OutcomeFor(err)
}

func (r *syncRun) execute(ctx context.Context) {
	o := r.o
	accountID := r.result.AccountID

	if _, err := o.deps.Credentials.CredentialFor(ctx, accountID); err != nil {
		r.abort(fmt.Errorf("credential: %w", err))
		return
	}

	r.enter(domain.StateProbingCursor)
	stored, ok, err := o.deps.Cursors.GetCursor(ctx, accountID)
	if err != nil {
		r.abort(fmt.Errorf("load cursor: %w", err))
		return
	}

	var batch *domain.SyncBatch
	if ok && !stored.IsZero() {
		batch, err = r.partial(ctx, stored)
		if errors.Is(err, domain.ErrCursorInvalid) {
			r.logger.Info("cursor rejected, falling back to full sync", zap.Stringer("cursor", stored))
			r.result.FallbackUsed = true
			batch, err = r.full(ctx, stored)
		}
	} else {
		batch, err = r.full(ctx, stored)
	}
	if err != nil {
		r.abort(err)
		return
	}

	r.commit(ctx, batch)
}

// partial builds the batch for the changes since stored.
func (r *syncRun) partial(ctx context.Context, stored domain.Cursor) (*domain.SyncBatch, error) {
	o := r.o
	accountID := r.result.AccountID
	r.enter(domain.StatePartialSync)
	r.result.Mode = domain.SyncModePartial

	log, err := o.fetcher.Fetch(ctx, accountID, stored)
	if err != nil {
		return nil, fmt.Errorf("fetch change log: %w", err)
	}

	diff := o.resolver.Resolve(log.Events)
	mat, err := o.materializer.Materialize(ctx, accountID, diff.Upsert)
	if err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}

	batch := domain.NewSyncBatch(accountID)
	for _, msg := range mat.Messages {
		batch.Upsert(msg)
	}
	for _, id := range diff.Delete {
		batch.Delete(id)
	}
	// Messages that left the tracked set since the last sync.
	for _, id := range mat.Excluded {
		batch.Delete(id)
	}
	batch.Cursor = domain.MaxCursor(stored, log.Cursor)

	r.count(mat)
	return batch, nil
}

// full builds a batch that replaces the account's mirror.
func (r *syncRun) full(ctx context.Context, stored domain.Cursor) (*domain.SyncBatch, error) {
	o := r.o
	accountID := r.result.AccountID
	r.enter(domain.StateFullSync)
	r.result.Mode = domain.SyncModeFull

	// Captured before enumeration so changes made during the listing are
	// replayed by the next partial sync.
	captured, err := o.deps.Remote.CurrentCursor(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("current cursor: %w", err)
	}

	ids, err := o.deps.Remote.ListAllMessageIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	mat, err := o.materializer.Materialize(ctx, accountID, ids)
	if err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}

	batch := domain.NewSyncBatch(accountID)
	batch.ReplaceAll = true
	for _, msg := range mat.Messages {
		batch.Upsert(msg)
	}
	batch.Cursor = domain.MaxCursor(stored, captured)

	r.count(mat)
	return batch, nil
}

func (r *syncRun) count(mat *Materialized) {
	r.result.Skipped = len(mat.NotFound)
	r.result.Excluded = len(mat.Excluded)
	r.result.Malformed = len(mat.Malformed)
}

// commit applies the batch, then advances the cursor.
func (r *syncRun) commit(ctx context.Context, batch *domain.SyncBatch) {
	o := r.o
	accountID := r.result.AccountID

	if err := ctx.Err(); err != nil {
		r.abort(err)
		return
	}
	// Once committing, cancellation no longer splits apply from cursor and notify.
	ctx = context.WithoutCancel(ctx)

	r.enter(domain.StateCommitting)
	applied, err := o.deps.Mirror.ApplyBatch(ctx, batch)
	if err != nil {
		r.abort(fmt.Errorf("apply batch: %w", err))
		return
	}
	if err := o.deps.Cursors.SetCursor(ctx, accountID, batch.Cursor); err != nil {
		// The batch is idempotent; the next run replays it from the old cursor.
		r.abort(fmt.Errorf("save cursor: %w", err))
		return
	}

	r.result.Cursor = batch.Cursor
	r.result.Upserted = len(batch.UpsertIDs())
	r.result.Deleted = applied.Deleted
	r.result.Outcome = domain.OutcomeSuccess

	if r.result.Mode == domain.SyncModePartial {
		r.notify(ctx, batch, applied)
	}
	r.enter(domain.StateIdle)
}

// notify reports newly inserted messages. Failures are only logged.
func (r *syncRun) notify(ctx context.Context, batch *domain.SyncBatch, applied *domain.ApplyResult) {
	for _, id := range applied.Inserted {
		if msg := batch.Message(id); msg != nil {
			r.result.NewMessages = append(r.result.NewMessages, msg.Summary())
		}
	}
	if len(r.result.NewMessages) == 0 || r.o.deps.Notifier == nil {
		return
	}

	if err := r.o.deps.Notifier.NotifyNewMessages(ctx, r.result.AccountID, r.result.NewMessages); err != nil {
		r.logger.Warn("failed to deliver new message notification",
			zap.Int("messages", len(r.result.NewMessages)), zap.Error(err))
	}
}
