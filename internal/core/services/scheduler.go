package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/mailmirror/internal/core/domain"
	"github.com/custodia-labs/mailmirror/internal/core/ports/driving"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduling bounds.
const (
	DefaultSyncInterval = 3 * time.Minute
	MinSyncInterval     = time.Minute
)

// ResultHandler receives every result produced by the scheduler.
type ResultHandler func(*domain.SyncResult)

// Scheduler triggers sync runs periodically and on demand.
type Scheduler struct {
	orchestrator driving.SyncOrchestrator
	onResult     ResultHandler
	logger       *zap.Logger

	mu       sync.Mutex
	interval time.Duration
	reset    chan struct{}
	triggers chan string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler. onResult may be nil.
func NewScheduler(orchestrator driving.SyncOrchestrator, interval time.Duration, onResult ResultHandler, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		orchestrator: orchestrator,
		onResult:     onResult,
		logger:       logger,
		interval:     clampInterval(interval),
		reset:        make(chan struct{}, 1),
		triggers:     make(chan string, 16),
	}
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultSyncInterval
	case d < MinSyncInterval:
		return MinSyncInterval
	}
	return d
}

// Interval returns the current tick interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the tick interval; a running loop picks it up immediately.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = clampInterval(d)
	s.mu.Unlock()

	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// TriggerNow queues an immediate run. An empty accountID runs every account.
// Returns false when the queue is full.
func (s *Scheduler) TriggerNow(accountID string) bool {
	select {
	case s.triggers <- accountID:
		return true
	default:
		return false
	}
}

// Start runs every account once, then on every tick, until Stop or ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop ends the loop and waits for the in-flight run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	s.runAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.reset:
			ticker.Reset(s.Interval())
			s.logger.Info("sync interval changed", zap.Duration("interval", s.Interval()))
		case <-ticker.C:
			s.runAll(ctx)
		case accountID := <-s.triggers:
			if accountID == "" {
				s.runAll(ctx)
				continue
			}
			s.deliver(s.orchestrator.RunForAccount(ctx, accountID))
		}
	}
}

func (s *Scheduler) runAll(ctx context.Context) {
	results, err := s.orchestrator.RunAll(ctx)
	if err != nil {
		s.logger.Error("scheduled sync skipped", zap.Error(err))
		return
	}
	for _, r := range results {
		s.deliver(r)
	}
}

func (s *Scheduler) deliver(r *domain.SyncResult) {
	if r == nil {
		return
	}
	if r.NeedsReauth() {
		s.logger.Warn("account needs to be re-linked", zap.String("account", r.AccountID), zap.Error(r.Err))
	}
	if s.onResult != nil {
		s.onResult(r)
	}
}
