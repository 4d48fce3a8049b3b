package domain

import (
	"errors"
	"time"
)

// SyncMode is the strategy a run used.
type SyncMode string

const (
	SyncModeNone    SyncMode = "none"
	SyncModeFull    SyncMode = "full"
	SyncModePartial SyncMode = "partial"
)

// SyncState is a step of the per-account state machine.
type SyncState string

const (
	StateIdle          SyncState = "idle"
	StateProbingCursor SyncState = "probing_cursor"
	StatePartialSync   SyncState = "partial_sync"
	StateFullSync      SyncState = "full_sync"
	StateCommitting    SyncState = "committing"
	StateAborted       SyncState = "aborted"
)

// SyncOutcome is the user-visible result of a run.
type SyncOutcome string

const (
	OutcomeSuccess      SyncOutcome = "success"
	OutcomeFailed       SyncOutcome = "failed"
	OutcomeAuthRequired SyncOutcome = "auth_required"
	OutcomeDisabled     SyncOutcome = "disabled"
	OutcomeBusy         SyncOutcome = "busy"
)

// SyncResult is returned for every per-account run.
type SyncResult struct {
	RunID     string
	AccountID string
	Mode      SyncMode
	Outcome   SyncOutcome
	// FallbackUsed is true when a rejected cursor forced a full sync.
	FallbackUsed bool
	// States is the path taken through the state machine.
	States []SyncState

	Upserted int
	Deleted  int
	// Skipped counts messages that vanished before they could be fetched.
	Skipped int
	// Excluded counts messages filtered out (chat, not in the tracked label).
	Excluded int
	// Malformed counts placeholder rows written for unparseable messages.
	Malformed int

	NewMessages []MessageSummary
	Cursor      Cursor
	Err         error

	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded returns true when the run committed (or had nothing to do).
func (r *SyncResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// NeedsReauth returns true when the credential repair flow should run.
func (r *SyncResult) NeedsReauth() bool {
	return r.Outcome == OutcomeAuthRequired
}

// Retryable returns true when the next trigger should simply try again.
func (r *SyncResult) Retryable() bool {
	return r.Outcome == OutcomeFailed || r.Outcome == OutcomeBusy
}

// Visited reports whether the run passed through state s.
func (r *SyncResult) Visited(s SyncState) bool {
	for _, st := range r.States {
		if st == s {
			return true
		}
	}
	return false
}

// Count returns how many times the run entered state s.
func (r *SyncResult) Count(s SyncState) int {
	n := 0
	for _, st := range r.States {
		if st == s {
			n++
		}
	}
	return n
}

// OutcomeFor classifies a run error.
func OutcomeFor(err error) SyncOutcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsAuthError(err):
		return OutcomeAuthRequired
	case errors.Is(err, ErrSyncDisabled):
		return OutcomeDisabled
	case errors.Is(err, ErrSyncInProgress):
		return OutcomeBusy
	default:
		return OutcomeFailed
	}
}
