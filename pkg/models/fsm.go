package models

import (
	"fmt"
	"time"
)

// validTransitions maps from-status to allowed to-statuses
var validTransitions = map[SyncRunStatus]map[SyncRunStatus]bool{
	SyncRunPending: {
		SyncRunRunning:   true, // Pending → Running (engine picks up the run)
		SyncRunCancelled: true, // Pending → Cancelled (user cancels before start)
	},
	SyncRunRunning: {
		SyncRunCompleted: true, // Running → Completed (reconciliation finished)
		SyncRunFailed:    true, // Running → Failed (upstream or store error)
		SyncRunCancelled: true, // Running → Cancelled (shutdown mid-run)
	},
	// Terminal states (no transitions allowed; a retry is a fresh run)
	SyncRunCompleted: {},
	SyncRunFailed:    {},
	SyncRunCancelled: {},
}

// TransitionError reports a rejected status transition.
type TransitionError struct {
	From SyncRunStatus
	To   SyncRunStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// CanTransition checks if a status transition is valid
func CanTransition(from, to SyncRunStatus) bool {
	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}
	return allowed[to]
}

// ValidateTransition checks a transition and returns a typed error when
// the transition is not allowed.
func ValidateTransition(from, to SyncRunStatus) error {
	if _, exists := validTransitions[from]; !exists {
		return fmt.Errorf("unknown source status: %s", from)
	}
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Transition moves a run to the given status, stamping the lifecycle
// timestamps as a side effect.
func Transition(run *SyncRun, to SyncRunStatus) error {
	if err := ValidateTransition(run.Status, to); err != nil {
		return err
	}

	now := time.Now()
	switch to {
	case SyncRunRunning:
		run.StartedAt = &now
	case SyncRunCompleted, SyncRunFailed, SyncRunCancelled:
		run.CompletedAt = &now
		if run.StartedAt != nil {
			run.DurationSeconds = now.Sub(*run.StartedAt).Seconds()
		}
	}
	run.Status = to
	return nil
}

// IsTerminal returns true if the status allows no further transitions
func IsTerminal(status SyncRunStatus) bool {
	return status == SyncRunCompleted || status == SyncRunFailed || status == SyncRunCancelled
}

// IsActive returns true if the run is in progress
func IsActive(status SyncRunStatus) bool {
	return status == SyncRunRunning
}

// ValidStatuses returns every status the FSM knows about
func ValidStatuses() []SyncRunStatus {
	return []SyncRunStatus{
		SyncRunPending,
		SyncRunRunning,
		SyncRunCompleted,
		SyncRunFailed,
		SyncRunCancelled,
	}
}
