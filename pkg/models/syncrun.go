package models

import (
	"time"
)

// SyncRunStatus represents the status of a sync run
type SyncRunStatus string

const (
	SyncRunPending   SyncRunStatus = "pending"   // Run created, not yet started
	SyncRunRunning   SyncRunStatus = "running"   // Reconciliation in progress
	SyncRunCompleted SyncRunStatus = "completed" // Finished successfully
	SyncRunFailed    SyncRunStatus = "failed"    // Finished with an error
	SyncRunCancelled SyncRunStatus = "cancelled" // Cancelled before it started
)

// Sync triggers
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// SyncRun represents one reconciliation pass between the Plex account
// and the local user database.
type SyncRun struct {
	ID              string        `json:"id"`
	SequenceNumber  int           `json:"sequence_number,omitempty"`
	Trigger         string        `json:"trigger"`
	Status          SyncRunStatus `json:"status"`
	Imported        int           `json:"imported"`
	Removed         int           `json:"removed"`
	Matched         int           `json:"matched"`
	Error           string        `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
	DurationSeconds float64       `json:"duration_seconds,omitempty"`
}

// SyncEvent tracks sync run state changes with timestamps
type SyncEvent struct {
	RunID     string        `json:"run_id"`
	From      SyncRunStatus `json:"from"`
	To        SyncRunStatus `json:"to"`
	Note      string        `json:"note,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// SyncRequest represents a request to trigger a sync run
type SyncRequest struct {
	Trigger string `json:"trigger,omitempty"`
}
