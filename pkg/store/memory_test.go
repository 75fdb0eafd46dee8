package store

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/psantana5/usher/pkg/models"
)

// TestMemoryStoreUsers tests user CRUD and duplicate detection
func TestMemoryStoreUsers(t *testing.T) {
	store := NewMemoryStore()

	user := &models.User{Username: "bob", PlexID: "plex-1"}
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	if err := store.CreateUser(&models.User{Username: "bob2", PlexID: "plex-1"}); err != ErrDuplicatePlexID {
		t.Errorf("Expected ErrDuplicatePlexID, got %v", err)
	}

	// Mutating the returned copy must not affect the stored user
	fetched, err := store.GetUser(user.ID)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	fetched.Username = "mallory"

	again, _ := store.GetUser(user.ID)
	if again.Username != "bob" {
		t.Errorf("Store handed out a shared pointer; got username %s", again.Username)
	}

	for _, name := range []string{"Zoe", "adam"} {
		u := &models.User{Username: name, PlexID: "plex-" + name}
		if err := store.CreateUser(u); err != nil {
			t.Fatalf("Failed to create user %s: %v", name, err)
		}
	}

	users, err := store.ListUsers()
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("Expected 3 users, got %d", len(users))
	}
	if users[0].Username != "adam" || users[2].Username != "Zoe" {
		t.Errorf("Expected case-insensitive username ordering, got %s, %s, %s",
			users[0].Username, users[1].Username, users[2].Username)
	}
}

// TestMemoryStoreSequenceNumbers tests monotonic sequence assignment
func TestMemoryStoreSequenceNumbers(t *testing.T) {
	store := NewMemoryStore()

	for i := 1; i <= 3; i++ {
		run := &models.SyncRun{Trigger: models.TriggerManual, Status: models.SyncRunPending}
		if err := store.CreateSyncRun(run); err != nil {
			t.Fatalf("Failed to create run %d: %v", i, err)
		}
		if run.SequenceNumber != i {
			t.Errorf("Expected sequence %d, got %d", i, run.SequenceNumber)
		}
	}

	runs, err := store.ListSyncRuns(2)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].SequenceNumber != 3 || runs[1].SequenceNumber != 2 {
		t.Errorf("Expected sequences [3 2], got [%d %d]",
			runs[0].SequenceNumber, runs[1].SequenceNumber)
	}
}

// TestMemoryStoreRetention tests that pruning only touches old terminal runs
func TestMemoryStoreRetention(t *testing.T) {
	store := NewMemoryStore()

	mkRun := func(status models.SyncRunStatus, age time.Duration) *models.SyncRun {
		run := &models.SyncRun{
			Trigger:   models.TriggerScheduled,
			Status:    status,
			CreatedAt: time.Now().Add(-age),
		}
		if err := store.CreateSyncRun(run); err != nil {
			t.Fatalf("Failed to create run: %v", err)
		}
		return run
	}

	oldDone := mkRun(models.SyncRunCompleted, 48*time.Hour)
	oldFailed := mkRun(models.SyncRunFailed, 48*time.Hour)
	oldActive := mkRun(models.SyncRunRunning, 48*time.Hour)
	freshDone := mkRun(models.SyncRunCompleted, time.Hour)

	if err := store.AppendSyncEvent(&models.SyncEvent{
		RunID: oldDone.ID, From: models.SyncRunRunning, To: models.SyncRunCompleted,
	}); err != nil {
		t.Fatalf("Failed to append event: %v", err)
	}

	deleted, err := store.DeleteSyncRunsBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 pruned runs, got %d", deleted)
	}

	if _, err := store.GetSyncRun(oldDone.ID); err != ErrSyncRunNotFound {
		t.Errorf("Old completed run should be pruned, got %v", err)
	}
	if _, err := store.GetSyncRun(oldFailed.ID); err != ErrSyncRunNotFound {
		t.Errorf("Old failed run should be pruned, got %v", err)
	}
	if _, err := store.GetSyncRun(oldActive.ID); err != nil {
		t.Errorf("Active run should survive pruning: %v", err)
	}
	if _, err := store.GetSyncRun(freshDone.ID); err != nil {
		t.Errorf("Fresh run should survive pruning: %v", err)
	}
	if _, err := store.ListSyncEvents(oldDone.ID); err != ErrSyncRunNotFound {
		t.Errorf("Events of pruned run should be gone, got %v", err)
	}
}

// TestNewStoreFactory tests backend selection by type string
func TestNewStoreFactory(t *testing.T) {
	store, err := NewStore(Config{Type: "memory"})
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("Expected *MemoryStore, got %T", store)
	}

	tmpDB := fmt.Sprintf("/tmp/usher_test_factory_%d.db", time.Now().UnixNano())
	defer os.Remove(tmpDB)
	defer os.Remove(tmpDB + "-shm")
	defer os.Remove(tmpDB + "-wal")

	store, err = NewStore(Config{Type: "sqlite", Path: tmpDB})
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("Expected *SQLiteStore, got %T", store)
	}
	store.Close()

	if _, err := NewStore(Config{Type: "cassandra"}); err == nil {
		t.Error("Expected error for unsupported store type")
	}
}
