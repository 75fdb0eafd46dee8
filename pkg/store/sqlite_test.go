package store

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/usher/pkg/models"
)

// TestSQLiteConcurrentAccess tests that concurrent database access doesn't cause locks
func TestSQLiteConcurrentAccess(t *testing.T) {
	tmpDB := "/tmp/usher_test_concurrent.db"
	defer os.Remove(tmpDB)
	defer os.Remove(tmpDB + "-shm")
	defer os.Remove(tmpDB + "-wal")

	store, err := NewSQLiteStore(tmpDB)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	// Create multiple users concurrently
	numUsers := 20
	var wg sync.WaitGroup
	errors := make(chan error, numUsers)

	for i := 0; i < numUsers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			user := &models.User{
				Username: fmt.Sprintf("user-%d", idx),
				Email:    fmt.Sprintf("user-%d@example.com", idx),
				PlexID:   fmt.Sprintf("plex-%d", idx),
			}
			if err := store.CreateUser(user); err != nil {
				errors <- fmt.Errorf("user %d creation failed: %w", idx, err)
			}
		}(i)
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Errorf("Concurrent user creation error: %v", err)
	}

	users, err := store.ListUsers()
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(users) != numUsers {
		t.Errorf("Expected %d users, got %d", numUsers, len(users))
	}

	// Create sync runs concurrently and verify sequence numbers stay unique
	numRuns := 10
	wg2 := sync.WaitGroup{}
	seqs := make(chan int, numRuns)
	errors2 := make(chan error, numRuns)

	for i := 0; i < numRuns; i++ {
		wg2.Add(1)
		go func() {
			defer wg2.Done()
			run := &models.SyncRun{
				Trigger: models.TriggerManual,
				Status:  models.SyncRunPending,
			}
			if err := store.CreateSyncRun(run); err != nil {
				errors2 <- err
				return
			}
			seqs <- run.SequenceNumber
		}()
	}

	wg2.Wait()
	close(errors2)
	close(seqs)

	for err := range errors2 {
		t.Errorf("Concurrent sync run creation error: %v", err)
	}

	seen := make(map[int]bool)
	for seq := range seqs {
		if seen[seq] {
			t.Errorf("Sequence number %d was assigned twice", seq)
		}
		seen[seq] = true
	}
	if len(seen) != numRuns {
		t.Errorf("Expected %d unique sequence numbers, got %d", numRuns, len(seen))
	}
}

// TestSQLiteBasicOperations tests basic CRUD operations
func TestSQLiteBasicOperations(t *testing.T) {
	tmpDB := "/tmp/usher_test_basic.db"
	defer os.Remove(tmpDB)
	defer os.Remove(tmpDB + "-shm")
	defer os.Remove(tmpDB + "-wal")

	store, err := NewSQLiteStore(tmpDB)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	// Users
	user := &models.User{
		Username: "alice",
		Email:    "alice@example.com",
		PlexID:   "plex-42",
		Home:     true,
	}
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if user.ID == "" {
		t.Error("Expected user ID to be assigned")
	}

	dup := &models.User{Username: "alice2", PlexID: "plex-42"}
	if err := store.CreateUser(dup); err != ErrDuplicatePlexID {
		t.Errorf("Expected ErrDuplicatePlexID, got %v", err)
	}

	fetched, err := store.GetUserByPlexID("plex-42")
	if err != nil {
		t.Fatalf("Failed to get user by plex id: %v", err)
	}
	if fetched.Username != "alice" || !fetched.Home {
		t.Errorf("Unexpected user: %+v", fetched)
	}

	if _, err := store.GetUser("missing"); err != ErrUserNotFound {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}

	count, err := store.CountUsers()
	if err != nil {
		t.Fatalf("Failed to count users: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 user, got %d", count)
	}

	if err := store.DeleteUser(user.ID); err != nil {
		t.Errorf("Failed to delete user: %v", err)
	}
	if err := store.DeleteUser(user.ID); err != ErrUserNotFound {
		t.Errorf("Expected ErrUserNotFound on second delete, got %v", err)
	}

	// Libraries
	libs := []models.Library{
		{Key: "1", Title: "Movies", Type: "movie", Agent: "tv.plex.agents.movie", ScannedAt: time.Now()},
		{Key: "2", Title: "Shows", Type: "show", ScannedAt: time.Now()},
	}
	if err := store.ReplaceLibraries(libs); err != nil {
		t.Fatalf("Failed to replace libraries: %v", err)
	}
	listed, err := store.ListLibraries()
	if err != nil {
		t.Fatalf("Failed to list libraries: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("Expected 2 libraries, got %d", len(listed))
	}

	if err := store.ReplaceLibraries([]models.Library{libs[0]}); err != nil {
		t.Fatalf("Failed to replace libraries again: %v", err)
	}
	listed, _ = store.ListLibraries()
	if len(listed) != 1 {
		t.Errorf("Expected replace to drop stale entries, got %d libraries", len(listed))
	}

	// Settings
	if err := store.SetSetting(models.SettingServerURL, "http://plex.local:32400/"); err != nil {
		t.Fatalf("Failed to set setting: %v", err)
	}
	if err := store.SetSetting(models.SettingServerURL, "not-a-url"); err == nil {
		t.Error("Expected validation error for malformed server URL")
	}
	setting, err := store.GetSetting(models.SettingServerURL)
	if err != nil {
		t.Fatalf("Failed to get setting: %v", err)
	}
	if setting.Value != "http://plex.local:32400/" {
		t.Errorf("Unexpected setting value: %s", setting.Value)
	}
	if _, err := store.GetSetting("nope"); err != ErrSettingNotFound {
		t.Errorf("Expected ErrSettingNotFound, got %v", err)
	}

	values, err := store.GetSettings(models.SettingServerURL, models.SettingServerAPIKey)
	if err != nil {
		t.Fatalf("Failed to get settings: %v", err)
	}
	if len(values) != 1 {
		t.Errorf("Expected 1 present setting, got %d", len(values))
	}
}

// TestSQLiteSyncRunLifecycle tests run persistence, events, and retention
func TestSQLiteSyncRunLifecycle(t *testing.T) {
	tmpDB := "/tmp/usher_test_runs.db"
	defer os.Remove(tmpDB)
	defer os.Remove(tmpDB + "-shm")
	defer os.Remove(tmpDB + "-wal")

	store, err := NewSQLiteStore(tmpDB)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	run := &models.SyncRun{Trigger: models.TriggerScheduled, Status: models.SyncRunPending}
	if err := store.CreateSyncRun(run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if run.SequenceNumber != 1 {
		t.Errorf("Expected sequence 1, got %d", run.SequenceNumber)
	}

	if err := models.Transition(run, models.SyncRunRunning); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	run.Imported = 3
	run.Matched = 7
	if err := store.UpdateSyncRun(run); err != nil {
		t.Fatalf("Failed to update run: %v", err)
	}

	event := &models.SyncEvent{
		RunID: run.ID,
		From:  models.SyncRunPending,
		To:    models.SyncRunRunning,
		Note:  "picked up by worker",
	}
	if err := store.AppendSyncEvent(event); err != nil {
		t.Fatalf("Failed to append event: %v", err)
	}
	if err := store.AppendSyncEvent(&models.SyncEvent{RunID: "missing", From: models.SyncRunPending, To: models.SyncRunRunning}); err != ErrSyncRunNotFound {
		t.Errorf("Expected ErrSyncRunNotFound for event on missing run, got %v", err)
	}

	events, err := store.ListSyncEvents(run.ID)
	if err != nil {
		t.Fatalf("Failed to list events: %v", err)
	}
	if len(events) != 1 || events[0].To != models.SyncRunRunning {
		t.Errorf("Unexpected events: %+v", events)
	}

	fetched, err := store.GetSyncRun(run.ID)
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	if fetched.Status != models.SyncRunRunning || fetched.Imported != 3 {
		t.Errorf("Unexpected run: %+v", fetched)
	}
	if fetched.StartedAt == nil {
		t.Error("Expected StartedAt to survive the round trip")
	}

	bySeq, err := store.GetSyncRunBySequence(1)
	if err != nil {
		t.Fatalf("Failed to get run by sequence: %v", err)
	}
	if bySeq.ID != run.ID {
		t.Errorf("Expected run %s, got %s", run.ID, bySeq.ID)
	}

	// An old completed run plus the active one; only the old one is pruned
	old := &models.SyncRun{
		Trigger:   models.TriggerManual,
		Status:    models.SyncRunCompleted,
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	if err := store.CreateSyncRun(old); err != nil {
		t.Fatalf("Failed to create old run: %v", err)
	}

	runs, err := store.ListSyncRuns(0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].SequenceNumber != 2 {
		t.Errorf("Expected newest-first ordering, got sequence %d first", runs[0].SequenceNumber)
	}

	limited, err := store.ListSyncRuns(1)
	if err != nil {
		t.Fatalf("Failed to list runs with limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 run with limit, got %d", len(limited))
	}

	deleted, err := store.DeleteSyncRunsBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to prune runs: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 pruned run, got %d", deleted)
	}
	if _, err := store.GetSyncRun(run.ID); err != nil {
		t.Errorf("Active run should survive pruning: %v", err)
	}

	counts, err := store.CountSyncRunsByStatus()
	if err != nil {
		t.Fatalf("Failed to count runs: %v", err)
	}
	if counts[models.SyncRunRunning] != 1 {
		t.Errorf("Expected 1 running run, got %d", counts[models.SyncRunRunning])
	}
}

// TestSQLiteAPIKeysAndAccounts tests key lookup and account storage
func TestSQLiteAPIKeysAndAccounts(t *testing.T) {
	tmpDB := "/tmp/usher_test_keys.db"
	defer os.Remove(tmpDB)
	defer os.Remove(tmpDB + "-shm")
	defer os.Remove(tmpDB + "-wal")

	store, err := NewSQLiteStore(tmpDB)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	key := &models.APIKey{Name: "ci", Key: "raw-secret-value", Role: models.RoleOperator}
	if err := store.CreateAPIKey(key); err != nil {
		t.Fatalf("Failed to create API key: %v", err)
	}

	found, err := store.FindAPIKey("raw-secret-value")
	if err != nil {
		t.Fatalf("Failed to find API key: %v", err)
	}
	if found.Name != "ci" || found.Role != models.RoleOperator {
		t.Errorf("Unexpected key: %+v", found)
	}
	if _, err := store.FindAPIKey("wrong"); err != ErrAPIKeyNotFound {
		t.Errorf("Expected ErrAPIKeyNotFound, got %v", err)
	}

	if err := store.TouchAPIKey(key.ID); err != nil {
		t.Errorf("Failed to touch API key: %v", err)
	}

	keys, err := store.ListAPIKeys()
	if err != nil {
		t.Fatalf("Failed to list API keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("Expected 1 key, got %d", len(keys))
	}
	if keys[0].Key != "" {
		t.Error("List should blank out raw key material")
	}
	if keys[0].LastUsedAt == nil {
		t.Error("Expected LastUsedAt after touch")
	}

	if err := store.DeleteAPIKey(key.ID); err != nil {
		t.Errorf("Failed to delete API key: %v", err)
	}
	if err := store.DeleteAPIKey(key.ID); err != ErrAPIKeyNotFound {
		t.Errorf("Expected ErrAPIKeyNotFound on second delete, got %v", err)
	}

	account := &models.Account{Username: "admin", Role: models.RoleAdmin}
	if err := account.SetPassword("correct horse battery"); err != nil {
		t.Fatalf("Failed to set password: %v", err)
	}
	if err := store.CreateAccount(account); err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	if err := store.CreateAccount(&models.Account{Username: "admin", PasswordHash: "x", Role: models.RoleAdmin}); err != ErrDuplicateAccount {
		t.Errorf("Expected ErrDuplicateAccount, got %v", err)
	}

	loaded, err := store.GetAccountByUsername("admin")
	if err != nil {
		t.Fatalf("Failed to load account: %v", err)
	}
	if !loaded.CheckPassword("correct horse battery") {
		t.Error("Stored hash should verify the original password")
	}
	if _, err := store.GetAccountByUsername("ghost"); err != ErrAccountNotFound {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
}

// TestSQLiteFileMode tests that the database file is group-shared and
// other-denied regardless of the process umask
func TestSQLiteFileMode(t *testing.T) {
	dbPath := t.TempDir() + "/mode.db"

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	info, err := os.Stat(dbPath)
	if err != nil {
		t.Fatalf("Failed to stat database file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o660 {
		t.Errorf("Expected database file mode 0660, got %o", perm)
	}
}
