package store

import (
	"crypto/subtle"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/psantana5/usher/pkg/models"
)

// SQLiteStore is a SQLite-based implementation of the data store
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // Serializes sequence number assignment
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o770); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Configure SQLite connection string with parameters for concurrent access
	// - _journal_mode=WAL: Enable Write-Ahead Logging for better concurrency
	// - _busy_timeout=10000: Wait up to 10 seconds when database is locked
	// - _synchronous=NORMAL: Balance between safety and performance
	// - _cache_size=-8000: 8MB memory cache for better performance
	// - _txlock=immediate: Acquire write lock at transaction start to reduce conflicts
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_cache_size=-8000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer for SQLite to avoid lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// The driver creates the file with the process umask; force the
	// group-shared, other-denied mode the rest of the state files use
	if err := os.Chmod(dbPath, 0o660); err != nil {
		return nil, fmt.Errorf("failed to set database file mode: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT,
		plex_id TEXT NOT NULL UNIQUE,
		thumb TEXT,
		home BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS libraries (
		key TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		agent TEXT,
		scanned_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		sequence_number INTEGER NOT NULL UNIQUE,
		trigger_source TEXT NOT NULL,
		status TEXT NOT NULL,
		imported INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		duration_seconds REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		note TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		key TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_used_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_plex_id ON users(plex_id);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_status ON sync_runs(status);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_created_at ON sync_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_sync_events_run_id ON sync_events(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// User operations

// CreateUser adds a new user to the store
func (s *SQLiteStore) CreateUser(user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO users (id, username, email, plex_id, thumb, home, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.Email, user.PlexID, user.Thumb, user.Home,
		user.CreatedAt, user.UpdatedAt)

	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicatePlexID
	}
	return err
}

// GetUser retrieves a user by ID
func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, plex_id, thumb, home, created_at, updated_at
		FROM users WHERE id = ?
	`, id))
}

// GetUserByPlexID retrieves a user by their Plex account id
func (s *SQLiteStore) GetUserByPlexID(plexID string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, plex_id, thumb, home, created_at, updated_at
		FROM users WHERE plex_id = ?
	`, plexID))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var email, thumb sql.NullString

	err := row.Scan(&user.ID, &user.Username, &email, &user.PlexID, &thumb,
		&user.Home, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	user.Email = email.String
	user.Thumb = thumb.String
	return &user, nil
}

// ListUsers returns all users sorted by username
func (s *SQLiteStore) ListUsers() ([]*models.User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, email, plex_id, thumb, home, created_at, updated_at
		FROM users ORDER BY username COLLATE NOCASE ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		var email, thumb sql.NullString

		if err := rows.Scan(&user.ID, &user.Username, &email, &user.PlexID, &thumb,
			&user.Home, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		user.Email = email.String
		user.Thumb = thumb.String
		users = append(users, &user)
	}
	return users, rows.Err()
}

// DeleteUser removes a user by ID
func (s *SQLiteStore) DeleteUser(id string) error {
	result, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountUsers returns the number of users
func (s *SQLiteStore) CountUsers() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Library operations

// ReplaceLibraries swaps the cached library list in one transaction
func (s *SQLiteStore) ReplaceLibraries(libraries []models.Library) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM libraries`); err != nil {
		return err
	}

	for _, lib := range libraries {
		if _, err := tx.Exec(`
			INSERT INTO libraries (key, title, type, agent, scanned_at)
			VALUES (?, ?, ?, ?, ?)
		`, lib.Key, lib.Title, lib.Type, lib.Agent, lib.ScannedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListLibraries returns the cached library list
func (s *SQLiteStore) ListLibraries() ([]models.Library, error) {
	rows, err := s.db.Query(`
		SELECT key, title, type, agent, scanned_at FROM libraries ORDER BY title ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var libraries []models.Library
	for rows.Next() {
		var lib models.Library
		var agent sql.NullString

		if err := rows.Scan(&lib.Key, &lib.Title, &lib.Type, &agent, &lib.ScannedAt); err != nil {
			return nil, err
		}
		lib.Agent = agent.String
		libraries = append(libraries, lib)
	}
	return libraries, rows.Err()
}

// Settings operations

// SetSetting stores a key/value pair, replacing any previous value
func (s *SQLiteStore) SetSetting(key, value string) error {
	if err := models.ValidateSetting(key, value); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, ?)
	`, key, value, time.Now())
	return err
}

// GetSetting retrieves a setting by key
func (s *SQLiteStore) GetSetting(key string) (*models.Setting, error) {
	var setting models.Setting
	err := s.db.QueryRow(`
		SELECT key, value, updated_at FROM settings WHERE key = ?
	`, key).Scan(&setting.Key, &setting.Value, &setting.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// GetSettings returns the values for the requested keys; missing keys are
// simply absent from the result.
func (s *SQLiteStore) GetSettings(keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		setting, err := s.GetSetting(key)
		if err == ErrSettingNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		values[key] = setting.Value
	}
	return values, nil
}

// ListSettings returns all settings sorted by key
func (s *SQLiteStore) ListSettings() ([]models.Setting, error) {
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []models.Setting
	for rows.Next() {
		var setting models.Setting
		if err := rows.Scan(&setting.Key, &setting.Value, &setting.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

// Sync run operations

// CreateSyncRun adds a new sync run and assigns its sequence number
func (s *SQLiteStore) CreateSyncRun(run *models.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := tx.QueryRow(`
		SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM sync_runs
	`).Scan(&run.SequenceNumber); err != nil {
		return fmt.Errorf("failed to assign sequence number: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO sync_runs
		(id, sequence_number, trigger_source, status, imported, removed, matched, error,
		 created_at, started_at, completed_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SequenceNumber, run.Trigger, run.Status, run.Imported, run.Removed,
		run.Matched, run.Error, run.CreatedAt, run.StartedAt, run.CompletedAt,
		run.DurationSeconds)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetSyncRun retrieves a sync run by ID
func (s *SQLiteStore) GetSyncRun(id string) (*models.SyncRun, error) {
	return s.scanSyncRun(s.db.QueryRow(`
		SELECT id, sequence_number, trigger_source, status, imported, removed, matched, error,
		       created_at, started_at, completed_at, duration_seconds
		FROM sync_runs WHERE id = ?
	`, id))
}

// GetSyncRunBySequence retrieves a sync run by sequence number
func (s *SQLiteStore) GetSyncRunBySequence(seq int) (*models.SyncRun, error) {
	return s.scanSyncRun(s.db.QueryRow(`
		SELECT id, sequence_number, trigger_source, status, imported, removed, matched, error,
		       created_at, started_at, completed_at, duration_seconds
		FROM sync_runs WHERE sequence_number = ?
	`, seq))
}

func (s *SQLiteStore) scanSyncRun(row *sql.Row) (*models.SyncRun, error) {
	var run models.SyncRun
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.SequenceNumber, &run.Trigger, &run.Status,
		&run.Imported, &run.Removed, &run.Matched, &errMsg, &run.CreatedAt,
		&startedAt, &completedAt, &run.DurationSeconds)
	if err == sql.ErrNoRows {
		return nil, ErrSyncRunNotFound
	}
	if err != nil {
		return nil, err
	}

	run.Error = errMsg.String
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

// UpdateSyncRun replaces a stored sync run
func (s *SQLiteStore) UpdateSyncRun(run *models.SyncRun) error {
	result, err := s.db.Exec(`
		UPDATE sync_runs
		SET status = ?, imported = ?, removed = ?, matched = ?, error = ?,
		    started_at = ?, completed_at = ?, duration_seconds = ?
		WHERE id = ?
	`, run.Status, run.Imported, run.Removed, run.Matched, run.Error,
		run.StartedAt, run.CompletedAt, run.DurationSeconds, run.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSyncRunNotFound
	}
	return nil
}

// ListSyncRuns returns runs sorted newest first, up to limit (0 = all)
func (s *SQLiteStore) ListSyncRuns(limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT id, sequence_number, trigger_source, status, imported, removed, matched, error,
		       created_at, started_at, completed_at, duration_seconds
		FROM sync_runs ORDER BY sequence_number DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		var run models.SyncRun
		var errMsg sql.NullString
		var startedAt, completedAt sql.NullTime

		if err := rows.Scan(&run.ID, &run.SequenceNumber, &run.Trigger, &run.Status,
			&run.Imported, &run.Removed, &run.Matched, &errMsg, &run.CreatedAt,
			&startedAt, &completedAt, &run.DurationSeconds); err != nil {
			return nil, err
		}

		run.Error = errMsg.String
		if startedAt.Valid {
			run.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// DeleteSyncRunsBefore removes terminal runs created before the cutoff,
// along with their events.
func (s *SQLiteStore) DeleteSyncRunsBefore(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM sync_events WHERE run_id IN (
			SELECT id FROM sync_runs WHERE created_at < ? AND status IN (?, ?, ?)
		)
	`, cutoff, models.SyncRunCompleted, models.SyncRunFailed, models.SyncRunCancelled); err != nil {
		return 0, err
	}

	result, err := tx.Exec(`
		DELETE FROM sync_runs WHERE created_at < ? AND status IN (?, ?, ?)
	`, cutoff, models.SyncRunCompleted, models.SyncRunFailed, models.SyncRunCancelled)
	if err != nil {
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	return deleted, tx.Commit()
}

// CountSyncRunsByStatus returns run counts grouped by status
func (s *SQLiteStore) CountSyncRunsByStatus() (map[models.SyncRunStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM sync_runs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.SyncRunStatus]int)
	for rows.Next() {
		var status models.SyncRunStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// AppendSyncEvent records a status transition for a run
func (s *SQLiteStore) AppendSyncEvent(event *models.SyncEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_runs WHERE id = ?`, event.RunID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrSyncRunNotFound
	}

	_, err := s.db.Exec(`
		INSERT INTO sync_events (run_id, from_status, to_status, note, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, event.RunID, event.From, event.To, event.Note, event.Timestamp)
	return err
}

// ListSyncEvents returns the transition history for a run, oldest first
func (s *SQLiteStore) ListSyncEvents(runID string) ([]models.SyncEvent, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrSyncRunNotFound
	}

	rows, err := s.db.Query(`
		SELECT run_id, from_status, to_status, note, timestamp
		FROM sync_events WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.SyncEvent
	for rows.Next() {
		var event models.SyncEvent
		var note sql.NullString
		if err := rows.Scan(&event.RunID, &event.From, &event.To, &note, &event.Timestamp); err != nil {
			return nil, err
		}
		event.Note = note.String
		events = append(events, event)
	}
	return events, rows.Err()
}

// API key operations

// CreateAPIKey stores a new API key
func (s *SQLiteStore) CreateAPIKey(key *models.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO api_keys (id, name, key, role, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key.ID, key.Name, key.Key, key.Role, key.CreatedAt, key.LastUsedAt)
	return err
}

// ListAPIKeys returns all API keys with the raw key material blanked
func (s *SQLiteStore) ListAPIKeys() ([]*models.APIKey, error) {
	rows, err := s.db.Query(`
		SELECT id, name, role, created_at, last_used_at FROM api_keys ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var key models.APIKey
		var lastUsed sql.NullTime

		if err := rows.Scan(&key.ID, &key.Name, &key.Role, &key.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			key.LastUsedAt = &lastUsed.Time
		}
		keys = append(keys, &key)
	}
	return keys, rows.Err()
}

// DeleteAPIKey removes an API key by ID
func (s *SQLiteStore) DeleteAPIKey(id string) error {
	result, err := s.db.Exec(`DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// FindAPIKey looks up a key by its raw value using constant-time comparison
func (s *SQLiteStore) FindAPIKey(rawKey string) (*models.APIKey, error) {
	rows, err := s.db.Query(`
		SELECT id, name, key, role, created_at, last_used_at FROM api_keys
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key models.APIKey
		var lastUsed sql.NullTime

		if err := rows.Scan(&key.ID, &key.Name, &key.Key, &key.Role, &key.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if subtle.ConstantTimeCompare([]byte(key.Key), []byte(rawKey)) == 1 {
			if lastUsed.Valid {
				key.LastUsedAt = &lastUsed.Time
			}
			return &key, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nil, ErrAPIKeyNotFound
}

// TouchAPIKey stamps the last-used time of a key
func (s *SQLiteStore) TouchAPIKey(id string) error {
	result, err := s.db.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// Account operations

// CreateAccount stores a new admin account
func (s *SQLiteStore) CreateAccount(account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO accounts (id, username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, account.ID, account.Username, account.PasswordHash, account.Role, account.CreatedAt)

	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicateAccount
	}
	return err
}

// GetAccountByUsername retrieves an account by username
func (s *SQLiteStore) GetAccountByUsername(username string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, username, password_hash, role, created_at FROM accounts WHERE username = ?
	`, username).Scan(&account.ID, &account.Username, &account.PasswordHash,
		&account.Role, &account.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Lifecycle

// HealthCheck verifies the database connection
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

// Vacuum reclaims space from deleted rows
func (s *SQLiteStore) Vacuum() error {
	_, err := s.db.Exec(`VACUUM`)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
