package store

import (
	"crypto/subtle"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/psantana5/usher/pkg/models"
)

// PostgresStore is a PostgreSQL-based implementation of the data store
type PostgresStore struct {
	db *sql.DB
	mu sync.Mutex // Serializes sequence number assignment
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(cfg Config) (*PostgresStore, error) {
	dsn := cfg.DSN
	if dsn == "" {
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen == 0 {
		maxOpen = 25
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle == 0 {
		maxIdle = 5
	}
	maxLifetime := cfg.ConnMaxLifetime
	if maxLifetime == 0 {
		maxLifetime = 5 * time.Minute
	}
	maxIdleTime := cfg.ConnMaxIdleTime
	if maxIdleTime == 0 {
		maxIdleTime = 1 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
	db.SetConnMaxIdleTime(maxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema
func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT,
		plex_id TEXT NOT NULL UNIQUE,
		thumb TEXT,
		home BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS libraries (
		key TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		agent TEXT,
		scanned_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		sequence_number BIGINT NOT NULL UNIQUE,
		trigger_source TEXT NOT NULL,
		status TEXT NOT NULL,
		imported INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sync_events (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		note TEXT,
		timestamp TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		key TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		last_used_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_plex_id ON users(plex_id);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_status ON sync_runs(status);
	CREATE INDEX IF NOT EXISTS idx_sync_runs_created_at ON sync_runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_sync_events_run_id ON sync_events(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint error
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

// User operations

// CreateUser adds a new user to the store
func (s *PostgresStore) CreateUser(user *models.User) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Username, user.Email, user.PlexID, user.Thumb, user.Home,
		user.CreatedAt, user.UpdatedAt)

	if err != nil && isUniqueViolation(err) {
		return ErrDuplicatePlexID
	}
	return err
}

// GetUser retrieves a user by ID
func (s *PostgresStore) GetUser(id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, plex_id, thumb, home, created_at, updated_at
		FROM users WHERE id = $1
	`, id))
}

// GetUserByPlexID retrieves a user by their Plex account id
func (s *PostgresStore) GetUserByPlexID(plexID string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, plex_id, thumb, home, created_at, updated_at
		FROM users WHERE plex_id = $1
	`, plexID))
}

func (s *PostgresStore) scanUser(row *sql.Row) (*models.User, error) {
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
func (s *PostgresStore) ListUsers() ([]*models.User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, email, plex_id, thumb, home, created_at, updated_at
		FROM users ORDER BY LOWER(username) ASC
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
func (s *PostgresStore) DeleteUser(id string) error {
	result, err := s.db.Exec(`DELETE FROM users WHERE id = $1`, id)
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
func (s *PostgresStore) CountUsers() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// Library operations

// ReplaceLibraries swaps the cached library list in one transaction
func (s *PostgresStore) ReplaceLibraries(libraries []models.Library) error {
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
			VALUES ($1, $2, $3, $4, $5)
		`, lib.Key, lib.Title, lib.Type, lib.Agent, lib.ScannedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListLibraries returns the cached library list
func (s *PostgresStore) ListLibraries() ([]models.Library, error) {
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
func (s *PostgresStore) SetSetting(key, value string) error {
	if err := models.ValidateSetting(key, value); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value, time.Now())
	return err
}

// GetSetting retrieves a setting by key
func (s *PostgresStore) GetSetting(key string) (*models.Setting, error) {
	var setting models.Setting
	err := s.db.QueryRow(`
		SELECT key, value, updated_at FROM settings WHERE key = $1
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
func (s *PostgresStore) GetSettings(keys ...string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	rows, err := s.db.Query(`
		SELECT key, value FROM settings WHERE key = ANY($1)
	`, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

// ListSettings returns all settings sorted by key
func (s *PostgresStore) ListSettings() ([]models.Setting, error) {
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
func (s *PostgresStore) CreateSyncRun(run *models.SyncRun) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, run.ID, run.SequenceNumber, run.Trigger, run.Status, run.Imported, run.Removed,
		run.Matched, run.Error, run.CreatedAt, run.StartedAt, run.CompletedAt,
		run.DurationSeconds)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetSyncRun retrieves a sync run by ID
func (s *PostgresStore) GetSyncRun(id string) (*models.SyncRun, error) {
	return s.scanSyncRun(s.db.QueryRow(`
		SELECT id, sequence_number, trigger_source, status, imported, removed, matched, error,
		       created_at, started_at, completed_at, duration_seconds
		FROM sync_runs WHERE id = $1
	`, id))
}

// GetSyncRunBySequence retrieves a sync run by sequence number
func (s *PostgresStore) GetSyncRunBySequence(seq int) (*models.SyncRun, error) {
	return s.scanSyncRun(s.db.QueryRow(`
		SELECT id, sequence_number, trigger_source, status, imported, removed, matched, error,
		       created_at, started_at, completed_at, duration_seconds
		FROM sync_runs WHERE sequence_number = $1
	`, seq))
}

func (s *PostgresStore) scanSyncRun(row *sql.Row) (*models.SyncRun, error) {
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
func (s *PostgresStore) UpdateSyncRun(run *models.SyncRun) error {
	result, err := s.db.Exec(`
		UPDATE sync_runs
		SET status = $1, imported = $2, removed = $3, matched = $4, error = $5,
		    started_at = $6, completed_at = $7, duration_seconds = $8
		WHERE id = $9
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
func (s *PostgresStore) ListSyncRuns(limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT id, sequence_number, trigger_source, status, imported, removed, matched, error,
		       created_at, started_at, completed_at, duration_seconds
		FROM sync_runs ORDER BY sequence_number DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
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
func (s *PostgresStore) DeleteSyncRunsBefore(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM sync_events WHERE run_id IN (
			SELECT id FROM sync_runs WHERE created_at < $1 AND status IN ($2, $3, $4)
		)
	`, cutoff, models.SyncRunCompleted, models.SyncRunFailed, models.SyncRunCancelled); err != nil {
		return 0, err
	}

	result, err := tx.Exec(`
		DELETE FROM sync_runs WHERE created_at < $1 AND status IN ($2, $3, $4)
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
func (s *PostgresStore) CountSyncRunsByStatus() (map[models.SyncRunStatus]int, error) {
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
func (s *PostgresStore) AppendSyncEvent(event *models.SyncEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_runs WHERE id = $1`, event.RunID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrSyncRunNotFound
	}

	_, err := s.db.Exec(`
		INSERT INTO sync_events (run_id, from_status, to_status, note, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, event.RunID, event.From, event.To, event.Note, event.Timestamp)
	return err
}

// ListSyncEvents returns the transition history for a run, oldest first
func (s *PostgresStore) ListSyncEvents(runID string) ([]models.SyncEvent, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sync_runs WHERE id = $1`, runID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrSyncRunNotFound
	}

	rows, err := s.db.Query(`
		SELECT run_id, from_status, to_status, note, timestamp
		FROM sync_events WHERE run_id = $1 ORDER BY id ASC
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
func (s *PostgresStore) CreateAPIKey(key *models.APIKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO api_keys (id, name, key, role, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, key.ID, key.Name, key.Key, key.Role, key.CreatedAt, key.LastUsedAt)
	return err
}

// ListAPIKeys returns all API keys with the raw key material blanked
func (s *PostgresStore) ListAPIKeys() ([]*models.APIKey, error) {
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
func (s *PostgresStore) DeleteAPIKey(id string) error {
	result, err := s.db.Exec(`DELETE FROM api_keys WHERE id = $1`, id)
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
func (s *PostgresStore) FindAPIKey(rawKey string) (*models.APIKey, error) {
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
func (s *PostgresStore) TouchAPIKey(id string) error {
	result, err := s.db.Exec(`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`, time.Now(), id)
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
func (s *PostgresStore) CreateAccount(account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO accounts (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, account.ID, account.Username, account.PasswordHash, account.Role, account.CreatedAt)

	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateAccount
	}
	return err
}

// GetAccountByUsername retrieves an account by username
func (s *PostgresStore) GetAccountByUsername(username string) (*models.Account, error) {
	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, username, password_hash, role, created_at FROM accounts WHERE username = $1
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
func (s *PostgresStore) HealthCheck() error {
	return s.db.Ping()
}

// Vacuum reclaims space from deleted rows
func (s *PostgresStore) Vacuum() error {
	_, err := s.db.Exec(`VACUUM`)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
