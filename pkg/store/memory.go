package store

import (
	"crypto/subtle"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/usher/pkg/models"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrSyncRunNotFound  = errors.New("sync run not found")
	ErrSettingNotFound  = errors.New("setting not found")
	ErrAPIKeyNotFound   = errors.New("api key not found")
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicatePlexID  = errors.New("user with this plex id already exists")
	ErrDuplicateAccount = errors.New("account with this username already exists")
)

// MemoryStore is an in-memory implementation of the data store,
// used by tests and by --store memory.
type MemoryStore struct {
	users     map[string]*models.User
	libraries []models.Library
	settings  map[string]*models.Setting
	runs      map[string]*models.SyncRun
	events    map[string][]models.SyncEvent
	keys      map[string]*models.APIKey
	accounts  map[string]*models.Account
	nextSeq   int

	usersMu    sync.RWMutex
	librMu     sync.RWMutex
	settingsMu sync.RWMutex
	runsMu     sync.RWMutex
	keysMu     sync.RWMutex
	accountsMu sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*models.User),
		settings: make(map[string]*models.Setting),
		runs:     make(map[string]*models.SyncRun),
		events:   make(map[string][]models.SyncEvent),
		keys:     make(map[string]*models.APIKey),
		accounts: make(map[string]*models.Account),
	}
}

// User operations

// CreateUser adds a new user to the store
func (s *MemoryStore) CreateUser(user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	for _, existing := range s.users {
		if existing.PlexID == user.PlexID {
			return ErrDuplicatePlexID
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	copied := *user
	s.users[user.ID] = &copied
	return nil
}

// GetUser retrieves a user by ID
func (s *MemoryStore) GetUser(id string) (*models.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetUserByPlexID retrieves a user by their Plex account id
func (s *MemoryStore) GetUserByPlexID(plexID string) (*models.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	for _, user := range s.users {
		if user.PlexID == plexID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

// ListUsers returns all users sorted by username
func (s *MemoryStore) ListUsers() ([]*models.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	users := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
	return users, nil
}

// DeleteUser removes a user by ID
func (s *MemoryStore) DeleteUser(id string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// CountUsers returns the number of users
func (s *MemoryStore) CountUsers() (int, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	return len(s.users), nil
}

// Library operations

// ReplaceLibraries swaps the cached library list
func (s *MemoryStore) ReplaceLibraries(libraries []models.Library) error {
	s.librMu.Lock()
	defer s.librMu.Unlock()

	s.libraries = make([]models.Library, len(libraries))
	copy(s.libraries, libraries)
	return nil
}

// ListLibraries returns the cached library list
func (s *MemoryStore) ListLibraries() ([]models.Library, error) {
	s.librMu.RLock()
	defer s.librMu.RUnlock()

	libraries := make([]models.Library, len(s.libraries))
	copy(libraries, s.libraries)
	return libraries, nil
}

// Settings operations

// SetSetting stores a key/value pair, replacing any previous value
func (s *MemoryStore) SetSetting(key, value string) error {
	if err := models.ValidateSetting(key, value); err != nil {
		return err
	}

	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	s.settings[key] = &models.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

// GetSetting retrieves a setting by key
func (s *MemoryStore) GetSetting(key string) (*models.Setting, error) {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()

	setting, ok := s.settings[key]
	if !ok {
		return nil, ErrSettingNotFound
	}
	copied := *setting
	return &copied, nil
}

// GetSettings returns the values for the requested keys; missing keys are
// simply absent from the result.
func (s *MemoryStore) GetSettings(keys ...string) (map[string]string, error) {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()

	values := make(map[string]string, len(keys))
	for _, key := range keys {
		if setting, ok := s.settings[key]; ok {
			values[key] = setting.Value
		}
	}
	return values, nil
}

// ListSettings returns all settings sorted by key
func (s *MemoryStore) ListSettings() ([]models.Setting, error) {
	s.settingsMu.RLock()
	defer s.settingsMu.RUnlock()

	settings := make([]models.Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		settings = append(settings, *setting)
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })
	return settings, nil
}

// Sync run operations

// CreateSyncRun adds a new sync run and assigns its sequence number
func (s *MemoryStore) CreateSyncRun(run *models.SyncRun) error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	s.nextSeq++
	run.SequenceNumber = s.nextSeq

	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

// GetSyncRun retrieves a sync run by ID
func (s *MemoryStore) GetSyncRun(id string) (*models.SyncRun, error) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrSyncRunNotFound
	}
	copied := *run
	return &copied, nil
}

// GetSyncRunBySequence retrieves a sync run by sequence number
func (s *MemoryStore) GetSyncRunBySequence(seq int) (*models.SyncRun, error) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	for _, run := range s.runs {
		if run.SequenceNumber == seq {
			copied := *run
			return &copied, nil
		}
	}
	return nil, ErrSyncRunNotFound
}

// UpdateSyncRun replaces a stored sync run
func (s *MemoryStore) UpdateSyncRun(run *models.SyncRun) error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return ErrSyncRunNotFound
	}
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

// ListSyncRuns returns runs sorted newest first, up to limit (0 = all)
func (s *MemoryStore) ListSyncRuns(limit int) ([]*models.SyncRun, error) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	runs := make([]*models.SyncRun, 0, len(s.runs))
	for _, run := range s.runs {
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].SequenceNumber > runs[j].SequenceNumber
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// DeleteSyncRunsBefore removes terminal runs created before the cutoff
func (s *MemoryStore) DeleteSyncRunsBefore(cutoff time.Time) (int64, error) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	var deleted int64
	for id, run := range s.runs {
		if models.IsTerminal(run.Status) && run.CreatedAt.Before(cutoff) {
			delete(s.runs, id)
			delete(s.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// CountSyncRunsByStatus returns run counts grouped by status
func (s *MemoryStore) CountSyncRunsByStatus() (map[models.SyncRunStatus]int, error) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	counts := make(map[models.SyncRunStatus]int)
	for _, run := range s.runs {
		counts[run.Status]++
	}
	return counts, nil
}

// AppendSyncEvent records a status transition for a run
func (s *MemoryStore) AppendSyncEvent(event *models.SyncEvent) error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	if _, ok := s.runs[event.RunID]; !ok {
		return ErrSyncRunNotFound
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.events[event.RunID] = append(s.events[event.RunID], *event)
	return nil
}

// ListSyncEvents returns the transition history for a run, oldest first
func (s *MemoryStore) ListSyncEvents(runID string) ([]models.SyncEvent, error) {
	s.runsMu.RLock()
	defer s.runsMu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, ErrSyncRunNotFound
	}
	events := make([]models.SyncEvent, len(s.events[runID]))
	copy(events, s.events[runID])
	return events, nil
}

// API key operations

// CreateAPIKey stores a new API key
func (s *MemoryStore) CreateAPIKey(key *models.APIKey) error {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()

	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	copied := *key
	s.keys[key.ID] = &copied
	return nil
}

// ListAPIKeys returns all API keys with the raw key material blanked
func (s *MemoryStore) ListAPIKeys() ([]*models.APIKey, error) {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()

	keys := make([]*models.APIKey, 0, len(s.keys))
	for _, key := range s.keys {
		copied := *key
		copied.Key = ""
		keys = append(keys, &copied)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].CreatedAt.Before(keys[j].CreatedAt) })
	return keys, nil
}

// DeleteAPIKey removes an API key by ID
func (s *MemoryStore) DeleteAPIKey(id string) error {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()

	if _, ok := s.keys[id]; !ok {
		return ErrAPIKeyNotFound
	}
	delete(s.keys, id)
	return nil
}

// FindAPIKey looks up a key by its raw value using constant-time comparison
func (s *MemoryStore) FindAPIKey(rawKey string) (*models.APIKey, error) {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()

	for _, key := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key.Key), []byte(rawKey)) == 1 {
			copied := *key
			return &copied, nil
		}
	}
	return nil, ErrAPIKeyNotFound
}

// TouchAPIKey stamps the last-used time of a key
func (s *MemoryStore) TouchAPIKey(id string) error {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return ErrAPIKeyNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	return nil
}

// Account operations

// CreateAccount stores a new admin account
func (s *MemoryStore) CreateAccount(account *models.Account) error {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	for _, existing := range s.accounts {
		if existing.Username == account.Username {
			return ErrDuplicateAccount
		}
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

// GetAccountByUsername retrieves an account by username
func (s *MemoryStore) GetAccountByUsername(username string) (*models.Account, error) {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()

	for _, account := range s.accounts {
		if account.Username == username {
			copied := *account
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound
}

// Lifecycle

// HealthCheck always succeeds for the in-memory store
func (s *MemoryStore) HealthCheck() error { return nil }

// Vacuum is a no-op for the in-memory store
func (s *MemoryStore) Vacuum() error { return nil }

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
