package store

import (
	"fmt"
	"time"

	"github.com/psantana5/usher/pkg/models"
)

// Store defines the interface for data persistence.
// SQLite, PostgreSQL and the in-memory store implement this interface.
type Store interface {
	// User operations
	CreateUser(user *models.User) error
	GetUser(id string) (*models.User, error)
	GetUserByPlexID(plexID string) (*models.User, error)
	ListUsers() ([]*models.User, error)
	DeleteUser(id string) error
	CountUsers() (int, error)

	// Library operations
	ReplaceLibraries(libraries []models.Library) error
	ListLibraries() ([]models.Library, error)

	// Settings operations
	SetSetting(key, value string) error
	GetSetting(key string) (*models.Setting, error)
	GetSettings(keys ...string) (map[string]string, error)
	ListSettings() ([]models.Setting, error)

	// Sync run operations
	CreateSyncRun(run *models.SyncRun) error
	GetSyncRun(id string) (*models.SyncRun, error)
	GetSyncRunBySequence(seq int) (*models.SyncRun, error)
	UpdateSyncRun(run *models.SyncRun) error
	ListSyncRuns(limit int) ([]*models.SyncRun, error)
	DeleteSyncRunsBefore(cutoff time.Time) (int64, error)
	CountSyncRunsByStatus() (map[models.SyncRunStatus]int, error)
	AppendSyncEvent(event *models.SyncEvent) error
	ListSyncEvents(runID string) ([]models.SyncEvent, error)

	// API key operations
	CreateAPIKey(key *models.APIKey) error
	ListAPIKeys() ([]*models.APIKey, error)
	DeleteAPIKey(id string) error
	FindAPIKey(rawKey string) (*models.APIKey, error)
	TouchAPIKey(id string) error

	// Account operations
	CreateAccount(account *models.Account) error
	GetAccountByUsername(username string) (*models.Account, error)

	// Lifecycle
	HealthCheck() error
	Vacuum() error
	Close() error
}

// Config holds database configuration
type Config struct {
	Type string // "sqlite", "postgres" or "memory"

	// SQLite specific
	Path string

	// PostgreSQL specific; DSN wins when set, otherwise it is built
	// from the discrete fields.
	DSN             string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Type {
	case "postgres", "postgresql":
		return NewPostgresStore(config)
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "":
		path := config.Path
		if path == "" {
			path = "usher.db"
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unsupported database type: %q", config.Type)
	}
}
