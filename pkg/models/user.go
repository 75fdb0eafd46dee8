package models

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User represents a media server member mirrored from the Plex account.
// PlexID is the Plex account id and is the join key during synchronization.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	PlexID    string    `json:"plex_id"`
	Thumb     string    `json:"thumb,omitempty"`
	Home      bool      `json:"home"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required user fields before the store accepts the row.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.PlexID == "" {
		return errors.New("plex id is required")
	}
	if u.Email != "" && !strings.Contains(u.Email, "@") {
		return errors.New("email is malformed")
	}
	return nil
}

// Account represents an administrative login identity. Accounts authenticate
// the bootstrap flow and CLI; day-to-day API auth uses API keys.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// SetPassword hashes and stores the given password.
func (a *Account) SetPassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a password against the stored hash.
func (a *Account) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// Role represents an access level attached to an API key or account
type Role string

const (
	RoleAdmin    Role = "admin"    // Full access including API key management
	RoleOperator Role = "operator" // Can manage users, libraries, settings, sync
	RoleViewer   Role = "viewer"   // Read-only access
)

// Permission represents a specific permission
type Permission string

const (
	// Member permissions
	PermUserRead   Permission = "user:read"
	PermUserDelete Permission = "user:delete"

	// Library permissions
	PermLibraryRead Permission = "library:read"
	PermLibraryScan Permission = "library:scan"

	// Settings permissions
	PermSettingsRead  Permission = "settings:read"
	PermSettingsWrite Permission = "settings:write"

	// Sync permissions
	PermSyncRead    Permission = "sync:read"
	PermSyncTrigger Permission = "sync:trigger"

	// API key permissions
	PermAPIKeyCreate Permission = "apikey:create"
	PermAPIKeyRead   Permission = "apikey:read"
	PermAPIKeyRevoke Permission = "apikey:revoke"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermUserRead, PermUserDelete,
		PermLibraryRead, PermLibraryScan,
		PermSettingsRead, PermSettingsWrite,
		PermSyncRead, PermSyncTrigger,
		PermAPIKeyCreate, PermAPIKeyRead, PermAPIKeyRevoke,
	},
	RoleOperator: {
		PermUserRead, PermUserDelete,
		PermLibraryRead, PermLibraryScan,
		PermSettingsRead, PermSettingsWrite,
		PermSyncRead, PermSyncTrigger,
	},
	RoleViewer: {
		PermUserRead,
		PermLibraryRead,
		PermSettingsRead,
		PermSyncRead,
	},
}

// HasPermission checks if a role has a specific permission
func (r Role) HasPermission(perm Permission) bool {
	perms, ok := RolePermissions[r]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// GetPermissions returns all permissions for a role
func (r Role) GetPermissions() []Permission {
	return RolePermissions[r]
}

// IsValid checks if a role is valid
func (r Role) IsValid() bool {
	_, ok := RolePermissions[r]
	return ok
}

// APIKey represents a stored API credential. The raw key is returned only
// once, in the creation response; the store keeps it for lookup.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Key        string     `json:"key,omitempty"`
	Role       Role       `json:"role"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyRequest represents a request to create a new API key
type APIKeyRequest struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}
