package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/psantana5/usher/pkg/models"
)

var (
	ErrMissingKey = errors.New("missing API key")
	ErrInvalidKey = errors.New("invalid API key")
)

// Principal identifies the caller of an authenticated request
type Principal struct {
	Name string
	Role models.Role
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores the caller identity on the context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom retrieves the caller identity from the context
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// KeyPrefix marks keys issued by this service, so a leaked one can be
// recognized in logs and scanners.
const KeyPrefix = "usher_"

// GenerateKey generates a new random API key
func GenerateKey() (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return KeyPrefix + base64.URLEncoding.EncodeToString(keyBytes), nil
}

// SecureCompare performs constant-time comparison
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// KeyFinder resolves raw API keys to their stored records
type KeyFinder interface {
	FindAPIKey(rawKey string) (*models.APIKey, error)
	TouchAPIKey(id string) error
}

// ExtractKey pulls the API key from the request, checking the X-Api-Key
// header first and the Authorization bearer form second.
func ExtractKey(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Middleware authenticates requests against the bootstrap key and the
// stored API keys. The bootstrap key carries the admin role and exists
// so a fresh install can mint its first stored key.
func Middleware(finder KeyFinder, bootstrapKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ExtractKey(r)
			if raw == "" {
				http.Error(w, "Missing API key", http.StatusUnauthorized)
				return
			}

			var principal Principal
			if bootstrapKey != "" && SecureCompare(raw, bootstrapKey) {
				principal = Principal{Name: "bootstrap", Role: models.RoleAdmin}
			} else {
				key, err := finder.FindAPIKey(raw)
				if err != nil {
					http.Error(w, "Invalid API key", http.StatusUnauthorized)
					return
				}
				// Best effort; a failed timestamp must not fail the request
				finder.TouchAPIKey(key.ID)
				principal = Principal{Name: key.Name, Role: key.Role}
			}

			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
