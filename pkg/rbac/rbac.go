// Package rbac enforces role-based access on HTTP routes. Roles and
// their permission sets are defined in the models package; this package
// only checks the authenticated principal against them.
package rbac

import (
	"net/http"

	"github.com/psantana5/usher/pkg/auth"
	"github.com/psantana5/usher/pkg/models"
)

// RequirePermission returns a middleware that rejects requests whose
// principal lacks the given permission.
func RequirePermission(perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				http.Error(w, "Missing API key", http.StatusUnauthorized)
				return
			}
			if !principal.Role.HasPermission(perm) {
				http.Error(w, `{"error":"forbidden","message":"Insufficient permissions"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns a middleware that only admits principals holding
// one of the given roles. Prefer RequirePermission; this exists for
// routes tied to an operator identity rather than a capability, such as
// API key management.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				http.Error(w, "Missing API key", http.StatusUnauthorized)
				return
			}
			if !allowed[principal.Role] {
				http.Error(w, `{"error":"forbidden","message":"Insufficient permissions"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
