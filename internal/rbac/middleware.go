package rbac

import (
	"context"
	"net/http"
)

type roleKey struct{}

// WithRole is set by the JWT middleware from the token's role claim.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}

var defaultChecker = NewChecker(nil)

func forbid(w http.ResponseWriter) {
	http.Error(w, "forbidden", http.StatusForbidden)
}

// Require enforces a single permission with the default policy.
func Require(perm string) func(http.Handler) http.Handler {
	return defaultChecker.Require(perm)
}

// RequireOwnerOr lets the request through when isOwner matches or the role
// holds perm. Unauthenticated requests (no role) are always refused.
func RequireOwnerOr(perm string, isOwner func(r *http.Request) bool) func(http.Handler) http.Handler {
	return defaultChecker.RequireOwnerOr(perm, isOwner)
}

func (c *Checker) Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !c.Has(role, perm) {
				forbid(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c *Checker) RequireOwnerOr(perm string, isOwner func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role != "" && (isOwner(r) || c.Has(role, perm)) {
				next.ServeHTTP(w, r)
				return
			}
			forbid(w)
		})
	}
}
