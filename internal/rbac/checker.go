package rbac

import (
	"context"
	"net/http"
	"strings"
)

// Principal is the authenticated caller. JWTMiddleware puts it in the
// request context.
type Principal struct {
	Subject string
	Role    string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the caller in ctx, or the zero Principal.
func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// Policy maps a role to the permissions it is granted. A grant is a
// permission name, "*", or a prefix ending in "*".
type Policy map[string][]string

// Allows reports whether role holds at least one of perms.
func (p Policy) Allows(role string, perms ...string) bool {
	if role == "" {
		return false
	}
	for _, g := range p[role] {
		for _, perm := range perms {
			if grants(g, perm) {
				return true
			}
		}
	}
	return false
}

// Can checks the caller in ctx.
func (p Policy) Can(ctx context.Context, perms ...string) bool {
	return p.Allows(PrincipalFrom(ctx).Role, perms...)
}

// Require answers 403 unless the caller holds at least one of perms.
func (p Policy) Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !p.Can(r.Context(), perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func grants(grant, perm string) bool {
	if prefix, ok := strings.CutSuffix(grant, "*"); ok {
		return strings.HasPrefix(perm, prefix)
	}
	return grant == perm
}
