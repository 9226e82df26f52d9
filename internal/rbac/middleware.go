package rbac

import (
	"context"
	"net/http"
)

// Require enforces perm under DefaultPolicy.
func Require(perm string) func(http.Handler) http.Handler {
	return DefaultPolicy.Require(perm)
}

// RequireAny lets the request through when the role has any of perms.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return DefaultPolicy.Require(perms...)
}

func Can(ctx context.Context, perms ...string) bool {
	return DefaultPolicy.Can(ctx, perms...)
}
