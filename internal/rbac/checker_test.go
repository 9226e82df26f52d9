package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy
	assert.True(t, p.Allows(RoleLearner, PermSessionPlay))
	assert.False(t, p.Allows(RoleLearner, PermSessionViewAll))
	assert.False(t, p.Allows(RoleLearner, PermSessionAbandon))
	assert.True(t, p.Allows(RoleAdmin, PermSessionAbandon))
	assert.False(t, p.Allows("guest", PermSessionPlay))
	assert.False(t, p.Allows("", PermSessionPlay))
	assert.True(t, p.Allows(RoleLearner, PermSessionViewAll, PermSessionViewOwn))
	assert.False(t, p.Allows(RoleAdmin), "no permissions asked, none held")
}

func TestPrefixGrant(t *testing.T) {
	p := Policy{"reviewer": {"session:view-*"}}
	assert.True(t, p.Allows("reviewer", PermSessionViewAll))
	assert.False(t, p.Allows("reviewer", PermSessionPlay))
}

func TestPrincipalInContext(t *testing.T) {
	assert.Equal(t, Principal{}, PrincipalFrom(context.Background()))
	ctx := WithPrincipal(context.Background(), Principal{Subject: "root", Role: RoleAdmin})
	assert.Equal(t, "root", PrincipalFrom(ctx).Subject)
	assert.True(t, Can(ctx, PermSessionViewAll))
	assert.False(t, Can(context.Background(), PermSessionPlay))
}

func TestRequireMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	abandon := Require(PermSessionAbandon)(ok)
	view := RequireAny(PermSessionViewAll, PermSessionViewOwn)(ok)
	for role, want := range map[string][2]int{
		"":          {http.StatusForbidden, http.StatusForbidden},
		RoleLearner: {http.StatusForbidden, http.StatusNoContent},
		RoleAdmin:   {http.StatusNoContent, http.StatusNoContent},
	} {
		for i, h := range []http.Handler{abandon, view} {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req = req.WithContext(WithPrincipal(req.Context(), Principal{Subject: "u", Role: role}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, want[i], rec.Code, "role %q handler %d", role, i)
		}
	}
}
