package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-prep/internal/rbac"
)

func login(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
	return rec
}

func TestLoginAndMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	a := NewAuthService("test-key")
	h := LoginHandler(a, Credentials{AdminUser: "root", AdminPassHash: string(hash), DevLearners: true})

	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"root","password":"nope","role":"admin"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"ann","password":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, login(t, h, `{`).Code)

	rec := login(t, h, `{"username":"ann","password":"ann"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, rbac.RoleLearner, out["role"])

	var who rbac.Principal
	protected := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who = rbac.PrincipalFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+out["access_token"])
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, rbac.Principal{Subject: "ann", Role: rbac.RoleLearner}, who)

	rec = login(t, h, `{"username":"root","password":"s3cret","role":"admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejects(t *testing.T) {
	a := NewAuthService("k1")
	other := NewAuthService("k2")
	tok, err := other.IssueJWT("ann", rbac.RoleLearner)
	require.NoError(t, err)

	h := JWTMiddleware(a)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("must not be reached")
	}))
	for _, hdr := range []string{"", "Basic abc", "Bearer " + tok, "Bearer garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, hdr)
	}
}

func TestDevLearnersOff(t *testing.T) {
	h := LoginHandler(NewAuthService("k"), Credentials{})
	assert.Equal(t, http.StatusUnauthorized, login(t, h, `{"username":"ann","password":"ann"}`).Code)
}
