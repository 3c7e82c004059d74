package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hashFor(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	require.NoError(t, err)
	return string(h)
}

func TestTokenStore_LoginSucceedsWithCorrectPassword(t *testing.T) {
	store := New("admin", hashFor(t, "hunter2"), 60)
	token, err := store.Login("admin", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	u, ok := store.Validate(token)
	require.True(t, ok)
	assert.Equal(t, RoleAdmin, u.Role)
}

func TestTokenStore_LoginRejectsWrongPassword(t *testing.T) {
	store := New("admin", hashFor(t, "hunter2"), 60)
	_, err := store.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenStore_LoginFailsClosedWithoutAdminConfigured(t *testing.T) {
	store := New("", "", 60)
	_, err := store.Login("admin", "anything")
	assert.ErrorIs(t, err, ErrNoAdminConfigured)
}

func TestTokenStore_GuestTokenIsScopedToGuestRole(t *testing.T) {
	store := New("admin", hashFor(t, "hunter2"), 60)
	token := store.IssueGuest("guest-1")
	u, ok := store.Validate(token)
	require.True(t, ok)
	assert.Equal(t, RoleGuest, u.Role)
}

func TestTokenStore_RevokeInvalidatesToken(t *testing.T) {
	store := New("admin", hashFor(t, "hunter2"), 60)
	token := store.IssueGuest("guest-1")
	store.Revoke(token)
	_, ok := store.Validate(token)
	assert.False(t, ok)
}

func TestMiddleware_RejectsMissingTokenWhenRequired(t *testing.T) {
	store := New("admin", hashFor(t, "hunter2"), 60)
	handler := Middleware(store, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_AllowsValidTokenThrough(t *testing.T) {
	store := New("admin", hashFor(t, "hunter2"), 60)
	token := store.IssueGuest("guest-1")
	handler := Middleware(store, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		require.True(t, ok)
		assert.Equal(t, "guest-1", u.ID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_RejectsWrongRole(t *testing.T) {
	store := New("admin", hashFor(t, "hunter2"), 60)
	token := store.IssueGuest("guest-1")
	handler := Middleware(store, true)(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
