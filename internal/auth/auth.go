// Package auth implements ragmux's bearer-token session layer: a
// context-bound *User plus Middleware/RequireRole wrapping http.Handler,
// backed by a single operator-provisioned admin credential and a
// fail-closed guest fallback, per config.AuthConfig.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role distinguishes the two account classes ragmux supports.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleGuest Role = "guest"
)

// User is the authenticated principal attached to a request's context.
type User struct {
	ID   string
	Role Role
}

type contextKey string

const userContextKey contextKey = "ragmux.user"

// WithUser returns a new context carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// CurrentUser extracts the authenticated user from ctx, if any.
func CurrentUser(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey).(*User)
	return u, ok && u != nil
}

var (
	// ErrNoAdminConfigured means the operator never set ADMIN_USER/
	// ADMIN_PASSWORD_HASH, so the admin path is fail-closed.
	ErrNoAdminConfigured = errors.New("auth: no admin account configured")
	// ErrInvalidCredentials is returned for any login failure, deliberately
	// without distinguishing "unknown user" from "wrong password".
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// session is one issued bearer token.
type session struct {
	user      User
	expiresAt time.Time
}

// TokenStore issues and validates opaque bearer tokens in process memory,
// generalized from a cookie-backed session to a bearer token the WS and
// REST layers share. Tokens live only in this process, so they are not
// valid on another instance and do not survive a restart.
type TokenStore struct {
	adminUser     string
	adminPassHash string
	ttl           time.Duration

	mu       sync.Mutex
	sessions map[string]session
}

// New builds a TokenStore from the resolved AuthConfig. An empty
// adminPassHash means the admin account is disabled and only guest
// tokens can be issued.
func New(adminUser, adminPassHash string, ttlMinutes int) *TokenStore {
	if ttlMinutes <= 0 {
		ttlMinutes = 720
	}
	return &TokenStore{
		adminUser:     adminUser,
		adminPassHash: adminPassHash,
		ttl:           time.Duration(ttlMinutes) * time.Minute,
		sessions:      make(map[string]session),
	}
}

// Login verifies username/password against the configured admin account
// and issues a bearer token on success.
func (s *TokenStore) Login(username, password string) (string, error) {
	if s.adminUser == "" || s.adminPassHash == "" {
		return "", ErrNoAdminConfigured
	}
	if username != s.adminUser {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.adminPassHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issue(User{ID: username, Role: RoleAdmin}), nil
}

// IssueGuest issues a token for an unauthenticated caller, scoped to
// RoleGuest, for deployments that allow anonymous chat use.
func (s *TokenStore) IssueGuest(guestID string) string {
	return s.issue(User{ID: guestID, Role: RoleGuest})
}

func (s *TokenStore) issue(u User) string {
	token := randomToken()
	s.mu.Lock()
	s.sessions[token] = session{user: u, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return token
}

// Validate returns the user bound to token, if it exists and has not
// expired.
func (s *TokenStore) Validate(token string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return User{}, false
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, token)
		return User{}, false
	}
	return sess.user, true
}

// Revoke invalidates a token immediately (logout).
func (s *TokenStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func randomToken() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Middleware attaches the bearer token's user to the request context, if
// present and valid. When require is true, requests without a valid token
// are rejected with 401 rather than allowed through unauthenticated.
func Middleware(store *TokenStore, require bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if u, ok := store.Validate(token); ok {
					r = r.WithContext(WithUser(r.Context(), &u))
				}
			}
			if require {
				if _, ok := CurrentUser(r.Context()); !ok {
					w.Header().Set("WWW-Authenticate", `Bearer realm="ragmux"`)
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole wraps a handler, rejecting any caller whose Role is not want.
func RequireRole(want Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r.Context())
			if !ok || u.Role != want {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}
