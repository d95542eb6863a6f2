package middleware

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionCookie carries the session id issued at login.
	SessionCookie = "session"
	// SessionTTL is how long a login stays valid.
	SessionTTL = 30 * 24 * time.Hour
)

// ErrInvalidPassword is returned by Login for a wrong password.
var ErrInvalidPassword = errors.New("invalid password")

// SessionStore verifies the shared password and tracks issued session ids.
// A store without a password lets every request through.
type SessionStore struct {
	hash []byte

	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time
}

// NewSessionStore builds a store from a bcrypt hash, or from a plain
// password that is hashed once here. The hash wins when both are set.
func NewSessionStore(password, passwordHash string) (*SessionStore, error) {
	s := &SessionStore{
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}

	switch {
	case passwordHash != "":
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, err
		}
		s.hash = []byte(passwordHash)
	case password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		s.hash = hash
	}
	return s, nil
}

// Enabled reports whether a password is required.
func (s *SessionStore) Enabled() bool {
	return len(s.hash) > 0
}

// Login checks password and issues a new session id.
func (s *SessionStore) Login(password string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(password)); err != nil {
		return "", ErrInvalidPassword
	}

	token := uuid.NewString()
	s.mu.Lock()
	now := s.now()
	for id, expires := range s.sessions {
		if now.After(expires) {
			delete(s.sessions, id)
		}
	}
	s.sessions[token] = now.Add(SessionTTL)
	s.mu.Unlock()
	return token, nil
}

// Valid reports whether token names a live session. Expired ids are forgotten.
func (s *SessionStore) Valid(token string) bool {
	if !s.Enabled() {
		return true
	}
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.sessions[token]
	if !ok {
		return false
	}
	if s.now().After(expires) {
		delete(s.sessions, token)
		return false
	}
	return true
}

// Logout forgets token.
func (s *SessionStore) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func isPublic(path string) bool {
	return path == "/login" ||
		path == "/auth/login" ||
		path == "/metrics" ||
		strings.HasPrefix(path, "/static/") ||
		strings.HasPrefix(path, "/css/") ||
		strings.HasPrefix(path, "/js/")
}

// AuthMiddleware lets through requests carrying a valid session cookie.
// API and XHR callers get 401, browsers are redirected to /login.
func AuthMiddleware(store *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.Enabled() || isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(SessionCookie)
			if err == nil && store.Valid(cookie.Value) {
				next.ServeHTTP(w, r)
				return
			}

			if strings.HasPrefix(r.URL.Path, "/api/") ||
				r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
				r.Header.Get("Content-Type") == "application/json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		})
	}
}
