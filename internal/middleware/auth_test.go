package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSessionStore_Login(t *testing.T) {
	store, err := NewSessionStore("hunter2", "")
	require.NoError(t, err)
	assert.True(t, store.Enabled())

	_, err = store.Login("nope")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	token, err := store.Login("hunter2")
	require.NoError(t, err)
	assert.Len(t, token, 36)
	assert.True(t, store.Valid(token))
	assert.False(t, store.Valid(""))
	assert.False(t, store.Valid("forged"))

	store.Logout(token)
	assert.False(t, store.Valid(token))
}

func TestSessionStore_HashWins(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("from-hash"), bcrypt.MinCost)
	require.NoError(t, err)

	store, err := NewSessionStore("plain", string(hash))
	require.NoError(t, err)

	_, err = store.Login("plain")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	_, err = store.Login("from-hash")
	assert.NoError(t, err)
}

func TestSessionStore_BadHash(t *testing.T) {
	_, err := NewSessionStore("", "not-a-bcrypt-hash")
	assert.Error(t, err)
}

func TestSessionStore_Expiry(t *testing.T) {
	store, err := NewSessionStore("pw", "")
	require.NoError(t, err)
	now := time.Now()
	store.now = func() time.Time { return now }

	token, err := store.Login("pw")
	require.NoError(t, err)

	now = now.Add(SessionTTL + time.Second)
	assert.False(t, store.Valid(token))
	assert.Empty(t, store.sessions)
}

func TestSessionStore_LoginPrunesExpired(t *testing.T) {
	store, err := NewSessionStore("pw", "")
	require.NoError(t, err)
	now := time.Now()
	store.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := store.Login("pw")
		require.NoError(t, err)
	}
	require.Len(t, store.sessions, 3)

	now = now.Add(SessionTTL + time.Second)
	fresh, err := store.Login("pw")
	require.NoError(t, err)
	assert.Len(t, store.sessions, 1)
	assert.Contains(t, store.sessions, fresh)
}

func TestAuthMiddleware(t *testing.T) {
	store, err := NewSessionStore("pw", "")
	require.NoError(t, err)
	token, err := store.Login("pw")
	require.NoError(t, err)

	h := AuthMiddleware(store)(okHandler)

	tests := []struct {
		name     string
		path     string
		cookie   string
		header   map[string]string
		want     int
		location string
	}{
		{name: "public login page", path: "/login", want: http.StatusOK},
		{name: "public metrics", path: "/metrics", want: http.StatusOK},
		{name: "public static", path: "/static/app.js", want: http.StatusOK},
		{name: "api without session", path: "/api/snapshot", want: http.StatusUnauthorized},
		{name: "xhr without session", path: "/settings", header: map[string]string{"X-Requested-With": "XMLHttpRequest"}, want: http.StatusUnauthorized},
		{name: "browser redirected", path: "/", want: http.StatusSeeOther, location: "/login"},
		{name: "valid session", path: "/api/snapshot", cookie: token, want: http.StatusOK},
		{name: "unknown session", path: "/api/snapshot", cookie: "00000000-0000-0000-0000-000000000000", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestAuthMiddleware_DisabledWithoutPassword(t *testing.T) {
	store, err := NewSessionStore("", "")
	require.NoError(t, err)
	assert.False(t, store.Enabled())

	rec := httptest.NewRecorder()
	AuthMiddleware(store)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
