package handler

import (
	"net/http"

	"visionbridge/internal/logger"
	"visionbridge/internal/middleware"
)

// LoginHandler handles POST /auth/login by validating the password and issuing a session cookie.
func LoginHandler(store *middleware.SessionStore, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := store.Login(r.FormValue("password"))
		if err != nil {
			logger.Warning("Failed login from %s", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		if token != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     middleware.SessionCookie,
				Value:    token,
				Path:     "/",
				MaxAge:   int(middleware.SessionTTL.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// LogoutHandler ends the caller's session and clears the cookie.
func LogoutHandler(store *middleware.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(middleware.SessionCookie); err == nil {
			store.Logout(cookie.Value)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
