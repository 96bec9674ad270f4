package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"fintrack/internal/auth"
	applog "fintrack/internal/log"
)

type loginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// handleLogin verifies credentials and opens a session, returned both as a
// bearer token and a cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}

	var in loginInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, applog.OpLogin, err)
		return
	}

	sess, err := s.sessions.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			atomic.AddInt64(&s.appMetrics.loginFailures, 1)
		}
		s.writeError(w, r, applog.OpLogin, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.logins, 1)

	cookie := &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if s.sessionTTL > 0 {
		cookie.MaxAge = int(s.sessionTTL.Seconds())
	}
	http.SetCookie(w, cookie)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "User logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldOwner, sess.Email)

	NewResponse().JSON(loginResponse{Token: sess.Token, Email: sess.Email}).Write(w)
}

// handleLogout revokes the current session. Logging out without a session succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}

	if token := auth.TokenFromRequest(r); token != "" {
		s.sessions.Revoke(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	NewResponse().Status(http.StatusNoContent).Write(w)
}
