package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// DefaultSessionDuration is how long a session lasts without activity.
	DefaultSessionDuration = 30 * 24 * time.Hour
)

// Session identifies the authenticated user of a request.
type Session struct {
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

type sessionClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"usr"`
	jwt.RegisteredClaims
}

// SessionManager keeps sessions in an HMAC-signed cookie. Nothing is stored
// server side; changing the secret invalidates every session.
type SessionManager struct {
	secret       []byte
	ttl          time.Duration
	secureCookie bool
	now          func() time.Time
}

// NewSessionManager creates a manager signing cookies with secret.
// A non-positive ttl falls back to DefaultSessionDuration.
func NewSessionManager(secret string, ttl time.Duration, secureCookie bool) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionDuration
	}
	return &SessionManager{
		secret:       []byte(secret),
		ttl:          ttl,
		secureCookie: secureCookie,
		now:          time.Now,
	}
}

// Start binds userID and username to the response's session cookie.
func (m *SessionManager) Start(w http.ResponseWriter, userID int64, username string) error {
	now := m.now()
	claims := sessionClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Current returns the request's session. ok is false when the cookie is
// missing, tampered with or expired.
func (m *SessionManager) Current(r *http.Request) (s Session, ok bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, false
	}

	var claims sessionClaims
	token, err := jwt.ParseWithClaims(cookie.Value, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid || claims.UserID == 0 {
		return Session{}, false
	}

	return Session{
		UserID:    claims.UserID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	}, true
}

// Renew re-issues the cookie once s has passed the halfway point of its
// lifetime, so active users stay logged in while idle sessions expire.
func (m *SessionManager) Renew(w http.ResponseWriter, s Session) (bool, error) {
	if s.ExpiresAt.Sub(m.now()) >= m.ttl/2 {
		return false, nil
	}
	if err := m.Start(w, s.UserID, s.Username); err != nil {
		return false, err
	}
	return true, nil
}

// End clears the session cookie.
func (m *SessionManager) End(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
