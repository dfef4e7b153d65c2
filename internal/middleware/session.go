package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/sirupsen/logrus"

	"github.com/esperancapontalsul/hope/backend/internal/model/chat"
)

// SessionCookie is the name of the cookie carrying the signed session id.
const SessionCookie = "hope_session"

type sessionKey struct{}

// SessionStore creates, refreshes and renames server-side sessions.
type SessionStore interface {
	Ensure(ctx context.Context, id string) (chat.Session, error)
	Rotate(ctx context.Context, oldID, newID string) error
}

// Sessions binds every request to a server-side session through a signed,
// timestamped cookie. Tampered, expired or unknown cookies start a new
// session.
type Sessions struct {
	codec  *securecookie.SecureCookie
	store  SessionStore
	maxAge int
	secure bool
	logger logrus.FieldLogger
}

// NewSessions creates the session middleware. Cookies are refreshed on every
// request and stop verifying after ttl without activity.
func NewSessions(secret string, ttl time.Duration, store SessionStore, secure bool, logger logrus.FieldLogger) *Sessions {
	maxAge := int(ttl / time.Second)
	codec := securecookie.New([]byte(secret), nil)
	codec.MaxAge(maxAge)

	return &Sessions{
		codec:  codec,
		store:  store,
		maxAge: maxAge,
		secure: secure,
		logger: logger.WithField("component", "session"),
	}
}

// Handler attaches the session id to the request context.
func (s *Sessions) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.fromCookie(r)
		if !ok {
			id = uuid.NewString()
		}

		if _, err := s.store.Ensure(r.Context(), id); err != nil {
			s.logger.WithError(err).Error("failed to ensure session")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if err := s.setCookie(w, id); err != nil {
			s.logger.WithError(err).Error("failed to sign session cookie")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

// Renew moves the current session to a fresh id and reissues the cookie. It
// is called whenever a session gains privileges.
func (s *Sessions) Renew(w http.ResponseWriter, r *http.Request) (string, error) {
	newID := uuid.NewString()
	if err := s.store.Rotate(r.Context(), SessionID(r.Context()), newID); err != nil {
		return "", err
	}
	if err := s.setCookie(w, newID); err != nil {
		return "", err
	}
	return newID, nil
}

// Sign returns the cookie value for id.
func (s *Sessions) Sign(id string) (string, error) {
	return s.codec.Encode(SessionCookie, id)
}

// Verify extracts the session id from a cookie value.
func (s *Sessions) Verify(value string) (string, bool) {
	var id string
	if err := s.codec.Decode(SessionCookie, value, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

func (s *Sessions) setCookie(w http.ResponseWriter, id string) error {
	value, err := s.Sign(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   s.maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Sessions) fromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	return s.Verify(cookie.Value)
}

// WithSessionID stores id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session id attached by Sessions.Handler.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
