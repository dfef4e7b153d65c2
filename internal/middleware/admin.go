package middleware

import (
	"context"
	"net/http"
)

// AdminChecker reports whether a session is logged into the admin area.
type AdminChecker interface {
	IsAdmin(ctx context.Context, id string) bool
}

// RequireAdmin redirects sessions that are not logged in to loginPath.
// It must run after Sessions.Handler.
func RequireAdmin(checker AdminChecker, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.IsAdmin(r.Context(), SessionID(r.Context())) {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
