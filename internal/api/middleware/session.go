package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jamin-groot/hush-starknet/internal/auth"
)

type contextKey string

const SessionContextKey contextKey = "session"

// SessionCookieName is the cookie carrying the session token. Non-browser
// clients may send the token as a Bearer Authorization header instead.
const SessionCookieName = "hush_session"

// SessionMiddleware authenticates requests against the session tokens the
// relay issued during the challenge exchange.
type SessionMiddleware struct {
	issuer *auth.TokenIssuer
}

// NewSessionMiddleware creates a new session middleware.
func NewSessionMiddleware(issuer *auth.TokenIssuer) *SessionMiddleware {
	return &SessionMiddleware{issuer: issuer}
}

// RequireSession rejects requests without a valid session token and puts the
// session on the request context for handlers.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		session, err := m.issuer.VerifySession(token)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetSessionFromContext retrieves the authenticated session from the request
// context, or nil when the request was not authenticated.
func GetSessionFromContext(ctx context.Context) *auth.Session {
	session, ok := ctx.Value(SessionContextKey).(*auth.Session)
	if !ok {
		return nil
	}
	return session
}
