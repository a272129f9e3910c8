package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/snipvault/snipvault/internal/model"
)

// contextKey is unexported so only this package can read or write identity
// values in a request context.
type contextKey string

const userIDKey contextKey = "userID"

// SessionCookie is the name of the HttpOnly cookie holding the session JWT.
const SessionCookie = "session"

// APIKeyLookup resolves an issued API key to its user. Implemented by the
// auth service; declared here so the middleware doesn't import it.
type APIKeyLookup interface {
	UserByAPIKey(ctx context.Context, key string) (*model.User, error)
}

// UserLoader fetches a user record by ID. Used by RequireAdmin, which needs
// the is_admin flag, not just an identity.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireAuth enforces authentication: a valid session cookie or a valid
// `Authorization: Bearer <api key>` header. On success the user ID is stored
// in the request context; otherwise the chain stops with 401.
func RequireAuth(tokens *TokenService, keys APIKeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := identify(r, tokens, keys)
			if !ok {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the user identity when valid credentials are present
// but never blocks the request. Public read routes use this so logged-in
// users can resolve their own private snippets while anonymous requests
// still work.
func OptionalAuth(tokens *TokenService, keys APIKeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := identify(r, tokens, keys); ok {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin loads the authenticated user and stops the chain with 403
// unless they are an admin. Must be mounted inside RequireAuth.
func RequireAdmin(users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil || !user.IsAdmin {
				http.Error(w, `{"error":"forbidden","message":"admin access required"}`, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated user's ID, or (0, false) for an
// anonymous request.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// WithUserID returns a context carrying an authenticated user ID, as the
// middleware above would set it. Exported for handler tests that bypass the
// middleware chain.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// identify tries the session cookie first, then a bearer API key.
func identify(r *http.Request, tokens *TokenService, keys APIKeyLookup) (int64, bool) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if userID, err := tokens.Validate(cookie.Value); err == nil {
			return userID, true
		}
	}

	if keys != nil {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			key := strings.TrimPrefix(header, "Bearer ")
			if user, err := keys.UserByAPIKey(r.Context(), key); err == nil {
				return user.ID, true
			}
		}
	}

	return 0, false
}
