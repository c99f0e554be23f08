package middleware

import (
	"context"
	"net/http"
	"strings"

	"syncpad/internal/models"
)

// TokenValidator is what this middleware needs from the auth service
type TokenValidator interface {
	Validate(token string) (*models.UserInfo, error)
}

const userKey contextKey = "auth_user"

// AuthMiddleware validates the bearer token and installs the caller's
// identity in the request context. Identity is validated once per request;
// handlers read it back with UserFromContext.
func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				http.Error(w, "Authentication error", http.StatusUnauthorized)
				return
			}

			user, err := tokens.Validate(token)
			if err != nil {
				http.Error(w, "Authentication error", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from the Authorization header, or from the
// auth.token query key used by the WebSocket handshake.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
	}
	return r.URL.Query().Get("auth.token")
}

// UserFromContext returns the authenticated identity, or nil
func UserFromContext(ctx context.Context) *models.UserInfo {
	if user, ok := ctx.Value(userKey).(*models.UserInfo); ok {
		return user
	}
	return nil
}
