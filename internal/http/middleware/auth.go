package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/taskops/reporting-service/internal/upstream"
)

const (
	currentUserContextKey contextKey = "current_user"
	tokenContextKey       contextKey = "auth_token"
)

// TokenVerifier checks a bearer credential against the User service.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*upstream.User, bool)
}

// Auth verifies the bearer token on every /api/ request and stores the
// authenticated user plus the raw token (forwarded later on fan-out calls)
// in the request context.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			authorization := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authorization, prefix) {
				writeUnauthorized(w, r)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
			if token == "" {
				writeUnauthorized(w, r)
				return
			}

			user, ok := verifier.VerifyToken(r.Context(), token)
			if !ok {
				writeUnauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), currentUserContextKey, user)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCurrentUser returns the authenticated requester, if any.
func GetCurrentUser(ctx context.Context) (*upstream.User, bool) {
	user, ok := ctx.Value(currentUserContextKey).(*upstream.User)
	return user, ok && user != nil
}

// GetToken returns the raw bearer credential for upstream forwarding.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"token is invalid or expired"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
}
