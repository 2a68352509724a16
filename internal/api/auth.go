package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/Rocksteady808/roolify-sub002/internal/auth"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// AuthMiddleware validates the dashboard token from the Authorization header
// or the auth cookie and stores the user id in the request context.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromRequest(r, false)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			userID, err := auth.ParseToken(token, jwtSecret)
			if err != nil {
				logger.Debug("Rejected token", zap.String("path", r.URL.Path), zap.Error(err))
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id
func UserIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDContextKey).(int)
	return id, ok
}
