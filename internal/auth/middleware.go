package auth

import (
	"context"
	"net/http"
	"strings"

	"boxoffice/internal/utils"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	userEmailKey contextKey = "user_email"
)

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// CurrentUser attaches the authenticated identity to the request context
// when a valid bearer token is present. Anonymous requests pass through.
func CurrentUser(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := bearerToken(r); raw != "" {
				if userID, email, err := tokens.ParseSessionToken(raw); err == nil {
					ctx := context.WithValue(r.Context(), userIDKey, userID)
					ctx = context.WithValue(ctx, userEmailKey, email)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLogin gates a route on an authenticated identity. Mount after
// CurrentUser.
func RequireLogin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserID(r.Context()) == "" {
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Please log in to access this page", "login required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

// UserEmail returns the authenticated user's email, or "".
func UserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(userEmailKey).(string); ok {
		return email
	}
	return ""
}
