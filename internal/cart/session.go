package cart

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const visitorIDKey contextKey = "visitor_id"

const visitorCookie = "bo_visitor"

// SessionMiddleware assigns each visitor an opaque id carried in a cookie.
// The id keys the visitor's cart in Redis.
func SessionMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var visitorID string
			if c, err := r.Cookie(visitorCookie); err == nil && c.Value != "" {
				visitorID = c.Value
			} else {
				visitorID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     visitorCookie,
					Value:    visitorID,
					Path:     "/",
					Expires:  time.Now().Add(30 * 24 * time.Hour),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), visitorIDKey, visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VisitorID returns the visitor id set by SessionMiddleware.
func VisitorID(ctx context.Context) string {
	if id, ok := ctx.Value(visitorIDKey).(string); ok {
		return id
	}
	return ""
}
