package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/amourflorals/wishsync/internal/upstream"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Identity extracts shopper identity and credentials. The storefront gateway
// validates the JWT and injects X-User-ID; the raw bearer token is kept in
// context because every storefront call replays it upstream. Requests
// without a user still pass through: reads degrade to an empty guest view
// and the engine rejects guest mutations itself.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if userID := r.Header.Get("X-User-ID"); userID != "" {
			ctx = context.WithValue(ctx, userIDKey, userID)
		}
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			ctx = upstream.WithToken(ctx, strings.TrimPrefix(auth, "Bearer "))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated shopper's ID, or "" for guests.
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}
