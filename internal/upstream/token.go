package upstream

import "context"

type contextKey string

const tokenKey contextKey = "auth_token"

// WithToken returns a context carrying the shopper's bearer token. Every
// storefront call authenticates with the token from its context; queued
// operations capture the token at enqueue time so they can still
// authenticate after the originating request has finished.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the bearer token, or "" for guest traffic.
func TokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey).(string); ok {
		return token
	}
	return ""
}
