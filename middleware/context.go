package middleware

import (
	"context"
	"time"

	"github.com/upb/jaffa-explorer/session"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for access token claims
	ClaimsKey contextKey = "claims"
)

// Claims represents the access token claims the backend authorizes with
type Claims struct {
	UserID    int          `json:"user_id"`
	Email     string       `json:"email"`
	Role      session.Role `json:"role"`
	TokenID   string       `json:"jti"`
	ExpiresAt time.Time    `json:"exp"`
}

// GetClaimsFromContext retrieves access token claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds access token claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}
