package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is one role's token pair.
type Credential struct {
	Role         Role      `json:"role"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CanRefresh reports whether a refresh exchange can be attempted.
func (c *Credential) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

// ExpiresAt reads the exp claim of the access token without verifying it.
// Opaque (non-JWT) tokens return the zero time.
func (c *Credential) ExpiresAt() time.Time {
	if c == nil || c.AccessToken == "" {
		return time.Time{}
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// WithAccessToken returns a copy carrying a rotated access token. The refresh
// token is kept unless a new one is supplied.
func (c Credential) WithAccessToken(access, refresh string, now time.Time) Credential {
	c.AccessToken = access
	if refresh != "" {
		c.RefreshToken = refresh
	}
	c.UpdatedAt = now
	return c
}
