package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/upb/jaffa-explorer/middleware"
	"github.com/upb/jaffa-explorer/models"
	"github.com/upb/jaffa-explorer/session"
)

// Token types carried in the token_type claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken is returned when the token is malformed, badly signed or expired
	ErrInvalidToken = errors.New("invalid token")

	// ErrWrongTokenType is returned when a refresh token is used as an access token or vice versa
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims represents the claims of tokens minted by TokenIssuer
type Claims struct {
	jwt.RegisteredClaims
	UserID    int          `json:"user_id"`
	Email     string       `json:"email"`
	Role      session.Role `json:"role"`
	TokenType string       `json:"token_type"`
}

// TokenPair is the body returned by login endpoints
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenIssuer mints and validates HS256 access and refresh tokens
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. now may be nil.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        now,
	}
}

// Issue mints an access and refresh token for user signed in as role
func (i *TokenIssuer) Issue(user *models.User, role session.Role) (*TokenPair, error) {
	access, err := i.sign(user.ID, user.Email, role, TokenTypeAccess, i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sign(user.ID, user.Email, role, TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh validates a refresh token and mints a new access token for the
// same user and role. The refresh token is not rotated.
func (i *TokenIssuer) Refresh(refreshToken string) (string, *Claims, error) {
	claims, err := i.parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", nil, err
	}
	access, err := i.sign(claims.UserID, claims.Email, claims.Role, TokenTypeAccess, i.accessTTL)
	if err != nil {
		return "", nil, err
	}
	return access, claims, nil
}

// ValidateToken implements middleware.TokenValidator for access tokens
func (i *TokenIssuer) ValidateToken(_ context.Context, token string) (*middleware.Claims, error) {
	claims, err := i.parse(token, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (i *TokenIssuer) sign(userID int, email string, role session.Role, tokenType string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: tokenType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (i *TokenIssuer) parse(token, tokenType string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, claims.TokenType, tokenType)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}

var _ middleware.TokenValidator = (*TokenIssuer)(nil)
