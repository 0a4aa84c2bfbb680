package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	pkgerrors "lawlink-chat/pkg/errors"
)

// Claims represents the auth token claims structure
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Provider resolves the local user's identity and mints the short-lived auth
// tokens the credential exchange authenticates with
type Provider struct {
	userID      string
	displayName string
	secret      string
	tokenTTL    time.Duration
}

// NewProvider creates an identity provider for one client session
func NewProvider(userID, displayName, secret string, tokenTTL time.Duration) *Provider {
	return &Provider{
		userID:      userID,
		displayName: displayName,
		secret:      secret,
		tokenTTL:    tokenTTL,
	}
}

// UserID returns the local user's id
func (p *Provider) UserID() string {
	return p.userID
}

// DisplayName returns the local user's display name
func (p *Provider) DisplayName() string {
	return p.displayName
}

// AuthToken returns a signed short-lived auth token for the local user
func (p *Provider) AuthToken(ctx context.Context) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:      p.userID,
		DisplayName: p.displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "lawlink-chat",
			Subject:   p.userID,
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(p.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign auth token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed auth token and returns its claims
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, pkgerrors.InvalidTokenError(err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, pkgerrors.InvalidTokenError("malformed auth token")
	}
	return claims, nil
}
