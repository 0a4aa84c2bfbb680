package mediatoken

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	pkgerrors "lawlink-chat/pkg/errors"
)

// GrantClaims is the room-scoped media grant carried by a credential
type GrantClaims struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Kind   string `json:"kind"` // audio, video
	jwt.RegisteredClaims
}

// Issuer mints and redeems single-use media credentials. It backs the dev
// harness's token service endpoint; production uses an external service with
// the same contract.
type Issuer struct {
	secret   string
	validity time.Duration

	mu   sync.Mutex
	used map[string]struct{} // redeemed jti values
}

// NewIssuer creates an issuer signing credentials with secret
func NewIssuer(secret string, validity time.Duration) *Issuer {
	return &Issuer{
		secret:   secret,
		validity: validity,
		used:     make(map[string]struct{}),
	}
}

// Issue mints a room-scoped media credential for one join attempt
func (i *Issuer) Issue(roomID, userID, kind string) (string, error) {
	now := time.Now()
	claims := &GrantClaims{
		RoomID: roomID,
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "lawlink-media",
			Subject:   userID,
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(i.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign media credential: %w", err)
	}
	return signed, nil
}

// Redeem validates a credential and consumes it. A credential redeems exactly
// once; a second redemption fails.
func (i *Issuer) Redeem(tokenString string) (*GrantClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &GrantClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(i.secret), nil
	})
	if err != nil {
		return nil, pkgerrors.InvalidTokenError(err.Error())
	}

	claims, ok := token.Claims.(*GrantClaims)
	if !ok || !token.Valid {
		return nil, pkgerrors.InvalidTokenError("malformed media credential")
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, redeemed := i.used[claims.ID]; redeemed {
		return nil, pkgerrors.InvalidTokenError("media credential already consumed")
	}
	i.used[claims.ID] = struct{}{}

	return claims, nil
}
