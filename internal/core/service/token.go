package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/natours/booking-api/internal/core/ports"
)

// tokenClaims binds a principal id to the registered iat/exp claims.
type tokenClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 credentials.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = 90 * 24 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a credential for userID.
func (m *TokenManager) Issue(userID string) (ports.IssuedToken, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := tokenClaims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return ports.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return ports.IssuedToken{Token: signed, ExpiresAt: exp}, nil
}

// Verify checks signature and expiry and returns the subject and issue time.
// Errors are the jwt package's own so the error boundary can tell expired
// from invalid credentials.
func (m *TokenManager) Verify(raw string) (string, time.Time, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", time.Time{}, err
	}
	if claims.ID == "" || claims.IssuedAt == nil {
		return "", time.Time{}, fmt.Errorf("%w: missing id or iat", jwt.ErrTokenInvalidClaims)
	}
	return claims.ID, claims.IssuedAt.Time, nil
}
