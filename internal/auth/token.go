// ABOUTME: HS256 signer and session token verification for human users
// ABOUTME: Session tokens are kept strictly separate from bot credentials

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Signer signs and verifies both human session tokens and bot credentials
// with a shared HS256 secret. The "kind" claim keeps the two populations
// apart: a bot credential never passes session verification and a session
// token never passes credential verification.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer with the given HS256 secret.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// MintSession creates a session token for a human user.
func (s *Signer) MintSession(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifySession validates a session token and extracts the user ID from the
// "sub" claim. Bot credentials are rejected with ErrWrongKind.
func (s *Signer) VerifySession(tokenString string) (userID string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	if kind, _ := claims["kind"].(string); kind != "" {
		return "", ErrWrongKind
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return sub, nil
}
