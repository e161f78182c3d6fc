// ABOUTME: Scoped credential minting and verification for bots
// ABOUTME: Self-describing HS256 JWTs carrying subject, kind, scope, expiry

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrWrongKind is returned when a token of one kind is presented where
// another is required: bot credentials and human session tokens are not
// interchangeable.
var ErrWrongKind = errors.New("wrong token kind")

// KindBot marks a credential issued to a bot after a successful handshake.
const KindBot = "bot"

// Credential is the decoded form of a bot's scoped credential. It is
// self-describing: verifying a presented token needs no state lookup beyond
// confirming the subject bot still exists.
type Credential struct {
	BotID     string
	Scope     Scope
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// scopeClaim is the wire encoding of a Scope. Empty (absent) lists mean
// unrestricted for that dimension.
type scopeClaim struct {
	Rooms    []string `json:"rooms"`
	Channels []string `json:"channels"`
}

type botClaims struct {
	Kind  string     `json:"kind"`
	Scope scopeClaim `json:"scope"`
	jwt.RegisteredClaims
}

// MintBotCredential issues a signed, time-boxed credential for a bot.
// The scope is the bot's declared intent from handshake time; it is not
// validated against room membership here. Legitimacy is enforced at use
// time by Scope.Authorize plus the data layer's own membership checks.
func (s *Signer) MintBotCredential(botID string, scope Scope, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := botClaims{
		Kind: KindBot,
		Scope: scopeClaim{
			Rooms:    scope.Rooms.IDs(),
			Channels: scope.Channels.IDs(),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   botID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyBotCredential validates a presented credential and decodes its
// scope. Tokens without kind "bot" (human session tokens in particular)
// are rejected with ErrWrongKind.
func (s *Signer) VerifyBotCredential(tokenString string) (*Credential, error) {
	var claims botClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Kind != KindBot {
		return nil, ErrWrongKind
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	cred := &Credential{
		BotID: claims.Subject,
		Scope: Scope{
			Rooms:    RestrictedTo(claims.Scope.Rooms...),
			Channels: RestrictedTo(claims.Scope.Channels...),
		},
	}
	if claims.IssuedAt != nil {
		cred.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}
