// ABOUTME: Unit tests for session token minting and verification
// ABOUTME: Tests valid tokens, invalid tokens, and expired tokens

package auth

import (
	"errors"
	"testing"
	"time"
)

func TestVerifySession_ValidToken(t *testing.T) {
	signer := NewSigner([]byte("test-secret-key-for-jwt-signing"))

	userID := "user-123"
	token, err := signer.MintSession(userID, time.Hour)
	if err != nil {
		t.Fatalf("MintSession() error = %v", err)
	}

	gotID, err := signer.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession() error = %v", err)
	}

	if gotID != userID {
		t.Errorf("VerifySession() = %q, want %q", gotID, userID)
	}
}

func TestVerifySession_InvalidToken(t *testing.T) {
	signer := NewSigner([]byte("test-secret-key-for-jwt-signing"))

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "empty token",
			token: "",
		},
		{
			name:  "garbage token",
			token: "not-a-jwt-token",
		},
		{
			name:  "malformed JWT",
			token: "header.payload.signature",
		},
		{
			name: "wrong secret",
			token: func() string {
				other := NewSigner([]byte("different-secret"))
				token, _ := other.MintSession("user-123", time.Hour)
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.VerifySession(tt.token)
			if err == nil {
				t.Error("VerifySession() should have returned an error")
			}
		})
	}
}

func TestVerifySession_ExpiredToken(t *testing.T) {
	signer := NewSigner([]byte("test-secret-key-for-jwt-signing"))

	// Generate a token that expired 1 hour ago
	token, err := signer.MintSession("user-123", -time.Hour)
	if err != nil {
		t.Fatalf("MintSession() error = %v", err)
	}

	_, err = signer.VerifySession(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("VerifySession() error = %v, want ErrExpiredToken", err)
	}
}
