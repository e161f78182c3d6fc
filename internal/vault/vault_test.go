// ABOUTME: Unit tests for the bot secret vault
// ABOUTME: Covers round-trips, master secret mismatch, and corrupted ciphertext

package vault

import (
	"errors"
	"strings"
	"testing"
)

func TestVault_RoundTrip(t *testing.T) {
	v, err := New("test-master-secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	plaintext := "the-bot-secret"
	ciphertext, err := v.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if strings.Contains(ciphertext, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	got, err := v.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if got != plaintext {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestVault_EncryptIsRandomized(t *testing.T) {
	v, err := New("test-master-secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c1, err := v.Encrypt("same-secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	c2, err := v.Encrypt("same-secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if c1 == c2 {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestVault_WrongMasterSecret(t *testing.T) {
	v1, err := New("master-one")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	v2, err := New("master-two")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ciphertext, err := v1.Encrypt("the-bot-secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	_, err = v2.Decrypt(ciphertext)
	if !errors.Is(err, ErrVaultFailure) {
		t.Errorf("Decrypt() error = %v, want ErrVaultFailure", err)
	}
}

func TestVault_CorruptedCiphertext(t *testing.T) {
	v, err := New("test-master-secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name       string
		ciphertext string
	}{
		{name: "empty", ciphertext: ""},
		{name: "not base64", ciphertext: "!!!not-base64!!!"},
		{name: "too short", ciphertext: "c2hvcnQ"},
		{name: "random garbage", ciphertext: "YWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFhYWFh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(tt.ciphertext)
			if !errors.Is(err, ErrVaultFailure) {
				t.Errorf("Decrypt() error = %v, want ErrVaultFailure", err)
			}
		})
	}
}

func TestVault_TamperedCiphertext(t *testing.T) {
	v, err := New("test-master-secret")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ciphertext, err := v.Encrypt("the-bot-secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	// Flip one character near the end (inside the sealed box)
	tampered := []byte(ciphertext)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = v.Decrypt(string(tampered))
	if !errors.Is(err, ErrVaultFailure) {
		t.Errorf("Decrypt() error = %v, want ErrVaultFailure", err)
	}
}

func TestVault_EmptyMasterSecret(t *testing.T) {
	_, err := New("")
	if !errors.Is(err, ErrVaultFailure) {
		t.Errorf("New() error = %v, want ErrVaultFailure", err)
	}
}

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		secret, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret() error = %v", err)
		}

		// 32 bytes base64url without padding is 43 characters
		if len(secret) != 43 {
			t.Errorf("GenerateSecret() length = %d, want 43", len(secret))
		}
		if seen[secret] {
			t.Error("GenerateSecret() produced a duplicate")
		}
		seen[secret] = true
	}
}
