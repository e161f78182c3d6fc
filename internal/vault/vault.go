// ABOUTME: Encryption boundary protecting bot shared secrets at rest
// ABOUTME: Derives a symmetric key from the server master secret via HKDF

package vault

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// ErrVaultFailure indicates the vault could not process stored secret
// material. This is a configuration-level fault (corrupted ciphertext, or a
// master secret that does not match the one the data was written under),
// not a recoverable per-request error. Callers must surface it loudly.
var ErrVaultFailure = errors.New("vault failure")

const (
	keySize   = 32
	nonceSize = 24

	// secretEntropy is the number of random bytes in a generated bot
	// secret: 256 bits, enough to resist offline guessing.
	secretEntropy = 32
)

// hkdfInfo namespaces the derived key so the same master secret can later
// serve other derivations without key reuse.
const hkdfInfo = "sparkpit/bot-secret-vault/v1"

// Vault encrypts and decrypts bot secrets with a single key derived from a
// server-wide master secret. No per-bot key material is ever stored.
type Vault struct {
	key [keySize]byte
}

// New derives the vault key from the master secret.
func New(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, fmt.Errorf("%w: empty master secret", ErrVaultFailure)
	}

	v := &Vault{}
	kdf := hkdf.New(sha256.New, []byte(masterSecret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, v.key[:]); err != nil {
		return nil, fmt.Errorf("%w: deriving key: %v", ErrVaultFailure, err)
	}
	return v, nil
}

// GenerateSecret produces a new URL-safe bot secret with 256 bits of
// randomness. The plaintext is handed to the caller exactly once, at
// registration; after that only the ciphertext exists.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Encrypt seals a plaintext secret and returns a URL-safe string suitable
// for storage. The random nonce is prefixed to the sealed box.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("reading nonce: %w", err)
	}

	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &v.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

// Decrypt opens a stored ciphertext. Every failure mode is ErrVaultFailure:
// the stored value is unreadable under the configured master secret and no
// retry will fix it.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	box, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding ciphertext: %v", ErrVaultFailure, err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: ciphertext too short", ErrVaultFailure)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plaintext, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", fmt.Errorf("%w: ciphertext does not authenticate", ErrVaultFailure)
	}
	return string(plaintext), nil
}
