// ABOUTME: Store interface and data types for sparkpit persistence
// ABOUTME: Defines Bot records, the public projection, and the BotStore interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateHandle is returned when a bot handle is already taken
var ErrDuplicateHandle = errors.New("handle already exists")

// Bot is the full persisted bot record, including secret material. Only the
// handshake path may load this type; every other read path gets BotPublic,
// which structurally cannot carry the ciphertext or challenge fields.
type Bot struct {
	ID         string
	OwnerID    string
	Handle     string
	Name       string
	Bio        string
	Skills     []string
	ModelStack []string
	ConnectURL string
	Status     string // offline, online

	SecretCiphertext string
	SecretRotatedAt  time.Time

	// At most one live challenge per bot. Both fields are nil when no
	// handshake is in progress.
	PendingChallenge          *string
	PendingChallengeExpiresAt *time.Time

	VerifiedAt   *time.Time
	Capabilities map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// BotPublic is the projection of a bot safe for any caller. It is a
// separate type, not a scrubbed Bot, so that no new code path can leak the
// secret ciphertext or the pending challenge by forgetting a scrub step.
type BotPublic struct {
	ID         string
	OwnerID    string
	Handle     string
	Name       string
	Bio        string
	Skills     []string
	ModelStack []string
	ConnectURL string
	Status     string

	SecretRotatedAt time.Time
	VerifiedAt      *time.Time
	Capabilities    map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Public returns the safe projection of a bot record.
func (b *Bot) Public() *BotPublic {
	return &BotPublic{
		ID:              b.ID,
		OwnerID:         b.OwnerID,
		Handle:          b.Handle,
		Name:            b.Name,
		Bio:             b.Bio,
		Skills:          b.Skills,
		ModelStack:      b.ModelStack,
		ConnectURL:      b.ConnectURL,
		Status:          b.Status,
		SecretRotatedAt: b.SecretRotatedAt,
		VerifiedAt:      b.VerifiedAt,
		Capabilities:    b.Capabilities,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// BotStore defines persistence for bot records. Read methods return the
// public projection; GetBotForHandshake is the single full-record path.
type BotStore interface {
	CreateBot(ctx context.Context, bot *Bot) error
	GetBot(ctx context.Context, id string) (*BotPublic, error)
	GetBotByHandle(ctx context.Context, handle string) (*BotPublic, error)
	GetOwnedBot(ctx context.Context, id, ownerID string) (*BotPublic, error)
	ListBotsByOwner(ctx context.Context, ownerID string) ([]*BotPublic, error)

	// GetBotForHandshake loads the full record including ciphertext and
	// pending challenge. Handshake service use only.
	GetBotForHandshake(ctx context.Context, id string) (*Bot, error)

	// SetChallenge stores a new pending challenge, overwriting any prior
	// one: at most one challenge is live per bot at any instant.
	SetChallenge(ctx context.Context, botID, challenge string, expiresAt time.Time) error

	// ClearChallenge clears the pending challenge only if the stored value
	// still equals expect. Reports whether this call won the clear, so a
	// verify racing a concurrent issue loses cleanly.
	ClearChallenge(ctx context.Context, botID, expect string) (bool, error)

	// ConsumeChallenge atomically clears the pending challenge (same CAS
	// as ClearChallenge) and records the successful verification.
	ConsumeChallenge(ctx context.Context, botID, expect string, verifiedAt time.Time, capabilities map[string]any) (bool, error)

	// RotateSecret replaces the stored ciphertext, bumps
	// secret_rotated_at, and drops any pending challenge.
	RotateSecret(ctx context.Context, botID, ciphertext string, rotatedAt time.Time) error

	// DeleteBot removes a bot owned by ownerID. Returns ErrNotFound for
	// both an unknown bot and an ownership mismatch.
	DeleteBot(ctx context.Context, id, ownerID string) error

	// Close releases any resources held by the store
	Close() error
}
