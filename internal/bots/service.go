// ABOUTME: Bot identity service: registration, challenge issuance, handshake verification
// ABOUTME: Orchestrates the vault, store, credential signer, and audit emission

package bots

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sparkpit/sparkpit/internal/auth"
	"github.com/sparkpit/sparkpit/internal/store"
	"github.com/sparkpit/sparkpit/internal/vault"
)

const (
	// DefaultChallengeTTL is how long an issued challenge stays valid.
	DefaultChallengeTTL = 10 * time.Minute

	// DefaultCredentialTTL is the validity window of a minted credential.
	// Long relative to the challenge window: re-handshaking is expensive.
	DefaultCredentialTTL = 30 * 24 * time.Hour

	// challengeEntropy is the number of random bytes in a challenge:
	// 128 bits, unpredictable and carrying no bot or secret structure.
	challengeEntropy = 16
)

// Store is the persistence the service needs: bot records plus the audit
// sink it emits protocol facts to.
type Store interface {
	store.BotStore
	store.AuditStore
}

// Profile carries the owner-supplied descriptive fields for a bot.
type Profile struct {
	Name       string
	Bio        string
	Skills     []string
	ModelStack []string
	ConnectURL string
}

// HandshakeRequest is a bot's response to a pending challenge.
type HandshakeRequest struct {
	BotID        string
	Challenge    string
	Signature    string
	Capabilities map[string]any
	// Declared scope for the credential: room/channel IDs the bot intends
	// to act within. Empty means unrestricted for that dimension.
	RoomIDs    []string
	ChannelIDs []string
}

// HandshakeResult is the outcome of a successful handshake.
type HandshakeResult struct {
	Credential string
	Scope      auth.Scope
	ExpiresAt  time.Time
}

// Service implements the bot identity and authentication protocol.
type Service struct {
	store  Store
	vault  *vault.Vault
	signer *auth.Signer
	logger *slog.Logger

	challengeTTL  time.Duration
	credentialTTL time.Duration

	now func() time.Time
}

// NewService creates the bot identity service. Zero TTLs fall back to the
// defaults (10 minutes for challenges, 30 days for credentials).
func NewService(st Store, v *vault.Vault, signer *auth.Signer, challengeTTL, credentialTTL time.Duration) *Service {
	if challengeTTL <= 0 {
		challengeTTL = DefaultChallengeTTL
	}
	if credentialTTL <= 0 {
		credentialTTL = DefaultCredentialTTL
	}
	return &Service{
		store:         st,
		vault:         v,
		signer:        signer,
		logger:        slog.Default().With("component", "bots"),
		challengeTTL:  challengeTTL,
		credentialTTL: credentialTTL,
		now:           time.Now,
	}
}

// Register creates a new bot owned by ownerID and returns its public record
// together with the plaintext secret. This is the only time the plaintext
// is ever returned; afterwards only the ciphertext exists.
func (s *Service) Register(ctx context.Context, ownerID, handle string, profile Profile) (*store.BotPublic, string, error) {
	secret, err := vault.GenerateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generating bot secret: %w", err)
	}
	ciphertext, err := s.vault.Encrypt(secret)
	if err != nil {
		return nil, "", fmt.Errorf("encrypting bot secret: %w", err)
	}

	bot := &store.Bot{
		OwnerID:          ownerID,
		Handle:           handle,
		Name:             profile.Name,
		Bio:              profile.Bio,
		Skills:           profile.Skills,
		ModelStack:       profile.ModelStack,
		ConnectURL:       profile.ConnectURL,
		SecretCiphertext: ciphertext,
	}
	if bot.Name == "" {
		bot.Name = handle
	}

	if err := s.store.CreateBot(ctx, bot); err != nil {
		if errors.Is(err, store.ErrDuplicateHandle) {
			return nil, "", ErrHandleTaken
		}
		return nil, "", fmt.Errorf("creating bot: %w", err)
	}

	_ = s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorType:  store.ActorUser,
		ActorID:    ownerID,
		Action:     store.AuditBotRegistered,
		TargetType: "bot",
		TargetID:   bot.ID,
		Detail:     map[string]any{"handle": handle},
	})

	s.logger.Info("bot registered", "bot_id", bot.ID, "handle", handle, "owner", ownerID)
	return bot.Public(), secret, nil
}

// RequestChallenge issues a fresh single-use challenge for a bot. Only the
// bot's owner may request one; an ownership mismatch reports ErrNotFound so
// callers cannot probe for other owners' bot IDs. Any previously pending
// challenge is invalidated.
func (s *Service) RequestChallenge(ctx context.Context, botID, requestedBy string) (string, time.Time, error) {
	if _, err := s.store.GetOwnedBot(ctx, botID, requestedBy); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", time.Time{}, ErrNotFound
		}
		return "", time.Time{}, fmt.Errorf("looking up bot: %w", err)
	}

	buf := make([]byte, challengeEntropy)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("reading randomness: %w", err)
	}
	challenge := base64.RawURLEncoding.EncodeToString(buf)
	expiresAt := s.now().Add(s.challengeTTL).UTC()

	if err := s.store.SetChallenge(ctx, botID, challenge, expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("storing challenge: %w", err)
	}

	_ = s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorType:  store.ActorUser,
		ActorID:    requestedBy,
		Action:     store.AuditChallengeIssued,
		TargetType: "bot",
		TargetID:   botID,
		Detail:     map[string]any{"expires_at": expiresAt.Format(time.RFC3339)},
	})

	return challenge, expiresAt, nil
}

// SubmitHandshake verifies that the caller possesses the bot's secret and,
// on success, mints a scoped credential. Preconditions are checked in
// order; the first failure determines the returned error.
//
// A wrong signature invalidates the pending challenge: a single live
// challenge can never absorb more than one verification attempt, so it
// cannot be brute-forced online. The bot must request a fresh challenge
// after any failed attempt.
func (s *Service) SubmitHandshake(ctx context.Context, req HandshakeRequest) (*HandshakeResult, error) {
	bot, err := s.store.GetBotForHandshake(ctx, req.BotID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.failHandshake(ctx, req.BotID, ErrNotFound)
		}
		return nil, fmt.Errorf("looking up bot: %w", err)
	}

	if bot.PendingChallenge == nil {
		return nil, s.failHandshake(ctx, req.BotID, ErrNoPendingChallenge)
	}
	if bot.PendingChallengeExpiresAt == nil || !s.now().Before(*bot.PendingChallengeExpiresAt) {
		return nil, s.failHandshake(ctx, req.BotID, ErrChallengeExpired)
	}
	if req.Challenge != *bot.PendingChallenge {
		// The submitted string is not the live challenge (a stale or
		// concurrent handshake attempt). The live challenge stays intact.
		return nil, s.failHandshake(ctx, req.BotID, ErrChallengeMismatch)
	}

	secret, err := s.vault.Decrypt(bot.SecretCiphertext)
	if err != nil {
		// Vault failure is a configuration fault, never an auth failure.
		return nil, fmt.Errorf("decrypting bot secret: %w", err)
	}

	if !hmac.Equal([]byte(Signature(secret, req.Challenge)), []byte(req.Signature)) {
		// One-shot semantics: burn the challenge so it cannot absorb
		// further guesses. Ignore a lost race; the challenge is gone
		// either way.
		_, _ = s.store.ClearChallenge(ctx, req.BotID, req.Challenge)
		return nil, s.failHandshake(ctx, req.BotID, ErrInvalidSignature)
	}

	won, err := s.store.ConsumeChallenge(ctx, req.BotID, req.Challenge, s.now().UTC(), req.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("consuming challenge: %w", err)
	}
	if !won {
		// A concurrent issue replaced the challenge between our read and
		// the compare-and-set. This attempt loses.
		return nil, s.failHandshake(ctx, req.BotID, ErrChallengeMismatch)
	}

	scope := auth.Scope{
		Rooms:    auth.RestrictedTo(req.RoomIDs...),
		Channels: auth.RestrictedTo(req.ChannelIDs...),
	}
	credential, err := s.signer.MintBotCredential(req.BotID, scope, s.credentialTTL)
	if err != nil {
		return nil, fmt.Errorf("minting credential: %w", err)
	}
	expiresAt := s.now().Add(s.credentialTTL).UTC()

	_ = s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorType:  store.ActorBot,
		ActorID:    req.BotID,
		Action:     store.AuditHandshakeVerified,
		TargetType: "bot",
		TargetID:   req.BotID,
		Detail: map[string]any{
			"rooms":    len(req.RoomIDs),
			"channels": len(req.ChannelIDs),
		},
	})

	s.logger.Info("handshake verified", "bot_id", req.BotID)
	return &HandshakeResult{
		Credential: credential,
		Scope:      scope,
		ExpiresAt:  expiresAt,
	}, nil
}

// RotateSecret issues a new secret for a bot, invalidating the old one and
// any pending challenge. Returns the new plaintext, again exactly once.
func (s *Service) RotateSecret(ctx context.Context, botID, requestedBy string) (string, error) {
	if _, err := s.store.GetOwnedBot(ctx, botID, requestedBy); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("looking up bot: %w", err)
	}

	secret, err := vault.GenerateSecret()
	if err != nil {
		return "", fmt.Errorf("generating bot secret: %w", err)
	}
	ciphertext, err := s.vault.Encrypt(secret)
	if err != nil {
		return "", fmt.Errorf("encrypting bot secret: %w", err)
	}

	if err := s.store.RotateSecret(ctx, botID, ciphertext, s.now().UTC()); err != nil {
		return "", fmt.Errorf("rotating secret: %w", err)
	}

	_ = s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorType:  store.ActorUser,
		ActorID:    requestedBy,
		Action:     store.AuditSecretRotated,
		TargetType: "bot",
		TargetID:   botID,
	})

	s.logger.Info("bot secret rotated", "bot_id", botID)
	return secret, nil
}

// Delete removes a bot. Only the owner may delete; a mismatch reports
// ErrNotFound. Credentials minted for the bot die with it: AuthorizeAction
// rejects a credential whose subject no longer exists.
func (s *Service) Delete(ctx context.Context, botID, requestedBy string) error {
	if err := s.store.DeleteBot(ctx, botID, requestedBy); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting bot: %w", err)
	}

	_ = s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorType:  store.ActorUser,
		ActorID:    requestedBy,
		Action:     store.AuditBotDeleted,
		TargetType: "bot",
		TargetID:   botID,
	})

	s.logger.Info("bot deleted", "bot_id", botID, "owner", requestedBy)
	return nil
}

// AuthorizeAction gates a bot-initiated action: it verifies the presented
// credential, confirms the subject bot still exists, and checks the target
// against the credential's scope. The caller is responsible for the
// separate room membership check; scope narrows membership, it does not
// substitute for it.
func (s *Service) AuthorizeAction(ctx context.Context, credential, targetRoomID, targetChannelID string) (*auth.Credential, error) {
	cred, err := s.signer.VerifyBotCredential(credential)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetBot(ctx, cred.BotID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("looking up bot: %w", err)
	}

	if err := cred.Scope.Authorize(targetRoomID, targetChannelID); err != nil {
		return nil, err
	}
	return cred, nil
}

// failHandshake records a failed verification in the audit trail and
// returns the typed error.
func (s *Service) failHandshake(ctx context.Context, botID string, reason error) error {
	_ = s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorType:  store.ActorBot,
		ActorID:    botID,
		Action:     store.AuditHandshakeFailed,
		TargetType: "bot",
		TargetID:   botID,
		Detail:     map[string]any{"reason": reason.Error()},
	})
	s.logger.Warn("handshake failed", "bot_id", botID, "reason", reason)
	return reason
}

// Signature computes the handshake signature: an HMAC-SHA256 over the
// challenge string keyed by the bot's secret, hex encoded. The bot computes
// this out-of-band with the secret it was handed at registration; the
// secret itself never crosses the wire.
func Signature(secret, challenge string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}
