// ABOUTME: Bot record store methods for registration, lookup, and challenge state
// ABOUTME: Challenge mutations are single atomic statements with compare-and-set

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const botColumns = `id, owner_id, handle, name, bio, skills_json, model_stack_json,
	connect_url, status, secret_ciphertext, secret_rotated_at,
	pending_challenge, pending_challenge_expires_at, verified_at,
	capabilities_json, created_at, updated_at`

// CreateBot inserts a new bot record.
// Returns ErrDuplicateHandle if the handle is already taken.
func (s *SQLiteStore) CreateBot(ctx context.Context, bot *Bot) error {
	if bot.ID == "" {
		bot.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	if bot.UpdatedAt.IsZero() {
		bot.UpdatedAt = now
	}
	if bot.SecretRotatedAt.IsZero() {
		bot.SecretRotatedAt = now
	}
	if bot.Status == "" {
		bot.Status = "offline"
	}

	skillsJSON, err := marshalStrings(bot.Skills)
	if err != nil {
		return fmt.Errorf("marshaling skills: %w", err)
	}
	stackJSON, err := marshalStrings(bot.ModelStack)
	if err != nil {
		return fmt.Errorf("marshaling model stack: %w", err)
	}

	query := `
		INSERT INTO bots (id, owner_id, handle, name, bio, skills_json, model_stack_json,
			connect_url, status, secret_ciphertext, secret_rotated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		bot.ID,
		bot.OwnerID,
		bot.Handle,
		bot.Name,
		bot.Bio,
		skillsJSON,
		stackJSON,
		bot.ConnectURL,
		bot.Status,
		bot.SecretCiphertext,
		bot.SecretRotatedAt.Format(time.RFC3339),
		bot.CreatedAt.Format(time.RFC3339),
		bot.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateHandle
		}
		return fmt.Errorf("inserting bot: %w", err)
	}

	s.logger.Debug("created bot", "id", bot.ID, "handle", bot.Handle, "owner", bot.OwnerID)
	return nil
}

// GetBot retrieves the public projection of a bot by ID.
func (s *SQLiteStore) GetBot(ctx context.Context, id string) (*BotPublic, error) {
	bot, err := s.getBot(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	return bot.Public(), nil
}

// GetBotByHandle retrieves the public projection of a bot by handle.
func (s *SQLiteStore) GetBotByHandle(ctx context.Context, handle string) (*BotPublic, error) {
	bot, err := s.getBot(ctx, `WHERE handle = ?`, handle)
	if err != nil {
		return nil, err
	}
	return bot.Public(), nil
}

// GetOwnedBot retrieves a bot only if it belongs to the given owner.
// Returns ErrNotFound for both an unknown bot and an ownership mismatch, so
// callers cannot probe for other owners' bot IDs.
func (s *SQLiteStore) GetOwnedBot(ctx context.Context, id, ownerID string) (*BotPublic, error) {
	bot, err := s.getBot(ctx, `WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return nil, err
	}
	return bot.Public(), nil
}

// GetBotForHandshake loads the full bot record including secret ciphertext
// and pending challenge. This is the only full-record read path and exists
// solely for the handshake service.
func (s *SQLiteStore) GetBotForHandshake(ctx context.Context, id string) (*Bot, error) {
	return s.getBot(ctx, `WHERE id = ?`, id)
}

// ListBotsByOwner returns the public projections of all bots owned by a user.
func (s *SQLiteStore) ListBotsByOwner(ctx context.Context, ownerID string) ([]*BotPublic, error) {
	query := `SELECT ` + botColumns + ` FROM bots WHERE owner_id = ? ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying bots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bots []*BotPublic
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, bot.Public())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bot rows: %w", err)
	}
	return bots, nil
}

// SetChallenge stores a new pending challenge for a bot, unconditionally
// overwriting any prior one. Issuing a new challenge invalidates any
// handshake already in flight for an earlier challenge.
func (s *SQLiteStore) SetChallenge(ctx context.Context, botID, challenge string, expiresAt time.Time) error {
	query := `
		UPDATE bots
		SET pending_challenge = ?, pending_challenge_expires_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		challenge,
		expiresAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		botID,
	)
	if err != nil {
		return fmt.Errorf("setting challenge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("set challenge", "bot_id", botID, "expires_at", expiresAt)
	return nil
}

// ClearChallenge clears the pending challenge only if the stored value
// still equals expect. Returns false when another issue call replaced the
// challenge in the meantime; the caller's handshake attempt has lost.
func (s *SQLiteStore) ClearChallenge(ctx context.Context, botID, expect string) (bool, error) {
	query := `
		UPDATE bots
		SET pending_challenge = NULL, pending_challenge_expires_at = NULL, updated_at = ?
		WHERE id = ? AND pending_challenge = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		time.Now().UTC().Format(time.RFC3339),
		botID,
		expect,
	)
	if err != nil {
		return false, fmt.Errorf("clearing challenge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// ConsumeChallenge atomically clears the pending challenge and records the
// successful verification: verified_at, declared capabilities, and online
// status. The same compare-and-set as ClearChallenge guards against a
// concurrent issue call.
func (s *SQLiteStore) ConsumeChallenge(ctx context.Context, botID, expect string, verifiedAt time.Time, capabilities map[string]any) (bool, error) {
	var capsJSON *string
	if capabilities != nil {
		data, err := json.Marshal(capabilities)
		if err != nil {
			return false, fmt.Errorf("marshaling capabilities: %w", err)
		}
		str := string(data)
		capsJSON = &str
	}

	query := `
		UPDATE bots
		SET pending_challenge = NULL,
			pending_challenge_expires_at = NULL,
			verified_at = ?,
			capabilities_json = COALESCE(?, capabilities_json),
			status = 'online',
			updated_at = ?
		WHERE id = ? AND pending_challenge = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		verifiedAt.UTC().Format(time.RFC3339),
		capsJSON,
		time.Now().UTC().Format(time.RFC3339),
		botID,
		expect,
	)
	if err != nil {
		return false, fmt.Errorf("consuming challenge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 1 {
		s.logger.Debug("consumed challenge", "bot_id", botID)
	}
	return rowsAffected == 1, nil
}

// RotateSecret replaces the stored secret ciphertext. Any pending challenge
// is dropped: it was bound to the old secret.
func (s *SQLiteStore) RotateSecret(ctx context.Context, botID, ciphertext string, rotatedAt time.Time) error {
	query := `
		UPDATE bots
		SET secret_ciphertext = ?,
			secret_rotated_at = ?,
			pending_challenge = NULL,
			pending_challenge_expires_at = NULL,
			updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		ciphertext,
		rotatedAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		botID,
	)
	if err != nil {
		return fmt.Errorf("rotating secret: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("rotated secret", "bot_id", botID)
	return nil
}

// DeleteBot removes a bot record, ownership-scoped like GetOwnedBot.
func (s *SQLiteStore) DeleteBot(ctx context.Context, id, ownerID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bots WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting bot: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted bot", "id", id)
	return nil
}

// getBot runs a single-row bot query with the given WHERE clause.
func (s *SQLiteStore) getBot(ctx context.Context, where string, args ...any) (*Bot, error) {
	query := `SELECT ` + botColumns + ` FROM bots ` + where

	row := s.db.QueryRowContext(ctx, query, args...)
	bot, err := scanBot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// scanBot scans a row into a Bot.
func scanBot(scanner interface{ Scan(dest ...any) error }) (*Bot, error) {
	var bot Bot
	var skillsJSON, stackJSON, capsJSON sql.NullString
	var pendingChallenge, pendingExpires, verifiedAt sql.NullString
	var rotatedAt, createdAt, updatedAt string

	err := scanner.Scan(
		&bot.ID,
		&bot.OwnerID,
		&bot.Handle,
		&bot.Name,
		&bot.Bio,
		&skillsJSON,
		&stackJSON,
		&bot.ConnectURL,
		&bot.Status,
		&bot.SecretCiphertext,
		&rotatedAt,
		&pendingChallenge,
		&pendingExpires,
		&verifiedAt,
		&capsJSON,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bot row: %w", err)
	}

	bot.SecretRotatedAt = parseTimestamp(rotatedAt, bot.ID, "secret_rotated_at")
	bot.CreatedAt = parseTimestamp(createdAt, bot.ID, "created_at")
	bot.UpdatedAt = parseTimestamp(updatedAt, bot.ID, "updated_at")

	if pendingChallenge.Valid {
		bot.PendingChallenge = &pendingChallenge.String
	}
	if pendingExpires.Valid {
		t := parseTimestamp(pendingExpires.String, bot.ID, "pending_challenge_expires_at")
		bot.PendingChallengeExpiresAt = &t
	}
	if verifiedAt.Valid {
		t := parseTimestamp(verifiedAt.String, bot.ID, "verified_at")
		bot.VerifiedAt = &t
	}

	if skillsJSON.Valid {
		if err := json.Unmarshal([]byte(skillsJSON.String), &bot.Skills); err != nil {
			return nil, fmt.Errorf("unmarshaling skills: %w", err)
		}
	}
	if stackJSON.Valid {
		if err := json.Unmarshal([]byte(stackJSON.String), &bot.ModelStack); err != nil {
			return nil, fmt.Errorf("unmarshaling model stack: %w", err)
		}
	}
	if capsJSON.Valid {
		if err := json.Unmarshal([]byte(capsJSON.String), &bot.Capabilities); err != nil {
			return nil, fmt.Errorf("unmarshaling capabilities: %w", err)
		}
	}

	return &bot, nil
}

// parseTimestamp parses an RFC3339 column, logging rather than failing on
// malformed data.
func parseTimestamp(value, botID, column string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		slog.Warn("failed to parse bot timestamp", "bot_id", botID, "column", column, "error", err)
		return time.Time{}
	}
	return parsed
}

// marshalStrings encodes a string slice as JSON, returning NULL for nil.
func marshalStrings(values []string) (sql.NullString, error) {
	if values == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// Ensure SQLiteStore implements BotStore.
var _ BotStore = (*SQLiteStore)(nil)
