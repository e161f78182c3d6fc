// ABOUTME: Error taxonomy for the bot handshake protocol
// ABOUTME: Typed failures for each verification precondition plus an oracle-safe collapse

package bots

import "errors"

// Handshake errors. These are precise for logging and the audit trail; the
// transport layer should collapse verification-path failures with
// IsAuthFailure before answering a bot, so a caller cannot distinguish
// "wrong bot id" from "right bot, wrong signature".
var (
	ErrNotFound           = errors.New("bot not found")
	ErrHandleTaken        = errors.New("bot handle already taken")
	ErrNoPendingChallenge = errors.New("no pending challenge")
	ErrChallengeExpired   = errors.New("challenge expired")
	ErrChallengeMismatch  = errors.New("challenge mismatch")
	ErrInvalidSignature   = errors.New("invalid signature")
)

// IsAuthFailure reports whether err is one of the verification-path
// failures that must be reported to the bot caller as a single uniform
// authentication failure.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoPendingChallenge) ||
		errors.Is(err, ErrChallengeExpired) ||
		errors.Is(err, ErrChallengeMismatch) ||
		errors.Is(err, ErrInvalidSignature)
}
