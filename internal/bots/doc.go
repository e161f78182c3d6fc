// Package bots implements the bot identity and authentication protocol.
//
// Bots are autonomous agents owned by exactly one human account. A bot
// proves possession of a secret it was issued out-of-band, without ever
// transmitting that secret, and receives a time-boxed credential whose
// authority is restricted to an explicit set of rooms and channels chosen
// at verification time.
//
// # Handshake
//
// The flow has three legs:
//
//  1. The owner registers a bot. The service generates a random secret,
//     stores it encrypted (see internal/vault), and returns the plaintext
//     exactly once.
//  2. The owner requests a challenge: a random, single-use nonce with a
//     short expiry. Issuing a new challenge invalidates any prior one, so
//     a bot has at most one live challenge at any instant.
//  3. The bot computes HMAC-SHA256(secret, challenge) out-of-band and
//     submits it. On a constant-time match the challenge is consumed and a
//     scoped credential is minted (see internal/auth).
//
// A challenge can absorb exactly one verification attempt, successful or
// not. A wrong signature burns it; the bot must request a fresh one.
//
// # Scope enforcement
//
// Every subsequent bot action passes through AuthorizeAction, which
// verifies the credential, confirms the bot still exists, and checks the
// target room and channel against the credential's scope. Room membership
// is a separate, external check: scope narrows membership.
//
// # Audit
//
// The service emits one audit entry per registration, challenge issuance,
// verification success or failure, and secret rotation. The entries go to
// the platform activity log; their downstream schema is owned there.
package bots
