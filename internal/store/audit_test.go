// ABOUTME: Tests for audit log append and listing
// ABOUTME: Covers defaults, detail round-trips, and filter behavior

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_AppendGeneratesDefaults(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := &AuditEntry{
		ActorType:  ActorUser,
		ActorID:    "user-1",
		Action:     AuditBotRegistered,
		TargetType: "bot",
		TargetID:   "bot-1",
	}
	require.NoError(t, store.AppendAuditLog(ctx, entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestAuditLog_DetailRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
		ActorType:  ActorBot,
		ActorID:    "bot-1",
		Action:     AuditHandshakeVerified,
		TargetType: "bot",
		TargetID:   "bot-1",
		Detail:     map[string]any{"rooms": float64(2), "channels": float64(0)},
	}))

	entries, err := store.ListAuditLog(ctx, AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(2), entries[0].Detail["rooms"])
	assert.Equal(t, ActorBot, entries[0].ActorType)
}

func TestAuditLog_Filters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	record := func(actorID string, action AuditAction, targetID string) {
		t.Helper()
		require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
			ActorType:  ActorUser,
			ActorID:    actorID,
			Action:     action,
			TargetType: "bot",
			TargetID:   targetID,
		}))
	}

	record("user-1", AuditBotRegistered, "bot-1")
	record("user-1", AuditChallengeIssued, "bot-1")
	record("user-2", AuditBotRegistered, "bot-2")

	// By actor
	actorID := "user-1"
	entries, err := store.ListAuditLog(ctx, AuditFilter{ActorID: &actorID})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// By action
	action := AuditBotRegistered
	entries, err = store.ListAuditLog(ctx, AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// By target
	targetID := "bot-2"
	entries, err = store.ListAuditLog(ctx, AuditFilter{TargetID: &targetID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user-2", entries[0].ActorID)

	// Combined
	entries, err = store.ListAuditLog(ctx, AuditFilter{ActorID: &actorID, Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAuditLog_SinceFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
		ActorType:  ActorSystem,
		ActorID:    "system",
		Action:     AuditSecretRotated,
		TargetType: "bot",
		TargetID:   "bot-1",
		Timestamp:  old,
	}))
	require.NoError(t, store.AppendAuditLog(ctx, &AuditEntry{
		ActorType:  ActorSystem,
		ActorID:    "system",
		Action:     AuditSecretRotated,
		TargetType: "bot",
		TargetID:   "bot-1",
	}))

	since := time.Now().UTC().Add(-time.Hour)
	entries, err := store.ListAuditLog(ctx, AuditFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAuditLog_EmptyResult(t *testing.T) {
	store := setupTestStore(t)

	entries, err := store.ListAuditLog(context.Background(), AuditFilter{})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
