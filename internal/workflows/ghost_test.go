package workflows

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborhomes/leadrouter/internal/cache"
)

func newTestGhostTracker(t *testing.T) *GhostTracker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisStore(client, nil)
	return NewGhostTracker(store, NewEngine(store, nil), "wf_unstale_001", nil)
}

func TestGhostStateDefaultsToActive(t *testing.T) {
	tracker := newTestGhostTracker(t)

	state, err := tracker.State(context.Background(), "contact_1")
	require.NoError(t, err)
	assert.Equal(t, GhostActive, state)
}

func TestReactivateFiresUnstaleWorkflowOnce(t *testing.T) {
	tracker := newTestGhostTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.MarkGhosted(ctx, "contact_1"))

	actions, reactivated, err := tracker.Reactivate(ctx, "contact_1")
	require.NoError(t, err)
	assert.True(t, reactivated)
	require.Len(t, actions, 1)
	assert.Equal(t, "wf_unstale_001", actions[0].WorkflowID)

	state, err := tracker.State(ctx, "contact_1")
	require.NoError(t, err)
	assert.Equal(t, GhostActive, state)

	// A second inbound message right after must not re-trigger.
	actions, reactivated, err = tracker.Reactivate(ctx, "contact_1")
	require.NoError(t, err)
	assert.False(t, reactivated)
	assert.Empty(t, actions)
}

func TestReactivateGhostedAgainWithinDedupWindow(t *testing.T) {
	tracker := newTestGhostTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.MarkGhosted(ctx, "contact_1"))
	_, _, err := tracker.Reactivate(ctx, "contact_1")
	require.NoError(t, err)

	// Ghosted again inside the 30d workflow dedup window: state flips
	// but the unstale workflow stays deduped.
	require.NoError(t, tracker.MarkGhosted(ctx, "contact_1"))
	actions, reactivated, err := tracker.Reactivate(ctx, "contact_1")
	require.NoError(t, err)
	assert.True(t, reactivated)
	assert.Empty(t, actions)
}

func TestReactivateActiveContactIsNoop(t *testing.T) {
	tracker := newTestGhostTracker(t)

	actions, reactivated, err := tracker.Reactivate(context.Background(), "contact_1")
	require.NoError(t, err)
	assert.False(t, reactivated)
	assert.Empty(t, actions)
}
