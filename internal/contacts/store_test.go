package contacts

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContextStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client, nil), mr
}

func TestStoreLoadFirstEvent(t *testing.T) {
	store, _ := newTestContextStore(t)

	c, created, err := store.Load(context.Background(), "contact_1", "loc_1")
	require.NoError(t, err)
	assert.True(t, created, "missing context means first event for the contact")
	assert.Equal(t, GhostActive, c.GhostState)
	assert.NotNil(t, c.BotPreferences)
}

func TestStoreSaveLoadRoundtrip(t *testing.T) {
	store, _ := newTestContextStore(t)
	ctx := context.Background()

	c := NewContext()
	c.MergePreferences(map[string]any{"price_expectation": "650000"})
	c.AppendMessage("user", "I want to sell")
	c.PendingAppointment = &PendingAppointment{
		Options:   []SlotOption{{Start: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), Label: "Tue 10am"}},
		Attempts:  1,
		FlowTag:   "seller-booking",
		ExpiresAt: time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, "contact_1", "loc_1", c))

	loaded, created, err := store.Load(ctx, "contact_1", "loc_1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "650000", loaded.BotPreferences["price_expectation"])
	require.NotNil(t, loaded.PendingAppointment)
	assert.Equal(t, 1, loaded.PendingAppointment.Attempts)
	assert.Len(t, loaded.ConversationHistory, 1)
}

func TestStoreContextsAreScopedByLocation(t *testing.T) {
	store, _ := newTestContextStore(t)
	ctx := context.Background()

	c := NewContext()
	c.FollowupSuppressed = true
	require.NoError(t, store.Save(ctx, "contact_1", "loc_a", c))

	other, created, err := store.Load(ctx, "contact_1", "loc_b")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, other.FollowupSuppressed)
}

func TestStoreSaveNilContext(t *testing.T) {
	store, _ := newTestContextStore(t)
	assert.Error(t, store.Save(context.Background(), "contact_1", "loc_1", nil))
}
