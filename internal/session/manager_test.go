package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	return NewManager(store, zap.NewNop()), store
}

func TestGetOrCreateSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, models.ModeIdle, created.Context.Mode.Kind)

	// Known ID returns the same session.
	again, err := m.GetOrCreateSession(ctx, created.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	// Unknown ID silently creates a fresh one.
	fresh, err := m.GetOrCreateSession(ctx, "does-not-exist", "u1")
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", fresh.ID)
}

func TestMessageHistoryOrderAndLimit(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		require.NoError(t, m.AddMessage(ctx, session.ID, role, fmt.Sprintf("msg-%d", i), nil))
	}

	history, err := m.GetMessageHistory(ctx, session.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 10)
	// Chronological order, truncated from the front.
	assert.Equal(t, "msg-5", history[0].Content)
	assert.Equal(t, "msg-14", history[9].Content)
}

func TestTrackActionCapsStack(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		require.NoError(t, m.TrackAction(ctx, session, "rate", map[string]string{
			"wine_name": fmt.Sprintf("wine-%d", i),
		}))
	}

	require.Len(t, session.Context.RecentActions, MaxTrackedActions)
	// Newest first; the oldest two were evicted.
	assert.Equal(t, "wine-6", session.Context.RecentActions[0].Data["wine_name"])
	assert.Equal(t, "wine-2", session.Context.RecentActions[4].Data["wine_name"])
}

func TestPopLastAction(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)

	empty, err := m.PopLastAction(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, empty)

	require.NoError(t, m.TrackAction(ctx, session, "cellar_add", map[string]string{"bottle_id": "b1"}))
	require.NoError(t, m.TrackAction(ctx, session, "rate", map[string]string{"bottle_id": "b1"}))

	popped, err := m.PopLastAction(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, "rate", popped.Type)

	popped, err = m.PopLastAction(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, "cellar_add", popped.Type)
}

func TestPendingRequestStashAndConsume(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	session, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)

	entities := models.Entities{WineType: "red", PriceMax: 30}
	require.NoError(t, m.SetPendingRequest(ctx, session, "a red under $30", entities))

	// Survives a reload.
	reloaded, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.Context.Pending)

	pending, err := m.ConsumePendingRequest(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "a red under $30", pending.Message)
	assert.Equal(t, entities, pending.Entities)

	// Consumed means gone.
	pending, err = m.ConsumePendingRequest(ctx, session)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestSetAndClearMode(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	session, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)

	require.NoError(t, m.SetMode(ctx, session, models.ConversationMode{
		Kind:  models.ModeAwaitingTriedConfirm,
		Tried: &models.TriedConfirmState{BottleID: "b1", WineName: "Opus One", Rating: 4},
	}))

	reloaded, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModeAwaitingTriedConfirm, reloaded.Context.Mode.Kind)

	require.NoError(t, m.ClearMode(ctx, session))
	reloaded, err = store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModeIdle, reloaded.Context.Mode.Kind)
	assert.Nil(t, reloaded.Context.Mode.Tried)
}

func TestGetRecentWineReferences(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)

	require.NoError(t, m.AddMessage(ctx, session.ID, models.RoleAssistant, "I found 2 wines:", &models.MessageMetadata{
		Recommendations: []models.WineReference{
			{WineID: "w1", WineName: "Opus One", Source: "recommendation"},
			{WineID: "w2", WineName: "Cloudy Bay", Source: "recommendation"},
		},
	}))
	require.NoError(t, m.AddMessage(ctx, session.ID, models.RoleAssistant, "I identified a wine.", &models.MessageMetadata{
		WineReference: &models.WineReference{WineName: "Barolo Riserva", Source: "photo"},
	}))

	refs, err := m.GetRecentWineReferences(ctx, session.ID, 3)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	// Newest message first.
	assert.Equal(t, "Barolo Riserva", refs[0].WineName)
	assert.Equal(t, "Opus One", refs[1].WineName)
}

func TestIsReturningUser(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)
	assert.False(t, m.IsReturningUser(ctx, "u1", first.ID))

	second, err := m.GetOrCreateSession(ctx, "", "u1")
	require.NoError(t, err)
	assert.True(t, m.IsReturningUser(ctx, "u1", second.ID))

	// Anonymous users are always new.
	assert.False(t, m.IsReturningUser(ctx, "", second.ID))
}
