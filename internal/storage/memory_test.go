package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipwine/pip/internal/models"
)

func TestCellarBottleLifecycle(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	bottle := &models.CellarBottle{
		ID:       "b1",
		UserID:   "u1",
		WineID:   "w1",
		Status:   models.StatusOwned,
		Quantity: 1,
	}
	require.NoError(t, store.CreateCellarBottle(ctx, bottle))

	got, err := store.GetCellarBottle(ctx, "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOwned, got.Status)
	assert.False(t, got.AddedAt.IsZero())

	got.Rating = 4
	require.NoError(t, store.UpdateCellarBottle(ctx, got))

	updated, err := store.GetCellarBottle(ctx, "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, updated.Rating)
	assert.Equal(t, got.AddedAt, updated.AddedAt)

	require.NoError(t, store.DeleteCellarBottle(ctx, "b1", "u1"))
	_, err = store.GetCellarBottle(ctx, "b1", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCellarBottleUserIsolation(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1,
	}))

	_, err := store.GetCellarBottle(ctx, "b1", "u2")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteCellarBottle(ctx, "b1", "u2"), ErrNotFound)

	bottles, err := store.ListCellarBottles(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, bottles)
}

func TestListCellarBottlesNewestFirst(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	for _, id := range []string{"b1", "b2", "b3"} {
		require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
			ID: id, UserID: "u1", CustomName: id, Status: models.StatusOwned, Quantity: 1,
		}))
	}

	bottles, err := store.ListCellarBottles(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, bottles, 3)
	assert.Equal(t, "b3", bottles[0].ID)
	assert.Equal(t, "b1", bottles[2].ID)
}

func TestFindCellarBottleByWine(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1,
	}))

	found, err := store.FindCellarBottleByWine(ctx, "u1", "w1")
	require.NoError(t, err)
	assert.Equal(t, "b1", found.ID)

	_, err = store.FindCellarBottleByWine(ctx, "u1", "w2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountOwnedBottles(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 2,
	}))
	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b2", UserID: "u1", WineID: "w2", Status: models.StatusTried, Quantity: 0,
	}))

	count, err := store.CountOwnedBottles(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMoveSavedToCellar(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateSavedBottle(ctx, &models.SavedBottle{
		ID: "s1", UserID: "u1", WineID: "w1",
	}))

	bottle, err := store.MoveSavedToCellar(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "w1", bottle.WineID)
	assert.Equal(t, models.StatusOwned, bottle.Status)
	assert.Equal(t, 1, bottle.Quantity)

	saved, err := store.ListSavedBottles(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestMoveSavedToCellarBumpsExisting(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1,
	}))
	require.NoError(t, store.CreateSavedBottle(ctx, &models.SavedBottle{
		ID: "s1", UserID: "u1", WineID: "w1",
	}))

	bottle, err := store.MoveSavedToCellar(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "b1", bottle.ID)
	assert.Equal(t, 2, bottle.Quantity)
}

func TestListRecentMessages(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, store.AddMessage(ctx, &models.ChatMessage{
			ID: content, SessionID: "s1", Role: models.RoleUser, Content: content,
		}))
	}

	recent, err := store.ListRecentMessages(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Content)
	assert.Equal(t, "second", recent[1].Content)
}

func TestUpdateSessionContext(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &models.ChatSession{
		ID:      "s1",
		Context: models.SessionContext{Mode: models.ConversationMode{Kind: models.ModeIdle}},
	}))

	require.NoError(t, store.UpdateSessionContext(ctx, "s1", models.SessionContext{
		Mode: models.ConversationMode{
			Kind:   models.ModeAwaitingDeleteConfirm,
			Delete: &models.DeleteConfirmState{BottleID: "b1", WineName: "Opus One"},
		},
	}))

	session, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.ModeAwaitingDeleteConfirm, session.Context.Mode.Kind)
	require.NotNil(t, session.Context.Mode.Delete)
	assert.Equal(t, "Opus One", session.Context.Mode.Delete.WineName)

	assert.ErrorIs(t, store.UpdateSessionContext(ctx, "missing", models.SessionContext{}), ErrNotFound)
}

func TestCountUserSessions(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, &models.ChatSession{ID: "s1", UserID: "u1"}))
	require.NoError(t, store.CreateSession(ctx, &models.ChatSession{ID: "s2", UserID: "u1"}))

	count, err := store.CountUserSessions(ctx, "u1", "s2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpsertTasteProfile(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	profile := &models.UserTasteProfile{ID: "p1", UserID: "u1", RatingCount: 1}
	require.NoError(t, store.UpsertTasteProfile(ctx, profile))

	first, err := store.GetTasteProfile(ctx, "u1")
	require.NoError(t, err)

	profile.RatingCount = 2
	require.NoError(t, store.UpsertTasteProfile(ctx, profile))

	second, err := store.GetTasteProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, second.RatingCount)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestSeedWineAndList(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	store.SeedWine(models.Wine{ID: "w1", Name: "Opus One", Type: models.WineTypeRed})
	store.SeedWine(models.Wine{ID: "w2", Name: "Cloudy Bay", Type: models.WineTypeWhite})

	wines, err := store.ListWines(ctx)
	require.NoError(t, err)
	require.Len(t, wines, 2)
	assert.Equal(t, "Opus One", wines[0].Name)

	wine, err := store.GetWine(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, models.WineTypeWhite, wine.Type)
}
