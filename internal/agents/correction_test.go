package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
)

func newCorrectionFixture(t *testing.T) (*CorrectionAgent, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	return NewCorrectionAgent(store, zap.NewNop()), store
}

func TestModifyFiltersPrice(t *testing.T) {
	agent, _ := newCorrectionFixture(t)
	original := models.Entities{WineType: "red", PriceMax: 100}

	updated := agent.ModifyFilters(original, "actually under $30")
	assert.Equal(t, 30.0, updated.PriceMax)
	assert.Equal(t, "red", updated.WineType)

	updated = agent.ModifyFilters(original, "make it around $50")
	assert.InDelta(t, 35.0, updated.PriceMin, 0.001)
	assert.InDelta(t, 65.0, updated.PriceMax, 0.001)

	updated = agent.ModifyFilters(original, "something over $80")
	assert.Equal(t, 80.0, updated.PriceMin)
}

func TestModifyFiltersWineType(t *testing.T) {
	agent, _ := newCorrectionFixture(t)

	updated := agent.ModifyFilters(models.Entities{WineType: "red"}, "I meant white")
	assert.Equal(t, "white", updated.WineType)

	updated = agent.ModifyFilters(models.Entities{}, "actually sparkling")
	assert.Equal(t, "sparkling", updated.WineType)

	// "not red" clears a red filter instead of re-selecting it.
	updated = agent.ModifyFilters(models.Entities{WineType: "red"}, "not red")
	assert.Empty(t, updated.WineType)
}

func TestModifyFiltersNoCuesKeepsOriginal(t *testing.T) {
	agent, _ := newCorrectionFixture(t)
	original := models.Entities{WineType: "red", Region: "Rioja", PriceMax: 40}

	updated := agent.ModifyFilters(original, "hmm, let me think")
	assert.Equal(t, original, updated)
}

func TestUndoActionNil(t *testing.T) {
	agent, _ := newCorrectionFixture(t)

	result := agent.UndoAction(context.Background(), "u1", nil)
	assert.False(t, result.Success)
	assert.Equal(t, "Nothing to undo.", result.Message)
}

func TestUndoCellarAdd(t *testing.T) {
	agent, store := newCorrectionFixture(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", CustomName: "Opus One", Status: models.StatusOwned, Quantity: 1,
	}))

	result := agent.UndoAction(ctx, "u1", &models.TrackedAction{
		Type:      ActionCellarAdd,
		Data:      map[string]string{"bottle_id": "b1", "wine_name": "Opus One"},
		Timestamp: time.Now(),
	})
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "Opus One")

	_, err := store.GetCellarBottle(ctx, "b1", "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUndoCellarAddAlreadyGone(t *testing.T) {
	agent, _ := newCorrectionFixture(t)

	result := agent.UndoAction(context.Background(), "u1", &models.TrackedAction{
		Type: ActionCellarAdd,
		Data: map[string]string{"bottle_id": "missing", "wine_name": "Opus One"},
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no longer in your cellar")
}

func TestUndoRateRestoresPrevious(t *testing.T) {
	agent, store := newCorrectionFixture(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", CustomName: "Opus One", Status: models.StatusOwned, Quantity: 1, Rating: 4,
	}))

	result := agent.UndoAction(ctx, "u1", &models.TrackedAction{
		Type: ActionRate,
		Data: map[string]string{"bottle_id": "b1", "wine_name": "Opus One", "previous_rating": "3"},
	})
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "3")

	bottle, err := store.GetCellarBottle(ctx, "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, bottle.Rating)
}

func TestUndoRateFirstRating(t *testing.T) {
	agent, store := newCorrectionFixture(t)
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", CustomName: "Opus One", Status: models.StatusOwned, Quantity: 1, Rating: 4,
	}))

	result := agent.UndoAction(ctx, "u1", &models.TrackedAction{
		Type: ActionRate,
		Data: map[string]string{"bottle_id": "b1", "wine_name": "Opus One", "previous_rating": "0"},
	})
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "Removed the rating")

	bottle, err := store.GetCellarBottle(ctx, "b1", "u1")
	require.NoError(t, err)
	assert.Zero(t, bottle.Rating)
}

func TestUndoCellarRemoveNotRestorable(t *testing.T) {
	agent, _ := newCorrectionFixture(t)

	result := agent.UndoAction(context.Background(), "u1", &models.TrackedAction{
		Type: ActionCellarRemove,
		Data: map[string]string{"wine_name": "Opus One"},
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "can't restore Opus One")
}

func TestUndoSave(t *testing.T) {
	agent, store := newCorrectionFixture(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSavedBottle(ctx, &models.SavedBottle{
		ID: "s1", UserID: "u1", WineID: "w1",
	}))

	result := agent.UndoAction(ctx, "u1", &models.TrackedAction{
		Type:      ActionSave,
		Data:      map[string]string{"saved_id": "s1", "wine_name": "Opus One"},
		Timestamp: time.Now(),
	})
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "Removed Opus One from your saved list")

	saved, err := store.ListSavedBottles(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestUndoSaveAlreadyGone(t *testing.T) {
	agent, _ := newCorrectionFixture(t)

	result := agent.UndoAction(context.Background(), "u1", &models.TrackedAction{
		Type: ActionSave,
		Data: map[string]string{"saved_id": "missing", "wine_name": "Opus One"},
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no longer on your saved list")
}
