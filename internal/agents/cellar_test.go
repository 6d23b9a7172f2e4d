package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
)

// fakeCompleter scripts LLM replies for agent tests.
type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	return f.reply, f.err
}

func newCellarFixture(t *testing.T, reply string) (*CellarAgent, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	store.SeedWine(models.Wine{
		ID: "w1", Name: "Opus One", Producer: "Opus One Winery",
		Type: models.WineTypeRed, Varietal: "Cabernet Blend",
		Region: "Napa Valley", Country: "USA", PriceUSD: 350,
	})
	store.SeedWine(models.Wine{
		ID: "w2", Name: "Cloudy Bay Sauvignon Blanc",
		Type: models.WineTypeWhite, Varietal: "Sauvignon Blanc",
		Region: "Marlborough", Country: "New Zealand", PriceUSD: 35,
	})
	agent := NewCellarAgent(store, &fakeCompleter{reply: reply}, zap.NewNop())
	return agent, store
}

func TestAddToCellarNewWine(t *testing.T) {
	agent, _ := newCellarFixture(t, "{}")
	ctx := context.Background()

	result, err := agent.AddToCellar(ctx, "u1", AddInput{WineID: "w1"})
	require.NoError(t, err)
	assert.True(t, result.IsNew)
	assert.False(t, result.WasTried)
	assert.Equal(t, "Opus One", result.View.Name())
	assert.Equal(t, models.StatusOwned, result.View.Bottle.Status)
	assert.Equal(t, 1, result.View.Bottle.Quantity)
}

func TestAddToCellarDuplicateBumpsQuantity(t *testing.T) {
	agent, _ := newCellarFixture(t, "{}")
	ctx := context.Background()

	_, err := agent.AddToCellar(ctx, "u1", AddInput{WineID: "w1"})
	require.NoError(t, err)

	result, err := agent.AddToCellar(ctx, "u1", AddInput{WineID: "w1"})
	require.NoError(t, err)
	assert.False(t, result.IsNew)
	assert.Equal(t, 2, result.View.Bottle.Quantity)
}

func TestAddToCellarTriedWineReturnsToOwned(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1",
		Status: models.StatusTried, Quantity: 0, Rating: 4.5,
	}))

	result, err := agent.AddToCellar(ctx, "u1", AddInput{WineID: "w1"})
	require.NoError(t, err)
	assert.True(t, result.WasTried)
	assert.Equal(t, models.StatusOwned, result.View.Bottle.Status)
	assert.Equal(t, 1, result.View.Bottle.Quantity)
	// Re-purchasing keeps the earlier rating.
	assert.Equal(t, 4.5, result.View.Bottle.Rating)
}

func TestAddToCellarCustomWine(t *testing.T) {
	agent, _ := newCellarFixture(t, "{}")
	ctx := context.Background()

	result, err := agent.AddToCellar(ctx, "u1", AddInput{
		Name: "Garage Zinfandel", Producer: "Uncle Joe", WineType: models.WineTypeRed,
	})
	require.NoError(t, err)
	assert.True(t, result.IsNew)
	assert.Equal(t, "Garage Zinfandel", result.View.Name())
	assert.Equal(t, models.WineTypeRed, result.View.Type())
	assert.Empty(t, result.View.Bottle.WineID)
}

func TestQueryCellarFilters(t *testing.T) {
	agent, store := newCellarFixture(t, `{"wine_type": "red", "status": "owned"}`)
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1,
	}))
	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b2", UserID: "u1", WineID: "w2", Status: models.StatusOwned, Quantity: 1,
	}))

	result, err := agent.QueryCellar(ctx, "u1", "show me my reds", models.Entities{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, 2, result.TotalCount)
	require.Len(t, result.Views, 1)
	assert.Equal(t, "Opus One", result.Views[0].Name())
}

func TestQueryCellarEntityOverridesParsed(t *testing.T) {
	agent, store := newCellarFixture(t, `{"wine_type": "red"}`)
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w2", Status: models.StatusOwned, Quantity: 1,
	}))

	result, err := agent.QueryCellar(ctx, "u1", "my whites", models.Entities{WineType: "white"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
}

func TestQueryCellarDefaultsToOwned(t *testing.T) {
	agent, store := newCellarFixture(t, `{}`)
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1,
	}))
	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b2", UserID: "u1", WineID: "w2", Status: models.StatusTried, Quantity: 0,
	}))

	result, err := agent.QueryCellar(ctx, "u1", "what's in my cellar", models.Entities{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, models.StatusOwned, result.Views[0].Bottle.Status)
}

func TestQueryCellarRatingFilterSpansStatuses(t *testing.T) {
	agent, store := newCellarFixture(t, `{"min_rating": 4}`)
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusTried, Rating: 5,
	}))
	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b2", UserID: "u1", WineID: "w2", Status: models.StatusOwned, Quantity: 1, Rating: 3,
	}))
	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b3", UserID: "u1", CustomName: "Unrated Red", Status: models.StatusOwned, Quantity: 1,
	}))

	result, err := agent.QueryCellar(ctx, "u1", "what have I liked", models.Entities{}, 10)
	require.NoError(t, err)
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "Opus One", result.Views[0].Name())
}

func TestQueryCellarSavedShortCircuits(t *testing.T) {
	agent, _ := newCellarFixture(t, `{"status": "saved"}`)
	ctx := context.Background()

	result, err := agent.QueryCellar(ctx, "u1", "wines I want to try", models.Entities{}, 10)
	require.NoError(t, err)
	assert.True(t, result.WantsSaved())
	assert.Empty(t, result.Views)
}

func TestQueryCellarUnparseableFiltersFallBack(t *testing.T) {
	agent, store := newCellarFixture(t, "sorry, no json today")
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1,
	}))

	result, err := agent.QueryCellar(ctx, "u1", "my cellar", models.Entities{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
}

func TestFindBottle(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1,
	}))

	view, err := agent.FindBottle(ctx, "u1", "remove the opus one please")
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "b1", view.Bottle.ID)

	missing, err := agent.FindBottle(ctx, "u1", "the château margaux")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRemoveFromCellar(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 2,
	}))

	remaining, err := agent.RemoveFromCellar(ctx, "u1", "b1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	remaining, err = agent.RemoveFromCellar(ctx, "u1", "b1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	_, err = store.GetCellarBottle(ctx, "b1", "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRateWine(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1, Rating: 3,
	}))

	view, previous, err := agent.RateWine(ctx, "u1", "b1", 4.5, "silky tannins")
	require.NoError(t, err)
	assert.Equal(t, 3.0, previous)
	assert.Equal(t, 4.5, view.Bottle.Rating)
	assert.Equal(t, "silky tannins", view.Bottle.TastingNotes)
	assert.NotNil(t, view.Bottle.TriedDate)
	// Rating never moves the bottle out of the cellar by itself.
	assert.Equal(t, models.StatusOwned, view.Bottle.Status)
}

func TestRateWineRejectsOutOfRange(t *testing.T) {
	agent, _ := newCellarFixture(t, "{}")
	ctx := context.Background()

	_, _, err := agent.RateWine(ctx, "u1", "b1", 0, "")
	assert.Error(t, err)
	_, _, err = agent.RateWine(ctx, "u1", "b1", 6, "")
	assert.Error(t, err)
}

func TestMarkTried(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1,
	}))

	require.NoError(t, agent.MarkTried(ctx, "u1", "b1"))
	bottle, err := store.GetCellarBottle(ctx, "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusTried, bottle.Status)

	// Already tried is a no-op.
	require.NoError(t, agent.MarkTried(ctx, "u1", "b1"))
}

func TestStats(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b1", UserID: "u1", WineID: "w1", Status: models.StatusOwned, Quantity: 1, Rating: 4,
	}))
	require.NoError(t, store.CreateCellarBottle(ctx, &models.CellarBottle{
		ID: "b2", UserID: "u1", WineID: "w2", Status: models.StatusTried, Rating: 5,
	}))

	stats, err := agent.Stats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalOwned)
	assert.Equal(t, 1, stats.WinesTried)
	assert.Equal(t, 1, stats.TypeBreakdown[models.WineTypeRed])
	assert.Equal(t, 1, stats.TypeBreakdown[models.WineTypeWhite])
	assert.Equal(t, 2, stats.RatingsCount)
	assert.InDelta(t, 4.5, stats.AverageRating, 0.001)
}

func TestSaveForLater(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	result, err := agent.SaveForLater(ctx, "u1", "w1", "from a recommendation")
	require.NoError(t, err)
	assert.False(t, result.AlreadySaved)
	assert.Equal(t, "Opus One", result.WineName)
	assert.NotEmpty(t, result.Saved.ID)

	saved, err := store.ListSavedBottles(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "w1", saved[0].WineID)
	assert.Equal(t, "from a recommendation", saved[0].Notes)
}

func TestSaveForLaterDuplicate(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	first, err := agent.SaveForLater(ctx, "u1", "w1", "")
	require.NoError(t, err)

	second, err := agent.SaveForLater(ctx, "u1", "w1", "")
	require.NoError(t, err)
	assert.True(t, second.AlreadySaved)
	assert.Equal(t, first.Saved.ID, second.Saved.ID)

	saved, err := store.ListSavedBottles(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestSaveForLaterUnknownWine(t *testing.T) {
	agent, _ := newCellarFixture(t, "{}")

	_, err := agent.SaveForLater(context.Background(), "u1", "missing", "")
	assert.Error(t, err)
}

func TestFindSavedByName(t *testing.T) {
	agent, _ := newCellarFixture(t, "{}")
	ctx := context.Background()

	_, err := agent.SaveForLater(ctx, "u1", "w1", "")
	require.NoError(t, err)

	saved, name := agent.FindSavedByName(ctx, "u1", "drop the opus one from my list")
	require.NotNil(t, saved)
	assert.Equal(t, "w1", saved.WineID)
	assert.Equal(t, "Opus One", name)

	saved, _ = agent.FindSavedByName(ctx, "u1", "remove the barolo")
	assert.Nil(t, saved)
}

func TestPromoteSaved(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	result, err := agent.SaveForLater(ctx, "u1", "w1", "")
	require.NoError(t, err)

	view, err := agent.PromoteSaved(ctx, "u1", result.Saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Opus One", view.Name())
	assert.Equal(t, models.StatusOwned, view.Bottle.Status)
	assert.Equal(t, 1, view.Bottle.Quantity)

	saved, err := store.ListSavedBottles(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestPromoteSavedBumpsOwnedQuantity(t *testing.T) {
	agent, _ := newCellarFixture(t, "{}")
	ctx := context.Background()

	_, err := agent.AddToCellar(ctx, "u1", AddInput{WineID: "w1"})
	require.NoError(t, err)
	result, err := agent.SaveForLater(ctx, "u1", "w1", "")
	require.NoError(t, err)

	view, err := agent.PromoteSaved(ctx, "u1", result.Saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Bottle.Quantity)
}

func TestRemoveSaved(t *testing.T) {
	agent, store := newCellarFixture(t, "{}")
	ctx := context.Background()

	result, err := agent.SaveForLater(ctx, "u1", "w1", "")
	require.NoError(t, err)

	require.NoError(t, agent.RemoveSaved(ctx, "u1", result.Saved.ID))
	saved, err := store.ListSavedBottles(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, saved)

	assert.ErrorIs(t, agent.RemoveSaved(ctx, "u1", result.Saved.ID), storage.ErrNotFound)
}
