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

func newDecideFixture(t *testing.T, reply string) (*DecideAgent, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	return NewDecideAgent(store, &fakeCompleter{reply: reply}, zap.NewNop()), store
}

func seedOwned(t *testing.T, store *storage.MemoryStorage, id, name string, wineType models.WineType, rating float64) {
	t.Helper()
	require.NoError(t, store.CreateCellarBottle(context.Background(), &models.CellarBottle{
		ID: id, UserID: "u1", CustomName: name, CustomType: wineType,
		Status: models.StatusOwned, Quantity: 1, Rating: rating,
	}))
}

func TestRecommendFromCellarEmpty(t *testing.T) {
	agent, _ := newDecideFixture(t, "")

	result, err := agent.RecommendFromCellar(context.Background(), "u1", "what should I drink", models.Entities{})
	require.NoError(t, err)
	assert.Contains(t, result.Message, "cellar is empty")
	assert.Empty(t, result.Picks)
	assert.Zero(t, result.TotalAvailable)
}

func TestRecommendFromCellarNoMatchingType(t *testing.T) {
	agent, store := newDecideFixture(t, "")
	seedOwned(t, store, "b1", "Cloudy Bay Sauvignon Blanc", models.WineTypeWhite, 0)

	result, err := agent.RecommendFromCellar(context.Background(), "u1", "a red for tonight", models.Entities{WineType: "red"})
	require.NoError(t, err)
	assert.Contains(t, result.Message, "don't have any red wines")
	assert.Empty(t, result.Picks)
}

func TestRecommendFromCellarPicksMentioned(t *testing.T) {
	agent, store := newDecideFixture(t,
		"Tonight I'd go with the Opus One - its structure will stand up to the steak beautifully.")
	seedOwned(t, store, "b1", "Opus One", models.WineTypeRed, 5)
	seedOwned(t, store, "b2", "Whispering Angel", models.WineTypeRose, 3)

	result, err := agent.RecommendFromCellar(context.Background(), "u1", "what goes with steak",
		models.Entities{FoodPairing: "steak"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalAvailable)
	require.Len(t, result.Picks, 1)
	assert.Equal(t, "Opus One", result.Picks[0].Name())
}

func TestRecommendFromCellarFallsBackToTopRated(t *testing.T) {
	agent, store := newDecideFixture(t, "Any of these would be lovely this evening.")
	seedOwned(t, store, "b1", "Bottle Alpha", models.WineTypeRed, 2)
	seedOwned(t, store, "b2", "Bottle Beta", models.WineTypeRed, 5)
	seedOwned(t, store, "b3", "Bottle Gamma", models.WineTypeRed, 4)

	result, err := agent.RecommendFromCellar(context.Background(), "u1", "pick for me", models.Entities{})
	require.NoError(t, err)
	// Prose named nothing, so the top rated bottles are the cards.
	require.Len(t, result.Picks, maxDecideCards)
	assert.Equal(t, "Bottle Beta", result.Picks[0].Name())
	assert.Equal(t, "Bottle Gamma", result.Picks[1].Name())
}

func TestRecommendFromCellarCapsPicks(t *testing.T) {
	agent, store := newDecideFixture(t,
		"Try the Bottle Alpha, Bottle Beta, or Bottle Gamma - all three shine.")
	seedOwned(t, store, "b1", "Bottle Alpha", models.WineTypeRed, 0)
	seedOwned(t, store, "b2", "Bottle Beta", models.WineTypeRed, 0)
	seedOwned(t, store, "b3", "Bottle Gamma", models.WineTypeRed, 0)

	result, err := agent.RecommendFromCellar(context.Background(), "u1", "pick for me", models.Entities{})
	require.NoError(t, err)
	assert.Len(t, result.Picks, maxDecideCards)
}

func TestQuickPickSpecial(t *testing.T) {
	agent, store := newDecideFixture(t, "")
	seedOwned(t, store, "b1", "Everyday Red", models.WineTypeRed, 3)
	seedOwned(t, store, "b2", "Anniversary Barolo", models.WineTypeRed, 5)

	pick, message, err := agent.QuickPick(context.Background(), "u1", "special")
	require.NoError(t, err)
	require.NotNil(t, pick)
	assert.Equal(t, "Anniversary Barolo", pick.Name())
	assert.Contains(t, message, "Anniversary Barolo")
}

func TestQuickPickEmptyCellar(t *testing.T) {
	agent, _ := newDecideFixture(t, "")

	pick, message, err := agent.QuickPick(context.Background(), "u1", "any")
	require.NoError(t, err)
	assert.Nil(t, pick)
	assert.Contains(t, message, "empty")
}

func TestQuickPickUnknownType(t *testing.T) {
	agent, store := newDecideFixture(t, "")
	seedOwned(t, store, "b1", "Everyday Red", models.WineTypeRed, 3)

	pick, message, err := agent.QuickPick(context.Background(), "u1", "sparkling")
	require.NoError(t, err)
	assert.Nil(t, pick)
	assert.Contains(t, message, "No sparkling wines")
}
