package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/models"
)

type stubCompleter struct {
	reply string
	err   error

	lastUser string
}

func (s *stubCompleter) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	s.lastUser = user
	return s.reply, s.err
}

func TestClassifyIntent(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "recommend", "confidence": 0.92, "requires_clarification": false}`}
	c := NewClassifier(stub, zap.NewNop())

	result := c.ClassifyIntent(context.Background(), "find me a red under $30", nil)
	assert.Equal(t, models.IntentRecommend, result.Intent)
	assert.Equal(t, 0.92, result.Confidence)
	assert.False(t, result.RequiresClarification)
}

func TestClassifyIntentFencedOutput(t *testing.T) {
	stub := &stubCompleter{reply: "```json\n{\"intent\": \"rate\", \"confidence\": 0.88}\n```"}
	c := NewClassifier(stub, zap.NewNop())

	result := c.ClassifyIntent(context.Background(), "4 stars for the merlot", nil)
	assert.Equal(t, models.IntentRate, result.Intent)
}

func TestClassifyIntentAmbiguous(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "recommend", "confidence": 0.5, "requires_clarification": true, "clarification_reason": "new_or_cellar"}`}
	c := NewClassifier(stub, zap.NewNop())

	result := c.ClassifyIntent(context.Background(), "what wine should I drink tonight", nil)
	assert.True(t, result.RequiresClarification)
	assert.Equal(t, "new_or_cellar", result.ClarificationReason)
}

func TestClassifyIntentFallbackOnError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("api down")}
	c := NewClassifier(stub, zap.NewNop())

	result := c.ClassifyIntent(context.Background(), "anything", nil)
	assert.Equal(t, models.IntentUnknown, result.Intent)
	assert.Equal(t, 0.3, result.Confidence)
	assert.True(t, result.RequiresClarification)
}

func TestClassifyIntentFallbackOnGarbage(t *testing.T) {
	stub := &stubCompleter{reply: "I think they want a recommendation"}
	c := NewClassifier(stub, zap.NewNop())

	result := c.ClassifyIntent(context.Background(), "anything", nil)
	assert.Equal(t, models.IntentUnknown, result.Intent)
	assert.True(t, result.RequiresClarification)
}

func TestClassifyIntentUnknownLabel(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "order_pizza", "confidence": 0.99}`}
	c := NewClassifier(stub, zap.NewNop())

	result := c.ClassifyIntent(context.Background(), "anything", nil)
	assert.Equal(t, models.IntentUnknown, result.Intent)
}

func TestClassifyIntentIncludesHistory(t *testing.T) {
	stub := &stubCompleter{reply: `{"intent": "rate", "confidence": 0.9}`}
	c := NewClassifier(stub, zap.NewNop())

	history := []models.ChatMessage{
		{Role: models.RoleUser, Content: "tell me about Opus One"},
		{Role: models.RoleAssistant, Content: "Opus One is a Bordeaux-style blend..."},
	}
	c.ClassifyIntent(context.Background(), "I'd give it a 5", history)

	assert.Contains(t, stub.lastUser, "user: tell me about Opus One")
	assert.Contains(t, stub.lastUser, "Current message: I'd give it a 5")
}

func TestExtractEntities(t *testing.T) {
	stub := &stubCompleter{reply: `{"wine_type": "red", "price_max": 30, "food_pairing": "steak"}`}
	c := NewClassifier(stub, zap.NewNop())

	entities := c.ExtractEntities(context.Background(), "a red under $30 for steak")
	assert.Equal(t, "red", entities.WineType)
	assert.Equal(t, 30.0, entities.PriceMax)
	assert.Equal(t, "steak", entities.FoodPairing)
}

func TestExtractEntitiesFailureIsEmpty(t *testing.T) {
	stub := &stubCompleter{err: errors.New("api down")}
	c := NewClassifier(stub, zap.NewNop())

	entities := c.ExtractEntities(context.Background(), "anything")
	assert.True(t, entities.IsEmpty())
}

func TestWantsEntities(t *testing.T) {
	assert.True(t, WantsEntities(models.IntentRecommend))
	assert.True(t, WantsEntities(models.IntentCellarQuery))
	assert.True(t, WantsEntities(models.IntentDecide))
	assert.False(t, WantsEntities(models.IntentGreeting))
	assert.False(t, WantsEntities(models.IntentRate))
	assert.False(t, WantsEntities(models.IntentPhoto))
}
