package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/llm"
	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/pkg/jsonx"
)

const (
	classifyTemperature = 0.1
	classifyMaxTokens   = 200
	extractMaxTokens    = 300
	historyTurns        = 6
)

// IntentResult is one classification outcome. A parse failure degrades
// to unknown with low confidence rather than erroring the turn.
type IntentResult struct {
	Intent                models.Intent `json:"intent"`
	Confidence            float64       `json:"confidence"`
	RequiresClarification bool          `json:"requires_clarification"`
	ClarificationReason   string        `json:"clarification_reason,omitempty"`
}

// Classifier turns free-form messages into intents and structured
// entities via the LLM.
type Classifier struct {
	llm    llm.Completer
	logger *zap.Logger
}

func NewClassifier(completer llm.Completer, logger *zap.Logger) *Classifier {
	return &Classifier{llm: completer, logger: logger}
}

// ClassifyIntent classifies message against recent history. It never
// returns an error to the caller's dialogue flow: any failure maps to
// IntentUnknown with requires_clarification set.
func (c *Classifier) ClassifyIntent(ctx context.Context, message string, history []models.ChatMessage) IntentResult {
	fallback := IntentResult{
		Intent:                models.IntentUnknown,
		Confidence:            0.3,
		RequiresClarification: true,
	}

	userPrompt := message
	if len(history) > 0 {
		userPrompt = fmt.Sprintf("Recent conversation:\n%s\nCurrent message: %s",
			formatHistory(history, historyTurns), message)
	}

	raw, err := c.llm.Complete(ctx, intentPrompt, userPrompt, classifyTemperature, classifyMaxTokens)
	if err != nil {
		c.logger.Error("intent classification failed", zap.Error(err))
		return fallback
	}

	var parsed struct {
		Intent                string  `json:"intent"`
		Confidence            float64 `json:"confidence"`
		RequiresClarification bool    `json:"requires_clarification"`
		ClarificationReason   string  `json:"clarification_reason"`
	}
	if err := jsonx.Unmarshal(raw, &parsed); err != nil {
		c.logger.Warn("unparseable classifier output",
			zap.String("raw", raw),
			zap.Error(err))
		return fallback
	}

	result := IntentResult{
		Intent:                models.ParseIntent(parsed.Intent),
		Confidence:            parsed.Confidence,
		RequiresClarification: parsed.RequiresClarification,
		ClarificationReason:   parsed.ClarificationReason,
	}
	c.logger.Debug("classified intent",
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("requires_clarification", result.RequiresClarification))
	return result
}

// ExtractEntities pulls structured filters out of a message. Only
// useful for shopping/query-style intents; failures return empty
// entities.
func (c *Classifier) ExtractEntities(ctx context.Context, message string) models.Entities {
	raw, err := c.llm.Complete(ctx, entityPrompt, message, classifyTemperature, extractMaxTokens)
	if err != nil {
		c.logger.Error("entity extraction failed", zap.Error(err))
		return models.Entities{}
	}

	var entities models.Entities
	if err := jsonx.Unmarshal(raw, &entities); err != nil {
		c.logger.Warn("unparseable entity output",
			zap.String("raw", raw),
			zap.Error(err))
		return models.Entities{}
	}
	return entities
}

// WantsEntities reports whether an intent benefits from entity
// extraction at all.
func WantsEntities(intent models.Intent) bool {
	switch intent {
	case models.IntentRecommend, models.IntentCellarQuery, models.IntentDecide:
		return true
	default:
		return false
	}
}

func formatHistory(history []models.ChatMessage, limit int) string {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}
