// Package retrieval talks to the vector-search service that hosts the
// WSET knowledge index and the wine catalog index.
package retrieval

import (
	"context"

	"github.com/pipwine/pip/internal/models"
)

// KnowledgeChunk is one retrieved passage from the knowledge index.
type KnowledgeChunk struct {
	Text    string  `json:"text"`
	Heading string  `json:"heading"`
	Score   float64 `json:"score"`
}

// Retriever searches the wine knowledge base.
type Retriever interface {
	SearchKnowledge(ctx context.Context, query string, topK int) ([]KnowledgeChunk, error)
}

// Preferences describe what the user is shopping for.
type Preferences struct {
	Description string  `json:"description"`
	BudgetMin   float64 `json:"budget_min"`
	BudgetMax   float64 `json:"budget_max"`
	FoodPairing string  `json:"food_pairing,omitempty"`
	WineType    string  `json:"wine_type,omitempty"`
	Region      string  `json:"region,omitempty"`
	Varietal    string  `json:"varietal,omitempty"`
}

// Recommendation is one scored catalog wine with a one-line reason.
type Recommendation struct {
	Wine           models.Wine `json:"wine"`
	RelevanceScore float64     `json:"relevance_score"`
	Explanation    string      `json:"explanation"`
}

// Recommender matches preferences against the catalog index.
type Recommender interface {
	Recommend(ctx context.Context, prefs Preferences, topN int) ([]Recommendation, error)
}
