package agents

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/llm"
	"github.com/pipwine/pip/internal/match"
	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
)

const decideSystemPrompt = "You are Pip, a friendly wine expert helping choose from a cellar."

const maxDecideCards = 2

// DecideAgent picks wines from bottles the user already owns.
type DecideAgent struct {
	storage storage.Storage
	llm     llm.Completer
	logger  *zap.Logger
}

func NewDecideAgent(store storage.Storage, completer llm.Completer, logger *zap.Logger) *DecideAgent {
	return &DecideAgent{storage: store, llm: completer, logger: logger}
}

// DecideResult pairs the sommelier prose with the bottles it mentioned.
type DecideResult struct {
	Message        string
	Picks          []BottleView
	TotalAvailable int
}

// RecommendFromCellar asks the LLM to pick 1-3 owned bottles for the
// request, then resolves which bottles the prose actually named.
func (a *DecideAgent) RecommendFromCellar(ctx context.Context, userID, request string, entities models.Entities) (*DecideResult, error) {
	views, err := a.ownedBottles(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return &DecideResult{Message: "Your cellar is empty! Let's find some wines to add."}, nil
	}

	if entities.WineType != "" {
		views = filterByType(views, entities.WineType)
		if len(views) == 0 {
			return &DecideResult{
				Message: fmt.Sprintf("You don't have any %s wines. Would you like a different suggestion?", entities.WineType),
			}, nil
		}
	}

	listed := views
	if len(listed) > 15 {
		listed = listed[:15]
	}
	var descriptions []string
	for _, v := range listed {
		descriptions = append(descriptions, describeBottle(v))
	}

	var contextParts []string
	if entities.Occasion != "" {
		contextParts = append(contextParts, "Occasion: "+entities.Occasion)
	}
	if entities.FoodPairing != "" {
		contextParts = append(contextParts, "Food: "+entities.FoodPairing)
	}
	requestContext := "General recommendation"
	if len(contextParts) > 0 {
		requestContext = strings.Join(contextParts, "\n")
	}

	prompt := fmt.Sprintf(`You are Pip, a wine sommelier helping pick wines from someone's cellar.

USER'S CELLAR:
%s

CONTEXT:
%s

USER REQUEST: %s

Select 1-3 wines from their cellar and explain why each would be a good choice.
Consider:
- Food pairing compatibility (if food mentioned)
- Occasion appropriateness
- Wine characteristics
- User ratings (if available)

Format your response conversationally as Pip. Reference specific wines by their names.
For each recommendation, briefly explain why it's a good pick.`,
		strings.Join(descriptions, "\n"), requestContext, request)

	message, err := a.llm.Complete(ctx, decideSystemPrompt, prompt, 0.7, 600)
	if err != nil {
		a.logger.Error("decide completion failed", zap.Error(err))
		message = "I'd be happy to help you pick a wine! Let me know what you're having or the occasion."
	}

	return &DecideResult{
		Message:        message,
		Picks:          pickMentioned(message, listed),
		TotalAvailable: len(views),
	}, nil
}

// QuickPick grabs one owned bottle for a simple category. "special"
// picks the best bottle; other categories pick randomly with higher
// rated bottles weighted up.
func (a *DecideAgent) QuickPick(ctx context.Context, userID, category string) (*BottleView, string, error) {
	views, err := a.ownedBottles(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if len(views) == 0 {
		return nil, "Your cellar is empty!", nil
	}

	switch category {
	case "special":
		sort.SliceStable(views, func(i, j int) bool {
			if views[i].Bottle.Rating != views[j].Bottle.Rating {
				return views[i].Bottle.Rating > views[j].Bottle.Rating
			}
			return views[i].Price() > views[j].Price()
		})
	case "", "any":
	default:
		views = filterByType(views, category)
	}
	if len(views) == 0 {
		return nil, fmt.Sprintf("No %s wines found in your cellar.", category), nil
	}

	pick := views[0]
	if category != "special" {
		pick = weightedPick(views)
	}
	return &pick, fmt.Sprintf("How about the %s? It's a great choice!", pick.Name()), nil
}

// SuggestForFood is RecommendFromCellar specialized to a pairing.
func (a *DecideAgent) SuggestForFood(ctx context.Context, userID, food string) (*DecideResult, error) {
	return a.RecommendFromCellar(ctx, userID,
		fmt.Sprintf("What should I drink with %s?", food),
		models.Entities{FoodPairing: food})
}

func (a *DecideAgent) ownedBottles(ctx context.Context, userID string) ([]BottleView, error) {
	bottles, err := a.storage.ListCellarBottles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing cellar: %v", err)
	}
	var owned []models.CellarBottle
	for _, b := range bottles {
		if b.Status == models.StatusOwned && b.Quantity > 0 {
			owned = append(owned, b)
		}
	}
	return loadViews(ctx, a.storage, owned), nil
}

func filterByType(views []BottleView, wineType string) []BottleView {
	var filtered []BottleView
	for _, v := range views {
		if strings.EqualFold(string(v.Type()), wineType) {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

func weightedPick(views []BottleView) BottleView {
	var weighted []int
	for i, v := range views {
		rating := v.Bottle.Rating
		if rating == 0 {
			rating = 3
		}
		weight := int(rating) - 2
		if weight < 1 {
			weight = 1
		}
		for w := 0; w < weight; w++ {
			weighted = append(weighted, i)
		}
	}
	return views[weighted[rand.Intn(len(weighted))]]
}

// pickMentioned finds which bottles the prose named, fuzzy enough to
// survive small rewordings. Falls back to the highest rated bottles.
func pickMentioned(text string, views []BottleView) []BottleView {
	var picks []BottleView
	for _, v := range views {
		if match.Score(v.Name(), text) >= match.DefaultThreshold {
			picks = append(picks, v)
		}
		if len(picks) == maxDecideCards {
			return picks
		}
	}
	if len(picks) > 0 {
		return picks
	}

	byRating := append([]BottleView(nil), views...)
	sort.SliceStable(byRating, func(i, j int) bool {
		return byRating[i].Bottle.Rating > byRating[j].Bottle.Rating
	})
	if len(byRating) > maxDecideCards {
		byRating = byRating[:maxDecideCards]
	}
	return byRating
}

func describeBottle(v BottleView) string {
	desc := "- " + v.Name()
	if p := v.Producer(); p != "" {
		desc += " by " + p
	}
	if t := v.Type(); t != "" {
		desc += fmt.Sprintf(" (%s)", t)
	}
	if varietal := v.Varietal(); varietal != "" {
		desc += " - " + varietal
	}
	if r := v.Region(); r != "" {
		desc += " from " + r
	}
	if price := v.Price(); price > 0 {
		desc += fmt.Sprintf(" - $%.0f", price)
	}
	if v.Bottle.Rating > 0 {
		desc += fmt.Sprintf(" [Rated: %.1f/5]", v.Bottle.Rating)
	}
	desc += fmt.Sprintf(" (Qty: %d)", v.Bottle.Quantity)
	return desc
}
