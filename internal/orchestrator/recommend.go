package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/retrieval"
)

// vagueCues are words that make a short request specific enough to
// skip the preference wizard.
var vagueCues = []string{
	"$", "under", "over", "around", "cheap", "expensive", "splurge", "special",
	"red", "white", "rosé", "rose", "sparkling", "champagne",
	"with", "pair", "dinner", "steak", "pasta", "seafood", "fish", "cheese",
}

var priceRe = regexp.MustCompile(`\$?(\d+(?:\.\d+)?)`)

// sparklingMarkers post-filter recommendations when the user asked for
// sparkling: catalog type fields are not always reliable for bubbles.
var sparklingMarkers = []string{"sparkling", "champagne", "brut", "prosecco", "cava", "crémant", "cremant", "lambrusco"}

func (o *Orchestrator) handleRecommend(ctx context.Context, t *turn, message string, entities models.Entities) *models.Response {
	// "What should I explore next" asks for palate-expanding ideas,
	// not a retrieval search.
	if t.userID != "" && wantsExploration(message) {
		return o.handleExploration(ctx, t)
	}

	// A bare "find me a wine" starts the wizard instead of guessing.
	// Prefs gathered on earlier turns mean the wizard already ran.
	if isVagueRequest(message, entities) && t.session.Context.Mode.Kind == models.ModeIdle &&
		t.session.Context.UnusedPrefs == nil {
		return o.startWizard(ctx, t, message)
	}

	// Merge wizard answers gathered on earlier turns.
	if prefs := t.session.Context.UnusedPrefs; prefs != nil {
		entities = mergePrefs(entities, *prefs)
		t.session.Context.UnusedPrefs = nil
		if err := o.sessions.SaveContext(ctx, t.session); err != nil {
			o.logger.Warn("failed to clear gathered prefs", zap.Error(err))
		}
	}

	prefs := retrieval.Preferences{
		Description: message,
		BudgetMin:   10,
		BudgetMax:   200,
		FoodPairing: entities.FoodPairing,
		WineType:    entities.WineType,
		Region:      entities.Region,
		Varietal:    entities.Varietal,
	}
	if entities.PriceMin > 0 {
		prefs.BudgetMin = entities.PriceMin
	}
	if entities.PriceMax > 0 {
		prefs.BudgetMax = entities.PriceMax
	}

	// Gaps the user left open are filled from the taste profile.
	if t.userID != "" {
		if filters, err := o.profile.RecommendationFilters(ctx, t.userID); err == nil && filters != nil {
			if prefs.WineType == "" && len(filters.PreferredTypes) > 0 {
				prefs.WineType = string(filters.PreferredTypes[0])
			}
			if prefs.Region == "" && len(filters.PreferredRegions) > 0 {
				prefs.Region = filters.PreferredRegions[0]
			}
			if entities.PriceMin == 0 && entities.PriceMax == 0 && filters.PriceMax > 0 {
				prefs.BudgetMin = filters.PriceMin
				prefs.BudgetMax = filters.PriceMax
			}
		}
	}

	// Sparkling needs headroom for the post-filter.
	topN := 3
	wantSparkling := strings.EqualFold(entities.WineType, string(models.WineTypeSparkling))
	if wantSparkling {
		topN = 15
	}

	recs, err := o.recommender.Recommend(ctx, prefs, topN)
	if err != nil {
		o.logger.Error("recommendation failed", zap.Error(err))
		resp := o.respond(ctx, t, "I'm having trouble finding wines right now. Could you try rephrasing your request?", models.IntentRecommend, nil)
		resp.Error = err.Error()
		return resp
	}

	if wantSparkling {
		recs = filterSparkling(recs)
	}
	if len(recs) > 3 {
		recs = recs[:3]
	}

	// Remember the request so "actually under $30" can rebuild it.
	if err := o.sessions.SetPendingRequest(ctx, t.session, message, entities); err != nil {
		o.logger.Warn("failed to stash request", zap.Error(err))
	}

	if len(recs) == 0 {
		return o.respond(ctx, t, "I couldn't find wines matching those exact criteria. Try broadening your search - maybe a wider price range or different style?", models.IntentRecommend, nil)
	}

	savedIDs, cellarIDs := o.userWineIDs(ctx, t.userID)

	text := fmt.Sprintf("I found %d wines that should work well:", len(recs))
	cards := make([]models.Card, 0, len(recs))
	refs := make([]models.WineReference, 0, len(recs))
	for _, rec := range recs {
		wine := rec.Wine
		cards = append(cards, models.Card{
			Type:           models.CardWine,
			WineID:         wine.ID,
			WineName:       wine.Name,
			Producer:       wine.Producer,
			Vintage:        wine.Vintage,
			WineType:       wine.Type,
			Varietal:       wine.Varietal,
			Region:         wine.Region,
			Country:        wine.Country,
			PriceUSD:       wine.PriceUSD,
			Explanation:    rec.Explanation,
			RelevanceScore: rec.RelevanceScore,
			IsSaved:        savedIDs[wine.ID],
			IsInCellar:     cellarIDs[wine.ID],
		})
		refs = append(refs, models.WineReference{
			WineID:   wine.ID,
			WineName: wine.Name,
			Producer: wine.Producer,
			Vintage:  wine.Vintage,
			WineType: wine.Type,
			Varietal: wine.Varietal,
			Region:   wine.Region,
			Country:  wine.Country,
			Source:   "recommendation",
		})
	}

	resp := o.respond(ctx, t, text, models.IntentRecommend, &models.MessageMetadata{Recommendations: refs})
	resp.Cards = cards
	resp.Actions = []models.Action{
		{Type: "save", Label: "Save"},
		{Type: "add_cellar", Label: "Add to cellar"},
		{Type: "tell_more", Label: "Tell me more"},
	}
	return resp
}

func (o *Orchestrator) userWineIDs(ctx context.Context, userID string) (saved, cellar map[string]bool) {
	saved = map[string]bool{}
	cellar = map[string]bool{}
	if userID == "" {
		return saved, cellar
	}
	if bottles, err := o.storage.ListSavedBottles(ctx, userID); err == nil {
		for _, b := range bottles {
			saved[b.WineID] = true
		}
	}
	if bottles, err := o.storage.ListCellarBottles(ctx, userID); err == nil {
		for _, b := range bottles {
			if b.WineID != "" {
				cellar[b.WineID] = true
			}
		}
	}
	return saved, cellar
}

// Preference wizard: budget, then food pairing, then wine type.

func (o *Orchestrator) startWizard(ctx context.Context, t *turn, original string) *models.Response {
	if err := o.sessions.SetMode(ctx, t.session, models.ConversationMode{
		Kind: models.ModeGatheringPreferences,
		Prefs: &models.PreferenceState{
			Step:     models.StepBudget,
			Original: original,
		},
	}); err != nil {
		o.logger.Warn("failed to start wizard", zap.Error(err))
	}
	return o.respond(ctx, t, "Happy to help! What's your budget for a bottle? (You can say something like \"under $30\" or \"doesn't matter\".)", models.IntentRecommend, nil)
}

func (o *Orchestrator) handleWizardAnswer(ctx context.Context, t *turn) *models.Response {
	state := t.session.Context.Mode.Prefs
	if state == nil {
		if err := o.sessions.ClearMode(ctx, t.session); err != nil {
			o.logger.Warn("failed to clear mode", zap.Error(err))
		}
		return o.handleRecommend(ctx, t, t.message, models.Entities{})
	}

	answer := strings.TrimSpace(t.message)
	switch state.Step {
	case models.StepBudget:
		state.Collected.PriceMin, state.Collected.PriceMax = parseBudget(answer)
		state.Step = models.StepFood
		if err := o.sessions.SetMode(ctx, t.session, models.ConversationMode{Kind: models.ModeGatheringPreferences, Prefs: state}); err != nil {
			o.logger.Warn("failed to advance wizard", zap.Error(err))
		}
		return o.respond(ctx, t, "Got it. Are you pairing it with any food?", models.IntentRecommend, nil)

	case models.StepFood:
		if !isSkipAnswer(answer) {
			state.Collected.FoodPairing = answer
		}
		state.Step = models.StepWineType
		if err := o.sessions.SetMode(ctx, t.session, models.ConversationMode{Kind: models.ModeGatheringPreferences, Prefs: state}); err != nil {
			o.logger.Warn("failed to advance wizard", zap.Error(err))
		}
		return o.respond(ctx, t, "And do you have a style in mind - red, white, rosé, or sparkling?", models.IntentRecommend, nil)

	default:
		if wt := parseWineType(answer); wt != "" {
			state.Collected.WineType = wt
		}
		t.session.Context.UnusedPrefs = &state.Collected
		t.session.Context.Mode = models.ConversationMode{Kind: models.ModeIdle}
		if err := o.sessions.SaveContext(ctx, t.session); err != nil {
			o.logger.Warn("failed to finish wizard", zap.Error(err))
		}
		original := state.Original
		if original == "" {
			original = t.message
		}
		return o.handleRecommend(ctx, t, original, models.Entities{})
	}
}

func isVagueRequest(message string, entities models.Entities) bool {
	if !entities.IsEmpty() {
		return false
	}
	if len(strings.Fields(message)) >= 8 {
		return false
	}
	lower := strings.ToLower(message)
	for _, cue := range vagueCues {
		if strings.Contains(lower, cue) {
			return false
		}
	}
	return true
}

func mergePrefs(entities models.Entities, prefs models.GatheredPrefs) models.Entities {
	if entities.PriceMin == 0 && prefs.PriceMin > 0 {
		entities.PriceMin = prefs.PriceMin
	}
	if entities.PriceMax == 0 && prefs.PriceMax > 0 {
		entities.PriceMax = prefs.PriceMax
	}
	if entities.FoodPairing == "" {
		entities.FoodPairing = prefs.FoodPairing
	}
	if entities.WineType == "" {
		entities.WineType = prefs.WineType
	}
	return entities
}

func parseBudget(answer string) (min, max float64) {
	lower := strings.ToLower(answer)
	if isSkipAnswer(lower) {
		return 0, 0
	}
	switch {
	case strings.Contains(lower, "cheap"):
		return 0, 20
	case strings.Contains(lower, "splurge") || strings.Contains(lower, "special"):
		return 50, 0
	}

	m := priceRe.FindStringSubmatch(lower)
	if m == nil {
		return 0, 0
	}
	amount, _ := strconv.ParseFloat(m[1], 64)
	switch {
	case strings.Contains(lower, "under") || strings.Contains(lower, "less") || strings.Contains(lower, "below") || strings.Contains(lower, "max"):
		return 0, amount
	case strings.Contains(lower, "over") || strings.Contains(lower, "above") || strings.Contains(lower, "more"):
		return amount, 0
	case strings.Contains(lower, "around") || strings.Contains(lower, "about"):
		return amount * 0.7, amount * 1.3
	default:
		return 0, amount
	}
}

func isSkipAnswer(answer string) bool {
	lower := strings.ToLower(strings.TrimSpace(answer))
	for _, skip := range []string{"no", "nope", "none", "any", "anything", "whatever", "doesn't matter", "dont care", "don't care", "not really", "surprise me", "skip"} {
		if lower == skip || strings.Contains(lower, skip) {
			return true
		}
	}
	return false
}

func parseWineType(answer string) string {
	lower := strings.ToLower(answer)
	switch {
	case strings.Contains(lower, "sparkling") || strings.Contains(lower, "champagne") || strings.Contains(lower, "bubbl"):
		return string(models.WineTypeSparkling)
	case strings.Contains(lower, "rosé") || strings.Contains(lower, "rose"):
		return string(models.WineTypeRose)
	case strings.Contains(lower, "red"):
		return string(models.WineTypeRed)
	case strings.Contains(lower, "white"):
		return string(models.WineTypeWhite)
	}
	return ""
}

func filterSparkling(recs []retrieval.Recommendation) []retrieval.Recommendation {
	var filtered []retrieval.Recommendation
	for _, rec := range recs {
		if rec.Wine.Type == models.WineTypeSparkling || hasSparklingMarker(rec.Wine) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func hasSparklingMarker(wine models.Wine) bool {
	haystack := strings.ToLower(wine.Name + " " + wine.Varietal + " " + strings.Join(wine.Metadata.Characteristics, " "))
	for _, marker := range sparklingMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

var explorationCues = []string{"explore", "expand my palate", "broaden my", "outside my comfort", "new styles"}

func wantsExploration(message string) bool {
	lower := strings.ToLower(message)
	for _, cue := range explorationCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) handleExploration(ctx context.Context, t *turn) *models.Response {
	suggestions, err := o.profile.ExplorationSuggestions(ctx, t.userID)
	if err != nil {
		o.logger.Error("exploration suggestions failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't put together suggestions just now. Please try again.", models.IntentRecommend, nil)
	}

	var b strings.Builder
	b.WriteString("Here's some new territory worth trying:\n")
	for _, s := range suggestions {
		fmt.Fprintf(&b, "- %s (%s)\n", s.Suggestion, s.Reason)
	}
	return o.respond(ctx, t, strings.TrimRight(b.String(), "\n"), models.IntentRecommend, nil)
}
