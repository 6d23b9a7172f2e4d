package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/agents"
	"github.com/pipwine/pip/internal/models"
)

var (
	compareRe = regexp.MustCompile(`(?i)(?:difference between|compare)\s+(.+?)\s+(?:and|vs\.?|versus)\s+(.+?)[\s?.!]*$`)
	termRe    = regexp.MustCompile(`(?i)what (?:is|does|are)\s+"?([a-z][a-z\s-]{2,30}?)"?\s*(?:mean|\?|$)`)
)

func (o *Orchestrator) handleEducationGeneral(ctx context.Context, t *turn) *models.Response {
	var answer string
	var err error

	switch {
	case compareRe.MatchString(t.message):
		m := compareRe.FindStringSubmatch(t.message)
		answer, err = o.education.CompareWines(ctx, m[1], m[2])
	case termRe.MatchString(t.message):
		m := termRe.FindStringSubmatch(t.message)
		answer, err = o.education.ExplainTerm(ctx, strings.TrimSpace(m[1]))
	default:
		answer, err = o.education.AnswerGeneral(ctx, t.message)
	}
	if err != nil {
		o.logger.Error("education failed", zap.Error(err))
		answer = "I'm having trouble responding right now. Please try again."
	}
	return o.respond(ctx, t, answer, models.IntentEducateGeneral, nil)
}

func (o *Orchestrator) handleEducationSpecific(ctx context.Context, t *turn) *models.Response {
	wineID, wineName := "", ""
	if ref := o.resolveWineReference(ctx, t); ref != nil {
		wineID, wineName = ref.WineID, ref.WineName
	}

	answer, wine, err := o.education.AnswerSpecific(ctx, wineID, wineName, t.message)
	if err != nil {
		o.logger.Error("education failed", zap.Error(err))
		answer = "I'm having trouble responding right now. Please try again."
	}
	if wine == nil && wineName == "" {
		// No reference anywhere; the message itself is the only lead,
		// and it didn't resolve.
		answer = "I couldn't find that wine in my database. Could you tell me more about it, or try a different wine?"
	}

	var metadata *models.MessageMetadata
	if wine != nil {
		metadata = &models.MessageMetadata{
			WineReference: &models.WineReference{
				WineID:   wine.ID,
				WineName: wine.Name,
				Producer: wine.Producer,
				Vintage:  wine.Vintage,
				WineType: wine.Type,
				Varietal: wine.Varietal,
				Region:   wine.Region,
				Country:  wine.Country,
				Source:   "catalog",
			},
		}
	}
	return o.respond(ctx, t, answer, models.IntentEducateSpecific, metadata)
}

func (o *Orchestrator) handleDecide(ctx context.Context, t *turn, message string, entities models.Entities) *models.Response {
	if t.userID == "" {
		return o.authRequired(t, "Sign in and I can help you pick from your cellar!", models.IntentDecide)
	}

	if lower := strings.ToLower(message); wantsQuickPick(lower) {
		return o.handleQuickPick(ctx, t, lower, entities)
	}

	var result *agents.DecideResult
	var err error
	if entities.FoodPairing != "" {
		result, err = o.decide.SuggestForFood(ctx, t.userID, entities.FoodPairing)
	} else {
		result, err = o.decide.RecommendFromCellar(ctx, t.userID, message, entities)
	}
	if err != nil {
		o.logger.Error("decide failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't look at your cellar just now. Please try again.", models.IntentDecide, nil)
	}

	if len(result.Picks) == 0 && result.TotalAvailable == 0 {
		resp := o.respond(ctx, t, result.Message, models.IntentDecide, nil)
		resp.Actions = []models.Action{{Type: "recommend", Label: "Find wines"}}
		return resp
	}

	refs := make([]models.WineReference, 0, len(result.Picks))
	cards := make([]models.Card, 0, len(result.Picks))
	for _, pick := range result.Picks {
		cards = append(cards, pick.Card())
		refs = append(refs, pick.Reference("cellar"))
	}

	resp := o.respond(ctx, t, result.Message, models.IntentDecide, &models.MessageMetadata{Recommendations: refs})
	resp.Cards = cards
	return resp
}

var quickPickCues = []string{"just pick", "pick one", "pick something", "pick for me", "surprise me", "you choose", "dealer's choice"}

func wantsQuickPick(lower string) bool {
	for _, cue := range quickPickCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) handleQuickPick(ctx context.Context, t *turn, lower string, entities models.Entities) *models.Response {
	category := entities.WineType
	if strings.Contains(lower, "special") || strings.Contains(lower, "celebrat") || strings.Contains(lower, "anniversary") {
		category = "special"
	}

	pick, message, err := o.decide.QuickPick(ctx, t.userID, category)
	if err != nil {
		o.logger.Error("quick pick failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't look at your cellar just now. Please try again.", models.IntentDecide, nil)
	}
	if pick == nil {
		return o.respond(ctx, t, message, models.IntentDecide, nil)
	}

	ref := pick.Reference("cellar")
	resp := o.respond(ctx, t, message, models.IntentDecide, &models.MessageMetadata{WineReference: &ref})
	resp.Cards = []models.Card{pick.Card()}
	return resp
}

func (o *Orchestrator) handleCorrect(ctx context.Context, t *turn) *models.Response {
	if strings.Contains(strings.ToLower(t.message), "undo") {
		action, err := o.sessions.PopLastAction(ctx, t.session)
		if err != nil {
			o.logger.Error("undo pop failed", zap.Error(err))
		}
		if action == nil {
			return o.respond(ctx, t, "Nothing to undo right now.", models.IntentCorrect, nil)
		}
		result := o.correction.UndoAction(ctx, t.userID, action)
		return o.respond(ctx, t, result.Message, models.IntentCorrect, nil)
	}

	// "Actually under $30": rebuild filters and re-run the search.
	// Start from the stashed previous request, if any; a successful
	// re-run stashes the corrected version back.
	previous := models.Entities{}
	message := t.message
	if pending, err := o.sessions.ConsumePendingRequest(ctx, t.session); err == nil && pending != nil {
		previous = pending.Entities
		message = pending.Message
	}

	entities := o.classifier.ExtractEntities(ctx, t.message)
	if entities.IsEmpty() {
		entities = o.correction.ModifyFilters(previous, t.message)
	} else {
		entities = mergeCorrection(previous, entities)
	}
	if !entities.IsEmpty() {
		return o.handleRecommend(ctx, t, message, entities)
	}

	return o.respond(ctx, t, "What would you like to change?", models.IntentCorrect, nil)
}

// mergeCorrection lays newly extracted fields over the previous
// request's filters.
func mergeCorrection(previous, update models.Entities) models.Entities {
	merged := previous
	if update.PriceMin > 0 {
		merged.PriceMin = update.PriceMin
	}
	if update.PriceMax > 0 {
		merged.PriceMax = update.PriceMax
	}
	if update.WineType != "" {
		merged.WineType = update.WineType
	}
	if update.Region != "" {
		merged.Region = update.Region
	}
	if update.Country != "" {
		merged.Country = update.Country
	}
	if update.Varietal != "" {
		merged.Varietal = update.Varietal
	}
	if update.Occasion != "" {
		merged.Occasion = update.Occasion
	}
	if update.FoodPairing != "" {
		merged.FoodPairing = update.FoodPairing
	}
	if len(update.Characteristics) > 0 {
		merged.Characteristics = update.Characteristics
	}
	if update.WineReference != "" {
		merged.WineReference = update.WineReference
	}
	return merged
}

func (o *Orchestrator) handleImage(ctx context.Context, t *turn, imageURL string) *models.Response {
	analysis, err := o.photo.Analyze(ctx, imageURL)
	if err != nil {
		return o.respond(ctx, t, `I couldn't identify that wine label clearly. A few tips:
- Make sure the label is well-lit and in focus
- Try to capture the front label with the wine name
- Hold the camera steady

Or you can just tell me the wine name and I'll help from there!`, models.IntentPhoto, nil)
	}

	if analysis.Confidence < 0.3 || analysis.Name == "" {
		failure := agents.ClassifyFailure(analysis.Confidence, analysis.AdditionalInfo)
		guidance := agents.GuidanceFor(failure)

		var b strings.Builder
		b.WriteString(guidance.Message)
		b.WriteString("\n")
		for _, s := range guidance.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		if guidance.CanRetry {
			b.WriteString("\nTry another photo, or just tell me the wine name!")
		}
		return o.respond(ctx, t, b.String(), models.IntentPhoto, nil)
	}

	text := agents.FormatSuccess(analysis) + " What would you like to do with it?"

	ref := &models.WineReference{
		WineName: analysis.Name,
		Producer: analysis.Producer,
		Vintage:  analysis.Vintage,
		WineType: models.WineType(analysis.WineType),
		Varietal: analysis.Varietal,
		Region:   analysis.Region,
		Country:  analysis.Country,
		Source:   "photo",
	}
	resp := o.respond(ctx, t, text, models.IntentPhoto, &models.MessageMetadata{WineReference: ref})
	if err := o.sessions.SetRecentWine(ctx, t.session, ref); err != nil {
		o.logger.Warn("failed to set recent wine", zap.Error(err))
	}

	resp.Cards = []models.Card{{
		Type:        models.CardIdentifiedWine,
		WineName:    analysis.Name,
		Producer:    analysis.Producer,
		Vintage:     analysis.Vintage,
		WineType:    models.WineType(analysis.WineType),
		Varietal:    analysis.Varietal,
		Region:      analysis.Region,
		Country:     analysis.Country,
		Confidence:  analysis.Confidence,
		Explanation: analysis.AdditionalInfo,
	}}
	return resp
}
