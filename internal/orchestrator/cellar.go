package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/agents"
	"github.com/pipwine/pip/internal/match"
	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
)

var savedQueryWords = []string{"saved", "wishlist", "want to try", "to try"}

func (o *Orchestrator) handleCellarQuery(ctx context.Context, t *turn, entities models.Entities) *models.Response {
	if t.userID == "" {
		return o.authRequired(t, "Sign in to view your cellar. Once you do, I can help you manage your wine collection!", models.IntentCellarQuery)
	}

	lower := strings.ToLower(t.message)
	if wantsProfile(lower) {
		return o.handleProfileQuery(ctx, t)
	}
	if wantsStats(lower) {
		return o.handleStats(ctx, t)
	}

	wantsSaved := false
	for _, word := range savedQueryWords {
		if strings.Contains(lower, word) {
			wantsSaved = true
			break
		}
	}

	result, err := o.cellar.QueryCellar(ctx, t.userID, t.message, entities, 10)
	if err != nil {
		o.logger.Error("cellar query failed", zap.Error(err))
		return o.respond(ctx, t, "I had trouble reading your cellar just now. Please try again.", models.IntentCellarQuery, nil)
	}

	if wantsSaved || result.WantsSaved() {
		return o.listSavedBottles(ctx, t)
	}

	if result.Count == 0 {
		resp := o.respond(ctx, t, "Your cellar is empty for those criteria. Want to find some wines to add?", models.IntentCellarQuery, nil)
		resp.Actions = []models.Action{{Type: "recommend", Label: "Find wines"}}
		return resp
	}

	text := fmt.Sprintf("You have %d wine%s matching that:", result.Count, plural(result.Count))
	cards := make([]models.Card, 0, 5)
	for i, view := range result.Views {
		if i == 5 {
			break
		}
		cards = append(cards, view.Card())
	}

	resp := o.respond(ctx, t, text, models.IntentCellarQuery, nil)
	resp.Cards = cards
	return resp
}

func (o *Orchestrator) listSavedBottles(ctx context.Context, t *turn) *models.Response {
	saved, err := o.storage.ListSavedBottles(ctx, t.userID)
	if err != nil {
		o.logger.Error("saved list failed", zap.Error(err))
		return o.respond(ctx, t, "I had trouble reading your saved wines just now. Please try again.", models.IntentCellarQuery, nil)
	}

	if len(saved) == 0 {
		resp := o.respond(ctx, t, "You haven't saved any wines yet. When I recommend wines, you can save the ones you want to try!", models.IntentCellarQuery, nil)
		resp.Actions = []models.Action{{Type: "recommend", Label: "Find wines to save"}}
		return resp
	}

	text := fmt.Sprintf("You have %d saved wine%s:", len(saved), plural(len(saved)))
	cards := make([]models.Card, 0, 5)
	for i, sb := range saved {
		if i == 5 {
			break
		}
		card := models.Card{
			Type:    models.CardSaved,
			SavedID: sb.ID,
			WineID:  sb.WineID,
			SavedAt: sb.SavedAt.Format("2006-01-02"),
			Notes:   sb.Notes,
		}
		if wine, err := o.storage.GetWine(ctx, sb.WineID); err == nil {
			card.WineName = wine.Name
			card.Producer = wine.Producer
			card.Vintage = wine.Vintage
			card.WineType = wine.Type
			card.Varietal = wine.Varietal
			card.Region = wine.Region
			card.Country = wine.Country
			card.PriceUSD = wine.PriceUSD
		}
		cards = append(cards, card)
	}

	resp := o.respond(ctx, t, text, models.IntentCellarQuery, nil)
	resp.Cards = cards
	return resp
}

var (
	profileWords = []string{"my taste", "my palate", "my profile", "what do i like", "what kind of wine do i"}
	statsWords   = []string{"how many", "stats", "statistics", "summary", "breakdown", "overview"}
)

func wantsProfile(lower string) bool {
	for _, w := range profileWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func wantsStats(lower string) bool {
	for _, w := range statsWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) handleProfileQuery(ctx context.Context, t *turn) *models.Response {
	result, err := o.profile.GetProfile(ctx, t.userID)
	if err != nil {
		o.logger.Error("profile lookup failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't read your taste profile just now. Please try again.", models.IntentCellarQuery, nil)
	}

	if !result.HasProfile {
		text := fmt.Sprintf("I don't know your taste well enough yet - rate %d more wine%s and I'll start spotting patterns!", result.RatingsNeeded, plural(result.RatingsNeeded))
		resp := o.respond(ctx, t, text, models.IntentCellarQuery, nil)
		resp.Actions = []models.Action{{Type: "recommend", Label: "Find wines to try"}}
		return resp
	}
	return o.respond(ctx, t, result.Insights, models.IntentCellarQuery, nil)
}

func (o *Orchestrator) handleStats(ctx context.Context, t *turn) *models.Response {
	stats, err := o.cellar.Stats(ctx, t.userID)
	if err != nil {
		o.logger.Error("cellar stats failed", zap.Error(err))
		return o.respond(ctx, t, "I had trouble reading your cellar just now. Please try again.", models.IntentCellarQuery, nil)
	}
	return o.respond(ctx, t, formatStats(stats), models.IntentCellarQuery, nil)
}

func formatStats(stats *agents.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your cellar at a glance: %d bottle%s owned, %d tried.", stats.TotalOwned, plural(stats.TotalOwned), stats.WinesTried)

	var parts []string
	for _, wt := range []models.WineType{models.WineTypeRed, models.WineTypeWhite, models.WineTypeRose, models.WineTypeSparkling} {
		if n := stats.TypeBreakdown[wt]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, wt))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, " By type: %s.", strings.Join(parts, ", "))
	}
	if stats.RatingsCount > 0 {
		fmt.Fprintf(&b, " Average rating %.1f across %d rating%s.", stats.AverageRating, stats.RatingsCount, plural(stats.RatingsCount))
	}
	return b.String()
}

func (o *Orchestrator) handleCellarAdd(ctx context.Context, t *turn) *models.Response {
	if t.userID == "" {
		return o.authRequired(t, "Sign in to add wines to your cellar!", models.IntentCellarAdd)
	}

	ref := o.resolveWineReference(ctx, t)
	if ref == nil {
		return o.respond(ctx, t, "Which wine would you like to add? Tell me the name or let's find one first.", models.IntentCellarAdd, nil)
	}

	if wantsSave(t.message) {
		return o.handleSave(ctx, t, ref)
	}

	// Adding a wine that is already on the saved list promotes it.
	if ref.WineID != "" {
		if saved := o.cellar.FindSavedByWine(ctx, t.userID, ref.WineID); saved != nil {
			return o.promoteSaved(ctx, t, saved.ID)
		}
	}

	result, err := o.cellar.AddToCellar(ctx, t.userID, agents.AddInput{
		WineID:   ref.WineID,
		Name:     ref.WineName,
		Producer: ref.Producer,
		Vintage:  ref.Vintage,
		WineType: ref.WineType,
		Varietal: ref.Varietal,
		Region:   ref.Region,
		Country:  ref.Country,
	})
	if err != nil {
		o.logger.Error("cellar add failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't add that to your cellar just now. Please try again.", models.IntentCellarAdd, nil)
	}

	var text string
	switch {
	case result.IsNew:
		text = fmt.Sprintf("Added %s to your cellar!", result.View.Name())
		if err := o.sessions.TrackAction(ctx, t.session, agents.ActionCellarAdd, map[string]string{
			"bottle_id": result.View.Bottle.ID,
			"wine_id":   result.View.Bottle.WineID,
			"wine_name": result.View.Name(),
		}); err != nil {
			o.logger.Warn("failed to track action", zap.Error(err))
		}
	case result.WasTried:
		// Re-purchase: back on the owned list, rating kept.
		text = fmt.Sprintf("Added %s back to your cellar!", result.View.Name())
	default:
		text = fmt.Sprintf("Added another bottle of %s to your cellar. You now have %d.", result.View.Name(), result.View.Bottle.Quantity)
	}

	resp := o.respond(ctx, t, text, models.IntentCellarAdd, nil)
	resp.Actions = []models.Action{
		{Type: "view_cellar", Label: "View cellar"},
		{Type: "undo", Label: "Undo"},
	}
	return resp
}

var saveWords = []string{"save", "wishlist", "want to try", "for later"}

// wantsSave distinguishes "save that for later" from "add it to my
// cellar". A message naming the cellar always means a cellar add.
func wantsSave(message string) bool {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "cellar") {
		return false
	}
	for _, w := range saveWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) handleSave(ctx context.Context, t *turn, ref *models.WineReference) *models.Response {
	if ref.WineID == "" {
		return o.respond(ctx, t, "I can only save wines from my catalog for later. Want me to add it straight to your cellar instead?", models.IntentCellarAdd, nil)
	}

	result, err := o.cellar.SaveForLater(ctx, t.userID, ref.WineID, "")
	if err != nil {
		o.logger.Error("save failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't save that wine just now. Please try again.", models.IntentCellarAdd, nil)
	}
	if result.AlreadySaved {
		return o.respond(ctx, t, fmt.Sprintf("%s is already on your saved list.", result.WineName), models.IntentCellarAdd, nil)
	}

	if err := o.sessions.TrackAction(ctx, t.session, agents.ActionSave, map[string]string{
		"saved_id":  result.Saved.ID,
		"wine_name": result.WineName,
	}); err != nil {
		o.logger.Warn("failed to track action", zap.Error(err))
	}

	resp := o.respond(ctx, t, fmt.Sprintf("Saved %s to your want-to-try list!", result.WineName), models.IntentCellarAdd, nil)
	resp.Actions = []models.Action{
		{Type: "view_saved", Label: "View saved wines"},
		{Type: "undo", Label: "Undo"},
	}
	return resp
}

func (o *Orchestrator) promoteSaved(ctx context.Context, t *turn, savedID string) *models.Response {
	view, err := o.cellar.PromoteSaved(ctx, t.userID, savedID)
	if err != nil {
		o.logger.Error("saved promotion failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't add that to your cellar just now. Please try again.", models.IntentCellarAdd, nil)
	}

	if err := o.sessions.TrackAction(ctx, t.session, agents.ActionCellarAdd, map[string]string{
		"bottle_id": view.Bottle.ID,
		"wine_id":   view.Bottle.WineID,
		"wine_name": view.Name(),
	}); err != nil {
		o.logger.Warn("failed to track action", zap.Error(err))
	}

	resp := o.respond(ctx, t, fmt.Sprintf("Moved %s from your saved list into your cellar!", view.Name()), models.IntentCellarAdd, nil)
	resp.Actions = []models.Action{
		{Type: "view_cellar", Label: "View cellar"},
		{Type: "undo", Label: "Undo"},
	}
	return resp
}

func (o *Orchestrator) handleCellarRemove(ctx context.Context, t *turn) *models.Response {
	if t.userID == "" {
		return o.authRequired(t, "Sign in to manage your cellar.", models.IntentCellarRemove)
	}

	// Name in the message wins over conversation references.
	view, err := o.cellar.FindBottle(ctx, t.userID, t.message)
	if err != nil {
		o.logger.Error("cellar lookup failed", zap.Error(err))
	}
	if view == nil {
		// Saved-list entries come off without the confirmation step.
		if saved, name := o.cellar.FindSavedByName(ctx, t.userID, t.message); saved != nil {
			return o.removeSaved(ctx, t, saved.ID, name)
		}
		ref := o.resolveWineReference(ctx, t)
		if ref == nil {
			return o.respond(ctx, t, "Which wine would you like to remove from your cellar?", models.IntentCellarRemove, nil)
		}
		view = o.findBottleForReference(ctx, t.userID, ref)
		if view == nil {
			if ref.WineID != "" {
				if saved := o.cellar.FindSavedByWine(ctx, t.userID, ref.WineID); saved != nil {
					return o.removeSaved(ctx, t, saved.ID, ref.WineName)
				}
			}
			return o.respond(ctx, t, fmt.Sprintf("I couldn't find %s in your cellar.", ref.WineName), models.IntentCellarRemove, nil)
		}
	}

	if err := o.sessions.SetMode(ctx, t.session, models.ConversationMode{
		Kind: models.ModeAwaitingDeleteConfirm,
		Delete: &models.DeleteConfirmState{
			BottleID: view.Bottle.ID,
			WineName: view.Name(),
		},
	}); err != nil {
		o.logger.Warn("failed to set delete confirm mode", zap.Error(err))
	}

	text := fmt.Sprintf("Remove %s from your cellar? Say 'yes' to confirm.", view.Name())
	resp := o.respond(ctx, t, text, models.IntentCellarRemove, nil)
	resp.ConfirmationRequired = true
	resp.Actions = []models.Action{
		{Type: "confirm", Label: "Yes, remove"},
		{Type: "cancel", Label: "Cancel"},
	}
	return resp
}

func (o *Orchestrator) removeSaved(ctx context.Context, t *turn, savedID, wineName string) *models.Response {
	if err := o.cellar.RemoveSaved(ctx, t.userID, savedID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return o.respond(ctx, t, fmt.Sprintf("%s is no longer on your saved list.", wineName), models.IntentCellarRemove, nil)
		}
		o.logger.Error("saved remove failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't remove that just now. Please try again.", models.IntentCellarRemove, nil)
	}
	return o.respond(ctx, t, fmt.Sprintf("Removed %s from your saved list.", wineName), models.IntentCellarRemove, nil)
}

// handleDeleteConfirm resolves a pending removal. Returns nil when the
// answer is neither yes nor no, so the turn falls through to normal
// classification.
func (o *Orchestrator) handleDeleteConfirm(ctx context.Context, t *turn) *models.Response {
	state := t.session.Context.Mode.Delete

	switch {
	case isAffirmative(t.message):
		if err := o.sessions.ClearMode(ctx, t.session); err != nil {
			o.logger.Warn("failed to clear mode", zap.Error(err))
		}
		if state == nil {
			return o.respond(ctx, t, "Nothing pending to remove.", models.IntentCellarRemove, nil)
		}
		if err := o.storage.DeleteCellarBottle(ctx, state.BottleID, t.userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return o.respond(ctx, t, fmt.Sprintf("%s is no longer in your cellar.", state.WineName), models.IntentCellarRemove, nil)
			}
			o.logger.Error("cellar remove failed", zap.Error(err))
			return o.respond(ctx, t, "I couldn't remove that just now. Please try again.", models.IntentCellarRemove, nil)
		}
		if err := o.sessions.TrackAction(ctx, t.session, agents.ActionCellarRemove, map[string]string{
			"wine_name": state.WineName,
		}); err != nil {
			o.logger.Warn("failed to track action", zap.Error(err))
		}
		return o.respond(ctx, t, fmt.Sprintf("Removed %s from your cellar.", state.WineName), models.IntentCellarRemove, nil)

	case isNegative(t.message):
		if err := o.sessions.ClearMode(ctx, t.session); err != nil {
			o.logger.Warn("failed to clear mode", zap.Error(err))
		}
		name := "it"
		if state != nil {
			name = state.WineName
		}
		return o.respond(ctx, t, fmt.Sprintf("No problem, %s stays in your cellar.", name), models.IntentCellarRemove, nil)
	}

	if err := o.sessions.ClearMode(ctx, t.session); err != nil {
		o.logger.Warn("failed to clear mode", zap.Error(err))
	}
	return nil
}

var ratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:stars?|/5|out of 5)`),
	regexp.MustCompile(`(?:rate|give|score)\D*?(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`),
}

// extractRating pulls a 1-5 rating out of phrasings like "4 stars",
// "rate it 3.5", "4/5". Returns 0 when no usable number appears.
func extractRating(message string) float64 {
	lower := strings.ToLower(message)
	for _, re := range ratingPatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			rating, err := strconv.ParseFloat(m[1], 64)
			if err == nil && rating >= 1 && rating <= 5 {
				return rating
			}
		}
	}
	return 0
}

func (o *Orchestrator) handleRate(ctx context.Context, t *turn) *models.Response {
	if t.userID == "" {
		return o.authRequired(t, "Sign in to rate wines and track your preferences!", models.IntentRate)
	}

	rating := extractRating(t.message)
	view, ref := o.resolveRateTarget(ctx, t)

	if rating == 0 {
		// "I drank the Merlot" logs the wine and asks for the score.
		if view != nil || ref != nil {
			name := "this wine"
			if view != nil {
				name = view.Name()
				refValue := view.Reference("cellar")
				ref = &refValue
			} else {
				name = ref.WineName
			}
			if err := o.sessions.SetRecentWine(ctx, t.session, ref); err != nil {
				o.logger.Warn("failed to set recent wine", zap.Error(err))
			}
			return o.respond(ctx, t, fmt.Sprintf("How was %s? Give it a rating from 1 to 5.", name), models.IntentRate, nil)
		}
		return o.respond(ctx, t, "How would you rate this wine? You can say something like '4 stars' or 'I'd give it a 3.5'.", models.IntentRate, nil)
	}

	if view == nil && ref == nil {
		return o.respond(ctx, t, "Which wine would you like to rate?", models.IntentRate, nil)
	}

	// Not in the cellar yet: log it straight onto the tried list.
	if view == nil {
		return o.rateNewTriedEntry(ctx, t, ref, rating)
	}

	updated, previous, err := o.cellar.RateWine(ctx, t.userID, view.Bottle.ID, rating, "")
	if err != nil {
		o.logger.Error("rating failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't save that rating just now. Please try again.", models.IntentRate, nil)
	}

	if err := o.sessions.TrackAction(ctx, t.session, agents.ActionRate, map[string]string{
		"bottle_id":       updated.Bottle.ID,
		"wine_name":       updated.Name(),
		"previous_rating": strconv.FormatFloat(previous, 'f', -1, 64),
	}); err != nil {
		o.logger.Warn("failed to track action", zap.Error(err))
	}
	o.updateProfileFromView(ctx, t.userID, updated, rating)

	if updated.Bottle.Status == models.StatusOwned {
		// Rating an owned bottle never silently removes it; moving to
		// the tried list is its own question.
		if err := o.sessions.SetMode(ctx, t.session, models.ConversationMode{
			Kind: models.ModeAwaitingTriedConfirm,
			Tried: &models.TriedConfirmState{
				BottleID: updated.Bottle.ID,
				WineName: updated.Name(),
				Rating:   rating,
			},
		}); err != nil {
			o.logger.Warn("failed to set tried confirm mode", zap.Error(err))
		}
		text := fmt.Sprintf("Got it! Rated %s %g/5. Did you finish the bottle - should I move it to your tried list?", updated.Name(), rating)
		resp := o.respond(ctx, t, text, models.IntentRate, nil)
		resp.ConfirmationRequired = true
		resp.Actions = []models.Action{
			{Type: "confirm", Label: "Yes, I finished it"},
			{Type: "cancel", Label: "No, I still have it"},
		}
		return resp
	}

	return o.respond(ctx, t, fmt.Sprintf("Got it! Rated %s %g/5. Would you like to add any tasting notes?", updated.Name(), rating), models.IntentRate, nil)
}

// handleTriedConfirm resolves the owned->tried question after a rating.
// Returns nil for answers that are neither yes nor no.
func (o *Orchestrator) handleTriedConfirm(ctx context.Context, t *turn) *models.Response {
	state := t.session.Context.Mode.Tried

	switch {
	case isAffirmative(t.message):
		if err := o.sessions.ClearMode(ctx, t.session); err != nil {
			o.logger.Warn("failed to clear mode", zap.Error(err))
		}
		if state == nil {
			return o.respond(ctx, t, "Nothing pending here.", models.IntentRate, nil)
		}
		if err := o.cellar.MarkTried(ctx, t.userID, state.BottleID); err != nil {
			o.logger.Error("mark tried failed", zap.Error(err))
			return o.respond(ctx, t, "I couldn't update that just now. Please try again.", models.IntentRate, nil)
		}
		return o.respond(ctx, t, fmt.Sprintf("Moved %s to your tried list.", state.WineName), models.IntentRate, nil)

	case isNegative(t.message):
		if err := o.sessions.ClearMode(ctx, t.session); err != nil {
			o.logger.Warn("failed to clear mode", zap.Error(err))
		}
		name := "it"
		if state != nil {
			name = state.WineName
		}
		return o.respond(ctx, t, fmt.Sprintf("No problem - %s stays in your cellar with its rating.", name), models.IntentRate, nil)
	}

	if err := o.sessions.ClearMode(ctx, t.session); err != nil {
		o.logger.Warn("failed to clear mode", zap.Error(err))
	}
	return nil
}

func (o *Orchestrator) rateNewTriedEntry(ctx context.Context, t *turn, ref *models.WineReference, rating float64) *models.Response {
	input := agents.AddInput{
		WineID:   ref.WineID,
		Name:     ref.WineName,
		Producer: ref.Producer,
		Vintage:  ref.Vintage,
		WineType: ref.WineType,
		Varietal: ref.Varietal,
		Region:   ref.Region,
		Country:  ref.Country,
	}
	result, err := o.cellar.AddToCellar(ctx, t.userID, input)
	if err != nil {
		o.logger.Error("tried entry failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't save that rating just now. Please try again.", models.IntentRate, nil)
	}

	updated, previous, err := o.cellar.RateWine(ctx, t.userID, result.View.Bottle.ID, rating, "")
	if err != nil {
		o.logger.Error("rating failed", zap.Error(err))
		return o.respond(ctx, t, "I couldn't save that rating just now. Please try again.", models.IntentRate, nil)
	}
	if err := o.cellar.MarkTried(ctx, t.userID, updated.Bottle.ID); err != nil {
		o.logger.Warn("failed to mark tried", zap.Error(err))
	}

	if err := o.sessions.TrackAction(ctx, t.session, agents.ActionRate, map[string]string{
		"bottle_id":       updated.Bottle.ID,
		"wine_name":       updated.Name(),
		"previous_rating": strconv.FormatFloat(previous, 'f', -1, 64),
	}); err != nil {
		o.logger.Warn("failed to track action", zap.Error(err))
	}
	o.updateProfileFromView(ctx, t.userID, updated, rating)

	return o.respond(ctx, t, fmt.Sprintf("Got it! Rated %s %g/5 and added it to your tried list. Would you like to add any tasting notes?", updated.Name(), rating), models.IntentRate, nil)
}

func (o *Orchestrator) updateProfileFromView(ctx context.Context, userID string, view *agents.BottleView, rating float64) {
	signal := agents.RatingSignal{
		WineType: view.Type(),
		Region:   view.Region(),
		Varietal: view.Varietal(),
		Price:    view.Price(),
		Rating:   rating,
	}
	if view.Wine != nil {
		signal.Characteristics = view.Wine.Metadata.Characteristics
	}
	if err := o.profile.UpdateFromRating(ctx, userID, signal); err != nil {
		o.logger.Warn("profile update failed", zap.Error(err))
	}
}

// resolveRateTarget finds the bottle or wine a rating applies to, in
// priority order: a name in the message matched against the cellar,
// then the catalog, then recent conversation references.
func (o *Orchestrator) resolveRateTarget(ctx context.Context, t *turn) (*agents.BottleView, *models.WineReference) {
	if view, err := o.cellar.FindBottle(ctx, t.userID, t.message); err == nil && view != nil {
		return view, nil
	}

	if wines, err := o.storage.ListWines(ctx); err == nil {
		names := make([]string, len(wines))
		for i, w := range wines {
			names[i] = w.Name
		}
		if idx := match.Best(names, t.message, match.DefaultThreshold); idx >= 0 {
			wine := wines[idx]
			return nil, &models.WineReference{
				WineID:   wine.ID,
				WineName: wine.Name,
				Producer: wine.Producer,
				Vintage:  wine.Vintage,
				WineType: wine.Type,
				Varietal: wine.Varietal,
				Region:   wine.Region,
				Country:  wine.Country,
				Source:   "catalog",
			}
		}
	}

	ref := o.resolveWineReference(ctx, t)
	if ref == nil {
		return nil, nil
	}
	if view := o.findBottleForReference(ctx, t.userID, ref); view != nil {
		return view, nil
	}
	return nil, ref
}

// resolveWineReference finds the wine the conversation is about.
func (o *Orchestrator) resolveWineReference(ctx context.Context, t *turn) *models.WineReference {
	if t.session.Context.RecentWine != nil {
		return t.session.Context.RecentWine
	}
	refs, err := o.sessions.GetRecentWineReferences(ctx, t.session.ID, 3)
	if err != nil {
		o.logger.Warn("reference scan failed", zap.Error(err))
		return nil
	}
	if len(refs) == 0 {
		return nil
	}
	return &refs[0]
}

func (o *Orchestrator) findBottleForReference(ctx context.Context, userID string, ref *models.WineReference) *agents.BottleView {
	if ref.BottleID != "" {
		if bottle, err := o.storage.GetCellarBottle(ctx, ref.BottleID, userID); err == nil {
			views := o.viewsFor(ctx, *bottle)
			return &views[0]
		}
	}
	if ref.WineID != "" {
		if bottle, err := o.storage.FindCellarBottleByWine(ctx, userID, ref.WineID); err == nil {
			views := o.viewsFor(ctx, *bottle)
			return &views[0]
		}
	}
	if ref.WineName != "" {
		if view, err := o.cellar.FindBottle(ctx, userID, ref.WineName); err == nil && view != nil {
			return view
		}
	}
	return nil
}

func (o *Orchestrator) viewsFor(ctx context.Context, bottle models.CellarBottle) []agents.BottleView {
	view := agents.BottleView{Bottle: bottle}
	if bottle.WineID != "" {
		if wine, err := o.storage.GetWine(ctx, bottle.WineID); err == nil {
			view.Wine = wine
		}
	}
	return []agents.BottleView{view}
}

var affirmatives = []string{"yes", "yeah", "yep", "yup", "sure", "confirm", "ok", "okay", "do it", "remove it", "delete it", "i did", "i finished", "finished it"}

var negatives = []string{"no", "nope", "nah", "cancel", "keep it", "don't", "dont", "not yet", "still have"}

func isAffirmative(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, word := range affirmatives {
		if lower == word || strings.HasPrefix(lower, word+" ") || strings.HasPrefix(lower, word+",") {
			return true
		}
	}
	return false
}

func isNegative(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, word := range negatives {
		if lower == word || strings.HasPrefix(lower, word+" ") || strings.HasPrefix(lower, word+",") {
			return true
		}
	}
	return false
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
