package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/llm"
	"github.com/pipwine/pip/internal/match"
	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
	"github.com/pipwine/pip/pkg/jsonx"
)

const cellarQueryPrompt = `Convert this cellar query into filters. Extract any relevant criteria the user mentions.

Query: %s

Extract any of these filters that apply:
- status: "owned" (wines in cellar), "tried" (wines they've tasted), "saved" (wines they want to try), or null
- wine_type: "red", "white", "rosé", "sparkling", or null
- varietal: grape variety like "Chardonnay", "Pinot Noir", "Cabernet Sauvignon", etc. or null
- region: wine region like "Napa Valley", "Burgundy", "Tuscany", etc. or null
- country: country like "France", "Italy", "USA", "California", etc. or null
- min_rating: minimum rating (1-5) for "liked" or "enjoyed" wines, or null
- max_rating: maximum rating (1-5) for wines they "didn't like" or "weren't a fan of", or null
- price_min: number or null
- price_max: number or null

Note: For "liked", "loved", "enjoyed", "favorite" wines, set min_rating to 4.
Note: For "didn't like", "wasn't a fan", "not great", "disappointing" wines, set max_rating to 3.
Note: US states like "California", "Oregon", "Washington" should go in country field.

The user has three places for wines:
1. Cellar (owned): wines they currently have/own
2. Tried list: wines they've tasted
3. Want to try (saved): wines they'd like to try in the future

Examples:
- "my reds" -> {"wine_type": "red", "status": "owned"}
- "what's in my cellar" -> {"status": "owned"}
- "what have I tried" -> {"status": "tried"}
- "what Chardonnays have I tried" -> {"status": "tried", "varietal": "Chardonnay"}
- "wines I want to try" -> {"status": "saved"}
- "wines from California I own" -> {"status": "owned", "country": "California"}
- "Napa Valley reds" -> {"wine_type": "red", "region": "Napa Valley"}
- "what have I liked" -> {"min_rating": 4}
- "favorite reds" -> {"wine_type": "red", "min_rating": 4}
- "wines I didn't like" -> {"max_rating": 3}
- "sparkling wines under $50" -> {"wine_type": "sparkling", "price_max": 50}

Respond with ONLY valid JSON, no explanation:`

// CellarFilters is what a natural language cellar query resolves to.
// Status "saved" routes to the want-to-try list instead of the cellar.
type CellarFilters struct {
	Status    string  `json:"status,omitempty"`
	WineType  string  `json:"wine_type,omitempty"`
	Varietal  string  `json:"varietal,omitempty"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	MinRating float64 `json:"min_rating,omitempty"`
	MaxRating float64 `json:"max_rating,omitempty"`
	PriceMin  float64 `json:"price_min,omitempty"`
	PriceMax  float64 `json:"price_max,omitempty"`
}

// CellarAgent manages the user's bottle collection.
type CellarAgent struct {
	storage storage.Storage
	llm     llm.Completer
	logger  *zap.Logger
}

func NewCellarAgent(store storage.Storage, completer llm.Completer, logger *zap.Logger) *CellarAgent {
	return &CellarAgent{storage: store, llm: completer, logger: logger}
}

// AddInput identifies the wine to add: a catalog ID, or custom fields
// for bottles outside the catalog.
type AddInput struct {
	WineID           string
	Name             string
	Producer         string
	Vintage          int
	WineType         models.WineType
	Varietal         string
	Region           string
	Country          string
	PurchasePrice    float64
	PurchaseLocation string
}

// AddResult reports what happened: a new bottle, a quantity bump on a
// duplicate, or a tried bottle re-added as owned (rating kept).
type AddResult struct {
	View     BottleView
	IsNew    bool
	WasTried bool
}

func (a *CellarAgent) AddToCellar(ctx context.Context, userID string, input AddInput) (*AddResult, error) {
	if input.WineID != "" {
		existing, err := a.storage.FindCellarBottleByWine(ctx, userID, input.WineID)
		if err == nil {
			return a.addExisting(ctx, userID, existing)
		}
		if err != storage.ErrNotFound {
			return nil, fmt.Errorf("error checking cellar: %v", err)
		}
	}

	bottle := &models.CellarBottle{
		ID:               uuid.NewString(),
		UserID:           userID,
		WineID:           input.WineID,
		Status:           models.StatusOwned,
		Quantity:         1,
		PurchasePrice:    input.PurchasePrice,
		PurchaseLocation: input.PurchaseLocation,
	}
	if input.WineID == "" {
		bottle.CustomName = input.Name
		bottle.CustomProducer = input.Producer
		bottle.CustomVintage = input.Vintage
		bottle.CustomType = input.WineType
		bottle.CustomVarietal = input.Varietal
		bottle.CustomRegion = input.Region
		bottle.CustomCountry = input.Country
	}
	if err := a.storage.CreateCellarBottle(ctx, bottle); err != nil {
		return nil, fmt.Errorf("error adding to cellar: %v", err)
	}

	views := loadViews(ctx, a.storage, []models.CellarBottle{*bottle})
	return &AddResult{View: views[0], IsNew: true}, nil
}

func (a *CellarAgent) addExisting(ctx context.Context, userID string, existing *models.CellarBottle) (*AddResult, error) {
	wasTried := existing.Status == models.StatusTried
	if wasTried {
		// Re-purchased: back to owned, rating survives.
		existing.Status = models.StatusOwned
		if existing.Quantity < 1 {
			existing.Quantity = 1
		}
	} else {
		existing.Quantity++
	}
	if err := a.storage.UpdateCellarBottle(ctx, existing); err != nil {
		return nil, fmt.Errorf("error updating cellar bottle: %v", err)
	}
	views := loadViews(ctx, a.storage, []models.CellarBottle{*existing})
	return &AddResult{View: views[0], WasTried: wasTried}, nil
}

// SaveResult reports a want-to-try save. AlreadySaved means the wine
// was on the list before this call.
type SaveResult struct {
	Saved        models.SavedBottle
	WineName     string
	AlreadySaved bool
}

// SaveForLater puts a catalog wine on the want-to-try list.
func (a *CellarAgent) SaveForLater(ctx context.Context, userID, wineID, notes string) (*SaveResult, error) {
	wine, err := a.storage.GetWine(ctx, wineID)
	if err != nil {
		return nil, fmt.Errorf("error looking up wine: %v", err)
	}

	if existing := a.findSaved(ctx, userID, wineID); existing != nil {
		return &SaveResult{Saved: *existing, WineName: wine.Name, AlreadySaved: true}, nil
	}

	saved := &models.SavedBottle{
		ID:     uuid.NewString(),
		UserID: userID,
		WineID: wineID,
		Notes:  notes,
	}
	if err := a.storage.CreateSavedBottle(ctx, saved); err != nil {
		return nil, fmt.Errorf("error saving wine: %v", err)
	}
	return &SaveResult{Saved: *saved, WineName: wine.Name}, nil
}

// FindSavedByWine returns the saved entry for a catalog wine, nil when
// the wine is not on the list.
func (a *CellarAgent) FindSavedByWine(ctx context.Context, userID, wineID string) *models.SavedBottle {
	return a.findSaved(ctx, userID, wineID)
}

// FindSavedByName fuzzy-matches a saved entry against free text.
func (a *CellarAgent) FindSavedByName(ctx context.Context, userID, text string) (*models.SavedBottle, string) {
	saved, err := a.storage.ListSavedBottles(ctx, userID)
	if err != nil || len(saved) == 0 {
		return nil, ""
	}

	names := make([]string, len(saved))
	for i, sb := range saved {
		if wine, err := a.storage.GetWine(ctx, sb.WineID); err == nil {
			names[i] = wine.Name
		}
	}
	idx := match.Best(names, text, match.DefaultThreshold)
	if idx < 0 {
		return nil, ""
	}
	return &saved[idx], names[idx]
}

func (a *CellarAgent) findSaved(ctx context.Context, userID, wineID string) *models.SavedBottle {
	saved, err := a.storage.ListSavedBottles(ctx, userID)
	if err != nil {
		return nil
	}
	for i := range saved {
		if saved[i].WineID == wineID {
			return &saved[i]
		}
	}
	return nil
}

// PromoteSaved moves a saved entry into the cellar: the saved row goes
// away and the wine shows up owned (quantity bumped on a duplicate).
func (a *CellarAgent) PromoteSaved(ctx context.Context, userID, savedID string) (*BottleView, error) {
	bottle, err := a.storage.MoveSavedToCellar(ctx, savedID, userID)
	if err != nil {
		return nil, fmt.Errorf("error moving saved wine to cellar: %v", err)
	}
	views := loadViews(ctx, a.storage, []models.CellarBottle{*bottle})
	return &views[0], nil
}

// RemoveSaved drops an entry off the want-to-try list. The storage
// error passes through so callers can tell a missing row apart.
func (a *CellarAgent) RemoveSaved(ctx context.Context, userID, savedID string) error {
	return a.storage.DeleteSavedBottle(ctx, savedID, userID)
}

// QueryResult holds the filtered bottle list. Count is pre-limit.
type QueryResult struct {
	Views      []BottleView
	Count      int
	TotalCount int
	Filters    CellarFilters
}

// WantsSaved reports whether the query targets the want-to-try list.
func (r *QueryResult) WantsSaved() bool {
	return r.Filters.Status == "saved"
}

// QueryCellar answers a natural language collection query. The query
// text is parsed into filters by the LLM, explicit entities win over
// parsed ones, and filtering happens here so custom bottles match too.
func (a *CellarAgent) QueryCellar(ctx context.Context, userID, query string, entities models.Entities, limit int) (*QueryResult, error) {
	if limit <= 0 {
		limit = 10
	}

	filters := a.parseQuery(ctx, query)
	if entities.WineType != "" {
		filters.WineType = entities.WineType
	}
	if entities.Varietal != "" {
		filters.Varietal = entities.Varietal
	}
	if entities.Region != "" {
		filters.Region = entities.Region
	}
	if entities.Country != "" {
		filters.Country = entities.Country
	}
	if entities.PriceMin > 0 {
		filters.PriceMin = entities.PriceMin
	}
	if entities.PriceMax > 0 {
		filters.PriceMax = entities.PriceMax
	}
	// "Show me my cellar" means owned bottles, not the full history.
	if filters.Status == "" && filters.MinRating == 0 && filters.MaxRating == 0 {
		filters.Status = string(models.StatusOwned)
	}

	if filters.Status == "saved" {
		return &QueryResult{Filters: filters}, nil
	}

	bottles, err := a.storage.ListCellarBottles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing cellar: %v", err)
	}

	var matched []BottleView
	for _, view := range loadViews(ctx, a.storage, bottles) {
		if matchesFilters(view, filters) {
			matched = append(matched, view)
		}
	}

	result := &QueryResult{
		Views:      matched,
		Count:      len(matched),
		TotalCount: len(bottles),
		Filters:    filters,
	}
	if len(result.Views) > limit {
		result.Views = result.Views[:limit]
	}
	return result, nil
}

func matchesFilters(view BottleView, filters CellarFilters) bool {
	if filters.Status != "" && string(view.Bottle.Status) != filters.Status {
		return false
	}
	if filters.WineType != "" && !strings.EqualFold(string(view.Type()), filters.WineType) {
		return false
	}
	if filters.Varietal != "" && !containsFold(view.Varietal(), filters.Varietal) {
		return false
	}
	if filters.Region != "" && !containsFold(view.Region(), filters.Region) {
		return false
	}
	// Country also checks region so "California" matches Napa bottles.
	if filters.Country != "" && !containsFold(view.Country(), filters.Country) &&
		!containsFold(view.Region(), filters.Country) {
		return false
	}
	if filters.MinRating > 0 && (view.Bottle.Rating == 0 || view.Bottle.Rating < filters.MinRating) {
		return false
	}
	if filters.MaxRating > 0 && (view.Bottle.Rating == 0 || view.Bottle.Rating > filters.MaxRating) {
		return false
	}
	if price := view.Price(); price > 0 {
		if filters.PriceMin > 0 && price < filters.PriceMin {
			return false
		}
		if filters.PriceMax > 0 && price > filters.PriceMax {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return haystack != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func (a *CellarAgent) parseQuery(ctx context.Context, query string) CellarFilters {
	if query == "" {
		return CellarFilters{}
	}
	raw, err := a.llm.Complete(ctx,
		"Extract filters from query. Respond only with JSON.",
		fmt.Sprintf(cellarQueryPrompt, query),
		0.1, 100)
	if err != nil {
		a.logger.Warn("cellar query parse failed", zap.Error(err))
		return CellarFilters{}
	}
	var filters CellarFilters
	if err := jsonx.Unmarshal(raw, &filters); err != nil {
		a.logger.Warn("unparseable cellar filters", zap.String("raw", raw))
		return CellarFilters{}
	}
	return filters
}

// FindBottle fuzzy-matches a wine name against the user's bottles.
// Returns nil when nothing clears the match threshold.
func (a *CellarAgent) FindBottle(ctx context.Context, userID, text string) (*BottleView, error) {
	bottles, err := a.storage.ListCellarBottles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing cellar: %v", err)
	}
	views := loadViews(ctx, a.storage, bottles)
	names := make([]string, len(views))
	for i, v := range views {
		names[i] = v.Name()
	}
	idx := match.Best(names, text, match.DefaultThreshold)
	if idx < 0 {
		return nil, nil
	}
	return &views[idx], nil
}

// RemoveFromCellar decrements quantity, deleting the row when the last
// bottle goes. The yes/no confirmation happens upstream.
func (a *CellarAgent) RemoveFromCellar(ctx context.Context, userID, bottleID string, quantity int) (remaining int, err error) {
	if quantity <= 0 {
		quantity = 1
	}
	bottle, err := a.storage.GetCellarBottle(ctx, bottleID, userID)
	if err != nil {
		return 0, err
	}
	if bottle.Quantity <= quantity {
		if err := a.storage.DeleteCellarBottle(ctx, bottleID, userID); err != nil {
			return 0, fmt.Errorf("error removing bottle: %v", err)
		}
		return 0, nil
	}
	bottle.Quantity -= quantity
	if err := a.storage.UpdateCellarBottle(ctx, bottle); err != nil {
		return 0, fmt.Errorf("error updating bottle: %v", err)
	}
	return bottle.Quantity, nil
}

// RateWine persists a rating and optional notes. The owned->tried
// transition is separate (MarkTried) so rating a bottle never silently
// removes it from the cellar.
func (a *CellarAgent) RateWine(ctx context.Context, userID, bottleID string, rating float64, notes string) (*BottleView, float64, error) {
	if rating < 1 || rating > 5 {
		return nil, 0, fmt.Errorf("rating must be between 1 and 5")
	}
	bottle, err := a.storage.GetCellarBottle(ctx, bottleID, userID)
	if err != nil {
		return nil, 0, err
	}

	previous := bottle.Rating
	bottle.Rating = rating
	now := time.Now()
	bottle.TriedDate = &now
	if notes != "" {
		bottle.TastingNotes = notes
	}
	if err := a.storage.UpdateCellarBottle(ctx, bottle); err != nil {
		return nil, 0, fmt.Errorf("error saving rating: %v", err)
	}

	views := loadViews(ctx, a.storage, []models.CellarBottle{*bottle})
	return &views[0], previous, nil
}

// MarkTried moves an owned bottle to the tried list.
func (a *CellarAgent) MarkTried(ctx context.Context, userID, bottleID string) error {
	bottle, err := a.storage.GetCellarBottle(ctx, bottleID, userID)
	if err != nil {
		return err
	}
	if bottle.Status != models.StatusOwned {
		return nil
	}
	bottle.Status = models.StatusTried
	if err := a.storage.UpdateCellarBottle(ctx, bottle); err != nil {
		return fmt.Errorf("error updating bottle status: %v", err)
	}
	return nil
}

// Stats summarizes the collection.
type Stats struct {
	TotalOwned    int                      `json:"total_bottles"`
	WinesTried    int                      `json:"wines_tried"`
	TypeBreakdown map[models.WineType]int  `json:"type_breakdown"`
	AverageRating float64                  `json:"average_rating,omitempty"`
	RatingsCount  int                      `json:"ratings_count"`
}

func (a *CellarAgent) Stats(ctx context.Context, userID string) (*Stats, error) {
	bottles, err := a.storage.ListCellarBottles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing cellar: %v", err)
	}

	stats := &Stats{
		TypeBreakdown: map[models.WineType]int{
			models.WineTypeRed:       0,
			models.WineTypeWhite:     0,
			models.WineTypeRose:      0,
			models.WineTypeSparkling: 0,
		},
	}
	var ratingSum float64
	for _, view := range loadViews(ctx, a.storage, bottles) {
		switch view.Bottle.Status {
		case models.StatusOwned:
			stats.TotalOwned++
		case models.StatusTried:
			stats.WinesTried++
		}
		if t := view.Type(); t != "" {
			if _, ok := stats.TypeBreakdown[t]; ok {
				stats.TypeBreakdown[t]++
			}
		}
		if view.Bottle.Rating > 0 {
			stats.RatingsCount++
			ratingSum += view.Bottle.Rating
		}
	}
	if stats.RatingsCount > 0 {
		stats.AverageRating = ratingSum / float64(stats.RatingsCount)
	}
	return stats, nil
}
