package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/llm"
	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
	"github.com/pipwine/pip/pkg/jsonx"
)

// minRatingsForProfile gates the profile until there is enough signal.
const minRatingsForProfile = 3

const maxPreferredEntries = 15

// ProfileAgent synthesizes taste preferences from ratings.
type ProfileAgent struct {
	storage storage.Storage
	llm     llm.Completer
	logger  *zap.Logger
}

func NewProfileAgent(store storage.Storage, completer llm.Completer, logger *zap.Logger) *ProfileAgent {
	return &ProfileAgent{storage: store, llm: completer, logger: logger}
}

// ProfileResult is the user-facing profile. HasProfile is false until
// enough ratings accumulate; RatingsNeeded says how many more.
type ProfileResult struct {
	HasProfile    bool
	RatingsNeeded int
	Profile       *models.UserTasteProfile
	Insights      string
}

func (a *ProfileAgent) GetProfile(ctx context.Context, userID string) (*ProfileResult, error) {
	profile, err := a.storage.GetTasteProfile(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("error getting taste profile: %v", err)
	}

	count := 0
	if profile != nil {
		count = profile.RatingCount
	}
	if count < minRatingsForProfile {
		return &ProfileResult{RatingsNeeded: minRatingsForProfile - count}, nil
	}

	return &ProfileResult{
		HasProfile: true,
		Profile:    profile,
		Insights:   buildInsights(profile),
	}, nil
}

// RecommendationFilters derives retrieval hints from the profile, or
// nil when the profile is too thin to be useful.
type RecommendationFilters struct {
	PreferredTypes     []models.WineType
	PreferredRegions   []string
	PreferredVarietals []string
	PriceMin           float64
	PriceMax           float64
	AvoidTypes         []models.WineType
}

func (a *ProfileAgent) RecommendationFilters(ctx context.Context, userID string) (*RecommendationFilters, error) {
	profile, err := a.storage.GetTasteProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting taste profile: %v", err)
	}
	if profile.RatingCount < minRatingsForProfile {
		return nil, nil
	}

	ranked := rankTypes(profile.PreferredTypes)
	filters := &RecommendationFilters{
		PriceMin: profile.PriceRangeMin,
		PriceMax: profile.PriceRangeMax,
	}
	for i, t := range ranked {
		if i < 2 && profile.PreferredTypes[t] > 0 {
			filters.PreferredTypes = append(filters.PreferredTypes, t)
		}
		if profile.PreferredTypes[t] < 0 {
			filters.AvoidTypes = append(filters.AvoidTypes, t)
		}
	}
	filters.PreferredRegions = firstN(profile.PreferredRegions, 3)
	filters.PreferredVarietals = firstN(profile.PreferredVarietals, 3)
	return filters, nil
}

// RatingSignal is what one rating contributes to the profile.
type RatingSignal struct {
	WineType        models.WineType
	Region          string
	Varietal        string
	Price           float64
	Rating          float64
	Characteristics []string
}

// UpdateFromRating folds a rating into the aggregate. Weight runs -1 to
// +1 around the 2.5 midpoint; regions/varietals only accrete at 4+.
func (a *ProfileAgent) UpdateFromRating(ctx context.Context, userID string, signal RatingSignal) error {
	profile, err := a.storage.GetTasteProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("error getting taste profile: %v", err)
		}
		profile = &models.UserTasteProfile{
			ID:     uuid.NewString(),
			UserID: userID,
		}
	}

	oldCount := profile.RatingCount
	profile.RatingCount = oldCount + 1
	if profile.AverageRating > 0 {
		profile.AverageRating = (profile.AverageRating*float64(oldCount) + signal.Rating) / float64(profile.RatingCount)
	} else {
		profile.AverageRating = signal.Rating
	}

	weight := (signal.Rating - 2.5) / 2.5
	if signal.WineType != "" {
		if profile.PreferredTypes == nil {
			profile.PreferredTypes = make(map[models.WineType]float64)
		}
		profile.PreferredTypes[signal.WineType] += weight
	}

	if signal.Rating >= 4 {
		if signal.Region != "" {
			profile.PreferredRegions = appendCapped(profile.PreferredRegions, signal.Region)
		}
		if signal.Varietal != "" {
			profile.PreferredVarietals = appendCapped(profile.PreferredVarietals, signal.Varietal)
		}
		if signal.Price > 0 {
			if profile.PriceRangeMin == 0 || signal.Price < profile.PriceRangeMin {
				profile.PriceRangeMin = signal.Price
			}
			if signal.Price > profile.PriceRangeMax {
				profile.PriceRangeMax = signal.Price
			}
		}
		if len(signal.Characteristics) > 0 {
			if profile.FlavorProfile == nil {
				profile.FlavorProfile = &models.FlavorProfile{}
			}
			for _, c := range signal.Characteristics {
				if !contains(profile.FlavorProfile.LikedNotes, c) {
					profile.FlavorProfile.LikedNotes = append(profile.FlavorProfile.LikedNotes, c)
				}
			}
		}
	}

	if err := a.storage.UpsertTasteProfile(ctx, profile); err != nil {
		return fmt.Errorf("error saving taste profile: %v", err)
	}
	return nil
}

// ExplorationSuggestion is one palate-expanding idea.
type ExplorationSuggestion struct {
	Suggestion string `json:"suggestion"`
	Reason     string `json:"reason"`
}

var starterSuggestions = []ExplorationSuggestion{
	{Suggestion: "Start by trying wines from different regions", Reason: "Variety reveals preferences"},
	{Suggestion: "Compare a few red and white wines to discover your preference", Reason: "Contrast teaches fastest"},
	{Suggestion: "Rate your favorites to get personalized recommendations", Reason: "Ratings power your profile"},
}

// ExplorationSuggestions proposes new territory adjacent to what the
// user already likes.
func (a *ProfileAgent) ExplorationSuggestions(ctx context.Context, userID string) ([]ExplorationSuggestion, error) {
	result, err := a.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !result.HasProfile {
		return starterSuggestions, nil
	}
	profile := result.Profile

	prompt := fmt.Sprintf(`Based on this wine taste profile, suggest 3 new wines/regions to explore:

Profile:
- Favorite types: %v
- Favorite regions: %v
- Favorite varietals: %v
- Average rating: %.1f

Suggest wines that would expand their palate while likely appealing to their preferences.
Format as a JSON array of objects with 'suggestion' and 'reason' fields.`,
		profile.PreferredTypes, profile.PreferredRegions, profile.PreferredVarietals, profile.AverageRating)

	raw, err := a.llm.Complete(ctx, "You are a wine expert. Respond with JSON only.", prompt, 0.8, 400)
	if err != nil {
		a.logger.Warn("exploration suggestion failed", zap.Error(err))
		return []ExplorationSuggestion{
			{Suggestion: "Try a wine from a region you haven't explored", Reason: "Expand your palate"},
		}, nil
	}

	var suggestions []ExplorationSuggestion
	if err := jsonx.Unmarshal(raw, &suggestions); err != nil || len(suggestions) == 0 {
		return []ExplorationSuggestion{
			{Suggestion: "Try a wine from a region you haven't explored", Reason: "Expand your palate"},
		}, nil
	}
	return suggestions, nil
}

func buildInsights(profile *models.UserTasteProfile) string {
	var insights []string

	if ranked := rankTypes(profile.PreferredTypes); len(ranked) > 0 {
		insights = append(insights, fmt.Sprintf("You tend to prefer %s wines", ranked[0]))
	}
	if regions := profile.PreferredRegions; len(regions) == 1 {
		insights = append(insights, fmt.Sprintf("with a fondness for wines from %s", regions[0]))
	} else if len(regions) > 1 {
		insights = append(insights, fmt.Sprintf("especially from %s", strings.Join(regions[:2], ", ")))
	}
	if len(profile.PreferredVarietals) > 0 {
		insights = append(insights, fmt.Sprintf("You've rated %s particularly highly", profile.PreferredVarietals[0]))
	}
	if profile.AverageRating >= 4 {
		insights = append(insights, "You're a discerning taster with high standards!")
	} else if profile.AverageRating >= 3 {
		insights = append(insights, "You have balanced taste and appreciate variety")
	}

	if len(insights) == 0 {
		return "Still learning about your preferences!"
	}
	return strings.Join(insights, ". ") + "."
}

func rankTypes(prefs map[models.WineType]float64) []models.WineType {
	ranked := make([]models.WineType, 0, len(prefs))
	for t := range prefs {
		ranked = append(ranked, t)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if prefs[ranked[i]] != prefs[ranked[j]] {
			return prefs[ranked[i]] > prefs[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

func appendCapped(list []string, value string) []string {
	if contains(list, value) {
		return list
	}
	list = append(list, value)
	if len(list) > maxPreferredEntries {
		list = list[:maxPreferredEntries]
	}
	return list
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func firstN(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
