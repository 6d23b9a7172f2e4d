package agents

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
)

// Tracked action types and their undo data keys.
const (
	ActionCellarAdd    = "cellar_add"
	ActionCellarRemove = "cellar_remove"
	ActionRate         = "rate"
	ActionSave         = "save"
)

var (
	priceUnderRe  = regexp.MustCompile(`under\s*\$?(\d+)`)
	priceAroundRe = regexp.MustCompile(`around\s*\$?(\d+)`)
	priceAboveRe  = regexp.MustCompile(`(?:above|over|more than)\s*\$?(\d+)`)
)

// CorrectionAgent reverses tracked actions and rewrites request filters
// from "actually ..." follow-ups.
type CorrectionAgent struct {
	storage storage.Storage
	logger  *zap.Logger
}

func NewCorrectionAgent(store storage.Storage, logger *zap.Logger) *CorrectionAgent {
	return &CorrectionAgent{storage: store, logger: logger}
}

// UndoResult reports whether the action was reversed and what to tell
// the user either way.
type UndoResult struct {
	Success bool
	Message string
}

// UndoAction reverses one tracked action. Removals cannot be restored;
// the stack entry is still consumed so "undo" twice moves on.
func (a *CorrectionAgent) UndoAction(ctx context.Context, userID string, action *models.TrackedAction) *UndoResult {
	if action == nil {
		return &UndoResult{Message: "Nothing to undo."}
	}

	switch action.Type {
	case ActionCellarAdd:
		return a.undoCellarAdd(ctx, userID, action.Data)
	case ActionCellarRemove:
		wineName := orDefault(action.Data["wine_name"], "the wine")
		return &UndoResult{
			Message: fmt.Sprintf("I can't restore %s automatically. You can add it back manually.", wineName),
		}
	case ActionRate:
		return a.undoRate(ctx, userID, action.Data)
	case ActionSave:
		return a.undoSave(ctx, userID, action.Data)
	default:
		return &UndoResult{Message: fmt.Sprintf("Cannot undo action type: %s", action.Type)}
	}
}

func (a *CorrectionAgent) undoCellarAdd(ctx context.Context, userID string, data map[string]string) *UndoResult {
	bottleID := data["bottle_id"]
	wineName := orDefault(data["wine_name"], "the wine")
	if bottleID == "" {
		return &UndoResult{Message: "Could not find the bottle to remove."}
	}

	if err := a.storage.DeleteCellarBottle(ctx, bottleID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &UndoResult{Message: "The bottle is no longer in your cellar."}
		}
		a.logger.Error("undo cellar add failed", zap.Error(err))
		return &UndoResult{Message: "Something went wrong undoing that."}
	}
	return &UndoResult{
		Success: true,
		Message: fmt.Sprintf("Undone! Removed %s from your cellar.", wineName),
	}
}

func (a *CorrectionAgent) undoSave(ctx context.Context, userID string, data map[string]string) *UndoResult {
	savedID := data["saved_id"]
	wineName := orDefault(data["wine_name"], "the wine")
	if savedID == "" {
		return &UndoResult{Message: "Could not find the saved wine to remove."}
	}

	if err := a.storage.DeleteSavedBottle(ctx, savedID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &UndoResult{Message: fmt.Sprintf("%s is no longer on your saved list.", wineName)}
		}
		a.logger.Error("undo save failed", zap.Error(err))
		return &UndoResult{Message: "Something went wrong undoing that."}
	}
	return &UndoResult{
		Success: true,
		Message: fmt.Sprintf("Undone! Removed %s from your saved list.", wineName),
	}
}

func (a *CorrectionAgent) undoRate(ctx context.Context, userID string, data map[string]string) *UndoResult {
	bottleID := data["bottle_id"]
	wineName := orDefault(data["wine_name"], "the wine")
	if bottleID == "" {
		return &UndoResult{Message: "Could not find the rated bottle."}
	}

	bottle, err := a.storage.GetCellarBottle(ctx, bottleID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &UndoResult{Message: "The bottle is no longer in your cellar."}
		}
		a.logger.Error("undo rate failed", zap.Error(err))
		return &UndoResult{Message: "Something went wrong undoing that."}
	}

	previous, _ := strconv.ParseFloat(data["previous_rating"], 64)
	bottle.Rating = previous
	if err := a.storage.UpdateCellarBottle(ctx, bottle); err != nil {
		a.logger.Error("undo rate failed", zap.Error(err))
		return &UndoResult{Message: "Something went wrong undoing that."}
	}

	if previous > 0 {
		return &UndoResult{
			Success: true,
			Message: fmt.Sprintf("Restored %s's rating to %g/5.", wineName, previous),
		}
	}
	return &UndoResult{
		Success: true,
		Message: fmt.Sprintf("Removed the rating from %s.", wineName),
	}
}

// ModifyFilters applies a correction like "actually under $30" or
// "I meant white" on top of the previous request's entities. Price and
// type cues are parsed with plain patterns; the LLM path upstream gets
// the first shot.
func (a *CorrectionAgent) ModifyFilters(original models.Entities, modification string) models.Entities {
	updated := original
	lower := strings.ToLower(modification)

	if m := priceUnderRe.FindStringSubmatch(lower); m != nil {
		updated.PriceMax, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := priceAroundRe.FindStringSubmatch(lower); m != nil {
		amount, _ := strconv.ParseFloat(m[1], 64)
		updated.PriceMin = amount * 0.7
		updated.PriceMax = amount * 1.3
	}
	if m := priceAboveRe.FindStringSubmatch(lower); m != nil {
		updated.PriceMin, _ = strconv.ParseFloat(m[1], 64)
	}

	switch {
	case strings.Contains(lower, "red") && !strings.Contains(lower, "white"):
		updated.WineType = string(models.WineTypeRed)
	case strings.Contains(lower, "white") && !strings.Contains(lower, "red"):
		updated.WineType = string(models.WineTypeWhite)
	case strings.Contains(lower, "rosé") || strings.Contains(lower, "rose"):
		updated.WineType = string(models.WineTypeRose)
	case strings.Contains(lower, "sparkling") || strings.Contains(lower, "champagne"):
		updated.WineType = string(models.WineTypeSparkling)
	}

	// "not red" beats the inclusion match above.
	for _, t := range []models.WineType{models.WineTypeRed, models.WineTypeWhite, models.WineTypeRose, models.WineTypeSparkling} {
		if strings.Contains(lower, "not "+string(t)) || strings.Contains(lower, "no "+string(t)) {
			if updated.WineType == string(t) {
				updated.WineType = ""
			}
		}
	}

	return updated
}
