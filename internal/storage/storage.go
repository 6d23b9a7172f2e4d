package storage

import (
	"context"
	"errors"

	"github.com/pipwine/pip/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type Storage interface {
	// Users
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error

	// Wine catalog (read-only from the orchestrator's side)
	GetWine(ctx context.Context, id string) (*models.Wine, error)
	ListWines(ctx context.Context) ([]models.Wine, error)

	// Saved bottles ("want to try")
	ListSavedBottles(ctx context.Context, userID string) ([]models.SavedBottle, error)
	CreateSavedBottle(ctx context.Context, saved *models.SavedBottle) error
	DeleteSavedBottle(ctx context.Context, id, userID string) error
	// MoveSavedToCellar promotes a saved bottle into the cellar and
	// deletes the saved row in the same transaction. If the wine is
	// already owned, the existing bottle's quantity is incremented.
	MoveSavedToCellar(ctx context.Context, savedID, userID string) (*models.CellarBottle, error)

	// Cellar
	ListCellarBottles(ctx context.Context, userID string) ([]models.CellarBottle, error)
	GetCellarBottle(ctx context.Context, id, userID string) (*models.CellarBottle, error)
	FindCellarBottleByWine(ctx context.Context, userID, wineID string) (*models.CellarBottle, error)
	CreateCellarBottle(ctx context.Context, bottle *models.CellarBottle) error
	UpdateCellarBottle(ctx context.Context, bottle *models.CellarBottle) error
	DeleteCellarBottle(ctx context.Context, id, userID string) error
	CountOwnedBottles(ctx context.Context, userID string) (int, error)

	// Chat sessions and messages
	GetSession(ctx context.Context, id string) (*models.ChatSession, error)
	CreateSession(ctx context.Context, session *models.ChatSession) error
	TouchSession(ctx context.Context, id string) error
	UpdateSessionContext(ctx context.Context, id string, sessionCtx models.SessionContext) error
	CountUserSessions(ctx context.Context, userID, excludeSessionID string) (int, error)
	AddMessage(ctx context.Context, message *models.ChatMessage) error
	// ListRecentMessages returns up to limit messages, newest first.
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)

	// Taste profiles
	GetTasteProfile(ctx context.Context, userID string) (*models.UserTasteProfile, error)
	UpsertTasteProfile(ctx context.Context, profile *models.UserTasteProfile) error

	Close() error
}
