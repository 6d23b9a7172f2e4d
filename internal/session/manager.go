package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/storage"
)

const (
	// DefaultHistoryLimit is how many turns the classifier sees.
	DefaultHistoryLimit = 10
	// MaxTrackedActions bounds the undo stack.
	MaxTrackedActions = 5
	// referenceScanDepth is how far back recent wine mentions are scanned.
	referenceScanDepth = 20
)

// Manager owns session lifecycle and the per-session context document.
// Every mutation persists the whole context back through storage.
type Manager struct {
	storage storage.Storage
	logger  *zap.Logger
}

func NewManager(store storage.Storage, logger *zap.Logger) *Manager {
	return &Manager{storage: store, logger: logger}
}

// GetOrCreateSession returns the session for id, silently creating a
// fresh one when id is empty or unknown.
func (m *Manager) GetOrCreateSession(ctx context.Context, sessionID, userID string) (*models.ChatSession, error) {
	if sessionID != "" {
		session, err := m.storage.GetSession(ctx, sessionID)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("error getting session: %v", err)
		}
		m.logger.Debug("session not found, creating new",
			zap.String("session_id", sessionID))
	}

	session := &models.ChatSession{
		ID:     uuid.NewString(),
		UserID: userID,
		Context: models.SessionContext{
			Mode: models.ConversationMode{Kind: models.ModeIdle},
		},
	}
	if err := m.storage.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("error creating session: %v", err)
	}
	return session, nil
}

// AddMessage appends a turn and bumps the session watermark.
func (m *Manager) AddMessage(ctx context.Context, sessionID string, role models.Role, content string, metadata *models.MessageMetadata) error {
	if metadata.IsEmpty() {
		metadata = nil
	}
	message := &models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}
	if err := m.storage.AddMessage(ctx, message); err != nil {
		return fmt.Errorf("error adding message: %v", err)
	}
	if err := m.storage.TouchSession(ctx, sessionID); err != nil {
		m.logger.Warn("failed to touch session",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
	return nil
}

// GetMessageHistory returns up to limit messages in chronological order.
func (m *Manager) GetMessageHistory(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	recent, err := m.storage.ListRecentMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %v", err)
	}
	// Storage returns newest first; callers want reading order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// TrackAction pushes onto the undo stack, evicting the oldest entry
// past MaxTrackedActions.
func (m *Manager) TrackAction(ctx context.Context, session *models.ChatSession, actionType string, data map[string]string) error {
	action := models.TrackedAction{
		Type:      actionType,
		Data:      data,
		Timestamp: time.Now(),
	}
	actions := append([]models.TrackedAction{action}, session.Context.RecentActions...)
	if len(actions) > MaxTrackedActions {
		actions = actions[:MaxTrackedActions]
	}
	session.Context.RecentActions = actions
	return m.SaveContext(ctx, session)
}

// PopLastAction removes and returns the most recent tracked action, or
// nil when the stack is empty.
func (m *Manager) PopLastAction(ctx context.Context, session *models.ChatSession) (*models.TrackedAction, error) {
	if len(session.Context.RecentActions) == 0 {
		return nil, nil
	}
	action := session.Context.RecentActions[0]
	session.Context.RecentActions = session.Context.RecentActions[1:]
	if err := m.SaveContext(ctx, session); err != nil {
		return nil, err
	}
	return &action, nil
}

// SetPendingRequest stashes a request to replay after a clarification.
func (m *Manager) SetPendingRequest(ctx context.Context, session *models.ChatSession, message string, entities models.Entities) error {
	session.Context.Pending = &models.PendingRequest{
		Message:   message,
		Entities:  entities,
		Timestamp: time.Now(),
	}
	return m.SaveContext(ctx, session)
}

// ConsumePendingRequest returns and clears the stashed request, or nil.
func (m *Manager) ConsumePendingRequest(ctx context.Context, session *models.ChatSession) (*models.PendingRequest, error) {
	pending := session.Context.Pending
	if pending == nil {
		return nil, nil
	}
	session.Context.Pending = nil
	if err := m.SaveContext(ctx, session); err != nil {
		return nil, err
	}
	return pending, nil
}

// SetMode replaces the conversation mode and persists it.
func (m *Manager) SetMode(ctx context.Context, session *models.ChatSession, mode models.ConversationMode) error {
	session.Context.Mode = mode
	return m.SaveContext(ctx, session)
}

// ClearMode returns the session to idle.
func (m *Manager) ClearMode(ctx context.Context, session *models.ChatSession) error {
	return m.SetMode(ctx, session, models.ConversationMode{Kind: models.ModeIdle})
}

// SetRecentWine records the wine the conversation is "about" so later
// turns can resolve pronouns.
func (m *Manager) SetRecentWine(ctx context.Context, session *models.ChatSession, ref *models.WineReference) error {
	session.Context.RecentWine = ref
	return m.SaveContext(ctx, session)
}

// SaveContext persists the session's context document as a whole.
func (m *Manager) SaveContext(ctx context.Context, session *models.ChatSession) error {
	if err := m.storage.UpdateSessionContext(ctx, session.ID, session.Context); err != nil {
		return fmt.Errorf("error updating session context: %v", err)
	}
	return nil
}

// GetRecentWineReferences scans recent assistant messages for wines
// mentioned in recommendations or identifications, newest first.
func (m *Manager) GetRecentWineReferences(ctx context.Context, sessionID string, limit int) ([]models.WineReference, error) {
	if limit <= 0 {
		limit = 3
	}
	recent, err := m.storage.ListRecentMessages(ctx, sessionID, referenceScanDepth)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %v", err)
	}

	var refs []models.WineReference
	for _, msg := range recent {
		if msg.Metadata == nil {
			continue
		}
		if msg.Metadata.WineReference != nil {
			refs = append(refs, *msg.Metadata.WineReference)
		}
		refs = append(refs, msg.Metadata.Recommendations...)
		if len(refs) >= limit {
			break
		}
	}
	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// IsReturningUser reports whether the user has any session besides the
// current one. Anonymous users are always treated as new.
func (m *Manager) IsReturningUser(ctx context.Context, userID, currentSessionID string) bool {
	if userID == "" {
		return false
	}
	count, err := m.storage.CountUserSessions(ctx, userID, currentSessionID)
	if err != nil {
		m.logger.Warn("failed to count sessions", zap.Error(err))
		return false
	}
	return count > 0
}
