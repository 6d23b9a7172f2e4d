package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pipwine/pip/internal/models"
)

func newID() string {
	return uuid.NewString()
}

// MemoryStorage is a map-backed Storage used for tests and the
// use_in_memory config mode. Message order is insertion order, which
// matches created_at order for a single writer.
type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	wines    map[string]*models.Wine
	wineIDs  []string
	saved    map[string]*models.SavedBottle
	cellar   map[string]*models.CellarBottle
	cellarID []string
	sessions map[string]*models.ChatSession
	messages map[string][]models.ChatMessage
	profiles map[string]*models.UserTasteProfile
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[string]*models.User),
		wines:    make(map[string]*models.Wine),
		saved:    make(map[string]*models.SavedBottle),
		cellar:   make(map[string]*models.CellarBottle),
		sessions: make(map[string]*models.ChatSession),
		messages: make(map[string][]models.ChatMessage),
		profiles: make(map[string]*models.UserTasteProfile),
	}
}

func (s *MemoryStorage) Close() error {
	return nil
}

// Users

func (s *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return ErrNotFound
	}
	delete(s.users, id)
	for bid, b := range s.cellar {
		if b.UserID == id {
			delete(s.cellar, bid)
		}
	}
	for sid, sb := range s.saved {
		if sb.UserID == id {
			delete(s.saved, sid)
		}
	}
	for sid, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, sid)
			delete(s.messages, sid)
		}
	}
	delete(s.profiles, id)
	return nil
}

// Wines

// SeedWine inserts a catalog wine. Tests and the in-memory mode use it
// in place of the offline seeding pipeline.
func (s *MemoryStorage) SeedWine(wine models.Wine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wines[wine.ID]; !exists {
		s.wineIDs = append(s.wineIDs, wine.ID)
	}
	s.wines[wine.ID] = &wine
}

func (s *MemoryStorage) GetWine(ctx context.Context, id string) (*models.Wine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wine, exists := s.wines[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *wine
	return &copied, nil
}

func (s *MemoryStorage) ListWines(ctx context.Context) ([]models.Wine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wines := make([]models.Wine, 0, len(s.wineIDs))
	for _, id := range s.wineIDs {
		wines = append(wines, *s.wines[id])
	}
	return wines, nil
}

// Saved bottles

func (s *MemoryStorage) ListSavedBottles(ctx context.Context, userID string) ([]models.SavedBottle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var saved []models.SavedBottle
	for _, sb := range s.saved {
		if sb.UserID == userID {
			saved = append(saved, *sb)
		}
	}
	// Newest first, matching the postgres ordering.
	for i := 0; i < len(saved); i++ {
		for j := i + 1; j < len(saved); j++ {
			if saved[j].SavedAt.After(saved[i].SavedAt) {
				saved[i], saved[j] = saved[j], saved[i]
			}
		}
	}
	return saved, nil
}

func (s *MemoryStorage) CreateSavedBottle(ctx context.Context, saved *models.SavedBottle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved.SavedAt = time.Now()
	copied := *saved
	s.saved[saved.ID] = &copied
	return nil
}

func (s *MemoryStorage) DeleteSavedBottle(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb, exists := s.saved[id]
	if !exists || sb.UserID != userID {
		return ErrNotFound
	}
	delete(s.saved, id)
	return nil
}

func (s *MemoryStorage) MoveSavedToCellar(ctx context.Context, savedID, userID string) (*models.CellarBottle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sb, exists := s.saved[savedID]
	if !exists || sb.UserID != userID {
		return nil, ErrNotFound
	}

	for _, b := range s.cellar {
		if b.UserID == userID && b.WineID == sb.WineID {
			b.Quantity++
			b.UpdatedAt = time.Now()
			delete(s.saved, savedID)
			copied := *b
			return &copied, nil
		}
	}

	now := time.Now()
	bottle := &models.CellarBottle{
		ID:        newID(),
		UserID:    userID,
		WineID:    sb.WineID,
		Status:    models.StatusOwned,
		Quantity:  1,
		AddedAt:   now,
		UpdatedAt: now,
	}
	s.cellar[bottle.ID] = bottle
	s.cellarID = append(s.cellarID, bottle.ID)
	delete(s.saved, savedID)
	copied := *bottle
	return &copied, nil
}

// Cellar bottles

func (s *MemoryStorage) ListCellarBottles(ctx context.Context, userID string) ([]models.CellarBottle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bottles []models.CellarBottle
	// Most recently added first, matching the postgres ordering.
	for i := len(s.cellarID) - 1; i >= 0; i-- {
		b, exists := s.cellar[s.cellarID[i]]
		if exists && b.UserID == userID {
			bottles = append(bottles, *b)
		}
	}
	return bottles, nil
}

func (s *MemoryStorage) GetCellarBottle(ctx context.Context, id, userID string) (*models.CellarBottle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.cellar[id]
	if !exists || b.UserID != userID {
		return nil, ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (s *MemoryStorage) FindCellarBottleByWine(ctx context.Context, userID, wineID string) (*models.CellarBottle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.cellar {
		if b.UserID == userID && b.WineID == wineID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) CreateCellarBottle(ctx context.Context, bottle *models.CellarBottle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	bottle.AddedAt = now
	bottle.UpdatedAt = now
	copied := *bottle
	s.cellar[bottle.ID] = &copied
	s.cellarID = append(s.cellarID, bottle.ID)
	return nil
}

func (s *MemoryStorage) UpdateCellarBottle(ctx context.Context, bottle *models.CellarBottle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.cellar[bottle.ID]
	if !exists || existing.UserID != bottle.UserID {
		return ErrNotFound
	}
	bottle.UpdatedAt = time.Now()
	copied := *bottle
	copied.AddedAt = existing.AddedAt
	s.cellar[bottle.ID] = &copied
	return nil
}

func (s *MemoryStorage) DeleteCellarBottle(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.cellar[id]
	if !exists || b.UserID != userID {
		return ErrNotFound
	}
	delete(s.cellar, id)
	return nil
}

func (s *MemoryStorage) CountOwnedBottles(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, b := range s.cellar {
		if b.UserID == userID && b.Status == models.StatusOwned && b.Quantity > 0 {
			count++
		}
	}
	return count, nil
}

// Sessions and messages

func (s *MemoryStorage) GetSession(ctx context.Context, id string) (*models.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStorage) CreateSession(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	session.StartedAt = now
	session.LastMessageAt = now
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *MemoryStorage) TouchSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, exists := s.sessions[id]; exists {
		session.LastMessageAt = time.Now()
	}
	return nil
}

func (s *MemoryStorage) UpdateSessionContext(ctx context.Context, id string, sessionCtx models.SessionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return ErrNotFound
	}
	session.Context = sessionCtx
	return nil
}

func (s *MemoryStorage) CountUserSessions(ctx context.Context, userID, excludeSessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for id, session := range s.sessions {
		if session.UserID == userID && id != excludeSessionID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) AddMessage(ctx context.Context, message *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	message.CreatedAt = time.Now()
	s.messages[message.SessionID] = append(s.messages[message.SessionID], *message)
	return nil
}

func (s *MemoryStorage) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[sessionID]
	var recent []models.ChatMessage
	for i := len(all) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, all[i])
	}
	return recent, nil
}

// Taste profiles

func (s *MemoryStorage) GetTasteProfile(ctx context.Context, userID string) (*models.UserTasteProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[userID]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (s *MemoryStorage) UpsertTasteProfile(ctx context.Context, profile *models.UserTasteProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, exists := s.profiles[profile.UserID]; exists {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	copied := *profile
	s.profiles[profile.UserID] = &copied
	return nil
}
