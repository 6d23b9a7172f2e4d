package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// WineReference is a pointer to a wine mentioned earlier in the
// conversation, used to resolve "it"/"this wine" on later turns.
type WineReference struct {
	WineID   string   `json:"wine_id,omitempty"`
	BottleID string   `json:"bottle_id,omitempty"`
	WineName string   `json:"wine_name,omitempty"`
	Producer string   `json:"producer,omitempty"`
	Vintage  int      `json:"vintage,omitempty"`
	WineType WineType `json:"wine_type,omitempty"`
	Varietal string   `json:"varietal,omitempty"`
	Region   string   `json:"region,omitempty"`
	Country  string   `json:"country,omitempty"`
	Source   string   `json:"source,omitempty"`
}

// MessageMetadata is stashed on assistant messages so later turns can
// resolve pronouns against recent recommendations.
type MessageMetadata struct {
	Intent          Intent          `json:"intent,omitempty"`
	Recommendations []WineReference `json:"recommendations,omitempty"`
	WineReference   *WineReference  `json:"wine_reference,omitempty"`
}

func (m *MessageMetadata) IsEmpty() bool {
	return m == nil || (m.Intent == "" && len(m.Recommendations) == 0 && m.WineReference == nil)
}

// ChatMessage is append-only, ordered by CreatedAt.
type ChatMessage struct {
	ID        string           `json:"id"`
	SessionID string           `json:"session_id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ModeKind discriminates the conversation mode union.
type ModeKind string

const (
	ModeIdle                 ModeKind = "idle"
	ModeAwaitingDeleteConfirm ModeKind = "awaiting_delete_confirm"
	ModeAwaitingTriedConfirm  ModeKind = "awaiting_tried_confirm"
	ModeGatheringPreferences  ModeKind = "gathering_preferences"
	ModeAwaitingSourceChoice  ModeKind = "awaiting_source_choice"
)

// DeleteConfirmState holds a deferred cellar removal awaiting a yes/no.
type DeleteConfirmState struct {
	BottleID string `json:"bottle_id"`
	WineName string `json:"wine_name"`
}

// TriedConfirmState holds a deferred owned->tried status transition.
type TriedConfirmState struct {
	BottleID string  `json:"bottle_id"`
	WineName string  `json:"wine_name"`
	Rating   float64 `json:"rating"`
}

// Preference wizard steps, in order.
type WizardStep int

const (
	StepBudget WizardStep = iota
	StepFood
	StepWineType
)

// GatheredPrefs accumulates the wizard's answers across turns.
type GatheredPrefs struct {
	PriceMin    float64 `json:"price_min,omitempty"`
	PriceMax    float64 `json:"price_max,omitempty"`
	FoodPairing string  `json:"food_pairing,omitempty"`
	WineType    string  `json:"wine_type,omitempty"`
}

// PreferenceState is the 3-step recommendation wizard: budget, food
// pairing, wine type.
type PreferenceState struct {
	Step      WizardStep    `json:"step"`
	Collected GatheredPrefs `json:"collected"`
	Original  string        `json:"original_message,omitempty"`
}

// SourceChoiceState holds an ambiguous request ("new wine or from my
// cellar?") until the user picks a side.
type SourceChoiceState struct {
	Message  string   `json:"message"`
	Entities Entities `json:"entities"`
}

// ConversationMode is a tagged union: exactly the payload matching Kind
// is set. Replaces the ad hoc pending-flag scheme so two pending states
// can never silently coexist.
type ConversationMode struct {
	Kind   ModeKind            `json:"kind"`
	Delete *DeleteConfirmState `json:"delete,omitempty"`
	Tried  *TriedConfirmState  `json:"tried,omitempty"`
	Prefs  *PreferenceState    `json:"prefs,omitempty"`
	Source *SourceChoiceState  `json:"source,omitempty"`
}

// TrackedAction is one entry on the bounded undo stack.
type TrackedAction struct {
	Type      string            `json:"type"`
	Data      map[string]string `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}

// PendingRequest is the stash-and-consume record for a one-shot
// clarification round trip.
type PendingRequest struct {
	Message   string    `json:"message"`
	Entities  Entities  `json:"entities"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionContext is the per-session mutable document. It is always
// read-modify-written as a whole.
type SessionContext struct {
	Mode          ConversationMode `json:"mode"`
	RecentWine    *WineReference   `json:"recent_wine,omitempty"`
	RecentActions []TrackedAction  `json:"recent_actions,omitempty"`
	Pending       *PendingRequest  `json:"pending_request,omitempty"`
	// Prefs the wizard gathered that the recommend handler has not
	// consumed yet.
	UnusedPrefs *GatheredPrefs `json:"recommendation_prefs,omitempty"`
}

// ChatSession owns the context document and the message history.
// UserID is empty for anonymous sessions.
type ChatSession struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	LastMessageAt time.Time      `json:"last_message_at"`
	Context       SessionContext `json:"context"`
}
