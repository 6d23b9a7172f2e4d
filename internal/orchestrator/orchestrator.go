// Package orchestrator routes chat messages through intent
// classification to the domain agents and shapes the uniform response
// envelope.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/agents"
	"github.com/pipwine/pip/internal/classifier"
	"github.com/pipwine/pip/internal/llm"
	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/retrieval"
	"github.com/pipwine/pip/internal/session"
	"github.com/pipwine/pip/internal/storage"
)

const pipSystem = "You are Pip, a friendly and knowledgeable wine mentor."

// Orchestrator wires the classifier, session manager, and domain
// agents behind one ProcessMessage entry point.
type Orchestrator struct {
	storage     storage.Storage
	sessions    *session.Manager
	classifier  *classifier.Classifier
	llm         llm.Completer
	recommender retrieval.Recommender

	cellar     *agents.CellarAgent
	decide     *agents.DecideAgent
	education  *agents.EducationAgent
	profile    *agents.ProfileAgent
	correction *agents.CorrectionAgent
	photo      *agents.PhotoAgent

	logger              *zap.Logger
	confidenceThreshold float64
	historyLimit        int
}

// Config carries the orchestrator's collaborators.
type Config struct {
	Storage     storage.Storage
	Sessions    *session.Manager
	Classifier  *classifier.Classifier
	Completer   llm.Completer
	Recommender retrieval.Recommender
	Retriever   retrieval.Retriever
	Vision      llm.Vision

	Logger              *zap.Logger
	ConfidenceThreshold float64
	HistoryLimit        int
}

func New(cfg Config) *Orchestrator {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.6
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = session.DefaultHistoryLimit
	}
	return &Orchestrator{
		storage:             cfg.Storage,
		sessions:            cfg.Sessions,
		classifier:          cfg.Classifier,
		llm:                 cfg.Completer,
		recommender:         cfg.Recommender,
		cellar:              agents.NewCellarAgent(cfg.Storage, cfg.Completer, cfg.Logger),
		decide:              agents.NewDecideAgent(cfg.Storage, cfg.Completer, cfg.Logger),
		education:           agents.NewEducationAgent(cfg.Storage, cfg.Completer, cfg.Retriever, cfg.Logger),
		profile:             agents.NewProfileAgent(cfg.Storage, cfg.Completer, cfg.Logger),
		correction:          agents.NewCorrectionAgent(cfg.Storage, cfg.Logger),
		photo:               agents.NewPhotoAgent(cfg.Vision, cfg.Logger),
		logger:              cfg.Logger,
		confidenceThreshold: cfg.ConfidenceThreshold,
		historyLimit:        cfg.HistoryLimit,
	}
}

// Request is one inbound chat turn. UserID is empty for anonymous
// sessions; ImageURL is set when the client attached a label photo.
type Request struct {
	UserID    string
	SessionID string
	Message   string
	ImageURL  string
}

// turn bundles what every handler needs.
type turn struct {
	session *models.ChatSession
	userID  string
	message string
	history []models.ChatMessage
}

// ProcessMessage runs one dialogue turn. Pending conversation modes are
// checked before classification so confirmations and wizard answers are
// never misrouted.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req Request) (*models.Response, error) {
	sess, err := o.sessions.GetOrCreateSession(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := o.sessions.AddMessage(ctx, sess.ID, models.RoleUser, req.Message, nil); err != nil {
		o.logger.Warn("failed to store user message", zap.Error(err))
	}

	history, err := o.sessions.GetMessageHistory(ctx, sess.ID, o.historyLimit)
	if err != nil {
		o.logger.Warn("failed to load history", zap.Error(err))
	}

	t := &turn{session: sess, userID: req.UserID, message: req.Message, history: history}

	if req.ImageURL != "" {
		return o.handleImage(ctx, t, req.ImageURL), nil
	}

	// A yes/no answer resolves the pending mode; anything else clears
	// it and falls through to normal classification.
	switch sess.Context.Mode.Kind {
	case models.ModeAwaitingDeleteConfirm:
		if resp := o.handleDeleteConfirm(ctx, t); resp != nil {
			return resp, nil
		}
	case models.ModeAwaitingTriedConfirm:
		if resp := o.handleTriedConfirm(ctx, t); resp != nil {
			return resp, nil
		}
	case models.ModeGatheringPreferences:
		return o.handleWizardAnswer(ctx, t), nil
	case models.ModeAwaitingSourceChoice:
		if resp := o.handleSourceChoice(ctx, t); resp != nil {
			return resp, nil
		}
	}

	result := o.classifier.ClassifyIntent(ctx, req.Message, history)
	entities := models.Entities{}
	if classifier.WantsEntities(result.Intent) {
		entities = o.classifier.ExtractEntities(ctx, req.Message)
	}

	if result.Confidence < o.confidenceThreshold || result.RequiresClarification {
		return o.handleAmbiguous(ctx, t, result, entities), nil
	}

	return o.dispatch(ctx, t, result.Intent, entities), nil
}

func (o *Orchestrator) dispatch(ctx context.Context, t *turn, intent models.Intent, entities models.Entities) *models.Response {
	switch intent {
	case models.IntentGreeting:
		return o.handleGreeting(ctx, t)
	case models.IntentRecommend:
		return o.handleRecommend(ctx, t, t.message, entities)
	case models.IntentEducateGeneral:
		return o.handleEducationGeneral(ctx, t)
	case models.IntentEducateSpecific:
		return o.handleEducationSpecific(ctx, t)
	case models.IntentCellarQuery:
		return o.handleCellarQuery(ctx, t, entities)
	case models.IntentCellarAdd:
		return o.handleCellarAdd(ctx, t)
	case models.IntentCellarRemove:
		return o.handleCellarRemove(ctx, t)
	case models.IntentRate:
		return o.handleRate(ctx, t)
	case models.IntentDecide:
		return o.handleDecide(ctx, t, t.message, entities)
	case models.IntentCorrect:
		return o.handleCorrect(ctx, t)
	default:
		return o.handleUnknown(ctx, t)
	}
}

func (o *Orchestrator) handleGreeting(ctx context.Context, t *turn) *models.Response {
	isReturning := o.sessions.IsReturningUser(ctx, t.userID, t.session.ID)

	prompt := fmt.Sprintf(`You are Pip, a friendly and knowledgeable wine mentor.
Generate a warm, brief greeting response. Keep it to 1-2 sentences.
Be conversational but not overly enthusiastic. Mention you can help with:
- Finding wines
- Wine questions
- Managing their cellar
- Scanning wine labels

User said: %s
Is returning user: %t

Respond naturally as Pip.`, t.message, isReturning)

	text, err := o.llm.Complete(ctx, pipSystem, prompt, 0.7, 500)
	if err != nil {
		o.logger.Warn("greeting generation failed", zap.Error(err))
		text = "Hi! I'm Pip. I can help you find wines, answer wine questions, manage your cellar, or scan a wine label. What sounds good?"
	}

	return o.respond(ctx, t, text, models.IntentGreeting, nil)
}

func (o *Orchestrator) handleAmbiguous(ctx context.Context, t *turn, result classifier.IntentResult, entities models.Entities) *models.Response {
	if result.ClarificationReason == "new_or_cellar" {
		hasCellar := false
		if t.userID != "" {
			count, err := o.storage.CountOwnedBottles(ctx, t.userID)
			if err != nil {
				o.logger.Warn("cellar count failed", zap.Error(err))
			}
			hasCellar = count > 0
		}
		if !hasCellar {
			return o.handleRecommend(ctx, t, t.message, entities)
		}

		if err := o.sessions.SetMode(ctx, t.session, models.ConversationMode{
			Kind:   models.ModeAwaitingSourceChoice,
			Source: &models.SourceChoiceState{Message: t.message, Entities: entities},
		}); err != nil {
			o.logger.Warn("failed to set source choice mode", zap.Error(err))
		}

		text := "Would you like me to recommend something new to try, or help you pick from wines you already have?"
		resp := o.respond(ctx, t, text, models.IntentClarifySource, nil)
		resp.RequiresClarification = true
		resp.Actions = []models.Action{
			{Type: "recommend_new", Label: "Recommend something new"},
			{Type: "pick_from_cellar", Label: "Pick from my cellar"},
		}
		return resp
	}

	reason := result.ClarificationReason
	if reason == "" {
		reason = "Could not understand the request"
	}
	prompt := fmt.Sprintf(`You are Pip, a wine mentor. The user's request is ambiguous.
Generate a friendly clarifying question to understand what they want.

User said: %s
Detected intent: %s
Ambiguity reason: %s

Ask ONE clear question to clarify. Keep it brief and helpful.`, t.message, result.Intent, reason)

	text, err := o.llm.Complete(ctx, pipSystem, prompt, 0.7, 500)
	if err != nil {
		o.logger.Warn("clarification generation failed", zap.Error(err))
		text = "I want to make sure I help with the right thing. Could you tell me a bit more about what you're looking for?"
	}

	resp := o.respond(ctx, t, text, models.IntentAmbiguous, nil)
	resp.RequiresClarification = true
	return resp
}

// handleSourceChoice resolves the "new or from my cellar" fork. Returns
// nil when the answer picks neither side, letting the turn reclassify.
func (o *Orchestrator) handleSourceChoice(ctx context.Context, t *turn) *models.Response {
	state := t.session.Context.Mode.Source
	if err := o.sessions.ClearMode(ctx, t.session); err != nil {
		o.logger.Warn("failed to clear mode", zap.Error(err))
	}
	if state == nil {
		return nil
	}

	lower := strings.ToLower(t.message)
	switch {
	case strings.Contains(lower, "new"):
		return o.handleRecommend(ctx, t, state.Message, state.Entities)
	case strings.Contains(lower, "cellar") || strings.Contains(lower, "pick") ||
		strings.Contains(lower, "have") || strings.Contains(lower, "own"):
		return o.handleDecide(ctx, t, state.Message, state.Entities)
	}
	return nil
}

func (o *Orchestrator) handleUnknown(ctx context.Context, t *turn) *models.Response {
	text := `I'm not sure I understood that. I can help you with:
- **Finding wines** - Just describe what you're looking for
- **Wine questions** - Ask me anything about wine
- **Your cellar** - Manage your collection
- **Scanning labels** - Upload a photo of a wine label

What would you like to do?`
	return o.respond(ctx, t, text, models.IntentUnknown, nil)
}

// respond stores the assistant turn and builds the envelope.
func (o *Orchestrator) respond(ctx context.Context, t *turn, text string, intent models.Intent, metadata *models.MessageMetadata) *models.Response {
	if metadata == nil {
		metadata = &models.MessageMetadata{Intent: intent}
	} else if metadata.Intent == "" {
		metadata.Intent = intent
	}
	if err := o.sessions.AddMessage(ctx, t.session.ID, models.RoleAssistant, text, metadata); err != nil {
		o.logger.Warn("failed to store assistant message", zap.Error(err))
	}
	return &models.Response{
		Response:  text,
		Intent:    intent,
		SessionID: t.session.ID,
		Cards:     []models.Card{},
		Actions:   []models.Action{},
	}
}

// authRequired is the envelope for cellar features used anonymously.
func (o *Orchestrator) authRequired(t *turn, text string, intent models.Intent) *models.Response {
	return &models.Response{
		Response:     text,
		Intent:       intent,
		SessionID:    t.session.ID,
		Cards:        []models.Card{},
		Actions:      []models.Action{},
		RequiresAuth: true,
	}
}
