package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/classifier"
	"github.com/pipwine/pip/internal/models"
	"github.com/pipwine/pip/internal/orchestrator"
	"github.com/pipwine/pip/internal/retrieval"
	"github.com/pipwine/pip/internal/session"
	"github.com/pipwine/pip/internal/storage"
)

type cannedLLM struct{}

func (cannedLLM) Complete(ctx context.Context, system, user string, temperature float32, maxTokens int) (string, error) {
	if strings.Contains(system, "intent classifier") {
		return `{"intent": "greeting", "confidence": 0.95}`, nil
	}
	return "Hi! I'm Pip.", nil
}

type noRecs struct{}

func (noRecs) Recommend(ctx context.Context, prefs retrieval.Preferences, topN int) ([]retrieval.Recommendation, error) {
	return nil, nil
}

func (noRecs) SearchKnowledge(ctx context.Context, query string, topK int) ([]retrieval.KnowledgeChunk, error) {
	return nil, nil
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	orch := orchestrator.New(orchestrator.Config{
		Storage:     store,
		Sessions:    session.NewManager(store, logger),
		Classifier:  classifier.NewClassifier(cannedLLM{}, logger),
		Completer:   cannedLLM{},
		Recommender: noRecs{},
		Retriever:   noRecs{},
		Logger:      logger,
	})
	return New(orch, logger).Handler()
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestChatReturnsEnvelope(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	payload := bytes.NewBufferString(`{"message": "hi pip", "user_id": "u1"}`)
	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json", payload)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope models.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, models.IntentGreeting, envelope.Intent)
	assert.Equal(t, "Hi! I'm Pip.", envelope.Response)
	assert.NotEmpty(t, envelope.SessionID)
}

func TestChatKeepsSession(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	first, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		bytes.NewBufferString(`{"message": "hi"}`))
	require.NoError(t, err)
	defer first.Body.Close()
	var a models.Response
	require.NoError(t, json.NewDecoder(first.Body).Decode(&a))

	second, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		bytes.NewBufferString(`{"message": "hello again", "session_id": "`+a.SessionID+`"}`))
	require.NoError(t, err)
	defer second.Body.Close()
	var b models.Response
	require.NoError(t, json.NewDecoder(second.Body).Decode(&b))

	assert.Equal(t, a.SessionID, b.SessionID)
}

func TestChatRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		bytes.NewBufferString(`{"message": `))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid request body", body["error"])
}

func TestChatRequiresMessageOrImage(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/chat", "application/json",
		bytes.NewBufferString(`{"user_id": "u1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "message or image_url is required", body["error"])
}
