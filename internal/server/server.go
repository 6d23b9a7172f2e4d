// Package server exposes the chat orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/orchestrator"
)

const maxChatBodySize = 10 << 20 // images ride along as data URLs

// ChatRequest is the POST /api/v1/chat body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

type Server struct {
	orchestrator *orchestrator.Orchestrator
	logger       *zap.Logger
}

func New(orch *orchestrator.Orchestrator, logger *zap.Logger) *Server {
	return &Server{orchestrator: orch, logger: logger}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Post("/api/v1/chat", s.handleChat)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Message == "" && req.ImageURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message or image_url is required"})
		return
	}

	resp, err := s.orchestrator.ProcessMessage(r.Context(), orchestrator.Request{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Message:   req.Message,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		s.logger.Error("chat processing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are gone; nothing left to do but note it.
		_ = err
	}
}

// ListenAndServe runs until ctx is canceled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
