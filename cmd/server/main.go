package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/classifier"
	"github.com/pipwine/pip/internal/llm"
	"github.com/pipwine/pip/internal/orchestrator"
	"github.com/pipwine/pip/internal/retrieval"
	"github.com/pipwine/pip/internal/server"
	"github.com/pipwine/pip/internal/session"
	"github.com/pipwine/pip/internal/storage"
	"github.com/pipwine/pip/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize OpenAI client (chat completions + label vision)
	openAI := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)

	// Initialize the retrieval service client (knowledge search + recommendations)
	retrievalClient := retrieval.NewClient(
		cfg.Retrieval.BaseURL,
		time.Duration(cfg.Retrieval.TimeoutSeconds)*time.Second,
		logger,
	)

	sessions := session.NewManager(store, logger)
	clf := classifier.NewClassifier(openAI, logger)

	orch := orchestrator.New(orchestrator.Config{
		Storage:             store,
		Sessions:            sessions,
		Classifier:          clf,
		Completer:           openAI,
		Recommender:         retrievalClient,
		Retriever:           retrievalClient,
		Vision:              openAI,
		Logger:              logger,
		ConfidenceThreshold: cfg.Chat.ConfidenceThreshold,
		HistoryLimit:        cfg.Chat.HistoryLimit,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(orch, logger)
	logger.Info("Starting server", zap.String("addr", cfg.Server.Addr))
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
