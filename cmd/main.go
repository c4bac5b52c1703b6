package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"zapclinic/internal/config"
	"zapclinic/internal/infrastructure"
	"zapclinic/internal/interfaces/http"
	"zapclinic/internal/repository"
	"zapclinic/internal/usecases"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Error loading configuration: " + err.Error())
	}

	logger := newLogger(cfg.LogLevel)

	// Connect to PostgreSQL
	pgClient, err := infrastructure.NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}
	defer pgClient.Close()

	// Initialize Repositories
	messageRepo := repository.NewMessageRepository(pgClient.Pool)
	convRepo := repository.NewConversationRepository(pgClient.Pool)
	escRepo := repository.NewEscalationRepository(pgClient.Pool)
	patientRepo := repository.NewPatientRepository(pgClient.Pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pgClient.Pool)
	operatorRepo := repository.NewOperatorRepository(pgClient.Pool)
	usageRepo := repository.NewUsageRepository(pgClient.Pool)

	// Sync clinic knowledge from file
	if err := knowledgeRepo.SyncFromYAML(cfg.KnowledgeFile); err != nil {
		logger.Warn("failed to sync clinic knowledge, keeping stored record", "err", err)
	}

	// Auth bootstrap
	authUsecase := usecases.NewAuthUsecase(operatorRepo, cfg.JWTSecret)
	if err := authUsecase.EnsureAdmin("root", "root"); err != nil {
		logger.Warn("failed to ensure admin operator", "err", err)
	}

	// External collaborators
	completion := infrastructure.NewCompletionClient(
		cfg.Completion.APIBase, cfg.Completion.APIKey, cfg.Completion.Model, cfg.Completion.Timeout)
	gateway := infrastructure.NewWhatsAppGateway(cfg.WhatsApp.AccessToken, cfg.WhatsApp.PhoneNumberID)
	scheduling := infrastructure.NewSchedulingServiceClient(
		cfg.Scheduling.BaseURL, cfg.Scheduling.APIKey, cfg.Scheduling.Timeout)

	// Pipeline components
	limiter := infrastructure.NewIngestRateLimiter()
	classifier := usecases.NewIntentClassifier(completion, logger)
	retriever := usecases.NewKnowledgeRetriever(knowledgeRepo)
	tools := usecases.NewToolExecutor(scheduling, knowledgeRepo)
	loops := usecases.NewLoopDetector(escRepo, logger)
	escalations := usecases.NewEscalationManager(escRepo, logger)
	personalizer := usecases.NewPersonalizer()

	orchestrator := usecases.NewOrchestrator(
		limiter, messageRepo, convRepo, patientRepo,
		completion, gateway, knowledgeRepo, usageRepo,
		classifier, retriever, tools, loops, escalations, personalizer,
		usecases.OrchestratorConfig{
			RateCapacity:   cfg.Ingestion.Capacity,
			RefillInterval: cfg.Ingestion.RefillInterval,
		},
		logger,
	)

	// HTTP server
	handler := http.NewHandler(orchestrator, convRepo, escRepo, knowledgeRepo, usageRepo,
		cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, logger)
	middleware := http.NewMiddleware(cfg.JWTSecret)

	r := gin.Default()
	http.SetupRoutes(r, handler, authUsecase, middleware)

	logger.Info("starting server", "addr", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
