package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"projectflow/internal/config"
	"projectflow/internal/handler"
	"projectflow/internal/httpserver"
	"projectflow/internal/repository"
	"projectflow/internal/service"
	"projectflow/pkg/db"
	"projectflow/pkg/logger"
	"projectflow/pkg/mq"
	"projectflow/pkg/outbox"
	redisclient "projectflow/pkg/redis"
)

func main() {
	// Load config
	cfg := config.Load()

	zlog := logger.NewLogger()
	defer zlog.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, zlog)
	if err != nil {
		zlog.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Init RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	// Init Repositories
	userRepo := repository.NewUserRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn)
	milestoneRepo := repository.NewMilestoneRepository(dbConn, zlog)
	updateRepo := repository.NewDailyUpdateRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	store := repository.NewWorkflowStore(dbConn, projectRepo, milestoneRepo, updateRepo, outboxRepo, zlog)

	// Outbox dispatcher: publishes committed events to MQ
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, zlog)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)

	// Init Services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret)
	workflowService := service.NewWorkflowService(store, zlog)
	projectService := service.NewProjectService(store, rdb, zlog)
	fileStore := service.NewFileStoreClient(cfg.Services.FileStore)
	replayService := outbox.NewReplayService(outboxRepo, publisher)

	// Init Handlers
	authHandler := handler.NewAuthHandler(authService)
	projectHandler := handler.NewProjectHandler(workflowService, projectService)
	milestoneHandler := handler.NewMilestoneHandler(workflowService, projectService)
	updateHandler := handler.NewUpdateHandler(workflowService, projectService)
	uploadHandler := handler.NewUploadHandler(fileStore, zlog)
	notificationHandler := handler.NewNotificationHandler(notificationRepo)
	adminHandler := handler.NewAdminHandler(replayService, zlog)

	// Router
	router := httpserver.NewRouter(
		authHandler,
		projectHandler,
		milestoneHandler,
		updateHandler,
		uploadHandler,
		notificationHandler,
		adminHandler,
		cfg.JWT.Secret,
		dbConn,
	)

	zlog.Info("Starting API server", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		zlog.Fatal("server start failed", zap.Error(err))
	}
}
