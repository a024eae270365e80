package main

import (
	"time"

	"go.uber.org/zap"

	contracts "projectflow/contracts/mq"
	"projectflow/internal/config"
	"projectflow/internal/mqhandler"
	"projectflow/internal/repository"
	"projectflow/internal/service"
	"projectflow/pkg/db"
	"projectflow/pkg/logger"
	"projectflow/pkg/mq"
	redisclient "projectflow/pkg/redis"
	"projectflow/pkg/util"
)

const maxConsumeRetries = 5

func main() {
	// Load config
	cfg := config.Load()

	zlog := logger.NewLogger()
	defer zlog.Sync()

	zlog.Info("Starting worker service...")

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduperWithLogger(rdb, time.Hour, zlog)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, zlog)
	if err != nil {
		zlog.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	zlog.Info("Database connection established")

	// Init Repositories
	userRepo := repository.NewUserRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)

	// Init downstream clients
	invoiceClient := service.NewInvoiceClient(cfg.Services.Invoicing)

	// DLQ publisher for poison messages
	dlqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		zlog.Fatal("DLQ publisher initialization failed", zap.Error(err))
	}
	defer dlqPublisher.Close()

	if err := dlqPublisher.SetupDLQ(
		contracts.KeyUpdateSubmitted,
		contracts.KeyUpdateReviewed,
		contracts.KeyPaymentReleaseRequested,
		contracts.KeyInvoiceRequested,
	); err != nil {
		zlog.Fatal("DLQ setup failed", zap.Error(err))
	}

	// Init Handlers
	submittedHandler := mqhandler.NewUpdateSubmittedHandler(notificationRepo, userRepo, deduper, zlog)
	reviewedHandler := mqhandler.NewUpdateReviewedHandler(notificationRepo, deduper, zlog)
	releaseHandler := mqhandler.NewReleaseRequestedHandler(notificationRepo, userRepo, deduper, zlog)
	invoiceHandler := mqhandler.NewInvoiceHandler(invoiceClient, notificationRepo, deduper, zlog)

	type binding struct {
		queue   string
		key     string
		handler mq.MessageHandler
	}
	bindings := []binding{
		{"workflow.update_submitted.notify", contracts.KeyUpdateSubmitted, submittedHandler.HandleUpdateSubmitted},
		{"workflow.update_reviewed.notify", contracts.KeyUpdateReviewed, reviewedHandler.HandleUpdateReviewed},
		{"workflow.release_requested.notify", contracts.KeyPaymentReleaseRequested, releaseHandler.HandleReleaseRequested},
		{"workflow.invoice", contracts.KeyInvoiceRequested, invoiceHandler.HandleMilestoneApproved},
	}

	for _, b := range bindings {
		consumer, err := mq.NewConsumer(cfg.MQ.URL, b.queue, b.key, zlog)
		if err != nil {
			zlog.Fatal("Consumer initialization failed",
				zap.String("queue", b.queue),
				zap.Error(err),
			)
		}
		defer consumer.Close()

		consumer.SetHandler(b.handler)
		consumer.WithDLQ(dlqPublisher, retryCounter, maxConsumeRetries)

		go func(c *mq.Consumer, queue string) {
			if err := c.StartConsuming(); err != nil {
				zlog.Fatal("Consumer stopped", zap.String("queue", queue), zap.Error(err))
			}
		}(consumer, b.queue)
	}

	zlog.Info("Worker consuming", zap.Int("consumers", len(bindings)))
	select {}
}
