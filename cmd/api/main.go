package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mspace-gateway/internal/api"
	"mspace-gateway/internal/auth"
	"mspace-gateway/internal/config"
	"mspace-gateway/internal/credits"
	"mspace-gateway/internal/dispatch"
	"mspace-gateway/internal/history"
	"mspace-gateway/internal/idempotency"
	"mspace-gateway/internal/mspace"
	"mspace-gateway/internal/observability"
	"mspace-gateway/internal/persistence"
	"mspace-gateway/internal/rate"
	"mspace-gateway/internal/reports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := observability.GetLoggerFromEnv(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting Mspace Gateway API", zap.String("port", cfg.Port))

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	ctx := context.Background()
	database, err := persistence.NewPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.RunMigrations("migrations"); err != nil {
		logger.Warn("failed to run migrations", zap.Error(err))
	}

	redis, err := persistence.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	outbox, err := history.NewOutbox(cfg.NATSURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer outbox.Close()

	// Services
	provider := mspace.NewClient(cfg.MspaceBaseURL, cfg.MspaceUserID, cfg.MspaceAPIKey, cfg.MspaceTimeout, logger)
	store := history.NewStore(database, logger)
	recorder := history.NewRecorder(store, outbox, logger)
	ledger := credits.NewLedger(database, metrics, logger)
	dispatcher := dispatch.NewDispatcher(cfg.DispatchConcurrency, recorder, metrics, logger)
	reconciler := reports.NewReconciler(provider, store, metrics, logger)
	authService := auth.NewService(database, logger)
	rateLimiter := rate.NewLimiter(redis, logger, cfg.RateLimitRPS, cfg.RateLimitBurst)
	idemStore := idempotency.NewStore(redis, logger)

	pricing := dispatch.Pricing{
		SMSCostPerSegment:  cfg.SMSCostPerSegment,
		VoiceCostPerCall:   cfg.VoiceCostPerCall,
		USSDCostPerSession: cfg.USSDCostPerSession,
		AirtimeServiceFee:  cfg.AirtimeServiceFee,
		AirtimeMinAmount:   cfg.AirtimeMinAmount,
		AirtimeMaxAmount:   cfg.AirtimeMaxAmount,
	}

	handlers := api.NewHandlers(logger, provider, ledger, dispatcher, reconciler, store, idemStore, pricing)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.Error("unhandled request error", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Internal server error",
			})
		},
	})

	api.SetupRoutes(app, logger, metrics, handlers, authService, rateLimiter)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Info("Mspace Gateway API started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("failed to shutdown gracefully", zap.Error(err))
	}

	logger.Info("Mspace Gateway stopped")
}
