package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bargenix-billing-core/internal/analytics"
	"bargenix-billing-core/internal/application"
	"bargenix-billing-core/internal/application/webhook_handlers"
	"bargenix-billing-core/internal/config"
	"bargenix-billing-core/internal/httpapi"
	"bargenix-billing-core/internal/infrastructure/metrics"
	"bargenix-billing-core/internal/infrastructure/nonce"
	"bargenix-billing-core/internal/infrastructure/repository/postgres"
	shopifyinfra "bargenix-billing-core/internal/infrastructure/shopify"
	"bargenix-billing-core/internal/migrate"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("⚠️  Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}

	// Repositories
	storeRepo := postgres.NewStoreRepo(db)
	membershipRepo := postgres.NewMembershipRepo(db)
	planRepo := postgres.NewPlanRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	analyticsRepo := postgres.NewAnalyticsRepo(db)

	// Shopify client and webhook verification
	shopifyClient := shopifyinfra.NewClient(cfg.ShopifyAPIKey, cfg.ShopifyAPISecret, cfg.ShopifyAPIVersion, logger)
	verifier := shopifyinfra.NewWebhookVerifier(cfg.ShopifyAPISecret)
	nonceStore := nonce.NewRedisStore(redisClient)

	// Application services
	eventLogger := application.NewEventLogger(eventRepo, logger)
	authService := application.NewAuthService(storeRepo, nonceStore, shopifyClient, cfg.ShopifyScopes, cfg.AppURL, logger)
	storeService := application.NewStoreService(storeRepo, shopifyClient, logger)
	billingService := application.NewBillingService(
		storeRepo, membershipRepo, planRepo, shopifyClient, eventLogger,
		cfg.AppURL, cfg.BillingTestMode, logger,
	)

	// Webhook dispatcher and handlers
	dispatcher := application.NewWebhookDispatcher(logger)
	dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(logger, storeService))
	dispatcher.RegisterHandler(webhook_handlers.NewChargeUpdateHandler(logger, billingService))
	dispatcher.RegisterHandler(webhook_handlers.NewGDPRHandler(logger, storeRepo, eventLogger))

	// Analytics tracker
	tracker := analytics.NewTracker(analyticsRepo, logger,
		analytics.WithDropHook(metrics.AnalyticsDropped.Inc),
	)
	go tracker.Run(ctx)

	// Periodic token health sweep
	go storeService.RunStatusChecker(ctx, cfg.StatusCheckInterval)

	handlers := httpapi.NewHandlers(
		authService, billingService, storeService,
		dispatcher, verifier, tracker,
		cfg.DashboardURL, logger,
	)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.NewRouter(handlers),
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
