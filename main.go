package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"chat-brain/backend/internal/ai"
	"chat-brain/backend/internal/api"
	"chat-brain/backend/internal/notify"
	"chat-brain/backend/internal/queue"
	"chat-brain/backend/internal/ratelimit"
	"chat-brain/backend/internal/service"
	"chat-brain/backend/internal/session"
	"chat-brain/backend/internal/store"
	"chat-brain/backend/internal/sweeper"
	"chat-brain/backend/pkg/cache"
	"chat-brain/backend/pkg/config"
	"chat-brain/backend/pkg/errors"
	"chat-brain/backend/pkg/jwt"
	"chat-brain/backend/pkg/logger"
	"chat-brain/backend/pkg/middleware"
	"chat-brain/backend/pkg/secrets"
	"chat-brain/backend/pkg/validator"
	"chat-brain/backend/shared/observability"
	"chat-brain/backend/shared/redis"
)

func main() {
	cfg := config.New()

	appLogger := logger.New(logger.Config{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.Format == "json",
	})
	logger.SetGlobal(appLogger)

	shutdownTracing := observability.SetupTracing("chat-brain")
	defer shutdownTracing()

	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}
	observability.SetupPrometheusMetrics(metricsAddr)

	db, err := config.NewDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	conversationStore := store.NewGormConversationStore(db, cfg.Session.ConversationTTL)
	if err := conversationStore.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	secretsManager := secrets.NewManager()
	apiKey, err := secretsManager.GetSecret(ctx, "ANTHROPIC_API_KEY")
	if err != nil {
		log.Fatalf("Failed to resolve completion API key: %v", err)
	}

	completions, err := ai.NewAnthropicClient(ai.Options{
		APIKey:    apiKey,
		Model:     cfg.Completion.Model,
		MaxTokens: cfg.Completion.MaxTokens,
		Timeout:   cfg.Completion.Timeout,
	}, appLogger)
	if err != nil {
		log.Fatalf("Failed to create completion client: %v", err)
	}

	messageQueue := queue.New(cfg.Pipeline.QueueSize)
	gate := ratelimit.New(cfg.RateLimit.Window, cfg.RateLimit.Max)
	sessions := session.NewTracker(cfg.Session.Timeout)
	notifier := notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, appLogger)
	expirySweeper := sweeper.New(conversationStore, sessions, gate, appLogger)

	orchestrator := service.NewOrchestrator(
		messageQueue, gate, sessions, conversationStore, completions, notifier, expirySweeper, appLogger,
		service.OrchestratorOptions{
			MaxRetries:       cfg.Pipeline.MaxRetries,
			MaxContentLength: cfg.Pipeline.MaxContentLength,
			ContextWindow:    cfg.Pipeline.ContextWindow,
			AssistantUserID:  cfg.Pipeline.AssistantUserID,
			WorkerInterval:   cfg.Pipeline.WorkerInterval,
			SweepInterval:    cfg.Pipeline.SweepInterval,
		},
	)
	go orchestrator.Run(ctx)

	var queryCache service.Cache
	if cfg.Cache.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.Cache.RedisURL)
		if err != nil {
			appLogger.Warn("redis unavailable, using in-memory cache", "error", err.Error())
		} else {
			defer redisClient.Close()
			queryCache = redisClient
		}
	}
	if queryCache == nil {
		queryCache = cache.New(cache.Options{
			DefaultExpiration: cfg.Cache.TTL,
			CleanupInterval:   cfg.Cache.PurgeWindow,
			MaxItems:          cfg.Cache.MaxSize,
		})
	}
	queries := service.NewQueryService(conversationStore, queryCache, cfg.Cache.TTL, appLogger)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		log.Fatalf("Failed to set trusted proxies: %v", err)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Middleware(appLogger))
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(errors.ErrorHandler())
	engine.Use(api.CORSMiddleware())

	rlOpts := middleware.DefaultRateLimiterOptions()
	rlOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	rlOpts.Burst = cfg.Security.RateLimitBurst
	engine.Use(middleware.NewRateLimiter(appLogger, rlOpts).Middleware())

	if cfg.Security.OpenAPISchema != "" {
		openapiValidator, err := validator.NewOpenAPIValidator(cfg.Security.OpenAPISchema)
		if err != nil {
			appLogger.Warn("failed to load OpenAPI schema, request validation disabled", "error", err.Error())
		} else {
			engine.Use(openapiValidator.Middleware())
		}
	}

	api.RegisterHealthRoutes(engine)
	api.NewMessageController(orchestrator).RegisterRoutes(engine)
	api.NewConversationController(queries, middleware.JWTAuthMiddleware(jwtService)).RegisterRoutes(engine)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	go func() {
		appLogger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	orchestrator.Drain()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.LogError(err, "graceful shutdown failed")
	}
	cancel()
}
