package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"dinory-ai/internal/ai"
	"dinory-ai/internal/clients"
	"dinory-ai/internal/config"
	"dinory-ai/internal/handler"
	"dinory-ai/internal/logger"
	"dinory-ai/internal/middleware"
	"dinory-ai/internal/repository"
	"dinory-ai/internal/service"
)

func main() {
	// --- Configuration ---
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on environment variables")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized successfully", zap.String("logLevel", cfg.LogLevel))

	// --- Dependency Injection ---
	aiClient := ai.NewClient(cfg, log)

	var index clients.VectorIndex
	if cfg.SemanticSearchEnabled() {
		index = clients.NewPineconeClient(cfg.PineconeIndexHost, cfg.PineconeAPIKey, cfg.PineconeTimeout, log)
		zap.L().Info("Semantic index enabled", zap.String("host", cfg.PineconeIndexHost))
	} else {
		index = clients.NewDisabledVectorIndex()
		zap.L().Warn("Semantic index disabled, retrieval degrades to structured sources only")
	}

	historyClient := clients.NewHTTPHistoryClient(cfg.BackendAPIURL, cfg.BackendAPITimeout, log)

	sessions, redisClient, err := setupSessionStore(cfg, log)
	if err != nil {
		zap.L().Fatal("Failed to set up session store", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	characters := repository.NewCharacterStore()
	sequencer := service.NewSceneSequencer(aiClient, log)
	classifier := service.NewChoiceClassifier(aiClient, log)
	memory := service.NewMemoryRetriever(historyClient, index, aiClient, log)
	narrative := service.NewNarrativeService(sessions, characters, sequencer, classifier, historyClient, log)
	chat := service.NewChatService(aiClient, memory, log)
	recommend := service.NewRecommendationService(aiClient, index, log)
	emotion := service.NewEmotionAnalyzer(rand.New(rand.NewSource(time.Now().UnixNano())))

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.ZapLoggingMiddleware(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "healthy",
			"service":        "dinory-ai",
			"openai":         aiClient.Enabled(),
			"semantic_index": index.Enabled(),
		})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	handler.NewStoryHandler(narrative, recommend, log).RegisterRoutes(router)
	handler.NewChatHandler(chat, emotion, log).RegisterRoutes(router)
	handler.NewMemoryHandler(memory, log).RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.Port))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

// setupSessionStore selects the session repository from configuration.
// The Redis client is returned for lifecycle management when used.
func setupSessionStore(cfg *config.Config, log *zap.Logger) (repository.SessionRepository, *redis.Client, error) {
	if cfg.SessionStore != "redis" {
		return repository.NewMemorySessionRepository(log), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	zap.L().Info("Connected to Redis", zap.String("address", cfg.RedisAddr))
	return repository.NewRedisSessionRepository(client, cfg.SessionTTL, log), client, nil
}
