package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/SscSPs/student_ledger/internal/core/services"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/events"
	"github.com/SscSPs/student_ledger/internal/handlers"
	"github.com/SscSPs/student_ledger/internal/middleware"
	"github.com/SscSPs/student_ledger/internal/platform/config"
	"github.com/SscSPs/student_ledger/internal/repositories"
	"github.com/SscSPs/student_ledger/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// @title Student Ledger API
// @version 1.0
// @description Fee registry, fee structures and the append-only student fee ledger.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()
	dsn := cfg.DatabaseURL
	if cfg.StorageDriver == "sqlite" {
		dsn = cfg.SQLitePath
	}
	repos, closeRepos, err := repositories.Open(ctx, repositories.StorageOptions{
		Driver:      cfg.StorageDriver,
		DSN:         dsn,
		LockTimeout: cfg.LedgerLockTimeout,
		Ping:        cfg.EnableDBCheck,
		Migrate:     cfg.AutoMigrate,
	}, logger)
	if err != nil {
		logger.Error("Failed to open storage", slog.String("driver", cfg.StorageDriver), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeRepos()

	posthogClient := utils.InitializePosthogClient(cfg.PosthogAPIKey, cfg.PosthogEndpoint, logger)
	defer posthogClient.Close()

	publishers := []portssvc.LedgerEventPublisher{}
	if cfg.RedisAddr != "" {
		redisClient, err := events.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			// Events are best effort; the ledger itself does not depend on redis.
			logger.Error("Failed to connect to redis, ledger events disabled", slog.String("error", err.Error()))
		} else {
			defer redisClient.Close()
			publishers = append(publishers, events.NewRedisPublisher(redisClient, cfg.LedgerEventsChannel))
		}
	}
	if posthogClient.IsInitialized() {
		publishers = append(publishers, events.NewPosthogPublisher(posthogClient))
	}

	serviceContainer := services.NewServiceContainer(cfg, repos, events.NewFanOut(publishers...))

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AddAllowHeaders("Authorization", "X-Request-ID")
	corsConfig.AddExposeHeaders("X-Request-ID", "Retry-After")
	r.Use(cors.New(corsConfig))
	r.Use(middleware.PosthogMiddleware(posthogClient))

	err = r.SetTrustedProxies(nil)
	if err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := handlers.RegisterRoutes(r, cfg, serviceContainer); err != nil {
		logger.Error("Failed to register routes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("storage", cfg.StorageDriver))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
