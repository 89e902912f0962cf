package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"selftracker/internal/achievement"
	"selftracker/internal/config"
	"selftracker/internal/handler"
	"selftracker/internal/httpserver"
	"selftracker/internal/repository"
	"selftracker/internal/service"
	"selftracker/internal/stats"
	"selftracker/pkg/circuitbreaker"
	"selftracker/pkg/db"
	"selftracker/pkg/logger"
	"selftracker/pkg/mq"
	"selftracker/pkg/ratelimit"
	redisclient "selftracker/pkg/redis"
)

func buildLimiters(cfg *config.Config, rdb *redis.Client) httpserver.Limiters {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return httpserver.Limiters{}
	}
	if rdb != nil {
		return httpserver.Limiters{
			API:    ratelimit.NewRedisLimiter(rdb, "api", rl.Window, rl.APIMax),
			Auth:   ratelimit.NewRedisLimiter(rdb, "auth", rl.Window, rl.AuthMax),
			Create: ratelimit.NewRedisLimiter(rdb, "create", rl.Window, rl.CreateMax),
		}
	}
	return httpserver.Limiters{
		API:    ratelimit.NewMemoryLimiter(rl.Window, rl.APIMax),
		Auth:   ratelimit.NewMemoryLimiter(rl.Window, rl.AuthMax),
		Create: ratelimit.NewMemoryLimiter(rl.Window, rl.CreateMax),
	}
}

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := logger.NewLogger(cfg.Log)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.EnsureSchema(schemaCtx, dbConn, logger); err != nil {
		schemaCancel()
		logger.Fatal("Schema initialization failed", zap.Error(err))
	}
	schemaCancel()

	// Init Redis (可选，用于分布式限流)
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, falling back to in-memory rate limiting", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	// Init MQ Publisher (可选，未配置时不发布 todo.completed)
	var publisher service.EventPublisher
	var broker httpserver.BrokerStatus
	if cfg.MQ.URL != "" {
		pub, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			logger.Fatal("Failed to init MQ publisher", zap.Error(err))
		}
		defer pub.Close()
		publisher = mq.NewGuardedPublisher(pub, circuitbreaker.DefaultConfig(), logger)
		broker = pub
	} else {
		logger.Info("MQ disabled, todo.completed events will not be published")
	}

	// Init Repositories
	userRepo := repository.NewUserRepository(dbConn, logger)
	behaviorRepo := repository.NewBehaviorRepository(dbConn, logger)
	todoRepo := repository.NewTodoRepository(dbConn, logger)

	// Init Services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL, logger)
	behaviorService := service.NewBehaviorService(behaviorRepo, todoRepo, logger)
	todoService := service.NewTodoService(todoRepo, behaviorRepo, publisher, logger)
	statsEngine := stats.NewEngine(userRepo, todoRepo, behaviorRepo, logger)
	achievementEngine := achievement.NewEngine(userRepo, todoRepo, behaviorRepo, logger)

	// Router
	router := httpserver.NewRouter(httpserver.Handlers{
		Auth:        handler.NewAuthHandler(authService, logger),
		Behavior:    handler.NewBehaviorHandler(behaviorService, logger),
		Todo:        handler.NewTodoHandler(todoService, logger),
		Stats:       handler.NewStatsHandler(statsEngine, logger),
		Achievement: handler.NewAchievementHandler(achievementEngine, logger),
	}, httpserver.Options{
		JWTSecret: cfg.JWT.Secret,
		Limiters:  buildLimiters(cfg, rdb),
		DB:        dbConn,
		Broker:    broker,
		Themes:    authService,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		logger.Info("Starting API server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down API server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server stopped")
	}
}
