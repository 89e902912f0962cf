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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mqcontracts "selftracker/contracts/mq"
	"selftracker/internal/achievement"
	"selftracker/internal/config"
	"selftracker/internal/mqhandler"
	"selftracker/internal/repository"
	"selftracker/internal/stats"
	"selftracker/pkg/db"
	"selftracker/pkg/logger"
	"selftracker/pkg/mq"
	redisclient "selftracker/pkg/redis"
	"selftracker/pkg/util"
)

func healthRouter(pinger interface{ Ping(context.Context) error }) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	return r
}

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger := logger.NewLogger(cfg.Log)
	defer logger.Sync()

	if cfg.MQ.URL == "" {
		logger.Fatal("mq.url is required for the worker")
	}

	logger.Info("Starting worker service...")

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

	// Init Repositories & engines
	userRepo := repository.NewUserRepository(dbConn, logger)
	behaviorRepo := repository.NewBehaviorRepository(dbConn, logger)
	todoRepo := repository.NewTodoRepository(dbConn, logger)
	statsEngine := stats.NewEngine(userRepo, todoRepo, behaviorRepo, logger)
	achievementEngine := achievement.NewEngine(userRepo, todoRepo, behaviorRepo, logger)

	// DLQ 发布者
	dlqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init DLQ publisher", zap.Error(err))
	}
	defer dlqPublisher.Close()

	policy := mq.RetryPolicy{
		MaxRetries: cfg.Worker.MaxRetries,
		DeadLetter: dlqPublisher,
	}

	// Init Redis (可选：去重 + 重试计数)
	var dedup mqhandler.Deduper
	if cfg.Redis.Addr != "" {
		rdb, err := redisclient.NewRedisClient(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis unavailable, running without dedup and retry budget", zap.Error(err))
		} else {
			defer rdb.Close()
			dedup = util.NewDeduper(rdb, cfg.Worker.DedupTTL, logger)
			policy.Counter = util.NewRetryCounter(rdb, cfg.Worker.RetryTTL)
		}
	}

	todoCompletedHandler := mqhandler.NewTodoCompletedHandler(statsEngine, achievementEngine, dedup, logger)

	logger.Info("Initializing todo.completed consumer",
		zap.String("queue", mqcontracts.QueueTodoAchievements),
		zap.String("routing_key", mqcontracts.RoutingKeyTodoCompleted),
	)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, mqcontracts.QueueTodoAchievements, mqcontracts.RoutingKeyTodoCompleted, logger)
	if err != nil {
		logger.Fatal("Failed to init todo.completed consumer", zap.Error(err))
	}
	defer consumer.Close()
	consumer.SetHandler(todoCompletedHandler.Handle)
	consumer.SetRetryPolicy(policy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("Starting todo.completed consumer")
		if err := consumer.StartConsuming(ctx); err != nil {
			logger.Fatal("todo.completed consumer failed", zap.Error(err))
		}
	}()

	// Health server
	srv := &http.Server{
		Addr:    cfg.Worker.HealthPort,
		Handler: healthRouter(dbConn),
	}
	go func() {
		logger.Info("Health server starting", zap.String("port", cfg.Worker.HealthPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Health server failed", zap.Error(err))
		}
	}()

	logger.Info("Worker is fully initialized and running")

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health server shutdown error", zap.Error(err))
	}

	logger.Info("Worker shutdown complete")
}
