package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"selftracker/internal/handler"
)

type Router struct {
	Engine *gin.Engine
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type BrokerStatus interface {
	IsConnected() bool
}

type Handlers struct {
	Auth        *handler.AuthHandler
	Behavior    *handler.BehaviorHandler
	Todo        *handler.TodoHandler
	Stats       *handler.StatsHandler
	Achievement *handler.AchievementHandler
}

type Options struct {
	JWTSecret string
	Limiters  Limiters
	DB        Pinger
	Broker    BrokerStatus // nil 表示未启用 MQ
	Themes    ThemeSource  // nil 时响应不带 theme
	Logger    *zap.Logger
}

func apiInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "API is running",
		"data": gin.H{
			"name":    "Self Improvement Tracker API",
			"version": "1.0.0",
			"endpoints": gin.H{
				"auth":         "/api/auth",
				"behaviors":    "/api/behaviors",
				"todos":        "/api/todos",
				"stats":        "/api/stats",
				"achievements": "/api/achievements",
			},
		},
	})
}

func NewRouter(h Handlers, opts Options) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogMiddleware(opts.Logger))

	// Health endpoints (放在最前面，不限流)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if opts.DB != nil {
			if err := opts.DB.Ping(ctx); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}

		if opts.Broker != nil && !opts.Broker.IsConnected() {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiLimit := RateLimitMiddleware(opts.Limiters.API, "api", opts.Logger)
	createLimit := RateLimitMiddleware(opts.Limiters.Create, "create", opts.Logger)

	r.GET("/", apiLimit, apiInfo)

	api := r.Group("/api", apiLimit)

	// Public
	authGroup := api.Group("/auth", RateLimitMiddleware(opts.Limiters.Auth, "auth", opts.Logger))
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh-token", h.Auth.RefreshToken)
	authGroup.POST("/forgotpassword", h.Auth.ForgotPassword)
	authGroup.PUT("/resetpassword/:resettoken", h.Auth.ResetPassword)

	account := authGroup.Group("/", AuthMiddleware(opts.JWTSecret))
	account.GET("/me", h.Auth.Me)
	account.PUT("/updatedetails", h.Auth.UpdateDetails)
	account.PUT("/updatepassword", h.Auth.UpdatePassword)
	account.PUT("/preferences", h.Auth.UpdatePreferences)
	account.GET("/logout", h.Auth.Logout)

	// Protected
	auth := api.Group("/")
	auth.Use(AuthMiddleware(opts.JWTSecret))
	if opts.Themes != nil {
		auth.Use(ThemeMiddleware(opts.Themes, opts.Logger))
	}
	{
		auth.GET("/behaviors", h.Behavior.List)
		auth.POST("/behaviors", createLimit, h.Behavior.Create)
		auth.GET("/behaviors/top", h.Behavior.Top)
		auth.GET("/behaviors/:id", h.Behavior.Get)
		auth.PUT("/behaviors/:id", h.Behavior.Update)
		auth.DELETE("/behaviors/:id", h.Behavior.Delete)
		auth.GET("/behaviors/:id/todos", h.Todo.ListForBehavior)
		auth.POST("/behaviors/:id/todos", createLimit, h.Todo.Add)

		auth.GET("/todos/:id", h.Todo.Get)
		auth.PUT("/todos/:id", h.Todo.Update)
		auth.DELETE("/todos/:id", h.Todo.Delete)
		auth.PUT("/todos/:id/toggle", h.Todo.Toggle)

		auth.GET("/stats", h.Stats.Summary)
		auth.GET("/stats/behaviors/:id", h.Stats.Behavior)
		auth.GET("/stats/streak", h.Stats.Streak)

		auth.GET("/achievements", h.Achievement.List)
		auth.POST("/achievements/check", h.Achievement.Check)
	}

	r.NoRoute(apiLimit, func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Route not found"})
	})

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
