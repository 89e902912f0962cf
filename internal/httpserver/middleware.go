package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selftracker/internal/handler"
	"selftracker/internal/model"
	"selftracker/pkg/logger"
	"selftracker/pkg/metrics"
	"selftracker/pkg/trace"
	"selftracker/pkg/util"
)

func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := util.ExtractBearer(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authorized to access this route"})
			return
		}

		userID, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authorized to access this route"})
			return
		}

		// store user_id in context so handlers can use it
		c.Set("user_id", userID)

		c.Next()
	}
}

// ThemeSource 读取用户资料，主题偏好从中取
type ThemeSource interface {
	Me(ctx context.Context, userID int) (*model.User, error)
}

// ThemeMiddleware puts the user's theme into the context so response envelopes carry it.
// Lookup errors are logged and the request continues without a theme.
func ThemeMiddleware(src ThemeSource, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := c.Get("user_id")
		id, isInt := userID.(int)
		if !ok || !isInt {
			c.Next()
			return
		}

		u, err := src.Me(c.Request.Context(), id)
		if err != nil {
			logger.WithTrace(c.Request.Context(), log).Warn("Theme lookup failed",
				zap.Int("user_id", id),
				zap.Error(err),
			)
			c.Next()
			return
		}

		theme := u.Preferences.Theme
		if theme == "" {
			theme = model.ThemeLight
		}
		c.Set(handler.ThemeKey, theme)
		c.Next()
	}
}

// TraceMiddleware 复用请求头里的 trace_id，没有则生成，并写回响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := trace.FromHeaders(c.GetHeader(trace.HeaderName()), c.GetHeader("X-Request-ID"))
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	}
}

// RequestLogMiddleware 请求日志 + HTTP 延迟指标
func RequestLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)

		logger.WithTrace(c.Request.Context(), log).Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
