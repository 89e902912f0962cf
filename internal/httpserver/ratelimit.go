package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selftracker/pkg/logger"
	"selftracker/pkg/metrics"
	"selftracker/pkg/ratelimit"
)

const rateLimitedMessage = "Network connection error, kindly try again."

// Limiters nil 表示该范围不限流
type Limiters struct {
	API    ratelimit.Limiter
	Auth   ratelimit.Limiter
	Create ratelimit.Limiter
}

// RateLimitMiddleware limits requests per client IP. Limiter errors let the request through.
func RateLimitMiddleware(l ratelimit.Limiter, scope string, log *zap.Logger) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		allowed, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.WithTrace(c.Request.Context(), log).Warn("Rate limiter unavailable",
				zap.String("scope", scope),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !allowed {
			metrics.IncrementRateLimited(scope)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": rateLimitedMessage})
			return
		}
		c.Next()
	}
}
