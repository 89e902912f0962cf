package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selftracker/internal/model"
	"selftracker/pkg/logger"
)

// 统一响应格式：{success, data} / {success, count, data} / {success:false, error}

// ThemeKey 由主题中间件写入；存在时响应信封附带 theme 字段
const ThemeKey = "theme"

func envelope(c *gin.Context, body gin.H) gin.H {
	if theme, ok := c.Get(ThemeKey); ok {
		if _, set := body["theme"]; !set {
			body["theme"] = theme
		}
	}
	return body
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, envelope(c, gin.H{"success": true, "data": data}))
}

func respondList(c *gin.Context, count int, data any) {
	c.JSON(http.StatusOK, envelope(c, gin.H{"success": true, "count": count, "data": data}))
}

func respondError(c *gin.Context, status int, msg string) {
	c.JSON(status, envelope(c, gin.H{"success": false, "error": msg}))
}

func respondMessage(c *gin.Context, body gin.H) {
	body["success"] = true
	c.JSON(http.StatusOK, envelope(c, body))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Anything unexpected is logged and hidden behind a generic 500.
func writeError(c *gin.Context, log *zap.Logger, op string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error(op+" failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondError(c, status, "Server Error")
		return
	}

	var de *model.Error
	if errors.As(err, &de) {
		respondError(c, status, de.Msg)
		return
	}
	respondError(c, status, http.StatusText(status))
}

// getUserID 读取 AuthMiddleware 写入的 user_id
func getUserID(c *gin.Context) (int, bool) {
	userID, ok := c.Get("user_id")
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized to access this route")
		return 0, false
	}
	id, ok := userID.(int)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authorized to access this route")
		return 0, false
	}
	return id, true
}

// pathID parses a numeric path parameter. Malformed ids are reported as a missing resource.
func pathID(c *gin.Context, name, notFound string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}

// bindJSON 空 body 视为空对象，交给服务层校验
func bindJSON(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
