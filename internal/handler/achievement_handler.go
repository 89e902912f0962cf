package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selftracker/internal/achievement"
)

type AchievementHandler struct {
	engine *achievement.Engine
	logger *zap.Logger
}

func NewAchievementHandler(engine *achievement.Engine, logger *zap.Logger) *AchievementHandler {
	return &AchievementHandler{engine: engine, logger: logger}
}

// List handles GET /api/achievements
func (h *AchievementHandler) List(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	o, err := h.engine.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "ListAchievements", err)
		return
	}
	respondOK(c, http.StatusOK, o)
}

// Check handles POST /api/achievements/check
func (h *AchievementHandler) Check(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	res, err := h.engine.Check(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "CheckAchievements", err)
		return
	}
	respondOK(c, http.StatusOK, res)
}
