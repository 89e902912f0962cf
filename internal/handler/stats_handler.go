package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selftracker/internal/stats"
)

type StatsHandler struct {
	engine *stats.Engine
	logger *zap.Logger
}

func NewStatsHandler(engine *stats.Engine, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{engine: engine, logger: logger}
}

// Summary handles GET /api/stats
func (h *StatsHandler) Summary(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	s, err := h.engine.Summary(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "StatsSummary", err)
		return
	}
	respondOK(c, http.StatusOK, s)
}

// Behavior handles GET /api/stats/behaviors/:id
func (h *StatsHandler) Behavior(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Behavior not found")
	if !ok {
		return
	}
	s, err := h.engine.BehaviorStats(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.logger, "BehaviorStats", err)
		return
	}
	respondOK(c, http.StatusOK, s)
}

// Streak handles GET /api/stats/streak
func (h *StatsHandler) Streak(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	s, err := h.engine.Streak(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "Streak", err)
		return
	}
	respondOK(c, http.StatusOK, s)
}
