package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selftracker/internal/service"
)

type BehaviorHandler struct {
	behaviorService *service.BehaviorService
	logger          *zap.Logger
}

func NewBehaviorHandler(behaviorService *service.BehaviorService, logger *zap.Logger) *BehaviorHandler {
	return &BehaviorHandler{behaviorService: behaviorService, logger: logger}
}

// List handles GET /api/behaviors
func (h *BehaviorHandler) List(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	list, err := h.behaviorService.List(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "ListBehaviors", err)
		return
	}
	respondList(c, len(list), list)
}

// Top handles GET /api/behaviors/top
func (h *BehaviorHandler) Top(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	list, err := h.behaviorService.Top(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.logger, "TopBehaviors", err)
		return
	}
	respondList(c, len(list), list)
}

// Get handles GET /api/behaviors/:id
func (h *BehaviorHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Behavior not found")
	if !ok {
		return
	}
	b, err := h.behaviorService.Get(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.logger, "GetBehavior", err)
		return
	}
	respondOK(c, http.StatusOK, b)
}

// Create handles POST /api/behaviors
func (h *BehaviorHandler) Create(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req service.BehaviorInput
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.behaviorService.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, h.logger, "CreateBehavior", err)
		return
	}
	respondOK(c, http.StatusCreated, b)
}

// Update handles PUT /api/behaviors/:id
func (h *BehaviorHandler) Update(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Behavior not found")
	if !ok {
		return
	}
	var req service.BehaviorInput
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.behaviorService.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		writeError(c, h.logger, "UpdateBehavior", err)
		return
	}
	respondOK(c, http.StatusOK, b)
}

// Delete handles DELETE /api/behaviors/:id
func (h *BehaviorHandler) Delete(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Behavior not found")
	if !ok {
		return
	}
	if err := h.behaviorService.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, h.logger, "DeleteBehavior", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{})
}
