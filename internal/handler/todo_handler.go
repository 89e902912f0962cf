package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"selftracker/internal/service"
)

type TodoHandler struct {
	todoService *service.TodoService
	logger      *zap.Logger
}

func NewTodoHandler(todoService *service.TodoService, logger *zap.Logger) *TodoHandler {
	return &TodoHandler{todoService: todoService, logger: logger}
}

// ListForBehavior handles GET /api/behaviors/:id/todos
func (h *TodoHandler) ListForBehavior(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	behaviorID, ok := pathID(c, "id", "Behavior not found")
	if !ok {
		return
	}
	list, err := h.todoService.ListForBehavior(c.Request.Context(), userID, behaviorID)
	if err != nil {
		writeError(c, h.logger, "ListTodos", err)
		return
	}
	respondList(c, len(list), list)
}

// Add handles POST /api/behaviors/:id/todos
func (h *TodoHandler) Add(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	behaviorID, ok := pathID(c, "id", "Behavior not found")
	if !ok {
		return
	}
	var req service.TodoInput
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.todoService.Add(c.Request.Context(), userID, behaviorID, req)
	if err != nil {
		writeError(c, h.logger, "AddTodo", err)
		return
	}
	respondOK(c, http.StatusCreated, t)
}

// Get handles GET /api/todos/:id
func (h *TodoHandler) Get(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Todo not found")
	if !ok {
		return
	}
	t, err := h.todoService.Get(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.logger, "GetTodo", err)
		return
	}
	respondOK(c, http.StatusOK, t)
}

// Update handles PUT /api/todos/:id
func (h *TodoHandler) Update(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Todo not found")
	if !ok {
		return
	}
	var req service.TodoInput
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.todoService.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		writeError(c, h.logger, "UpdateTodo", err)
		return
	}
	respondOK(c, http.StatusOK, t)
}

// Toggle handles PUT /api/todos/:id/toggle
func (h *TodoHandler) Toggle(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Todo not found")
	if !ok {
		return
	}
	t, err := h.todoService.Toggle(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, h.logger, "ToggleTodo", err)
		return
	}
	respondOK(c, http.StatusOK, t)
}

// Delete handles DELETE /api/todos/:id
func (h *TodoHandler) Delete(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id", "Todo not found")
	if !ok {
		return
	}
	if err := h.todoService.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, h.logger, "DeleteTodo", err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{})
}
