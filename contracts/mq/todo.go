package mq

import "time"

const (
	RoutingKeyTodoCompleted = "todo.completed"
	QueueTodoAchievements   = "todo.completed.achievements.q"
)

// TodoCompletedPayload 待办从未完成变为完成时发布
type TodoCompletedPayload struct {
	TodoID      int       `json:"todo_id"`
	UserID      int       `json:"user_id"`
	BehaviorID  int       `json:"behavior_id"`
	CompletedAt time.Time `json:"completed_at"`
}
