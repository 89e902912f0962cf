package model

import "time"

const DefaultBehaviorColor = "#DC3545"

type Behavior struct {
	ID        int       `json:"id"`
	UserID    int       `json:"userId"`
	Title     string    `json:"title"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	Todos     []Todo    `json:"todos,omitempty"`
}

// BehaviorCount 行为及其待办数量，按 ID 升序返回
type BehaviorCount struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Color          string `json:"color"`
	TodoCount      int    `json:"todoCount"`
	CompletedCount int    `json:"completedCount"`
}
