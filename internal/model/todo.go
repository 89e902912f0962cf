package model

import "time"

type Todo struct {
	ID         int       `json:"id"`
	BehaviorID int       `json:"behaviorId"`
	UserID     int       `json:"userId"`
	Text       string    `json:"text"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TodoFilter nil 字段表示不过滤
type TodoFilter struct {
	UserID        int
	BehaviorID    *int
	Completed     *bool
	UpdatedSince  *time.Time // inclusive
	UpdatedBefore *time.Time // exclusive
}

// Matches reports whether t passes every set field of the filter.
func (f TodoFilter) Matches(t Todo) bool {
	if t.UserID != f.UserID {
		return false
	}
	if f.BehaviorID != nil && t.BehaviorID != *f.BehaviorID {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.UpdatedSince != nil && t.UpdatedAt.Before(*f.UpdatedSince) {
		return false
	}
	if f.UpdatedBefore != nil && !t.UpdatedAt.Before(*f.UpdatedBefore) {
		return false
	}
	return true
}

// TodoTotals 同一条语句统计，Completed 不会超过 Total
type TodoTotals struct {
	Total     int
	Completed int
}

// RecentTodo 最近活动条目，BehaviorTitle 在行为已删除时为 nil
type RecentTodo struct {
	ID            int
	Text          string
	Completed     bool
	BehaviorID    int
	BehaviorTitle *string
	UpdatedAt     time.Time
}
