package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTodoFilter_Matches(t *testing.T) {
	at := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	todo := Todo{ID: 1, UserID: 7, BehaviorID: 3, Completed: true, UpdatedAt: at}

	bid, other := 3, 4
	yes, no := true, false
	since, before := at, at.Add(time.Hour)
	tooLate := at

	cases := []struct {
		name   string
		filter TodoFilter
		want   bool
	}{
		{"user only", TodoFilter{UserID: 7}, true},
		{"other user", TodoFilter{UserID: 8}, false},
		{"behavior", TodoFilter{UserID: 7, BehaviorID: &bid}, true},
		{"other behavior", TodoFilter{UserID: 7, BehaviorID: &other}, false},
		{"completed", TodoFilter{UserID: 7, Completed: &yes}, true},
		{"incomplete", TodoFilter{UserID: 7, Completed: &no}, false},
		{"since inclusive", TodoFilter{UserID: 7, UpdatedSince: &since}, true},
		{"before exclusive", TodoFilter{UserID: 7, UpdatedBefore: &tooLate}, false},
		{"in range", TodoFilter{UserID: 7, UpdatedSince: &since, UpdatedBefore: &before}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(todo))
		})
	}
}
