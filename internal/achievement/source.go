package achievement

import (
	"context"

	"selftracker/internal/model"
)

// Source is the read-only view of persisted state that predicates evaluate against.
type Source interface {
	BehaviorCount(ctx context.Context, userID int) (int, error)
	TodoCount(ctx context.Context, userID int, completedOnly bool) (int, error)
	StreakDays(ctx context.Context, userID int) (int, error)
	BehaviorCounts(ctx context.Context, userID int) ([]model.BehaviorCount, error)
	CompletedBehaviorCount(ctx context.Context, userID int) (int, error)
}

// storeSource 单次 Check 内缓存查询结果，多个规则共用同一次读取
type storeSource struct {
	user      *model.User
	todos     TodoStore
	behaviors BehaviorStore

	behaviorCount   *int
	todoCount       map[bool]int
	counts          []model.BehaviorCount
	countsLoaded    bool
	completedAcross *int
}

func newStoreSource(user *model.User, todos TodoStore, behaviors BehaviorStore) *storeSource {
	return &storeSource{
		user:      user,
		todos:     todos,
		behaviors: behaviors,
		todoCount: make(map[bool]int),
	}
}

func (s *storeSource) BehaviorCount(ctx context.Context, userID int) (int, error) {
	if s.behaviorCount == nil {
		n, err := s.behaviors.Count(ctx, userID)
		if err != nil {
			return 0, err
		}
		s.behaviorCount = &n
	}
	return *s.behaviorCount, nil
}

func (s *storeSource) TodoCount(ctx context.Context, userID int, completedOnly bool) (int, error) {
	if n, ok := s.todoCount[completedOnly]; ok {
		return n, nil
	}
	f := model.TodoFilter{UserID: userID}
	if completedOnly {
		done := true
		f.Completed = &done
	}
	n, err := s.todos.Count(ctx, f)
	if err != nil {
		return 0, err
	}
	s.todoCount[completedOnly] = n
	return n, nil
}

func (s *storeSource) StreakDays(context.Context, int) (int, error) {
	return s.user.Statistics.StreakDays, nil
}

func (s *storeSource) BehaviorCounts(ctx context.Context, userID int) ([]model.BehaviorCount, error) {
	if !s.countsLoaded {
		counts, err := s.behaviors.ListWithCounts(ctx, userID)
		if err != nil {
			return nil, err
		}
		s.counts, s.countsLoaded = counts, true
	}
	return s.counts, nil
}

func (s *storeSource) CompletedBehaviorCount(ctx context.Context, userID int) (int, error) {
	if s.completedAcross == nil {
		n, err := s.todos.CountCompletedBehaviors(ctx, userID)
		if err != nil {
			return 0, err
		}
		s.completedAcross = &n
	}
	return *s.completedAcross, nil
}
