package achievement

import (
	"context"
)

// Predicate reports whether the user currently satisfies a rule. It only reads.
type Predicate func(ctx context.Context, src Source, userID int) (bool, error)

type Rule struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Check       Predicate
}

// registry 顺序即展示和评估顺序，Name 是用户成就日志的去重键
var registry = []Rule{
	{
		ID:          "first_behavior",
		Name:        "First Steps",
		Description: "Create your first behavior",
		Icon:        "🌱",
		Check:       behaviorsAtLeast(1),
	},
	{
		ID:          "five_behaviors",
		Name:        "Habit Builder",
		Description: "Create five different behaviors",
		Icon:        "🏆",
		Check:       behaviorsAtLeast(5),
	},
	{
		ID:          "first_todo",
		Name:        "Baby Steps",
		Description: "Create your first todo item",
		Icon:        "📝",
		Check:       todosAtLeast(1, false),
	},
	{
		ID:          "first_completed",
		Name:        "Mission Accomplished",
		Description: "Complete your first todo item",
		Icon:        "✅",
		Check:       todosAtLeast(1, true),
	},
	{
		ID:          "ten_completed",
		Name:        "Getting Things Done",
		Description: "Complete 10 todo items",
		Icon:        "🚀",
		Check:       todosAtLeast(10, true),
	},
	{
		ID:          "fifty_completed",
		Name:        "Productivity Master",
		Description: "Complete 50 todo items",
		Icon:        "💯",
		Check:       todosAtLeast(50, true),
	},
	{
		ID:          "three_day_streak",
		Name:        "Consistent",
		Description: "Maintain a 3-day streak",
		Icon:        "🔥",
		Check:       streakAtLeast(3),
	},
	{
		ID:          "seven_day_streak",
		Name:        "Week Warrior",
		Description: "Maintain a 7-day streak",
		Icon:        "📅",
		Check:       streakAtLeast(7),
	},
	{
		ID:          "behavior_completion",
		Name:        "Behavior Master",
		Description: "Complete all todos in a behavior",
		Icon:        "🌟",
		Check:       behaviorFullyCompleted(5),
	},
	{
		ID:          "diverse_improvement",
		Name:        "Renaissance Person",
		Description: "Complete at least one todo in each of 5 different behaviors",
		Icon:        "🎭",
		Check:       completedAcrossBehaviors(5),
	},
}

// Rules returns a copy of the registry in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(registry))
	copy(out, registry)
	return out
}

func behaviorsAtLeast(n int) Predicate {
	return func(ctx context.Context, src Source, userID int) (bool, error) {
		c, err := src.BehaviorCount(ctx, userID)
		return c >= n, err
	}
}

func todosAtLeast(n int, completedOnly bool) Predicate {
	return func(ctx context.Context, src Source, userID int) (bool, error) {
		c, err := src.TodoCount(ctx, userID, completedOnly)
		return c >= n, err
	}
}

// streakAtLeast reads the cached streakDays, not a fresh computation.
func streakAtLeast(n int) Predicate {
	return func(ctx context.Context, src Source, userID int) (bool, error) {
		d, err := src.StreakDays(ctx, userID)
		return d >= n, err
	}
}

// behaviorFullyCompleted: some behavior holds at least minTodos todos, all of them done.
func behaviorFullyCompleted(minTodos int) Predicate {
	return func(ctx context.Context, src Source, userID int) (bool, error) {
		counts, err := src.BehaviorCounts(ctx, userID)
		if err != nil {
			return false, err
		}
		for _, c := range counts {
			if c.TodoCount >= minTodos && c.CompletedCount == c.TodoCount {
				return true, nil
			}
		}
		return false, nil
	}
}

func completedAcrossBehaviors(n int) Predicate {
	return func(ctx context.Context, src Source, userID int) (bool, error) {
		c, err := src.CompletedBehaviorCount(ctx, userID)
		return c >= n, err
	}
}
