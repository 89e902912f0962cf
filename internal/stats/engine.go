// Package stats 计算用户的汇总统计、单个行为的近 7 天趋势和连续打卡天数。
// 所有日期按 UTC 日历日计算。
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"selftracker/internal/model"
	"selftracker/pkg/logger"
	"selftracker/pkg/metrics"
)

const (
	recentActivityLimit = 5
	trendDays           = 7
	streakWindowDays    = 31

	errBehaviorNotFound = "Behavior not found or does not belong to user"
)

type UserStore interface {
	FindByID(ctx context.Context, id int) (*model.User, error)
	UpdateStatistics(ctx context.Context, userID int, upd model.StatisticsUpdate) error
}

type TodoStore interface {
	Totals(ctx context.Context, f model.TodoFilter) (model.TodoTotals, error)
	List(ctx context.Context, f model.TodoFilter) ([]model.Todo, error)
	ListRecent(ctx context.Context, userID, limit int) ([]model.RecentTodo, error)
}

type BehaviorStore interface {
	FindByID(ctx context.Context, id int) (*model.Behavior, error)
	ListWithCounts(ctx context.Context, userID int) ([]model.BehaviorCount, error)
}

type Totals struct {
	TotalBehaviors       int `json:"totalBehaviors"`
	TotalTodos           int `json:"totalTodos"`
	CompletedTodos       int `json:"completedTodos"`
	IncompleteTodos      int `json:"incompleteTodos"`
	CompletionPercentage int `json:"completionPercentage"`
	StreakDays           int `json:"streakDays"`
}

type ActiveBehavior struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	TodoCount int    `json:"todoCount"`
}

type BehaviorRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type Activity struct {
	ID        int          `json:"id"`
	Text      string       `json:"text"`
	Completed bool         `json:"completed"`
	Behavior  *BehaviorRef `json:"behavior"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type UserSummary struct {
	Summary            Totals          `json:"summary"`
	MostActiveBehavior *ActiveBehavior `json:"mostActiveBehavior"`
	RecentActivity     []Activity      `json:"recentActivity"`
}

type BehaviorStats struct {
	BehaviorID           int          `json:"behaviorId"`
	Title                string       `json:"title"`
	TotalTodos           int          `json:"totalTodos"`
	CompletedTodos       int          `json:"completedTodos"`
	IncompleteTodos      int          `json:"incompleteTodos"`
	CompletionPercentage int          `json:"completionPercentage"`
	DailyCompletions     []DailyCount `json:"dailyCompletions"`
}

type StreakResult struct {
	CurrentStreak    int          `json:"currentStreak"`
	MaxStreak        int          `json:"maxStreak"`
	DailyCompletions []DailyCount `json:"dailyCompletions"`
	ActiveDays       int          `json:"activeDays"`
}

type Engine struct {
	users     UserStore
	todos     TodoStore
	behaviors BehaviorStore
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now; tests pin "today" with it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(users UserStore, todos TodoStore, behaviors BehaviorStore, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		users:     users,
		todos:     todos,
		behaviors: behaviors,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func boolPtr(b bool) *bool { return &b }

// Summary 汇总用户全部行为和待办，并回写 statistics 缓存
func (e *Engine) Summary(ctx context.Context, userID int) (*UserSummary, error) {
	start := time.Now()
	defer func() { metrics.RecordStatsCompute("summary", time.Since(start)) }()

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		totals model.TodoTotals
		counts []model.BehaviorCount
		recent []model.RecentTodo
	)
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) (err error) {
		totals, err = e.todos.Totals(ctx, model.TodoFilter{UserID: userID})
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		counts, err = e.behaviors.ListWithCounts(ctx, userID)
		return err
	})
	p.Go(func(ctx context.Context) (err error) {
		recent, err = e.todos.ListRecent(ctx, userID, recentActivityLimit)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("summary for user %d: %w", userID, err)
	}
	total, completed := totals.Total, totals.Completed

	out := &UserSummary{
		Summary: Totals{
			TotalBehaviors:       len(counts),
			TotalTodos:           total,
			CompletedTodos:       completed,
			IncompleteTodos:      total - completed,
			CompletionPercentage: percentage(completed, total),
			StreakDays:           user.Statistics.StreakDays,
		},
		MostActiveBehavior: mostActive(counts),
		RecentActivity:     make([]Activity, 0, len(recent)),
	}
	for _, r := range recent {
		a := Activity{ID: r.ID, Text: r.Text, Completed: r.Completed, UpdatedAt: r.UpdatedAt}
		if r.BehaviorTitle != nil {
			a.Behavior = &BehaviorRef{ID: r.BehaviorID, Title: *r.BehaviorTitle}
		}
		out.RecentActivity = append(out.RecentActivity, a)
	}

	now := e.now().UTC()
	behaviorsN := len(counts)
	err = e.users.UpdateStatistics(ctx, userID, model.StatisticsUpdate{
		TotalBehaviors: &behaviorsN,
		TotalTodos:     &total,
		CompletedTodos: &completed,
		LastActive:     &now,
	})
	if err != nil {
		return nil, fmt.Errorf("persist statistics: %w", err)
	}

	logger.WithTrace(ctx, e.logger).Debug("Summary computed",
		zap.Int("user_id", userID),
		zap.Int("total_todos", total),
		zap.Int("completed_todos", completed),
	)
	return out, nil
}

// mostActive expects counts ascending by id, so ties keep the lowest id.
func mostActive(counts []model.BehaviorCount) *ActiveBehavior {
	var best *ActiveBehavior
	top := 0
	for _, c := range counts {
		if c.TodoCount > top {
			top = c.TodoCount
			best = &ActiveBehavior{ID: c.ID, Title: c.Title, TodoCount: c.TodoCount}
		}
	}
	return best
}

// BehaviorStats 单个行为的完成情况和近 7 天每日完成数（无完成的日期不出现）
func (e *Engine) BehaviorStats(ctx context.Context, userID, behaviorID int) (*BehaviorStats, error) {
	start := time.Now()
	defer func() { metrics.RecordStatsCompute("behavior", time.Since(start)) }()

	b, err := e.behaviors.FindByID(ctx, behaviorID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && b.UserID != userID) {
		// 不暴露其他用户的行为是否存在
		return nil, model.NotFound(errBehaviorNotFound)
	}
	if err != nil {
		return nil, err
	}

	f := model.TodoFilter{UserID: userID, BehaviorID: &behaviorID}
	totals, err := e.todos.Totals(ctx, f)
	if err != nil {
		return nil, err
	}
	total, completed := totals.Total, totals.Completed
	f.Completed = boolPtr(true)

	since, before := window(e.now(), trendDays-1)
	f.UpdatedSince, f.UpdatedBefore = &since, &before
	done, err := e.todos.List(ctx, f)
	if err != nil {
		return nil, err
	}

	return &BehaviorStats{
		BehaviorID:           b.ID,
		Title:                b.Title,
		TotalTodos:           total,
		CompletedTodos:       completed,
		IncompleteTodos:      total - completed,
		CompletionPercentage: percentage(completed, total),
		DailyCompletions:     series(countByDay(done)),
	}, nil
}

// Streak 计算近 31 天的连续完成天数，并回写 statistics.streakDays
func (e *Engine) Streak(ctx context.Context, userID int) (*StreakResult, error) {
	start := time.Now()
	defer func() { metrics.RecordStatsCompute("streak", time.Since(start)) }()

	now := e.now()
	since, before := window(now, streakWindowDays-1)
	done, err := e.todos.List(ctx, model.TodoFilter{
		UserID:        userID,
		Completed:     boolPtr(true),
		UpdatedSince:  &since,
		UpdatedBefore: &before,
	})
	if err != nil {
		return nil, err
	}

	days := countByDay(done)
	entries := series(days)
	res := &StreakResult{
		CurrentStreak:    currentStreak(days, now),
		MaxStreak:        maxStreak(entries),
		DailyCompletions: entries,
		ActiveDays:       len(entries),
	}

	err = e.users.UpdateStatistics(ctx, userID, model.StatisticsUpdate{StreakDays: &res.CurrentStreak})
	if err != nil {
		return nil, fmt.Errorf("persist streak: %w", err)
	}

	logger.WithTrace(ctx, e.logger).Debug("Streak computed",
		zap.Int("user_id", userID),
		zap.Int("current", res.CurrentStreak),
		zap.Int("max", res.MaxStreak),
	)
	return res, nil
}
