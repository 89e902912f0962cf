// Package achievement evaluates the fixed rule registry against a user's
// persisted state and appends newly satisfied rules to the user's log exactly once.
package achievement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"selftracker/internal/model"
	"selftracker/pkg/logger"
	"selftracker/pkg/metrics"
)

type UserStore interface {
	FindByID(ctx context.Context, id int) (*model.User, error)
	ListAchievements(ctx context.Context, userID int) ([]model.EarnedAchievement, error)
	// AppendAchievements must skip names already present and return only inserted rows.
	AppendAchievements(ctx context.Context, userID int, entries []model.EarnedAchievement) ([]model.EarnedAchievement, error)
}

type TodoStore interface {
	Count(ctx context.Context, f model.TodoFilter) (int, error)
	CountCompletedBehaviors(ctx context.Context, userID int) (int, error)
}

type BehaviorStore interface {
	Count(ctx context.Context, userID int) (int, error)
	ListWithCounts(ctx context.Context, userID int) ([]model.BehaviorCount, error)
}

type Unlocked struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type CheckResult struct {
	NewAchievements []Unlocked                `json:"newAchievements"`
	AllAchievements []model.EarnedAchievement `json:"allAchievements"`
}

type Status struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Earned      bool       `json:"earned"`
	DateEarned  *time.Time `json:"dateEarned"`
}

type Overview struct {
	Earned       int      `json:"earned"`
	Total        int      `json:"total"`
	Achievements []Status `json:"achievements"`
}

type Engine struct {
	users     UserStore
	todos     TodoStore
	behaviors BehaviorStore
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Engine)

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

// Check 评估尚未获得的规则，一次性写入新满足的成就，返回本次真正写入的部分
func (e *Engine) Check(ctx context.Context, userID int) (*CheckResult, error) {
	log := logger.WithTrace(ctx, e.logger).With(zap.Int("user_id", userID))

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned, err := e.users.ListAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	have := make(map[string]bool, len(earned))
	for _, a := range earned {
		have[a.Name] = true
	}

	src := newStoreSource(user, e.todos, e.behaviors)
	now := e.now().UTC()
	byName := make(map[string]Rule)
	var candidates []model.EarnedAchievement
	for _, r := range registry {
		if have[r.Name] {
			continue
		}
		ok, err := r.Check(ctx, src, userID)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", r.ID, err)
		}
		if !ok {
			continue
		}
		byName[r.Name] = r
		candidates = append(candidates, model.EarnedAchievement{
			Name:        r.Name,
			Description: r.Description,
			Icon:        r.Icon,
			DateEarned:  now,
		})
	}

	res := &CheckResult{NewAchievements: []Unlocked{}, AllAchievements: earned}
	if len(candidates) == 0 {
		log.Debug("No new achievements")
		return res, nil
	}

	inserted, err := e.users.AppendAchievements(ctx, userID, candidates)
	if err != nil {
		return nil, fmt.Errorf("append achievements: %w", err)
	}
	for _, a := range inserted {
		r := byName[a.Name]
		res.NewAchievements = append(res.NewAchievements, Unlocked{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Icon:        r.Icon,
		})
		metrics.IncrementAchievementUnlocked(r.ID)
	}

	res.AllAchievements, err = e.users.ListAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload achievements: %w", err)
	}

	if len(inserted) > 0 {
		log.Info("Achievements unlocked", zap.Int("count", len(inserted)))
	}
	return res, nil
}

// List 按注册顺序列出所有成就及获得状态，只读
func (e *Engine) List(ctx context.Context, userID int) (*Overview, error) {
	if _, err := e.users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	earned, err := e.users.ListAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load achievements: %w", err)
	}
	when := make(map[string]time.Time, len(earned))
	for _, a := range earned {
		when[a.Name] = a.DateEarned
	}

	out := &Overview{
		Earned:       len(earned),
		Total:        len(registry),
		Achievements: make([]Status, 0, len(registry)),
	}
	for _, r := range registry {
		s := Status{ID: r.ID, Name: r.Name, Description: r.Description, Icon: r.Icon}
		if t, ok := when[r.Name]; ok {
			t := t
			s.Earned = true
			s.DateEarned = &t
		}
		out.Achievements = append(out.Achievements, s)
	}
	return out, nil
}
