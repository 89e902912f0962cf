package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "selftracker/contracts/mq"
	"selftracker/internal/achievement"
	"selftracker/internal/model"
	"selftracker/internal/stats"
	"selftracker/pkg/logger"
	"selftracker/pkg/util"
)

const handlerName = "todo_completed_achievements"

type StreakComputer interface {
	Streak(ctx context.Context, userID int) (*stats.StreakResult, error)
}

type AchievementChecker interface {
	Check(ctx context.Context, userID int) (*achievement.CheckResult, error)
}

// Deduper is satisfied by *util.Deduper.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, eventKey string) bool
	Release(ctx context.Context, handler, eventKey string)
}

type TodoCompletedHandler struct {
	streaks      StreakComputer
	achievements AchievementChecker
	dedup        Deduper // nil 表示不去重，依赖 Check 本身的幂等
	logger       *zap.Logger
}

func NewTodoCompletedHandler(streaks StreakComputer, achievements AchievementChecker, dedup Deduper, logger *zap.Logger) *TodoCompletedHandler {
	return &TodoCompletedHandler{
		streaks:      streaks,
		achievements: achievements,
		dedup:        dedup,
		logger:       logger,
	}
}

func eventKey(p mqcontracts.TodoCompletedPayload) string {
	return fmt.Sprintf("%d:%d", p.TodoID, p.CompletedAt.UnixNano())
}

// Handle refreshes the user's streak and unlocks any newly earned achievements.
// Redelivered events are safe: unlocks are stored at most once per user and name.
func (h *TodoCompletedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p mqcontracts.TodoCompletedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal TodoCompletedPayload", zap.Error(err))
		return util.Permanent(err)
	}
	if p.UserID <= 0 || p.TodoID <= 0 {
		log.Error("Invalid todo.completed event",
			zap.Int("user_id", p.UserID),
			zap.Int("todo_id", p.TodoID),
		)
		return util.Permanent(fmt.Errorf("invalid todo.completed event: user_id=%d todo_id=%d", p.UserID, p.TodoID))
	}

	key := eventKey(p)
	if h.dedup != nil && !h.dedup.AcquireOnce(ctx, handlerName, key) {
		return nil
	}

	log.Info("Handling todo.completed event",
		zap.Int("user_id", p.UserID),
		zap.Int("todo_id", p.TodoID),
		zap.Int("behavior_id", p.BehaviorID),
	)

	return h.processOnce(ctx, log, p, key)
}

// processOnce 失败或 panic 时释放去重键，重投后可再次处理。panic 不在这里恢复，仍交给 consumer
func (h *TodoCompletedHandler) processOnce(ctx context.Context, log *zap.Logger, p mqcontracts.TodoCompletedPayload, key string) (err error) {
	panicked := true
	defer func() {
		if h.dedup == nil {
			return
		}
		if panicked || (err != nil && !errors.Is(err, model.ErrNotFound)) {
			h.dedup.Release(ctx, handlerName, key)
		}
	}()

	err = h.process(ctx, log, p)
	panicked = false
	return err
}

func (h *TodoCompletedHandler) process(ctx context.Context, log *zap.Logger, p mqcontracts.TodoCompletedPayload) error {
	streak, err := h.streaks.Streak(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			log.Warn("User no longer exists, dropping event", zap.Int("user_id", p.UserID))
			return util.Permanent(err)
		}
		log.Error("Failed to compute streak", zap.Int("user_id", p.UserID), zap.Error(err))
		return err
	}

	res, err := h.achievements.Check(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			log.Warn("User no longer exists, dropping event", zap.Int("user_id", p.UserID))
			return util.Permanent(err)
		}
		log.Error("Failed to check achievements", zap.Int("user_id", p.UserID), zap.Error(err))
		return err
	}

	names := make([]string, 0, len(res.NewAchievements))
	for _, a := range res.NewAchievements {
		names = append(names, a.Name)
	}
	log.Info("todo.completed processed",
		zap.Int("user_id", p.UserID),
		zap.Int("streak_days", streak.CurrentStreak),
		zap.Strings("unlocked", names),
	)
	return nil
}
