package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"selftracker/internal/model"
)

const (
	maxTitleLength = 50
	topBehaviors   = 5
)

type BehaviorRepository interface {
	Create(ctx context.Context, b *model.Behavior) error
	FindByID(ctx context.Context, id int) (*model.Behavior, error)
	ListByUser(ctx context.Context, userID int) ([]model.Behavior, error)
	Update(ctx context.Context, b *model.Behavior) error
	Delete(ctx context.Context, id int) error
	Top(ctx context.Context, userID, limit int) ([]model.BehaviorCount, error)
}

type TodoRepository interface {
	Create(ctx context.Context, t *model.Todo) error
	FindByID(ctx context.Context, id int) (*model.Todo, error)
	Update(ctx context.Context, t *model.Todo) error
	Delete(ctx context.Context, id int) error
	ListNewestFirst(ctx context.Context, f model.TodoFilter) ([]model.Todo, error)
}

type BehaviorService struct {
	behaviors BehaviorRepository
	todos     TodoRepository
	logger    *zap.Logger
	now       func() time.Time
}

func NewBehaviorService(behaviors BehaviorRepository, todos TodoRepository, logger *zap.Logger) *BehaviorService {
	return &BehaviorService{
		behaviors: behaviors,
		todos:     todos,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *BehaviorService) SetClock(now func() time.Time) { s.now = now }

// BehaviorInput nil 字段表示不修改
type BehaviorInput struct {
	Title *string `json:"title"`
	Color *string `json:"color"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", model.Invalid("Please add a title")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", model.Invalid("Name cannot be more than %d characters", maxTitleLength)
	}
	return title, nil
}

// owned 加载行为并校验归属，action 用于错误提示
func (s *BehaviorService) owned(ctx context.Context, userID, id int, action string) (*model.Behavior, error) {
	return ownedBehavior(ctx, s.behaviors, userID, id, action)
}

type BehaviorFinder interface {
	FindByID(ctx context.Context, id int) (*model.Behavior, error)
}

func ownedBehavior(ctx context.Context, behaviors BehaviorFinder, userID, id int, action string) (*model.Behavior, error) {
	b, err := behaviors.FindByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NotFound("Behavior not found")
	}
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, model.NotAuthorized("Not authorized to " + action)
	}
	return b, nil
}

// withTodos attaches each behavior's todos, newest first.
func (s *BehaviorService) withTodos(ctx context.Context, userID int, list []model.Behavior) error {
	todos, err := s.todos.ListNewestFirst(ctx, model.TodoFilter{UserID: userID})
	if err != nil {
		return err
	}
	byBehavior := make(map[int][]model.Todo)
	for _, t := range todos {
		byBehavior[t.BehaviorID] = append(byBehavior[t.BehaviorID], t)
	}
	for i := range list {
		list[i].Todos = byBehavior[list[i].ID]
		if list[i].Todos == nil {
			list[i].Todos = []model.Todo{}
		}
	}
	return nil
}

func (s *BehaviorService) List(ctx context.Context, userID int) ([]model.Behavior, error) {
	list, err := s.behaviors.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.withTodos(ctx, userID, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Top returns up to five behaviors with the most todos. Behaviors without todos are left out.
func (s *BehaviorService) Top(ctx context.Context, userID int) ([]model.Behavior, error) {
	counts, err := s.behaviors.Top(ctx, userID, topBehaviors)
	if err != nil {
		return nil, err
	}
	list := make([]model.Behavior, 0, len(counts))
	for _, c := range counts {
		if c.TodoCount == 0 {
			continue
		}
		b, err := s.behaviors.FindByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	if err := s.withTodos(ctx, userID, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *BehaviorService) Get(ctx context.Context, userID, id int) (*model.Behavior, error) {
	b, err := s.owned(ctx, userID, id, "access this behavior")
	if err != nil {
		return nil, err
	}
	todos, err := s.todos.ListNewestFirst(ctx, model.TodoFilter{UserID: userID, BehaviorID: &id})
	if err != nil {
		return nil, err
	}
	b.Todos = todos
	return b, nil
}

func (s *BehaviorService) Create(ctx context.Context, userID int, in BehaviorInput) (*model.Behavior, error) {
	if in.Title == nil {
		return nil, model.Invalid("Please add a title")
	}
	title, err := validateTitle(*in.Title)
	if err != nil {
		return nil, err
	}
	color := model.DefaultBehaviorColor
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		color = strings.TrimSpace(*in.Color)
	}

	b := &model.Behavior{
		UserID:    userID,
		Title:     title,
		Color:     color,
		CreatedAt: s.now().UTC(),
	}
	if err := s.behaviors.Create(ctx, b); err != nil {
		return nil, err
	}
	b.Todos = []model.Todo{}

	s.logger.Info("Behavior created", zap.Int("user_id", userID), zap.Int("behavior_id", b.ID))
	return b, nil
}

func (s *BehaviorService) Update(ctx context.Context, userID, id int, in BehaviorInput) (*model.Behavior, error) {
	b, err := s.owned(ctx, userID, id, "update this behavior")
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		if b.Title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Color != nil && strings.TrimSpace(*in.Color) != "" {
		b.Color = strings.TrimSpace(*in.Color)
	}
	if err := s.behaviors.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes the behavior together with its todos.
func (s *BehaviorService) Delete(ctx context.Context, userID, id int) error {
	if _, err := s.owned(ctx, userID, id, "delete this behavior"); err != nil {
		return err
	}
	if err := s.behaviors.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Behavior deleted", zap.Int("user_id", userID), zap.Int("behavior_id", id))
	return nil
}
