package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	mqcontracts "selftracker/contracts/mq"
	"selftracker/internal/model"
	"selftracker/pkg/logger"
	"selftracker/pkg/metrics"
)

const maxTodoLength = 200

// EventPublisher is satisfied by *mq.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type TodoService struct {
	todos     TodoRepository
	behaviors BehaviorFinder
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewTodoService publisher 可以为 nil，此时不发布完成事件
func NewTodoService(todos TodoRepository, behaviors BehaviorFinder, publisher EventPublisher, logger *zap.Logger) *TodoService {
	return &TodoService{
		todos:     todos,
		behaviors: behaviors,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *TodoService) SetClock(now func() time.Time) { s.now = now }

// TodoInput nil 字段表示不修改
type TodoInput struct {
	Text      *string `json:"text"`
	Completed *bool   `json:"completed"`
}

func validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", model.Invalid("Please add todo text")
	}
	if utf8.RuneCountInString(text) > maxTodoLength {
		return "", model.Invalid("Todo cannot be more than %d characters", maxTodoLength)
	}
	return text, nil
}

func (s *TodoService) owned(ctx context.Context, userID, id int, action string) (*model.Todo, error) {
	t, err := s.todos.FindByID(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NotFound("Todo not found")
	}
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, model.NotAuthorized("Not authorized to " + action)
	}
	return t, nil
}

// ListForBehavior returns the behavior's todos, newest first.
func (s *TodoService) ListForBehavior(ctx context.Context, userID, behaviorID int) ([]model.Todo, error) {
	if _, err := ownedBehavior(ctx, s.behaviors, userID, behaviorID, "access todos for this behavior"); err != nil {
		return nil, err
	}
	return s.todos.ListNewestFirst(ctx, model.TodoFilter{UserID: userID, BehaviorID: &behaviorID})
}

func (s *TodoService) Add(ctx context.Context, userID, behaviorID int, in TodoInput) (*model.Todo, error) {
	if _, err := ownedBehavior(ctx, s.behaviors, userID, behaviorID, "add todos to this behavior"); err != nil {
		return nil, err
	}
	if in.Text == nil {
		return nil, model.Invalid("Please add todo text")
	}
	text, err := validateText(*in.Text)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &model.Todo{
		BehaviorID: behaviorID,
		UserID:     userID,
		Text:       text,
		Completed:  in.Completed != nil && *in.Completed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.todos.Create(ctx, t); err != nil {
		return nil, err
	}
	if t.Completed {
		s.publishCompleted(ctx, t)
	}
	return t, nil
}

func (s *TodoService) Get(ctx context.Context, userID, id int) (*model.Todo, error) {
	return s.owned(ctx, userID, id, "access this todo")
}

// Update applies the set fields and bumps updatedAt.
func (s *TodoService) Update(ctx context.Context, userID, id int, in TodoInput) (*model.Todo, error) {
	t, err := s.owned(ctx, userID, id, "update this todo")
	if err != nil {
		return nil, err
	}
	wasCompleted := t.Completed
	if in.Text != nil {
		if t.Text, err = validateText(*in.Text); err != nil {
			return nil, err
		}
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
	return s.save(ctx, t, wasCompleted)
}

// Toggle flips completion and bumps updatedAt.
func (s *TodoService) Toggle(ctx context.Context, userID, id int) (*model.Todo, error) {
	t, err := s.owned(ctx, userID, id, "update this todo")
	if err != nil {
		return nil, err
	}
	wasCompleted := t.Completed
	t.Completed = !t.Completed
	return s.save(ctx, t, wasCompleted)
}

func (s *TodoService) save(ctx context.Context, t *model.Todo, wasCompleted bool) (*model.Todo, error) {
	t.UpdatedAt = s.now().UTC()
	if err := s.todos.Update(ctx, t); err != nil {
		return nil, err
	}
	if t.Completed && !wasCompleted {
		s.publishCompleted(ctx, t)
	}
	return t, nil
}

func (s *TodoService) Delete(ctx context.Context, userID, id int) error {
	if _, err := s.owned(ctx, userID, id, "delete this todo"); err != nil {
		return err
	}
	return s.todos.Delete(ctx, id)
}

// publishCompleted 发布失败只记录日志，不影响请求结果
func (s *TodoService) publishCompleted(ctx context.Context, t *model.Todo) {
	if s.publisher == nil {
		return
	}
	payload := mqcontracts.TodoCompletedPayload{
		TodoID:      t.ID,
		UserID:      t.UserID,
		BehaviorID:  t.BehaviorID,
		CompletedAt: t.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, mqcontracts.RoutingKeyTodoCompleted, payload); err != nil {
		metrics.IncrementEventPublished(mqcontracts.RoutingKeyTodoCompleted, "failed")
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish todo.completed",
			zap.Int("todo_id", t.ID),
			zap.Error(err),
		)
		return
	}
	metrics.IncrementEventPublished(mqcontracts.RoutingKeyTodoCompleted, "success")
}
