package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"selftracker/internal/model"
)

type TodoRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTodoRepository(db *pgxpool.Pool, logger *zap.Logger) *TodoRepository {
	return &TodoRepository{
		db:     db,
		logger: logger,
	}
}

const todoColumns = `id, behavior_id, user_id, text, completed, created_at, updated_at`

// whereClause 把 TodoFilter 翻译成 WHERE 子句和参数
func whereClause(f model.TodoFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{f.UserID}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.BehaviorID != nil {
		add("behavior_id = $%d", *f.BehaviorID)
	}
	if f.Completed != nil {
		add("completed = $%d", *f.Completed)
	}
	if f.UpdatedSince != nil {
		add("updated_at >= $%d", *f.UpdatedSince)
	}
	if f.UpdatedBefore != nil {
		add("updated_at < $%d", *f.UpdatedBefore)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *TodoRepository) Create(ctx context.Context, t *model.Todo) error {
	query := `
        INSERT INTO todos (behavior_id, user_id, text, completed, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `
	err := r.db.QueryRow(ctx, query, t.BehaviorID, t.UserID, t.Text, t.Completed, t.CreatedAt, t.UpdatedAt).Scan(&t.ID)
	if err != nil {
		r.logger.Error("Failed to insert todo", zap.Int("behavior_id", t.BehaviorID), zap.Error(err))
		return translate("create todo", err)
	}
	r.logger.Debug("Todo created", zap.Int("todo_id", t.ID), zap.Int("behavior_id", t.BehaviorID))
	return nil
}

func (r *TodoRepository) FindByID(ctx context.Context, id int) (*model.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = $1`
	var t model.Todo
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.BehaviorID, &t.UserID, &t.Text, &t.Completed, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, translate("find todo", err)
	}
	return &t, nil
}

// Update writes text, completed and updated_at.
func (r *TodoRepository) Update(ctx context.Context, t *model.Todo) error {
	query := `UPDATE todos SET text = $1, completed = $2, updated_at = $3 WHERE id = $4`
	tag, err := r.db.Exec(ctx, query, t.Text, t.Completed, t.UpdatedAt, t.ID)
	if err != nil {
		return translate("update todo", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update todo: %w", model.ErrNotFound)
	}
	return nil
}

func (r *TodoRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		return translate("delete todo", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete todo: %w", model.ErrNotFound)
	}
	return nil
}

func (r *TodoRepository) Count(ctx context.Context, f model.TodoFilter) (int, error) {
	where, args := whereClause(f)
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM todos`+where, args...).Scan(&n)
	return n, translate("count todos", err)
}

// Totals counts matching todos and the completed subset in one statement.
// A Completed field on the filter is ignored.
func (r *TodoRepository) Totals(ctx context.Context, f model.TodoFilter) (model.TodoTotals, error) {
	f.Completed = nil
	where, args := whereClause(f)
	var t model.TodoTotals
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE completed) FROM todos`+where, args...,
	).Scan(&t.Total, &t.Completed)
	return t, translate("count todo totals", err)
}

// List returns the matching todos ordered by updated_at, then id.
func (r *TodoRepository) List(ctx context.Context, f model.TodoFilter) ([]model.Todo, error) {
	where, args := whereClause(f)
	return r.query(ctx, "list todos", `SELECT `+todoColumns+` FROM todos`+where+` ORDER BY updated_at ASC, id ASC`, args...)
}

// ListNewestFirst returns the matching todos by creation time, newest first.
func (r *TodoRepository) ListNewestFirst(ctx context.Context, f model.TodoFilter) ([]model.Todo, error) {
	where, args := whereClause(f)
	return r.query(ctx, "list todos", `SELECT `+todoColumns+` FROM todos`+where+` ORDER BY created_at DESC, id DESC`, args...)
}

func (r *TodoRepository) query(ctx context.Context, op, query string, args ...any) ([]model.Todo, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	list := []model.Todo{}
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(&t.ID, &t.BehaviorID, &t.UserID, &t.Text, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, translate(op, err)
		}
		list = append(list, t)
	}
	return list, translate(op, rows.Err())
}

// ListRecent returns the user's most recently updated todos with their behavior title.
func (r *TodoRepository) ListRecent(ctx context.Context, userID, limit int) ([]model.RecentTodo, error) {
	query := `
        SELECT t.id, t.text, t.completed, t.behavior_id, b.title, t.updated_at
        FROM todos t
        LEFT JOIN behaviors b ON b.id = t.behavior_id
        WHERE t.user_id = $1
        ORDER BY t.updated_at DESC, t.id DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, translate("list recent todos", err)
	}
	defer rows.Close()

	list := []model.RecentTodo{}
	for rows.Next() {
		var rt model.RecentTodo
		if err := rows.Scan(&rt.ID, &rt.Text, &rt.Completed, &rt.BehaviorID, &rt.BehaviorTitle, &rt.UpdatedAt); err != nil {
			return nil, translate("scan recent todo", err)
		}
		list = append(list, rt)
	}
	return list, translate("list recent todos", rows.Err())
}

// CountCompletedBehaviors counts distinct behaviors holding at least one completed todo.
func (r *TodoRepository) CountCompletedBehaviors(ctx context.Context, userID int) (int, error) {
	query := `SELECT COUNT(DISTINCT behavior_id) FROM todos WHERE user_id = $1 AND completed`
	var n int
	err := r.db.QueryRow(ctx, query, userID).Scan(&n)
	return n, translate("count completed behaviors", err)
}
