package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"selftracker/internal/model"
)

type BehaviorRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewBehaviorRepository(db *pgxpool.Pool, logger *zap.Logger) *BehaviorRepository {
	return &BehaviorRepository{
		db:     db,
		logger: logger,
	}
}

func (r *BehaviorRepository) Create(ctx context.Context, b *model.Behavior) error {
	query := `
        INSERT INTO behaviors (user_id, title, color, created_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	if err := r.db.QueryRow(ctx, query, b.UserID, b.Title, b.Color, b.CreatedAt).Scan(&b.ID); err != nil {
		r.logger.Error("Failed to insert behavior", zap.Int("user_id", b.UserID), zap.Error(err))
		return translate("create behavior", err)
	}
	r.logger.Debug("Behavior created", zap.Int("behavior_id", b.ID), zap.Int("user_id", b.UserID))
	return nil
}

func (r *BehaviorRepository) FindByID(ctx context.Context, id int) (*model.Behavior, error) {
	query := `
        SELECT id, user_id, title, color, created_at
        FROM behaviors
        WHERE id = $1
    `
	var b model.Behavior
	err := r.db.QueryRow(ctx, query, id).Scan(&b.ID, &b.UserID, &b.Title, &b.Color, &b.CreatedAt)
	if err != nil {
		return nil, translate("find behavior", err)
	}
	return &b, nil
}

// ListByUser returns the user's behaviors in creation order.
func (r *BehaviorRepository) ListByUser(ctx context.Context, userID int) ([]model.Behavior, error) {
	query := `
        SELECT id, user_id, title, color, created_at
        FROM behaviors
        WHERE user_id = $1
        ORDER BY id ASC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, translate("list behaviors", err)
	}
	defer rows.Close()

	list := []model.Behavior{}
	for rows.Next() {
		var b model.Behavior
		if err := rows.Scan(&b.ID, &b.UserID, &b.Title, &b.Color, &b.CreatedAt); err != nil {
			return nil, translate("scan behavior", err)
		}
		list = append(list, b)
	}
	return list, translate("list behaviors", rows.Err())
}

func (r *BehaviorRepository) Update(ctx context.Context, b *model.Behavior) error {
	query := `UPDATE behaviors SET title = $1, color = $2 WHERE id = $3`
	tag, err := r.db.Exec(ctx, query, b.Title, b.Color, b.ID)
	if err != nil {
		return translate("update behavior", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update behavior: %w", model.ErrNotFound)
	}
	return nil
}

// Delete removes the behavior; its todos go with it through ON DELETE CASCADE.
func (r *BehaviorRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM behaviors WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete behavior", zap.Int("behavior_id", id), zap.Error(err))
		return translate("delete behavior", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete behavior: %w", model.ErrNotFound)
	}
	r.logger.Info("Behavior deleted", zap.Int("behavior_id", id))
	return nil
}

func (r *BehaviorRepository) Count(ctx context.Context, userID int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM behaviors WHERE user_id = $1`, userID).Scan(&n)
	return n, translate("count behaviors", err)
}

const behaviorCountsQuery = `
        SELECT
            b.id,
            b.title,
            b.color,
            COUNT(t.id) AS todo_count,
            COUNT(t.id) FILTER (WHERE t.completed) AS completed_count
        FROM behaviors b
        LEFT JOIN todos t ON t.behavior_id = b.id
        WHERE b.user_id = $1
        GROUP BY b.id
`

func (r *BehaviorRepository) queryCounts(ctx context.Context, op, query string, args ...any) ([]model.BehaviorCount, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	list := []model.BehaviorCount{}
	for rows.Next() {
		var bc model.BehaviorCount
		if err := rows.Scan(&bc.ID, &bc.Title, &bc.Color, &bc.TodoCount, &bc.CompletedCount); err != nil {
			return nil, translate(op, err)
		}
		list = append(list, bc)
	}
	return list, translate(op, rows.Err())
}

// ListWithCounts returns every behavior of the user with todo counts, ascending by id.
func (r *BehaviorRepository) ListWithCounts(ctx context.Context, userID int) ([]model.BehaviorCount, error) {
	return r.queryCounts(ctx, "list behavior counts", behaviorCountsQuery+` ORDER BY b.id ASC`, userID)
}

// Top returns the behaviors with the most todos; ties resolve to the lowest id.
func (r *BehaviorRepository) Top(ctx context.Context, userID, limit int) ([]model.BehaviorCount, error) {
	return r.queryCounts(ctx, "top behaviors", behaviorCountsQuery+` ORDER BY todo_count DESC, b.id ASC LIMIT $2`, userID, limit)
}
