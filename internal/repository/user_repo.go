package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"selftracker/internal/model"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, name, email, password_hash, theme, language, total_behaviors, total_todos,
        completed_todos, streak_days, last_active, created_at,
        refresh_token_hash, reset_token_hash, reset_token_expires`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Preferences.Theme,
		&u.Preferences.Language,
		&u.Statistics.TotalBehaviors,
		&u.Statistics.TotalTodos,
		&u.Statistics.CompletedTodos,
		&u.Statistics.StreakDays,
		&u.Statistics.LastActive,
		&u.CreatedAt,
		&u.RefreshTokenHash,
		&u.ResetTokenHash,
		&u.ResetTokenExpires,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. A duplicate email yields model.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	query := `
        INSERT INTO users (name, email, password_hash, theme, language, created_at, last_active)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING id, created_at, last_active
    `
	err := r.db.QueryRow(ctx, query, u.Name, u.Email, u.PasswordHash, u.Preferences.Theme, u.Preferences.Language).
		Scan(&u.ID, &u.CreatedAt, &u.Statistics.LastActive)
	if err != nil {
		r.logger.Error("Failed to insert user", zap.String("email", u.Email), zap.Error(err))
		return translate("create user", err)
	}

	r.logger.Info("User created", zap.Int("user_id", u.ID))
	return nil
}

// FindByEmail returns user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, translate("find user by email", err)
	}
	return u, nil
}

// FindByID returns user by id.
func (r *UserRepository) FindByID(ctx context.Context, id int) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translate("find user", err)
	}
	return u, nil
}

// FindByRefreshToken looks a user up by the digest of their current refresh token.
func (r *UserRepository) FindByRefreshToken(ctx context.Context, hash string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE refresh_token_hash = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, hash))
	if err != nil {
		return nil, translate("find user by refresh token", err)
	}
	return u, nil
}

// FindByResetToken 只返回令牌未过期的用户
func (r *UserRepository) FindByResetToken(ctx context.Context, hash string, now time.Time) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash = $1 AND reset_token_expires > $2`
	u, err := scanUser(r.db.QueryRow(ctx, query, hash, now))
	if err != nil {
		return nil, translate("find user by reset token", err)
	}
	return u, nil
}

// Update writes the profile, password, preferences and token columns. Statistics are left alone.
func (r *UserRepository) Update(ctx context.Context, u *model.User) error {
	query := `
        UPDATE users SET
            name                = $2,
            email               = $3,
            password_hash       = $4,
            theme               = $5,
            language            = $6,
            refresh_token_hash  = $7,
            reset_token_hash    = $8,
            reset_token_expires = $9
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.Preferences.Theme,
		u.Preferences.Language,
		u.RefreshTokenHash,
		u.ResetTokenHash,
		u.ResetTokenExpires,
	)
	if err != nil {
		r.logger.Error("Failed to update user", zap.Int("user_id", u.ID), zap.Error(err))
		return translate("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user: %w", model.ErrNotFound)
	}
	return nil
}

// UpdateStatistics writes only the non-nil fields of upd.
func (r *UserRepository) UpdateStatistics(ctx context.Context, userID int, upd model.StatisticsUpdate) error {
	query := `
        UPDATE users SET
            total_behaviors = COALESCE($2::int, total_behaviors),
            total_todos     = COALESCE($3::int, total_todos),
            completed_todos = COALESCE($4::int, completed_todos),
            streak_days     = COALESCE($5::int, streak_days),
            last_active     = COALESCE($6::timestamptz, last_active)
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query,
		userID,
		upd.TotalBehaviors,
		upd.TotalTodos,
		upd.CompletedTodos,
		upd.StreakDays,
		upd.LastActive,
	)
	if err != nil {
		r.logger.Error("Failed to update statistics", zap.Int("user_id", userID), zap.Error(err))
		return translate("update statistics", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update statistics: %w", model.ErrNotFound)
	}

	r.logger.Debug("Statistics updated", zap.Int("user_id", userID))
	return nil
}

// ListAchievements returns the user's achievement log, oldest first.
func (r *UserRepository) ListAchievements(ctx context.Context, userID int) ([]model.EarnedAchievement, error) {
	query := `
        SELECT name, description, icon, date_earned
        FROM user_achievements
        WHERE user_id = $1
        ORDER BY date_earned ASC, id ASC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, translate("list achievements", err)
	}
	defer rows.Close()

	list := []model.EarnedAchievement{}
	for rows.Next() {
		var a model.EarnedAchievement
		if err := rows.Scan(&a.Name, &a.Description, &a.Icon, &a.DateEarned); err != nil {
			return nil, translate("scan achievement", err)
		}
		list = append(list, a)
	}
	return list, translate("list achievements", rows.Err())
}

// AppendAchievements inserts all entries in one transaction. Names the user
// already holds are skipped; the returned slice holds only the rows this call
// actually inserted.
func (r *UserRepository) AppendAchievements(ctx context.Context, userID int, entries []model.EarnedAchievement) ([]model.EarnedAchievement, error) {
	if len(entries) == 0 {
		return []model.EarnedAchievement{}, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, translate("begin append achievements", err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO user_achievements (user_id, name, description, icon, date_earned)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (user_id, name) DO NOTHING
        RETURNING date_earned
    `
	inserted := make([]model.EarnedAchievement, 0, len(entries))
	for _, e := range entries {
		err := tx.QueryRow(ctx, query, userID, e.Name, e.Description, e.Icon, e.DateEarned).Scan(&e.DateEarned)
		if errors.Is(err, pgx.ErrNoRows) {
			// 并发请求已经写入
			continue
		}
		if err != nil {
			r.logger.Error("Failed to insert achievement",
				zap.Int("user_id", userID),
				zap.String("name", e.Name),
				zap.Error(err),
			)
			return nil, translate("insert achievement", err)
		}
		inserted = append(inserted, e)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, translate("commit achievements", err)
	}

	r.logger.Info("Achievements appended",
		zap.Int("user_id", userID),
		zap.Int("requested", len(entries)),
		zap.Int("inserted", len(inserted)),
	)
	return inserted, nil
}
