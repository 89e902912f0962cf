package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              SERIAL PRIMARY KEY,
		name            VARCHAR(100) NOT NULL,
		email           VARCHAR(255) NOT NULL UNIQUE,
		password_hash   TEXT NOT NULL,
		total_behaviors INTEGER NOT NULL DEFAULT 0,
		total_todos     INTEGER NOT NULL DEFAULT 0,
		completed_todos INTEGER NOT NULL DEFAULT 0,
		streak_days     INTEGER NOT NULL DEFAULT 0,
		last_active     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS theme VARCHAR(16) NOT NULL DEFAULT 'light'`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS language VARCHAR(16) NOT NULL DEFAULT 'en'`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS refresh_token_hash CHAR(64)`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS reset_token_hash CHAR(64)`,
	`ALTER TABLE users ADD COLUMN IF NOT EXISTS reset_token_expires TIMESTAMPTZ`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_refresh_token ON users(refresh_token_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users(reset_token_hash)`,
	`CREATE TABLE IF NOT EXISTS behaviors (
		id         SERIAL PRIMARY KEY,
		user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title      VARCHAR(50) NOT NULL,
		color      VARCHAR(32) NOT NULL DEFAULT '#DC3545',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_behaviors_user ON behaviors(user_id)`,
	`CREATE TABLE IF NOT EXISTS todos (
		id          SERIAL PRIMARY KEY,
		user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		behavior_id INTEGER NOT NULL REFERENCES behaviors(id) ON DELETE CASCADE,
		text        VARCHAR(200) NOT NULL,
		completed   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_user_updated ON todos(user_id, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_todos_behavior ON todos(behavior_id)`,
	`CREATE TABLE IF NOT EXISTS user_achievements (
		id          SERIAL PRIMARY KEY,
		user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name        VARCHAR(100) NOT NULL,
		description TEXT NOT NULL,
		icon        VARCHAR(16) NOT NULL,
		date_earned TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, name)
	)`,
}

// EnsureSchema 启动时幂等建表
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			logger.Error("Failed to apply schema statement", zap.Error(err))
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	logger.Info("Database schema ready", zap.Int("statements", len(schema)))
	return nil
}
