package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"selftracker/internal/model"
)

func TestWhereClause_UserOnly(t *testing.T) {
	where, args := whereClause(model.TodoFilter{UserID: 5})

	assert.Equal(t, " WHERE user_id = $1", where)
	assert.Equal(t, []any{5}, args)
}

func TestWhereClause_AllFields(t *testing.T) {
	bid := 9
	done := true
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	before := since.AddDate(0, 0, 7)

	where, args := whereClause(model.TodoFilter{
		UserID:        5,
		BehaviorID:    &bid,
		Completed:     &done,
		UpdatedSince:  &since,
		UpdatedBefore: &before,
	})

	assert.Equal(t,
		" WHERE user_id = $1 AND behavior_id = $2 AND completed = $3 AND updated_at >= $4 AND updated_at < $5",
		where)
	assert.Equal(t, []any{5, 9, true, since, before}, args)
}

func TestWhereClause_SkipsUnsetFields(t *testing.T) {
	done := false
	where, args := whereClause(model.TodoFilter{UserID: 1, Completed: &done})

	assert.Equal(t, " WHERE user_id = $1 AND completed = $2", where)
	assert.Equal(t, []any{1, false}, args)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate("op", nil))
	assert.ErrorIs(t, translate("op", pgx.ErrNoRows), model.ErrNotFound)
	assert.ErrorIs(t, translate("op", &pgconn.PgError{Code: "23505"}), model.ErrConflict)

	other := errors.New("boom")
	err := translate("find todo", fmt.Errorf("wrapped: %w", other))
	assert.ErrorIs(t, err, other)
	assert.Contains(t, err.Error(), "find todo")
}
