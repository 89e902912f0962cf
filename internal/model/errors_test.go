package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalid_MatchesErrInvalidInput(t *testing.T) {
	err := fmt.Errorf("create behavior: %w", Invalid("Please add a %s", "title"))

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, err, ErrNotFound)

	var me *Error
	assert.True(t, errors.As(err, &me))
	assert.Equal(t, "Please add a title", me.Msg)
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, NotFound("Todo not found"), ErrNotFound)
	assert.ErrorIs(t, NotAuthorized("nope"), ErrNotAuthorized)
	assert.ErrorIs(t, Conflict("User already exists"), ErrConflict)
	assert.Equal(t, "Todo not found", NotFound("Todo not found").Error())
}
