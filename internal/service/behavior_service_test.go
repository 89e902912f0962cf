package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"selftracker/internal/model"
	"selftracker/internal/testutil"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newBehaviorService(t *testing.T) (*BehaviorService, *testutil.Store) {
	t.Helper()
	store := testutil.NewTestStore(t)
	svc := NewBehaviorService(store.Behaviors(), store.Todos(), zap.NewNop())
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, store
}

func strPtr(s string) *string { return &s }

func TestBehaviorService_Create(t *testing.T) {
	svc, store := newBehaviorService(t)
	u := store.SeedUser(t, "Ann")

	b, err := svc.Create(context.Background(), u.ID, BehaviorInput{Title: strPtr("  Reading  ")})
	require.NoError(t, err)

	assert.NotZero(t, b.ID)
	assert.Equal(t, "Reading", b.Title)
	assert.Equal(t, model.DefaultBehaviorColor, b.Color)
	assert.Equal(t, fixedNow, b.CreatedAt)
	assert.NotNil(t, b.Todos)
}

func TestBehaviorService_Create_Validation(t *testing.T) {
	svc, store := newBehaviorService(t)
	u := store.SeedUser(t, "Ann")

	_, err := svc.Create(context.Background(), u.ID, BehaviorInput{})
	assert.Equal(t, "Please add a title", err.Error())

	_, err = svc.Create(context.Background(), u.ID, BehaviorInput{Title: strPtr("   ")})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = svc.Create(context.Background(), u.ID, BehaviorInput{Title: strPtr(strings.Repeat("a", 51))})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = svc.Create(context.Background(), u.ID, BehaviorInput{Title: strPtr(strings.Repeat("a", 50))})
	assert.NoError(t, err)
}

func TestBehaviorService_Get_Ownership(t *testing.T) {
	svc, store := newBehaviorService(t)
	ann := store.SeedUser(t, "Ann")
	bob := store.SeedUser(t, "Bob")
	b := store.SeedBehavior(t, ann.ID, "Reading")
	older := store.SeedTodo(t, ann.ID, b.ID, false, fixedNow.Add(-2*time.Hour))
	newer := store.SeedTodo(t, ann.ID, b.ID, true, fixedNow.Add(-time.Hour))

	got, err := svc.Get(context.Background(), ann.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, got.Todos, 2)
	assert.Equal(t, newer.ID, got.Todos[0].ID)
	assert.Equal(t, older.ID, got.Todos[1].ID)

	_, err = svc.Get(context.Background(), bob.ID, b.ID)
	assert.True(t, errors.Is(err, model.ErrNotAuthorized))
	assert.Equal(t, "Not authorized to access this behavior", err.Error())

	_, err = svc.Get(context.Background(), ann.ID, 999)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Equal(t, "Behavior not found", err.Error())
}

func TestBehaviorService_List_AttachesTodos(t *testing.T) {
	svc, store := newBehaviorService(t)
	ann := store.SeedUser(t, "Ann")
	reading := store.SeedBehavior(t, ann.ID, "Reading")
	running := store.SeedBehavior(t, ann.ID, "Running")
	store.SeedTodo(t, ann.ID, reading.ID, false, fixedNow)

	bob := store.SeedUser(t, "Bob")
	store.SeedBehavior(t, bob.ID, "Other")

	list, err := svc.List(context.Background(), ann.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, reading.ID, list[0].ID)
	assert.Len(t, list[0].Todos, 1)
	assert.Equal(t, running.ID, list[1].ID)
	assert.NotNil(t, list[1].Todos)
	assert.Empty(t, list[1].Todos)
}

func TestBehaviorService_Top(t *testing.T) {
	svc, store := newBehaviorService(t)
	ann := store.SeedUser(t, "Ann")

	var ids []int
	for i := 0; i < 7; i++ {
		b := store.SeedBehavior(t, ann.ID, "B")
		ids = append(ids, b.ID)
		for j := 0; j <= i; j++ {
			store.SeedTodo(t, ann.ID, b.ID, false, fixedNow)
		}
	}
	store.SeedBehavior(t, ann.ID, "Empty")

	top, err := svc.Top(context.Background(), ann.ID)
	require.NoError(t, err)
	require.Len(t, top, 5)
	assert.Equal(t, ids[6], top[0].ID)
	assert.Len(t, top[0].Todos, 7)
	assert.Equal(t, ids[2], top[4].ID)
}

func TestBehaviorService_Top_SkipsEmpty(t *testing.T) {
	svc, store := newBehaviorService(t)
	ann := store.SeedUser(t, "Ann")
	store.SeedBehavior(t, ann.ID, "Empty")

	top, err := svc.Top(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func TestBehaviorService_Update(t *testing.T) {
	svc, store := newBehaviorService(t)
	ann := store.SeedUser(t, "Ann")
	bob := store.SeedUser(t, "Bob")
	b := store.SeedBehavior(t, ann.ID, "Reading")

	got, err := svc.Update(context.Background(), ann.ID, b.ID, BehaviorInput{Color: strPtr("#000000")})
	require.NoError(t, err)
	assert.Equal(t, "Reading", got.Title)
	assert.Equal(t, "#000000", got.Color)

	_, err = svc.Update(context.Background(), ann.ID, b.ID, BehaviorInput{Title: strPtr("")})
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	_, err = svc.Update(context.Background(), bob.ID, b.ID, BehaviorInput{Title: strPtr("Mine")})
	assert.Equal(t, "Not authorized to update this behavior", err.Error())

	stored, err := store.Behaviors().FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reading", stored.Title)
}

func TestBehaviorService_Delete_Cascades(t *testing.T) {
	svc, store := newBehaviorService(t)
	ann := store.SeedUser(t, "Ann")
	bob := store.SeedUser(t, "Bob")
	b := store.SeedBehavior(t, ann.ID, "Reading")
	td := store.SeedTodo(t, ann.ID, b.ID, false, fixedNow)

	err := svc.Delete(context.Background(), bob.ID, b.ID)
	assert.Equal(t, "Not authorized to delete this behavior", err.Error())

	require.NoError(t, svc.Delete(context.Background(), ann.ID, b.ID))

	_, err = store.Behaviors().FindByID(context.Background(), b.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = store.Todos().FindByID(context.Background(), td.ID)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
