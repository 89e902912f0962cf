package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "selftracker/contracts/mq"
	"selftracker/internal/achievement"
	"selftracker/internal/stats"
	"selftracker/internal/testutil"
	"selftracker/pkg/util"
)

var now = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

type memDeduper struct {
	mu       sync.Mutex
	seen     map[string]bool
	released int
}

func newMemDeduper() *memDeduper { return &memDeduper{seen: make(map[string]bool)} }

func (d *memDeduper) AcquireOnce(_ context.Context, handler, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := handler + ":" + key
	if d.seen[k] {
		return false
	}
	d.seen[k] = true
	return true
}

func (d *memDeduper) Release(_ context.Context, handler, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, handler+":"+key)
	d.released++
}

type failingStreaks struct{ err error }

func (f failingStreaks) Streak(context.Context, int) (*stats.StreakResult, error) { return nil, f.err }

func newHandler(t *testing.T, dedup Deduper) (*TodoCompletedHandler, *testutil.Store) {
	t.Helper()
	store := testutil.NewTestStore(t)
	clock := func() time.Time { return now }
	s := stats.NewEngine(store.Users(), store.Todos(), store.Behaviors(), zap.NewNop(), stats.WithClock(clock))
	a := achievement.NewEngine(store.Users(), store.Todos(), store.Behaviors(), zap.NewNop(), achievement.WithClock(clock))
	return NewTodoCompletedHandler(s, a, dedup, zap.NewNop()), store
}

func payload(t *testing.T, p mqcontracts.TodoCompletedPayload) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	return raw
}

func TestTodoCompletedHandler_UpdatesStreakAndUnlocks(t *testing.T) {
	h, store := newHandler(t, newMemDeduper())
	u := store.SeedUser(t, "Ann")
	b := store.SeedBehavior(t, u.ID, "Reading")
	td := store.SeedTodo(t, u.ID, b.ID, true, now)

	err := h.Handle(context.Background(), payload(t, mqcontracts.TodoCompletedPayload{
		TodoID: td.ID, UserID: u.ID, BehaviorID: b.ID, CompletedAt: now,
	}))
	require.NoError(t, err)

	got, err := store.Users().FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Statistics.StreakDays)

	earned, err := store.Users().ListAchievements(context.Background(), u.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(earned))
	for _, e := range earned {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "First Steps")
}

func TestTodoCompletedHandler_DuplicateDeliverySkipped(t *testing.T) {
	dedup := newMemDeduper()
	h, store := newHandler(t, dedup)
	u := store.SeedUser(t, "Ann")
	b := store.SeedBehavior(t, u.ID, "Reading")
	td := store.SeedTodo(t, u.ID, b.ID, true, now)
	raw := payload(t, mqcontracts.TodoCompletedPayload{TodoID: td.ID, UserID: u.ID, BehaviorID: b.ID, CompletedAt: now})

	require.NoError(t, h.Handle(context.Background(), raw))
	first, err := store.Users().ListAchievements(context.Background(), u.ID)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), raw))
	second, err := store.Users().ListAchievements(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestTodoCompletedHandler_PermanentErrors(t *testing.T) {
	h, _ := newHandler(t, nil)

	err := h.Handle(context.Background(), json.RawMessage(`{not json`))
	retryable, _ := util.IsRetryableError(err)
	assert.False(t, retryable)

	err = h.Handle(context.Background(), payload(t, mqcontracts.TodoCompletedPayload{TodoID: 1}))
	retryable, _ = util.IsRetryableError(err)
	assert.False(t, retryable)

	// unknown user
	err = h.Handle(context.Background(), payload(t, mqcontracts.TodoCompletedPayload{TodoID: 1, UserID: 42, CompletedAt: now}))
	require.Error(t, err)
	retryable, _ = util.IsRetryableError(err)
	assert.False(t, retryable)
}

func TestTodoCompletedHandler_TransientErrorReleasesDedup(t *testing.T) {
	dedup := newMemDeduper()
	store := testutil.NewTestStore(t)
	a := achievement.NewEngine(store.Users(), store.Todos(), store.Behaviors(), zap.NewNop())
	boom := errors.New("connection refused")
	h := NewTodoCompletedHandler(failingStreaks{err: boom}, a, dedup, zap.NewNop())

	raw := payload(t, mqcontracts.TodoCompletedPayload{TodoID: 7, UserID: 3, CompletedAt: now})
	err := h.Handle(context.Background(), raw)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, dedup.released)

	// the redelivery is processed again rather than skipped
	err = h.Handle(context.Background(), raw)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, dedup.released)
}

type panickingStreaks struct{}

func (panickingStreaks) Streak(context.Context, int) (*stats.StreakResult, error) {
	panic("nil map write")
}

func TestTodoCompletedHandler_PanicReleasesDedup(t *testing.T) {
	dedup := newMemDeduper()
	store := testutil.NewTestStore(t)
	a := achievement.NewEngine(store.Users(), store.Todos(), store.Behaviors(), zap.NewNop())
	h := NewTodoCompletedHandler(panickingStreaks{}, a, dedup, zap.NewNop())

	ev := mqcontracts.TodoCompletedPayload{TodoID: 7, UserID: 3, CompletedAt: now}
	raw := payload(t, ev)
	assert.PanicsWithValue(t, "nil map write", func() {
		_ = h.Handle(context.Background(), raw)
	})
	assert.Equal(t, 1, dedup.released)

	// 重投的消息不会被当成重复而丢弃
	assert.True(t, dedup.AcquireOnce(context.Background(), handlerName, eventKey(ev)))
}
