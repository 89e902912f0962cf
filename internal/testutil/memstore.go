// Package testutil 提供内存版存储，实现 repository 的全部方法，供各层测试使用
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"selftracker/internal/model"
)

type Store struct {
	mu           sync.Mutex
	nextID       int
	users        map[int]*model.User
	behaviors    map[int]*model.Behavior
	todos        map[int]*model.Todo
	achievements map[int][]model.EarnedAchievement
	fail         error
}

func NewStore() *Store {
	return &Store{
		users:        make(map[int]*model.User),
		behaviors:    make(map[int]*model.Behavior),
		todos:        make(map[int]*model.Todo),
		achievements: make(map[int][]model.EarnedAchievement),
	}
}

// NewTestStore 创建 Store，测试结束时清理
func NewTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	t.Cleanup(func() { s.SetFailure(nil) })
	return s
}

// SetFailure makes every subsequent call return err until cleared with nil.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

func (s *Store) Users() *UserStore { return &UserStore{s} }

func (s *Store) Behaviors() *BehaviorStore { return &BehaviorStore{s} }

func (s *Store) Todos() *TodoStore { return &TodoStore{s} }

// ---- seeding helpers ----

func (s *Store) SeedUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{
		Name:         name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "x",
		Preferences:  model.DefaultPreferences(),
	}
	if err := s.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (s *Store) SeedBehavior(t *testing.T, userID int, title string) *model.Behavior {
	t.Helper()
	b := &model.Behavior{UserID: userID, Title: title, Color: model.DefaultBehaviorColor, CreatedAt: time.Now().UTC()}
	if err := s.Behaviors().Create(context.Background(), b); err != nil {
		t.Fatalf("seed behavior: %v", err)
	}
	return b
}

func (s *Store) SeedTodo(t *testing.T, userID, behaviorID int, completed bool, updatedAt time.Time) *model.Todo {
	t.Helper()
	td := &model.Todo{
		UserID:     userID,
		BehaviorID: behaviorID,
		Text:       fmt.Sprintf("todo %d", behaviorID),
		Completed:  completed,
		CreatedAt:  updatedAt,
		UpdatedAt:  updatedAt,
	}
	if err := s.Todos().Create(context.Background(), td); err != nil {
		t.Fatalf("seed todo: %v", err)
	}
	return td
}

// ---- users ----

type UserStore struct{ s *Store }

func (u *UserStore) Create(_ context.Context, user *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("create user: %w", model.ErrConflict)
		}
	}
	user.ID = s.id()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.Statistics.LastActive = now
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (u *UserStore) FindByID(_ context.Context, id int) (*model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("find user: %w", model.ErrNotFound)
	}
	cp := *user
	return &cp, nil
}

func (u *UserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	for _, user := range s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find user by email: %w", model.ErrNotFound)
}

func (u *UserStore) FindByRefreshToken(_ context.Context, hash string) (*model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	for _, user := range s.users {
		if user.RefreshTokenHash != nil && *user.RefreshTokenHash == hash {
			cp := *user
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find user by refresh token: %w", model.ErrNotFound)
}

func (u *UserStore) FindByResetToken(_ context.Context, hash string, now time.Time) (*model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	for _, user := range s.users {
		if user.ResetTokenHash == nil || *user.ResetTokenHash != hash {
			continue
		}
		if user.ResetTokenExpires != nil && user.ResetTokenExpires.After(now) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("find user by reset token: %w", model.ErrNotFound)
}

// Update mirrors the unique email constraint and keeps the stored statistics.
func (u *UserStore) Update(_ context.Context, user *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	cur, ok := s.users[user.ID]
	if !ok {
		return fmt.Errorf("update user: %w", model.ErrNotFound)
	}
	for id, other := range s.users {
		if id != user.ID && other.Email == user.Email {
			return fmt.Errorf("update user: %w", model.ErrConflict)
		}
	}
	cp := *user
	cp.Statistics = cur.Statistics
	cp.CreatedAt = cur.CreatedAt
	s.users[user.ID] = &cp
	return nil
}

func (u *UserStore) UpdateStatistics(_ context.Context, userID int, upd model.StatisticsUpdate) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("update statistics: %w", model.ErrNotFound)
	}
	st := &user.Statistics
	if upd.TotalBehaviors != nil {
		st.TotalBehaviors = *upd.TotalBehaviors
	}
	if upd.TotalTodos != nil {
		st.TotalTodos = *upd.TotalTodos
	}
	if upd.CompletedTodos != nil {
		st.CompletedTodos = *upd.CompletedTodos
	}
	if upd.StreakDays != nil {
		st.StreakDays = *upd.StreakDays
	}
	if upd.LastActive != nil {
		st.LastActive = *upd.LastActive
	}
	return nil
}

func (u *UserStore) ListAchievements(_ context.Context, userID int) ([]model.EarnedAchievement, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([]model.EarnedAchievement, len(s.achievements[userID]))
	copy(out, s.achievements[userID])
	return out, nil
}

// AppendAchievements mirrors the unique (user_id, name) constraint.
func (u *UserStore) AppendAchievements(_ context.Context, userID int, entries []model.EarnedAchievement) ([]model.EarnedAchievement, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	if _, ok := s.users[userID]; !ok {
		return nil, fmt.Errorf("append achievements: %w", model.ErrNotFound)
	}
	have := make(map[string]bool)
	for _, a := range s.achievements[userID] {
		have[a.Name] = true
	}
	inserted := []model.EarnedAchievement{}
	for _, e := range entries {
		if have[e.Name] {
			continue
		}
		have[e.Name] = true
		inserted = append(inserted, e)
	}
	s.achievements[userID] = append(s.achievements[userID], inserted...)
	return inserted, nil
}

// ---- behaviors ----

type BehaviorStore struct{ s *Store }

func (b *BehaviorStore) Create(_ context.Context, bh *model.Behavior) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	bh.ID = s.id()
	cp := *bh
	cp.Todos = nil
	s.behaviors[bh.ID] = &cp
	return nil
}

func (b *BehaviorStore) FindByID(_ context.Context, id int) (*model.Behavior, error) {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	bh, ok := s.behaviors[id]
	if !ok {
		return nil, fmt.Errorf("find behavior: %w", model.ErrNotFound)
	}
	cp := *bh
	return &cp, nil
}

func (b *BehaviorStore) ListByUser(_ context.Context, userID int) ([]model.Behavior, error) {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	out := []model.Behavior{}
	for _, bh := range s.behaviors {
		if bh.UserID == userID {
			out = append(out, *bh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *BehaviorStore) Update(_ context.Context, bh *model.Behavior) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	cur, ok := s.behaviors[bh.ID]
	if !ok {
		return fmt.Errorf("update behavior: %w", model.ErrNotFound)
	}
	cur.Title, cur.Color = bh.Title, bh.Color
	return nil
}

// Delete cascades to the behavior's todos.
func (b *BehaviorStore) Delete(_ context.Context, id int) error {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.behaviors[id]; !ok {
		return fmt.Errorf("delete behavior: %w", model.ErrNotFound)
	}
	delete(s.behaviors, id)
	for tid, td := range s.todos {
		if td.BehaviorID == id {
			delete(s.todos, tid)
		}
	}
	return nil
}

func (b *BehaviorStore) Count(_ context.Context, userID int) (int, error) {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	n := 0
	for _, bh := range s.behaviors {
		if bh.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (b *BehaviorStore) counts(userID int) []model.BehaviorCount {
	s := b.s
	out := []model.BehaviorCount{}
	for _, bh := range s.behaviors {
		if bh.UserID != userID {
			continue
		}
		c := model.BehaviorCount{ID: bh.ID, Title: bh.Title, Color: bh.Color}
		for _, td := range s.todos {
			if td.BehaviorID == bh.ID {
				c.TodoCount++
				if td.Completed {
					c.CompletedCount++
				}
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *BehaviorStore) ListWithCounts(_ context.Context, userID int) ([]model.BehaviorCount, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.s.fail != nil {
		return nil, b.s.fail
	}
	return b.counts(userID), nil
}

func (b *BehaviorStore) Top(_ context.Context, userID, limit int) ([]model.BehaviorCount, error) {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.s.fail != nil {
		return nil, b.s.fail
	}
	out := b.counts(userID)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TodoCount > out[j].TodoCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- todos ----

type TodoStore struct{ s *Store }

func (t *TodoStore) Create(_ context.Context, td *model.Todo) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.behaviors[td.BehaviorID]; !ok {
		return fmt.Errorf("create todo: %w", model.ErrNotFound)
	}
	td.ID = s.id()
	cp := *td
	s.todos[td.ID] = &cp
	return nil
}

func (t *TodoStore) FindByID(_ context.Context, id int) (*model.Todo, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	td, ok := s.todos[id]
	if !ok {
		return nil, fmt.Errorf("find todo: %w", model.ErrNotFound)
	}
	cp := *td
	return &cp, nil
}

func (t *TodoStore) Update(_ context.Context, td *model.Todo) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	cur, ok := s.todos[td.ID]
	if !ok {
		return fmt.Errorf("update todo: %w", model.ErrNotFound)
	}
	cur.Text, cur.Completed, cur.UpdatedAt = td.Text, td.Completed, td.UpdatedAt
	return nil
}

func (t *TodoStore) Delete(_ context.Context, id int) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.todos[id]; !ok {
		return fmt.Errorf("delete todo: %w", model.ErrNotFound)
	}
	delete(s.todos, id)
	return nil
}

func (t *TodoStore) match(f model.TodoFilter) []model.Todo {
	out := []model.Todo{}
	for _, td := range t.s.todos {
		if f.Matches(*td) {
			out = append(out, *td)
		}
	}
	return out
}

func (t *TodoStore) Count(_ context.Context, f model.TodoFilter) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.fail != nil {
		return 0, t.s.fail
	}
	return len(t.match(f)), nil
}

func (t *TodoStore) Totals(_ context.Context, f model.TodoFilter) (model.TodoTotals, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.fail != nil {
		return model.TodoTotals{}, t.s.fail
	}
	f.Completed = nil
	var out model.TodoTotals
	for _, td := range t.match(f) {
		out.Total++
		if td.Completed {
			out.Completed++
		}
	}
	return out, nil
}

func (t *TodoStore) List(_ context.Context, f model.TodoFilter) ([]model.Todo, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.fail != nil {
		return nil, t.s.fail
	}
	out := t.match(f)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *TodoStore) ListNewestFirst(_ context.Context, f model.TodoFilter) ([]model.Todo, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.fail != nil {
		return nil, t.s.fail
	}
	out := t.match(f)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (t *TodoStore) ListRecent(_ context.Context, userID, limit int) ([]model.RecentTodo, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	all := t.match(model.TodoFilter{UserID: userID})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]model.RecentTodo, 0, len(all))
	for _, td := range all {
		rt := model.RecentTodo{
			ID:         td.ID,
			Text:       td.Text,
			Completed:  td.Completed,
			BehaviorID: td.BehaviorID,
			UpdatedAt:  td.UpdatedAt,
		}
		if bh, ok := s.behaviors[td.BehaviorID]; ok {
			title := bh.Title
			rt.BehaviorTitle = &title
		}
		out = append(out, rt)
	}
	return out, nil
}

func (t *TodoStore) CountCompletedBehaviors(_ context.Context, userID int) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.fail != nil {
		return 0, t.s.fail
	}
	seen := make(map[int]bool)
	for _, td := range t.s.todos {
		if td.UserID == userID && td.Completed {
			seen[td.BehaviorID] = true
		}
	}
	return len(seen), nil
}
