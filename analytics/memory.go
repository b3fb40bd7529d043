package analytics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps counters in process. It backs servers started without Redis.
type MemoryStore struct {
	mu    sync.Mutex
	views map[string]int64
	daily map[string]int64
	likes map[string]map[string]struct{}
	total int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		views: make(map[string]int64),
		daily: make(map[string]int64),
		likes: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) RecordView(_ context.Context, postID, _ string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[postID]++
	m.daily[at.UTC().Format(DayLayout)]++
	m.total++
	return nil
}

func (m *MemoryStore) Like(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.likes[postID]
	if set == nil {
		set = make(map[string]struct{})
		m.likes[postID] = set
	}
	if _, ok := set[userID]; ok {
		return false, nil
	}
	set[userID] = struct{}{}
	return true, nil
}

func (m *MemoryStore) Unlike(_ context.Context, postID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.likes[postID][userID]; !ok {
		return false, nil
	}
	delete(m.likes[postID], userID)
	return true, nil
}

func (m *MemoryStore) PostStats(_ context.Context, postID string) (PostStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PostStats{PostID: postID, Views: m.views[postID], Likes: int64(len(m.likes[postID]))}, nil
}

func (m *MemoryStore) Totals(_ context.Context) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var likes int64
	for _, set := range m.likes {
		likes += int64(len(set))
	}
	return m.total, likes, nil
}

func (m *MemoryStore) TopPosts(_ context.Context, limit int) ([]PostViews, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.Lock()
	out := make([]PostViews, 0, len(m.views))
	for id, v := range m.views {
		out = append(out, PostViews{PostID: id, Views: v})
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Views != out[j].Views {
			return out[i].Views > out[j].Views
		}
		return out[i].PostID > out[j].PostID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ViewsOverTime(_ context.Context, from, to time.Time) ([]DailyViews, error) {
	keys := days(from, to)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DailyViews, len(keys))
	for i, k := range keys {
		out[i] = DailyViews{Day: k, Views: m.daily[k]}
	}
	return out, nil
}

func (m *MemoryStore) Forget(_ context.Context, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total -= m.views[postID]
	delete(m.views, postID)
	delete(m.likes, postID)
	return nil
}

var _ Store = (*MemoryStore)(nil)
