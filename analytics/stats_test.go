package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInventory struct {
	calls atomic.Int32
	gate  chan struct{}
	inv   Inventory
	err   error
}

func (s *stubInventory) Inventory(ctx context.Context) (Inventory, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.inv, s.err
}

func TestStats_SiteSummary(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.RecordView(ctx, "p1", "", time.Now())
	_, _ = store.Like(ctx, "p1", "u1")
	inv := &stubInventory{inv: Inventory{Users: 3, Posts: 2, PublishedPosts: 1, Comments: 5}}

	sum, err := NewStats(store, inv).SiteSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{Inventory: inv.inv, TotalViews: 1, TotalLikes: 1}, sum)

	inv.err = errors.New("db down")
	_, err = NewStats(store, inv).SiteSummary(ctx)
	assert.ErrorIs(t, err, inv.err)
}

func TestStats_SharesConcurrentQueries(t *testing.T) {
	inv := &stubInventory{gate: make(chan struct{})}
	stats := NewStats(NewMemoryStore(), inv)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stats.SiteSummary(context.Background())
			assert.NoError(t, err)
		}()
	}
	// let the callers pile up behind the first computation
	time.Sleep(50 * time.Millisecond)
	close(inv.gate)
	wg.Wait()

	assert.Less(t, inv.calls.Load(), int32(8))
}

func TestStats_CallerCancellation(t *testing.T) {
	inv := &stubInventory{gate: make(chan struct{})}
	defer close(inv.gate)
	stats := NewStats(NewMemoryStore(), inv)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := stats.SiteSummary(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStats_ViewsOverTimeSwapsRange(t *testing.T) {
	stats := NewStats(NewMemoryStore(), nil)
	from := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	out, err := stats.ViewsOverTime(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "2024-05-01", out[0].Day)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func TestQueueRecorder_RoundTrip(t *testing.T) {
	ctx := context.Background()
	q := &fakeEnqueuer{}
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, NewQueueRecorder(q, 3).RecordView(ctx, "p1", "u1", at))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskRecordView, q.tasks[0].Type())

	store := NewMemoryStore()
	require.NoError(t, HandleViewTask(store)(ctx, q.tasks[0]))
	stats, _ := store.PostStats(ctx, "p1")
	assert.Equal(t, int64(1), stats.Views)

	daily, _ := store.ViewsOverTime(ctx, at, at)
	assert.Equal(t, int64(1), daily[0].Views)
}

func TestQueueRecorder_Errors(t *testing.T) {
	ctx := context.Background()
	down := errors.New("redis down")
	err := NewQueueRecorder(&fakeEnqueuer{err: down}, 3).RecordView(ctx, "p1", "", time.Now())
	assert.ErrorIs(t, err, down)

	err = HandleViewTask(NewMemoryStore())(ctx, asynq.NewTask(TaskRecordView, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
