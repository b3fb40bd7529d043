package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue view events are enqueued on.
	QueueDefault = "default"
	// TaskRecordView is the task type of a view event.
	TaskRecordView = "analytics:view"
)

// ViewPayload is the body of a TaskRecordView task.
type ViewPayload struct {
	PostID   string    `json:"post_id"`
	ViewerID string    `json:"viewer_id,omitempty"`
	At       time.Time `json:"at"`
}

// NewViewTask constructs an Asynq task for one view event.
func NewViewTask(payload ViewPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecordView, data), nil
}

// Enqueuer is the part of *asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueRecorder hands view events to a queue instead of writing counters
// inline. Retries are the worker's concern.
type QueueRecorder struct {
	client   Enqueuer
	maxRetry int
}

// NewQueueRecorder wraps client. maxRetry bounds worker-side retries.
func NewQueueRecorder(client Enqueuer, maxRetry int) *QueueRecorder {
	return &QueueRecorder{client: client, maxRetry: maxRetry}
}

// RecordView enqueues one view task.
func (q *QueueRecorder) RecordView(ctx context.Context, postID, viewerID string, at time.Time) error {
	task, err := NewViewTask(ViewPayload{PostID: postID, ViewerID: viewerID, At: at.UTC()})
	if err != nil {
		return fmt.Errorf("analytics: build view task: %w", err)
	}
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(q.maxRetry)); err != nil {
		return fmt.Errorf("analytics: enqueue view: %w", err)
	}
	return nil
}

// HandleViewTask returns the handler that applies queued view events to store.
func HandleViewTask(store Store) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ViewPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.PostID == "" {
			return fmt.Errorf("analytics: bad view payload: %w", errors.Join(err, asynq.SkipRetry))
		}
		return store.RecordView(ctx, payload.PostID, payload.ViewerID, payload.At)
	}
}

// Worker runs the Asynq server that drains view events.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker constructs a Worker applying view events to store.
func NewWorker(redisOpts asynq.RedisClientOpt, store Store, logger *slog.Logger) *Worker {
	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{QueueDefault: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRecordView, HandleViewTask(store))
	return &Worker{server: srv, mux: mux, logger: logger}
}

// Use installs task middleware, applied to every handler.
func (w *Worker) Use(mws ...asynq.MiddlewareFunc) {
	w.mux.Use(mws...)
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("analytics: worker not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("analytics: start worker: %w", err)
	}
	<-ctx.Done()
	if w.logger != nil {
		w.logger.Info("analytics worker stopping")
	}
	w.server.Shutdown()
	return nil
}
