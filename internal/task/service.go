// Package task implements the submission and cancellation paths of the
// task lifecycle subsystem: validate, durably insert, enqueue, and — on
// the cancellation side — publish, mark Cancelling, and scrub the queue.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/common"
	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/metrics"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/google/uuid"
)

// EventPublisher is the dashboard hub's inbound side, as seen from this
// package — kept as a narrow interface here so internal/task doesn't
// import internal/dashboard.
type EventPublisher interface {
	Publish(event models.TaskEvent)
}

// noopPublisher discards events; used when no dashboard hub is wired.
type noopPublisher struct{}

func (noopPublisher) Publish(models.TaskEvent) {}

// Service is the submission and cancellation path. The worker engine
// (internal/engine) is a separate, independently-running collaborator
// that shares the same Store/Queue/PubSub.
type Service struct {
	Store   interfaces.DocumentStore
	Queue   interfaces.QueueStore
	PubSub  interfaces.PubSub
	Metrics *metrics.Counters
	Events  EventPublisher
	Logger  *common.Logger

	DefaultMaxRetries uint
}

// NewService wires a Service. events may be nil, in which case task
// lifecycle events are simply not broadcast.
func NewService(store interfaces.DocumentStore, queue interfaces.QueueStore, pubsub interfaces.PubSub, counters *metrics.Counters, events EventPublisher, logger *common.Logger, defaultMaxRetries uint) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	return &Service{
		Store:             store,
		Queue:             queue,
		PubSub:            pubsub,
		Metrics:           counters,
		Events:            events,
		Logger:            logger,
		DefaultMaxRetries: defaultMaxRetries,
	}
}

// Submit validates input, durably inserts a Pending task, and pushes its
// snapshot to the head of queue:<task_type>. spec.md §4.1's accepted gap
// applies: a failure between insert and enqueue leaves the task Pending
// and stalled; that is not retried here.
func (s *Service) Submit(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	maxRetries := s.DefaultMaxRetries
	if maxRetries == 0 {
		maxRetries = models.DefaultMaxRetries
	}
	if input.MaxRetries != nil {
		maxRetries = *input.MaxRetries
	}

	now := time.Now().UTC()
	taskType := models.TaskType(input.TaskType)
	newTask := &models.Task{
		ID:       uuid.NewString(),
		TaskType: taskType,
		Media: models.MediaFile{
			FileID:       uuid.NewString(),
			MediaType:    taskType,
			FilePath:     input.FilePath,
			FileSize:     input.FileSize,
			OriginalName: input.OriginalName,
			MimeType:     input.MimeType,
			Metadata:     input.metadata(),
		},
		Status:     models.StatusPending,
		Progress:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: maxRetries,
	}

	if err := s.Store.Insert(ctx, newTask); err != nil {
		return nil, fmt.Errorf("failed to insert task %s: %w", newTask.ID, err)
	}

	if err := s.Queue.PushHead(ctx, newTask.ToSnapshot()); err != nil {
		return nil, fmt.Errorf("failed to enqueue task %s: %w", newTask.ID, err)
	}

	s.Metrics.IncCreated()

	queueLen, err := s.Queue.Length(ctx, taskType)
	if err != nil {
		queueLen = -1 // best-effort — don't fail submission over a depth read
	}
	s.Events.Publish(models.TaskEvent{
		Type:      models.EventTaskQueued,
		Task:      newTask,
		Timestamp: now,
		QueueSize: queueLen,
	})

	return newTask, nil
}

// Get returns a task by id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Task, error) {
	t, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// defaultListLimit applies when the caller doesn't specify one, per
// spec.md §6's "limit (default 50)".
const defaultListLimit = 50

// List returns a page of tasks, applying the default limit/skip from
// spec.md §6 when unset.
func (s *Service) List(ctx context.Context, filter interfaces.ListFilter) ([]*models.Task, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	tasks, err := s.Store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Cancel implements spec.md §4.3's submitter-side protocol: publish,
// mark Cancelling, scrub the queue, and — if the scrub removed an
// occurrence — finalize directly to Cancelled without waiting on a
// worker.
//
// Cancelling an already-Cancelling or already-Cancelled task is accepted
// idempotently (spec.md §9's open question) rather than rejected as
// invalid-state: the record is returned unchanged and no new publish
// happens.
func (s *Service) Cancel(ctx context.Context, id string) (*models.Task, error) {
	existing, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if existing.Status == models.StatusCancelling || existing.Status == models.StatusCancelled {
		return existing, nil
	}
	if !existing.Status.CanCancel() {
		return nil, fmt.Errorf("%w: task %s is %s", ErrInvalidState, id, existing.Status)
	}

	if err := s.PubSub.PublishCancel(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to publish cancel for task %s: %w", id, err)
	}

	now := time.Now().UTC()
	if err := s.Store.Update(ctx, id, map[string]any{
		"status": models.StatusCancelling,
	}); err != nil {
		return nil, fmt.Errorf("failed to mark task %s cancelling: %w", id, err)
	}
	existing.Status = models.StatusCancelling
	existing.UpdatedAt = now

	scrubbed, err := s.Queue.Scrub(ctx, existing.TaskType, id)
	if err != nil {
		s.Logger.Warn().Err(err).Str("task_id", id).Msg("Queue scrub failed during cancellation")
	}

	if scrubbed {
		completedAt := time.Now().UTC()
		if err := s.Store.Update(ctx, id, map[string]any{
			"status":       models.StatusCancelled,
			"completed_at": completedAt,
		}); err != nil {
			return nil, fmt.Errorf("failed to finalize cancelled task %s: %w", id, err)
		}
		existing.Status = models.StatusCancelled
		existing.CompletedAt = &completedAt
	}

	s.Metrics.IncCancelled()

	s.Events.Publish(models.TaskEvent{
		Type:      models.EventTaskCancelled,
		Task:      existing,
		Timestamp: now,
	})

	return existing, nil
}
