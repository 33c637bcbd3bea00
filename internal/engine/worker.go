// Package engine implements the worker loop spec.md §4.2 describes:
// dequeue, pre-flight check, process-with-cancel race, retry/requeue,
// and durable status/progress writes. Structurally this is the teacher's
// JobManager.processLoop, reworked around a single task_type and the
// durable-record-is-truth model instead of the teacher's
// queue-is-the-source-of-truth model.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/common"
	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/metrics"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/bobmcallan/mediaqueue/internal/processor"
)

// EventPublisher mirrors task.EventPublisher without importing
// internal/task, keeping engine and task as independent packages; both
// accept any Publish implementation, such as dashboard.Hub.
type EventPublisher interface {
	Publish(event models.TaskEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.TaskEvent) {}

// Timing holds the durations spec.md §4.2/§4.3 names explicitly.
type Timing struct {
	EmptyQueueSleep     time.Duration
	DequeueErrorBackoff time.Duration
	CancelGrace         time.Duration
}

// Worker dequeues and executes tasks of exactly one TaskType.
type Worker struct {
	TaskType  models.TaskType
	Store     interfaces.DocumentStore
	Queue     interfaces.QueueStore
	PubSub    interfaces.PubSub
	Metrics   *metrics.Counters
	Events    EventPublisher
	Logger    *common.Logger
	Timing    Timing
	Processor processor.Processor
}

// New wires a Worker for taskType. events may be nil.
func New(taskType models.TaskType, store interfaces.DocumentStore, queue interfaces.QueueStore, pubsub interfaces.PubSub, counters *metrics.Counters, events EventPublisher, logger *common.Logger, timing Timing, proc processor.Processor) *Worker {
	if events == nil {
		events = noopPublisher{}
	}
	return &Worker{
		TaskType:  taskType,
		Store:     store,
		Queue:     queue,
		PubSub:    pubsub,
		Metrics:   counters,
		Events:    events,
		Logger:    logger,
		Timing:    timing,
		Processor: proc,
	}
}

// cancelFlagHolder is the processor.CancelFlag the engine hands to the
// processor: an atomic boolean the engine alone may set, and only after
// deciding to finalize the attempt as Cancelled (spec.md §4.4, §9).
type cancelFlagHolder struct {
	flag atomic.Bool
}

func (c *cancelFlagHolder) Cancelled() bool { return c.flag.Load() }
func (c *cancelFlagHolder) set()            { c.flag.Store(true) }

var _ processor.CancelFlag = (*cancelFlagHolder)(nil)

type attemptResult struct {
	outputPath string
	err        error
}

// Run starts the long-lived cancel listener and the dequeue loop. It
// blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cancelIDs, err := w.PubSub.SubscribeCancel(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to cancellation channel: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		snap, err := w.Queue.PopTail(ctx, w.TaskType)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Logger.Error().Err(err).Str("task_type", string(w.TaskType)).Msg("Dequeue error, backing off")
			if !w.sleep(ctx, w.Timing.DequeueErrorBackoff) {
				return ctx.Err()
			}
			continue
		}
		if snap == nil {
			if !w.sleep(ctx, w.Timing.EmptyQueueSleep) {
				return ctx.Err()
			}
			continue
		}

		w.handleDequeued(ctx, *snap, cancelIDs)
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// handleDequeued runs the pre-flight check and, if the task is still
// live, executes it. Errors at any stage are logged; the worker never
// dies from a per-task failure.
func (w *Worker) handleDequeued(ctx context.Context, snap models.Snapshot, cancelIDs <-chan string) {
	record, err := w.Store.Get(ctx, snap.ID)
	if err != nil {
		w.Logger.Error().Err(err).Str("task_id", snap.ID).Msg("Pre-flight read failed, discarding snapshot")
		return
	}
	if record == nil {
		w.Logger.Warn().Str("task_id", snap.ID).Msg("Pre-flight found no durable record, discarding snapshot")
		return
	}
	if record.Status.Terminal() || record.Status == models.StatusCancelling || record.Status == models.StatusCancelled {
		w.Logger.Info().Str("task_id", snap.ID).Str("status", string(record.Status)).Msg("Pre-flight found non-live status, discarding snapshot")
		return
	}

	w.execute(ctx, record, snap, cancelIDs)
}

// execute runs the process-with-cancel race (spec.md §4.2) and finalizes
// the attempt.
func (w *Worker) execute(ctx context.Context, record *models.Task, snap models.Snapshot, cancelIDs <-chan string) {
	now := time.Now().UTC()
	fields := map[string]any{"status": models.StatusProcessing}
	if record.StartedAt == nil {
		fields["started_at"] = now
		record.StartedAt = &now
	}
	if err := w.Store.Update(ctx, record.ID, fields); err != nil {
		w.Logger.Error().Err(err).Str("task_id", record.ID).Msg("Failed to mark task processing")
		return
	}
	record.Status = models.StatusProcessing

	w.Events.Publish(models.TaskEvent{Type: models.EventTaskStarted, Task: record, Timestamp: now})

	cancel := &cancelFlagHolder{}
	resultCh := make(chan attemptResult, 1)

	progressFn := func(p float64) {
		w.writeProgressAsync(record.ID, p)
		w.Events.Publish(models.TaskEvent{
			Type: models.EventTaskProgress,
			Task: &models.Task{ID: record.ID, TaskType: record.TaskType, Progress: models.ClampProgress(p)},
			Timestamp: time.Now().UTC(),
		})
	}

	go func() {
		out, err := w.Processor.Process(ctx, snap.Media, progressFn, cancel)
		resultCh <- attemptResult{outputPath: out, err: err}
	}()

	outcome := w.race(ctx, record.ID, resultCh, cancelIDs, cancel)
	switch {
	case outcome.cancelled:
		w.finalizeCancelled(ctx, record)
	case outcome.ctxDone:
		// shutting down — leave the record as Processing. The snapshot
		// has already been popped, so nothing requeues the task, and no
		// later worker start reconciles records left in Processing.
	default:
		w.finalizeResult(ctx, record, outcome.result)
	}
}

// raceOutcome is the result of racing the processor's completion against
// a matching cancellation signal (spec.md §4.2's "race(process,
// cancel-signal)").
type raceOutcome struct {
	cancelled bool
	ctxDone   bool
	result    attemptResult
}

// race waits for either the processor's result or a cancellation
// matching taskID, ignoring cancel ids for other tasks — every worker
// receives every cancel broadcast (spec.md §4.3), since PSUBSCRIBE
// task:cancel:* is not scoped to one task_type.
func (w *Worker) race(ctx context.Context, taskID string, resultCh <-chan attemptResult, cancelIDs <-chan string, cancel *cancelFlagHolder) raceOutcome {
	for {
		select {
		case res := <-resultCh:
			return raceOutcome{result: res}
		case id, ok := <-cancelIDs:
			if !ok {
				// Listener shut down (ctx cancelled); still wait for the
				// in-flight processor to finish rather than abandon it.
				return raceOutcome{result: <-resultCh}
			}
			if id != taskID {
				continue
			}
			cancel.set()
			w.sleep(context.Background(), w.Timing.CancelGrace)
			return raceOutcome{cancelled: true}
		case <-ctx.Done():
			return raceOutcome{ctxDone: true}
		}
	}
}

func (w *Worker) writeProgressAsync(taskID string, progress float64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.Store.Update(ctx, taskID, map[string]any{"progress": models.ClampProgress(progress)}); err != nil {
			w.Logger.Warn().Err(err).Str("task_id", taskID).Msg("Progress write failed")
		}
	}()
}

func (w *Worker) finalizeCancelled(ctx context.Context, record *models.Task) {
	now := time.Now().UTC()
	if err := w.Store.Update(ctx, record.ID, map[string]any{
		"status":       models.StatusCancelled,
		"completed_at": now,
	}); err != nil {
		w.Logger.Error().Err(err).Str("task_id", record.ID).Msg("Failed to finalize cancelled task")
		return
	}
	record.Status = models.StatusCancelled
	record.CompletedAt = &now
	w.Events.Publish(models.TaskEvent{Type: models.EventTaskCancelled, Task: record, Timestamp: now})
}

func (w *Worker) finalizeResult(ctx context.Context, record *models.Task, res attemptResult) {
	if res.err == nil {
		w.finalizeCompleted(ctx, record, res.outputPath)
		return
	}
	w.finalizeFailureOrRequeue(ctx, record, res.err)
}

func (w *Worker) finalizeCompleted(ctx context.Context, record *models.Task, outputPath string) {
	now := time.Now().UTC()
	if err := w.Store.Update(ctx, record.ID, map[string]any{
		"status":       models.StatusCompleted,
		"progress":     1.0,
		"output_path":  outputPath,
		"completed_at": now,
	}); err != nil {
		w.Logger.Error().Err(err).Str("task_id", record.ID).Msg("Failed to finalize completed task")
		return
	}
	record.Status = models.StatusCompleted
	record.OutputPath = outputPath
	record.CompletedAt = &now
	w.Metrics.IncCompleted()
	w.Events.Publish(models.TaskEvent{Type: models.EventTaskCompleted, Task: record, Timestamp: now})
}

func (w *Worker) finalizeFailureOrRequeue(ctx context.Context, record *models.Task, procErr error) {
	retryCount := record.RetryCount + 1

	if retryCount < record.MaxRetries {
		if err := w.Store.Update(ctx, record.ID, map[string]any{
			"status":      models.StatusPending,
			"error":       procErr.Error(),
			"retry_count": retryCount,
		}); err != nil {
			w.Logger.Error().Err(err).Str("task_id", record.ID).Msg("Failed to mark task pending for retry")
			return
		}
		record.Status = models.StatusPending
		record.RetryCount = retryCount
		record.Error = procErr.Error()

		snap := record.ToSnapshot()
		if err := w.Queue.PushHead(ctx, snap); err != nil {
			w.Logger.Error().Err(err).Str("task_id", record.ID).Msg("Failed to requeue task")
			return
		}
		return
	}

	now := time.Now().UTC()
	if err := w.Store.Update(ctx, record.ID, map[string]any{
		"status":       models.StatusFailed,
		"error":        procErr.Error(),
		"retry_count":  retryCount,
		"completed_at": now,
	}); err != nil {
		w.Logger.Error().Err(err).Str("task_id", record.ID).Msg("Failed to finalize failed task")
		return
	}
	record.Status = models.StatusFailed
	record.RetryCount = retryCount
	record.Error = procErr.Error()
	record.CompletedAt = &now
	w.Metrics.IncFailed()
	w.Events.Publish(models.TaskEvent{Type: models.EventTaskFailed, Task: record, Timestamp: now})
}
