// Package interfaces defines the contracts the task lifecycle subsystem
// uses against its storage, queue, and pub/sub collaborators. Concrete
// implementations live under internal/store.
package interfaces

import (
	"context"

	"github.com/bobmcallan/mediaqueue/internal/models"
)

// ListFilter selects a page of tasks, optionally restricted to one status.
type ListFilter struct {
	Status *models.Status
	Limit  int
	Skip   int
}

// DocumentStore is the durable record of every Task. It owns status; the
// queue only ever holds a Snapshot.
type DocumentStore interface {
	// Insert creates a new durable record. Fails if task.ID already exists.
	Insert(ctx context.Context, task *models.Task) error

	// Get returns the durable record by id, or (nil, nil) if missing.
	Get(ctx context.Context, id string) (*models.Task, error)

	// List returns a page of tasks sorted by created_at descending.
	List(ctx context.Context, filter ListFilter) ([]*models.Task, error)

	// Update applies a partial $set update to fields, keyed by bson field
	// name (e.g. "status", "progress", "updated_at").
	Update(ctx context.Context, id string, fields map[string]any) error

	// CountByStatus counts tasks per status. A nil status counts all tasks.
	CountByStatus(ctx context.Context, status *models.Status) (int64, error)

	// Ping verifies connectivity for health checks.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

// QueueStore is the per-task-type persistent deque of Snapshots awaiting a
// worker. Producers push to the head; consumers pop from the tail.
type QueueStore interface {
	// PushHead serializes and pushes a snapshot to the head of
	// queue:<task_type>. Used both for fresh submissions and for requeue.
	PushHead(ctx context.Context, snap models.Snapshot) error

	// PopTail blocks up to timeout waiting for a snapshot at the tail of
	// queue:<task_type>. Returns (nil, nil) on timeout with no item.
	PopTail(ctx context.Context, taskType models.TaskType) (*models.Snapshot, error)

	// Scrub linear-scans queue:<task_type> for a snapshot with the given
	// task id and removes the first occurrence by value-equality. Returns
	// true if an occurrence was removed.
	Scrub(ctx context.Context, taskType models.TaskType, taskID string) (bool, error)

	// Length returns the current depth of queue:<task_type>.
	Length(ctx context.Context, taskType models.TaskType) (int64, error)

	Close() error
}

// PubSub is the cancellation broadcast channel. Many subscribers, one
// publisher per cancellation request.
type PubSub interface {
	// PublishCancel publishes the literal "cancel" payload on
	// task:cancel:<taskID>.
	PublishCancel(ctx context.Context, taskID string) error

	// SubscribeCancel pattern-subscribes to task:cancel:* and delivers the
	// extracted task id of every received message on the returned channel.
	// The subscription lives until ctx is cancelled.
	SubscribeCancel(ctx context.Context) (<-chan string, error)
}
