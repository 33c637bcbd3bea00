// Package models defines the entities shared across the task queue.
package models

import "time"

// TaskType identifies which processor a task is routed to.
type TaskType string

const (
	TaskTypeVideo TaskType = "video"
	TaskTypeAudio TaskType = "audio"
	TaskTypeImage TaskType = "image"
)

// Valid reports whether t is one of the recognized task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeVideo, TaskTypeAudio, TaskTypeImage:
		return true
	default:
		return false
	}
}

// Status is the task's position in the lifecycle state machine.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether s is a terminal status — no further transitions allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// MediaFile describes the input file a task operates on. Immutable after
// task creation.
type MediaFile struct {
	FileID       string            `json:"file_id" bson:"file_id"`
	MediaType    TaskType          `json:"media_type" bson:"media_type"`
	FilePath     string            `json:"file_path" bson:"file_path"`
	FileSize     int64             `json:"file_size" bson:"file_size"`
	OriginalName string            `json:"original_name" bson:"original_name"`
	MimeType     string            `json:"mime_type" bson:"mime_type"`
	Metadata     map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// DefaultMaxRetries is applied to tasks that don't specify one explicitly.
const DefaultMaxRetries = 3

// Task is the central entity of the queue: a unit of media-processing work
// with an identity, a lifecycle, and a type. The document store owns the
// durable record; the queue only ever holds a serialized Snapshot of it.
type Task struct {
	ID          string     `json:"id" bson:"task_id"`
	TaskType    TaskType   `json:"task_type" bson:"task_type"`
	Media       MediaFile  `json:"media" bson:"media"`
	Status      Status     `json:"status" bson:"status"`
	Progress    float64    `json:"progress" bson:"progress"`
	Error       string     `json:"error,omitempty" bson:"error,omitempty"`
	OutputPath  string     `json:"output_path,omitempty" bson:"output_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	RetryCount  uint       `json:"retry_count" bson:"retry_count"`
	MaxRetries  uint       `json:"max_retries" bson:"max_retries"`

	// Version is incremented by the Mongo store on every durable update;
	// new tasks start at 0. Nothing reads it: the engine and the
	// cancellation path both converge on last-writer-wins and do not
	// detect or log write races.
	Version int `json:"version" bson:"version"`
}

// ClampProgress clamps p into [0,1], the invariant Task.Progress must hold
// at every observed read.
func ClampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// CanCancel reports whether a cancellation request against this status is
// accepted. Completed and Failed are terminal; cancellation is rejected.
// Cancelling an already-Cancelling or already-Cancelled task is treated as
// an idempotent no-op by the caller, not rejected here.
func (s Status) CanCancel() bool {
	return s != StatusCompleted && s != StatusFailed
}

// Snapshot is the serialized form of a Task pushed onto a queue at
// submission or requeue time. It carries the immutable fields and the
// options bag, plus the retry counters as they were at push time; it has
// no status/progress/error/output fields. Workers always re-read the
// durable record (the pre-flight check) before trusting anything but Media.
type Snapshot struct {
	ID          string    `json:"id"`
	TaskType    TaskType  `json:"task_type"`
	Media       MediaFile `json:"media"`
	RetryCount  uint      `json:"retry_count"`
	MaxRetries  uint      `json:"max_retries"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ToSnapshot captures the queueable portion of a Task.
func (t *Task) ToSnapshot() Snapshot {
	return Snapshot{
		ID:          t.ID,
		TaskType:    t.TaskType,
		Media:       t.Media,
		RetryCount:  t.RetryCount,
		MaxRetries:  t.MaxRetries,
		SubmittedAt: time.Now(),
	}
}

// QueueKey returns the Redis list key for a task_type's queue.
func QueueKey(t TaskType) string {
	return "queue:" + string(t)
}

// CancelChannel returns the pub/sub channel a given task's cancellation is
// published on.
func CancelChannel(taskID string) string {
	return "task:cancel:" + taskID
}

// CancelChannelPattern is the PSUBSCRIBE pattern workers listen on.
const CancelChannelPattern = "task:cancel:*"

// CancelPayload is the literal message body published on a cancel channel.
const CancelPayload = "cancel"
