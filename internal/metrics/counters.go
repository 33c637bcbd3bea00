// Package metrics holds the process-local aggregate counters spec.md
// §4.5 describes: created, completed, failed, cancelled — plain atomic
// counters, no ecosystem metrics library wired (see DESIGN.md).
package metrics

import (
	"context"
	"sync/atomic"

	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/models"
)

// Counters is a process-local snapshot of task counts by terminal/creation
// event. Safe for concurrent use.
type Counters struct {
	created   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

// Snapshot is a read-only copy of the counter values at one instant.
type Snapshot struct {
	Created   int64 `json:"created"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

func New() *Counters {
	return &Counters{}
}

func (c *Counters) IncCreated()   { c.created.Add(1) }
func (c *Counters) IncCompleted() { c.completed.Add(1) }
func (c *Counters) IncFailed()    { c.failed.Add(1) }
func (c *Counters) IncCancelled() { c.cancelled.Add(1) }

// Read returns the current counter values.
func (c *Counters) Read() Snapshot {
	return Snapshot{
		Created:   c.created.Load(),
		Completed: c.completed.Load(),
		Failed:    c.failed.Load(),
		Cancelled: c.cancelled.Load(),
	}
}

// Reset zeroes all counters.
func (c *Counters) Reset() {
	c.created.Store(0)
	c.completed.Store(0)
	c.failed.Store(0)
	c.cancelled.Store(0)
}

// Sync re-derives created/completed/failed/cancelled from the document
// store's count-by-status operation, overwriting the in-memory values.
// "created" is approximated as the total document count, since every task
// that ever existed was created exactly once.
func (c *Counters) Sync(ctx context.Context, store interfaces.DocumentStore) error {
	total, err := store.CountByStatus(ctx, nil)
	if err != nil {
		return err
	}

	completedStatus := models.StatusCompleted
	completed, err := store.CountByStatus(ctx, &completedStatus)
	if err != nil {
		return err
	}

	failedStatus := models.StatusFailed
	failed, err := store.CountByStatus(ctx, &failedStatus)
	if err != nil {
		return err
	}

	cancelledStatus := models.StatusCancelled
	cancelled, err := store.CountByStatus(ctx, &cancelledStatus)
	if err != nil {
		return err
	}

	c.created.Store(total)
	c.completed.Store(completed)
	c.failed.Store(failed)
	c.cancelled.Store(cancelled)
	return nil
}
