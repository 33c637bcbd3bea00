package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/models"
)

// fakeStore is an in-memory interfaces.DocumentStore, standing in for
// mongostore.Store in tests that don't need a real database.
type fakeStore struct {
	mu         sync.Mutex
	tasks      map[string]*models.Task
	lastFilter interfaces.ListFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]*models.Task)}
}

func (f *fakeStore) Insert(_ context.Context, t *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.tasks[t.ID]; exists {
		return errDuplicate
	}
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) List(_ context.Context, filter interfaces.ListFilter) ([]*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	out := make([]*models.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return errNotFoundInternal
	}
	for k, v := range fields {
		switch k {
		case "status":
			t.Status = v.(models.Status)
		case "progress":
			t.Progress = v.(float64)
		case "error":
			t.Error = v.(string)
		case "output_path":
			t.OutputPath = v.(string)
		case "completed_at":
			val := v.(time.Time)
			t.CompletedAt = &val
		case "started_at":
			val := v.(time.Time)
			t.StartedAt = &val
		case "retry_count":
			t.RetryCount = v.(uint)
		}
	}
	return nil
}

func (f *fakeStore) CountByStatus(_ context.Context, status *models.Status) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.tasks {
		if status == nil || t.Status == *status {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Ping(context.Context) error  { return nil }
func (f *fakeStore) Close(context.Context) error { return nil }

// fakeQueue is an in-memory interfaces.QueueStore: a map of slices acting
// as deques, head = index 0.
type fakeQueue struct {
	mu    sync.Mutex
	lists map[models.TaskType][]models.Snapshot
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{lists: make(map[models.TaskType][]models.Snapshot)}
}

func (f *fakeQueue) PushHead(_ context.Context, snap models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[snap.TaskType] = append([]models.Snapshot{snap}, f.lists[snap.TaskType]...)
	return nil
}

func (f *fakeQueue) PopTail(_ context.Context, taskType models.TaskType) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[taskType]
	if len(list) == 0 {
		return nil, nil
	}
	last := list[len(list)-1]
	f.lists[taskType] = list[:len(list)-1]
	return &last, nil
}

func (f *fakeQueue) Scrub(_ context.Context, taskType models.TaskType, taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[taskType]
	for i, snap := range list {
		if snap.ID == taskID {
			f.lists[taskType] = append(list[:i], list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeQueue) Length(_ context.Context, taskType models.TaskType) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.lists[taskType])), nil
}

func (f *fakeQueue) Close() error { return nil }

// fakePubSub records published cancel ids; SubscribeCancel is unused by
// the task-service tests (the engine tests exercise it).
type fakePubSub struct {
	mu        sync.Mutex
	published []string
}

func newFakePubSub() *fakePubSub {
	return &fakePubSub{}
}

func (f *fakePubSub) PublishCancel(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, taskID)
	return nil
}

func (f *fakePubSub) SubscribeCancel(ctx context.Context) (<-chan string, error) {
	ch := make(chan string)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

var (
	errDuplicate        = errors.New("task already exists")
	errNotFoundInternal = errors.New("task not found")
)
