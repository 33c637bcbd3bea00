package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/bobmcallan/mediaqueue/internal/processor"
)

// fakeStore mirrors internal/task's test fake — duplicated here rather
// than exported cross-package, since each package's tests own their
// fakes independently (teacher's packages don't share test doubles
// across package boundaries either).
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]*models.Task)}
}

func (f *fakeStore) put(t *models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tasks[t.ID] = &cp
}

func (f *fakeStore) Insert(_ context.Context, t *models.Task) error {
	f.put(t)
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

func (f *fakeStore) List(context.Context, interfaces.ListFilter) ([]*models.Task, error) {
	return nil, nil
}

func (f *fakeStore) Update(_ context.Context, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return errors.New("not found")
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
		case "retry_count":
			t.RetryCount = v.(uint)
		case "started_at":
			val := v.(time.Time)
			t.StartedAt = &val
		case "completed_at":
			val := v.(time.Time)
			t.CompletedAt = &val
		}
	}
	return nil
}

func (f *fakeStore) CountByStatus(context.Context, *models.Status) (int64, error) { return 0, nil }
func (f *fakeStore) Ping(context.Context) error                                   { return nil }
func (f *fakeStore) Close(context.Context) error                                  { return nil }

// fakeQueue is a single-task_type in-memory deque.
type fakeQueue struct {
	mu    sync.Mutex
	items []models.Snapshot
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{}
}

func (f *fakeQueue) PushHead(_ context.Context, snap models.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([]models.Snapshot{snap}, f.items...)
	return nil
}

func (f *fakeQueue) PopTail(_ context.Context, _ models.TaskType) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return nil, nil
	}
	last := f.items[len(f.items)-1]
	f.items = f.items[:len(f.items)-1]
	return &last, nil
}

func (f *fakeQueue) Scrub(context.Context, models.TaskType, string) (bool, error) { return false, nil }
func (f *fakeQueue) Length(context.Context, models.TaskType) (int64, error)       { return int64(len(f.items)), nil }
func (f *fakeQueue) Close() error                                                 { return nil }

// fakePubSub's SubscribeCancel returns a channel the test controls
// directly via the returned send side.
type fakePubSub struct {
	ch chan string
}

func newFakePubSub() (*fakePubSub, chan string) {
	ch := make(chan string, 100)
	return &fakePubSub{ch: ch}, ch
}

func (f *fakePubSub) PublishCancel(context.Context, string) error { return nil }

func (f *fakePubSub) SubscribeCancel(ctx context.Context) (<-chan string, error) {
	return f.ch, nil
}

// fakeProcessor lets tests script a deterministic outcome.
type fakeProcessor struct {
	behavior func(ctx context.Context, media models.MediaFile, progressFn processor.ProgressFunc, cancel processor.CancelFlag) (string, error)
}

func (f *fakeProcessor) Process(ctx context.Context, media models.MediaFile, progressFn processor.ProgressFunc, cancel processor.CancelFlag) (string, error) {
	return f.behavior(ctx, media, progressFn, cancel)
}
