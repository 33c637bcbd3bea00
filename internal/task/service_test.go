package task

import (
	"context"
	"errors"
	"testing"

	"github.com/bobmcallan/mediaqueue/internal/common"
	"github.com/bobmcallan/mediaqueue/internal/interfaces"
	"github.com/bobmcallan/mediaqueue/internal/metrics"
	"github.com/bobmcallan/mediaqueue/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *fakeStore, *fakeQueue, *fakePubSub) {
	store := newFakeStore()
	queue := newFakeQueue()
	pubsub := newFakePubSub()
	svc := NewService(store, queue, pubsub, metrics.New(), nil, common.NewSilentLogger(), models.DefaultMaxRetries)
	return svc, store, queue, pubsub
}

func validInput() CreateTaskInput {
	return CreateTaskInput{
		TaskType:     "video",
		FilePath:     "/in/a.mp4",
		FileSize:     1,
		OriginalName: "a.mp4",
		MimeType:     "video/mp4",
		Options:      map[string]string{"video_codec": "libx264"},
	}
}

func TestSubmitHappyPath(t *testing.T) {
	svc, store, queue, _ := newTestService()
	ctx := context.Background()

	got, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, got.Status)
	require.NotEmpty(t, got.ID)

	stored, err := store.Get(ctx, got.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	n, err := queue.Length(ctx, models.TaskTypeVideo)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.Equal(t, int64(1), svc.Metrics.Read().Created)
}

func TestSubmitRejectsInvalidTaskType(t *testing.T) {
	svc, store, queue, _ := newTestService()
	ctx := context.Background()

	input := validInput()
	input.TaskType = "pdf"

	_, err := svc.Submit(ctx, input)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))

	n, _ := store.CountByStatus(ctx, nil)
	require.Equal(t, int64(0), n)

	qlen, _ := queue.Length(ctx, models.TaskTypeVideo)
	require.Equal(t, int64(0), qlen)
}

func TestSubmitRejectsEmptyFilePath(t *testing.T) {
	svc, _, _, _ := newTestService()
	input := validInput()
	input.FilePath = ""

	_, err := svc.Submit(context.Background(), input)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSubmitRejectsImageQualityAboveBound(t *testing.T) {
	svc, _, _, _ := newTestService()
	input := CreateTaskInput{
		TaskType:     "image",
		FilePath:     "/in/a.jpg",
		OriginalName: "a.jpg",
		MimeType:     "image/jpeg",
		Options:      map[string]string{"quality": "150"},
	}

	_, err := svc.Submit(context.Background(), input)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSubmitAcceptsImageQualityAtBound(t *testing.T) {
	svc, _, _, _ := newTestService()
	input := CreateTaskInput{
		TaskType:     "image",
		FilePath:     "/in/a.jpg",
		OriginalName: "a.jpg",
		MimeType:     "image/jpeg",
		Options:      map[string]string{"quality": "100"},
	}

	got, err := svc.Submit(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "100", got.Media.Metadata["quality"])
}

func TestSubmitIgnoresUnrecognizedOptionKeys(t *testing.T) {
	svc, _, _, _ := newTestService()
	input := validInput()
	input.Options["unknown_key"] = "whatever"

	got, err := svc.Submit(context.Background(), input)
	require.NoError(t, err)
	_, present := got.Media.Metadata["unknown_key"]
	require.False(t, present)
	require.Equal(t, "libx264", got.Media.Metadata["video_codec"])
}

func TestSubmissionRoundTripCountsMatch(t *testing.T) {
	svc, store, queue, _ := newTestService()
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		_, err := svc.Submit(ctx, validInput())
		require.NoError(t, err)
	}

	total, err := store.CountByStatus(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(n), total)

	qlen, err := queue.Length(ctx, models.TaskTypeVideo)
	require.NoError(t, err)
	require.Equal(t, int64(n), qlen)
}

func TestGetNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Get(context.Background(), "nonexistent")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCancelPreDispatchScrubsQueueAndFinalizes(t *testing.T) {
	svc, store, queue, pubsub := newTestService()
	ctx := context.Background()

	input := validInput()
	input.TaskType = "audio"
	got, err := svc.Submit(ctx, input)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, got.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)

	stored, err := store.Get(ctx, got.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, stored.Status)

	qlen, _ := queue.Length(ctx, models.TaskTypeAudio)
	require.Equal(t, int64(0), qlen)

	require.Contains(t, pubsub.published, got.ID)
	require.Equal(t, int64(1), svc.Metrics.Read().Cancelled)
}

func TestCancelAfterDequeueLeavesCancellingForWorker(t *testing.T) {
	svc, store, queue, _ := newTestService()
	ctx := context.Background()

	got, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	// Simulate a worker having already dequeued the snapshot.
	_, err = queue.PopTail(ctx, models.TaskTypeVideo)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, got.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelling, cancelled.Status)

	stored, err := store.Get(ctx, got.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelling, stored.Status)
}

func TestCancelRejectsTerminalStatus(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	got, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, got.ID, map[string]any{"status": models.StatusCompleted}))

	_, err = svc.Cancel(ctx, got.ID)
	require.True(t, errors.Is(err, ErrInvalidState))
}

func TestCancelIsIdempotentOnAlreadyCancelled(t *testing.T) {
	svc, _, _, pubsub := newTestService()
	ctx := context.Background()

	got, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, got.ID)
	require.NoError(t, err)
	publishedAfterFirst := len(pubsub.published)

	again, err := svc.Cancel(ctx, got.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCancelled, again.Status)
	require.Equal(t, publishedAfterFirst, len(pubsub.published), "second cancel must not re-publish")
}

func TestCancelNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Cancel(context.Background(), "nonexistent")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestListDefaultsLimit(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Submit(ctx, validInput())
		require.NoError(t, err)
	}

	got, err := svc.List(ctx, interfaces.ListFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, defaultListLimit, store.lastFilter.Limit)
}
