package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cliparr/internal/models"
)

func newTestBroker(t *testing.T) (*miniredis.Miniredis, *Broker) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mr, NewWithClient(client, "cliparr-test", "default", logger)
}

func testRequest(jobID string) *models.JobRequest {
	req := &models.JobRequest{
		JobID:      jobID,
		SourcePath: "/tmp/input.mp4",
		Template:   "progressive",
		Layout:     models.LayoutFit,
	}
	req.ApplyDefaults()
	return req
}

func TestBroker_EnqueueAndGet(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))

	depth, err := b.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	status, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateQueued, status.State)
	assert.False(t, status.EnqueuedAt.IsZero())
	assert.True(t, status.StartedAt.IsZero())
	assert.Nil(t, status.Result)
	assert.Nil(t, status.Error)
}

func TestBroker_EnqueueDuplicate(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))

	err := b.Enqueue(ctx, testRequest("job-1"))
	assert.ErrorIs(t, err, ErrDuplicateJob)

	// The duplicate must not grow the queue.
	depth, err := b.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestBroker_EnqueueAfterTerminal(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))
	claim, err := b.DequeueBlocking(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, claim.JobID, &models.JobResult{JobID: claim.JobID, TotalClips: 2}))

	// A terminal leftover is replaced, not rejected.
	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))

	status, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateQueued, status.State)
	assert.Nil(t, status.Result, "stale result must not survive re-enqueue")
}

func TestBroker_DequeueBlocking_FIFO(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	for _, id := range []string{"job-a", "job-b", "job-c"} {
		require.NoError(t, b.Enqueue(ctx, testRequest(id)))
	}

	for _, want := range []string{"job-a", "job-b", "job-c"} {
		claim, err := b.DequeueBlocking(ctx, "w1", time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, claim.JobID)

		req, err := claim.Request()
		require.NoError(t, err)
		assert.Equal(t, want, req.JobID)
	}

	status, err := b.Get(ctx, "job-a")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateProcessing, status.State)
	assert.Equal(t, "w1", status.Worker)
	assert.False(t, status.StartedAt.IsZero())
}

func TestBroker_DequeueBlocking_Empty(t *testing.T) {
	_, b := newTestBroker(t)

	_, err := b.DequeueBlocking(context.Background(), "w1", 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoJob)
}

func TestBroker_UpdateProgress(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))
	_, err := b.DequeueBlocking(ctx, "w1", time.Second)
	require.NoError(t, err)

	snap := models.NewProgress(35, "Transcription", "transcribing audio")
	require.NoError(t, b.UpdateProgress(ctx, "job-1", snap))

	status, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 35, status.Progress.Percent)
	assert.Equal(t, "Transcription", status.Progress.Stage)
	assert.Equal(t, "transcribing audio", status.Progress.Message)
}

func TestBroker_CompleteIsIdempotent(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))
	_, err := b.DequeueBlocking(ctx, "w1", time.Second)
	require.NoError(t, err)

	result := &models.JobResult{JobID: "job-1", TotalClips: 3}
	require.NoError(t, b.Complete(ctx, "job-1", result))

	// A late failure report must not overwrite the first outcome.
	require.NoError(t, b.Fail(ctx, "job-1", &models.JobError{Kind: "late", Message: "ignored"}))

	status, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateCompleted, status.State)
	require.NotNil(t, status.Result)
	assert.Equal(t, 3, status.Result.TotalClips)
	assert.Nil(t, status.Error)
	assert.False(t, status.EndedAt.IsZero())
}

func TestBroker_FailRecordsError(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))
	_, err := b.DequeueBlocking(ctx, "w1", time.Second)
	require.NoError(t, err)

	require.NoError(t, b.Fail(ctx, "job-1", &models.JobError{
		Kind:    "transcription",
		Message: "asr server unreachable",
	}))

	status, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFailed, status.State)
	require.NotNil(t, status.Error)
	assert.Equal(t, "transcription", status.Error.Kind)
	assert.Equal(t, "asr server unreachable", status.Error.Message)
}

func TestBroker_TerminalRetention(t *testing.T) {
	mr, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))
	_, err := b.DequeueBlocking(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, "job-1", &models.JobResult{JobID: "job-1"}))

	mr.FastForward(25 * time.Hour)

	status, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateNotFound, status.State)
}

func TestBroker_GetUnknown(t *testing.T) {
	_, b := newTestBroker(t)

	status, err := b.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateNotFound, status.State)
	assert.Equal(t, "nope", status.JobID)
}

func TestBroker_Cancel(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	ok, err := b.RequestCancel(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ok, "cancel on unknown job")

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))
	ok, err = b.RequestCancel(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, b.CancelRequested(ctx, "job-1"))

	_, err = b.DequeueBlocking(ctx, "w1", time.Second)
	require.NoError(t, err)
	require.NoError(t, b.Complete(ctx, "job-1", &models.JobResult{JobID: "job-1"}))

	ok, err = b.RequestCancel(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ok, "cancel on terminal job")
}

func TestBroker_ReleaseStale(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))
	claim, err := b.DequeueBlocking(ctx, "ghost", time.Second)
	require.NoError(t, err)
	require.Equal(t, "job-1", claim.JobID)

	// The claiming worker never registered, so its claim is stale.
	released, err := b.ReleaseStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	status, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateQueued, status.State)
	assert.Empty(t, status.Worker)

	// The released job can be claimed again.
	claim, err = b.DequeueBlocking(ctx, "w2", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-1", claim.JobID)
}

func TestBroker_ReleaseStale_SkipsLiveWorker(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, b.RegisterWorker(ctx, "w1"))
	require.NoError(t, b.Enqueue(ctx, testRequest("job-1")))
	_, err := b.DequeueBlocking(ctx, "w1", time.Second)
	require.NoError(t, err)

	released, err := b.ReleaseStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, released)

	status, err := b.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateProcessing, status.State)
}

func TestBroker_ReleaseStale_PrunesVanishedJobs(t *testing.T) {
	_, b := newTestBroker(t)
	ctx := context.Background()

	// Simulate a running-set entry whose job hash expired under retention.
	require.NoError(t, b.client.SAdd(ctx, b.runningKey(), "gone-job").Err())

	released, err := b.ReleaseStale(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, released)

	members, err := b.client.SMembers(ctx, b.runningKey()).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestClaim_RequestCorruptPayload(t *testing.T) {
	claim := &Claim{JobID: "job-1", RawPayload: []byte("{not json")}
	_, err := claim.Request()
	assert.Error(t, err)
}
