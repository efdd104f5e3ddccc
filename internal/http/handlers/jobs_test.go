package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cliparr/internal/models"
	"github.com/jmylchreest/cliparr/internal/queue"
)

func newTestBroker(t *testing.T) *queue.Broker {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return queue.NewWithClient(client, "cliparr-test", "default", logger)
}

func newTestJobHandler(t *testing.T) (*JobHandler, *queue.Broker) {
	t.Helper()
	broker := newTestBroker(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobHandler(broker, t.TempDir(), logger), broker
}

// multipartForm encodes fields as a multipart body with the matching header.
func multipartForm(t *testing.T, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf strings.Builder
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return strings.NewReader(buf.String()), w.FormDataContentType()
}

func TestJobHandler_SubmitJob(t *testing.T) {
	h, broker := newTestJobHandler(t)

	body, contentType := multipartForm(t, map[string]string{
		"job_id":             "job-42",
		"youtube_url":        "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"opus_template":      `{"font_size": 90}`,
		"clip_duration":      "30",
		"layout":             "fill",
		"timeframe_start":    "10",
		"timeframe_end":      "300",
		"min_clip_length":    "20",
		"max_clip_length":    "60",
		"target_clip_length": "30",
		"translate_captions": "true",
		"caption_language":   "es",
	})

	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.SubmitJob(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-42", resp["job_id"])

	status, err := broker.Get(context.Background(), "job-42")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateQueued, status.State)

	claim, err := broker.DequeueBlocking(context.Background(), "w1", 100*time.Millisecond)
	require.NoError(t, err)
	parsed, err := claim.Request()
	require.NoError(t, err)
	assert.Equal(t, models.LayoutFill, parsed.Layout)
	assert.Equal(t, 20.0, parsed.MinClipLength)
	assert.Equal(t, 300.0, parsed.TimeframeEnd)
	assert.True(t, parsed.TranslateCaption)
	assert.JSONEq(t, `{"font_size": 90}`, parsed.TemplateOverride)
}

func TestJobHandler_SubmitJob_URLEncodedForm(t *testing.T) {
	h, broker := newTestJobHandler(t)

	form := url.Values{}
	form.Set("job_id", "job-url")
	form.Set("video_url", "https://example.com/video.mp4")

	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.SubmitJob(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	status, err := broker.Get(context.Background(), "job-url")
	require.NoError(t, err)
	assert.Equal(t, models.JobStateQueued, status.State)
}

func TestJobHandler_SubmitJob_Validation(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{
			name:   "missing job_id",
			fields: map[string]string{"youtube_url": "https://youtu.be/dQw4w9WgXcQ"},
		},
		{
			name:   "missing source",
			fields: map[string]string{"job_id": "j1"},
		},
		{
			name: "invalid layout",
			fields: map[string]string{
				"job_id": "j1", "video_url": "https://example.com/v.mp4", "layout": "diagonal",
			},
		},
		{
			name: "min above max",
			fields: map[string]string{
				"job_id": "j1", "video_url": "https://example.com/v.mp4",
				"min_clip_length": "90", "max_clip_length": "30",
			},
		},
		{
			name: "timeframe end before start",
			fields: map[string]string{
				"job_id": "j1", "video_url": "https://example.com/v.mp4",
				"timeframe_start": "100", "timeframe_end": "50",
			},
		},
		{
			name: "opus_template not JSON",
			fields: map[string]string{
				"job_id": "j1", "video_url": "https://example.com/v.mp4",
				"opus_template": "{not json",
			},
		},
		{
			name: "clip_duration not numeric",
			fields: map[string]string{
				"job_id": "j1", "video_url": "https://example.com/v.mp4",
				"clip_duration": "abc",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestJobHandler(t)

			body, contentType := multipartForm(t, tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/jobs", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			h.SubmitJob(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestJobHandler_SubmitJob_Duplicate(t *testing.T) {
	h, broker := newTestJobHandler(t)

	require.NoError(t, broker.Enqueue(context.Background(), &models.JobRequest{
		JobID:      "job-dup",
		SourcePath: "/tmp/in.mp4",
	}))

	body, contentType := multipartForm(t, map[string]string{
		"job_id":    "job-dup",
		"video_url": "https://example.com/v.mp4",
	})
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.SubmitJob(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in progress")
}

func TestJobHandler_GetByID_NotFound(t *testing.T) {
	h, _ := newTestJobHandler(t)

	out, err := h.GetByID(context.Background(), &GetJobInput{ID: "never-submitted"})
	require.NoError(t, err)
	assert.Equal(t, "not_found", out.Body.Job.State)
}

func TestJobHandler_GetByID_Lifecycle(t *testing.T) {
	h, broker := newTestJobHandler(t)
	ctx := context.Background()

	require.NoError(t, broker.Enqueue(ctx, &models.JobRequest{
		JobID:      "job-life",
		SourcePath: "/tmp/in.mp4",
	}))

	// Queued jobs report as PROCESSING to pollers.
	out, err := h.GetByID(ctx, &GetJobInput{ID: "job-life"})
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING", out.Body.Job.State)
	assert.Equal(t, "Queued", out.Body.Job.Stage)

	claim, err := broker.DequeueBlocking(ctx, "w1", 100*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, broker.UpdateProgress(ctx, claim.JobID, models.NewProgress(35, "Transcription", "transcribing audio")))

	out, err = h.GetByID(ctx, &GetJobInput{ID: "job-life"})
	require.NoError(t, err)
	assert.Equal(t, "PROCESSING", out.Body.Job.State)
	assert.Equal(t, 35, out.Body.Job.Progress)
	assert.Equal(t, "Transcription", out.Body.Job.Stage)

	require.NoError(t, broker.Complete(ctx, claim.JobID, &models.JobResult{
		JobID:      "job-life",
		Clips:      []models.ClipRecord{{Index: 1, Filename: "clip_1.mp4", Status: models.ClipStatusRendered}},
		TotalClips: 1,
	}))

	out, err = h.GetByID(ctx, &GetJobInput{ID: "job-life"})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", out.Body.Job.State)
	assert.Equal(t, 100, out.Body.Job.Progress)
	require.NotNil(t, out.Body.Job.Result)
	assert.Equal(t, 1, out.Body.Job.Result.TotalClips)
}

func TestJobHandler_GetByID_Failed(t *testing.T) {
	h, broker := newTestJobHandler(t)
	ctx := context.Background()

	require.NoError(t, broker.Enqueue(ctx, &models.JobRequest{
		JobID:      "job-fail",
		SourcePath: "/tmp/in.mp4",
	}))
	claim, err := broker.DequeueBlocking(ctx, "w1", 100*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, broker.Fail(ctx, claim.JobID, &models.JobError{
		Kind:    "download",
		Message: "video unavailable",
		Trace:   "stack...",
	}))

	out, err := h.GetByID(ctx, &GetJobInput{ID: "job-fail"})
	require.NoError(t, err)
	assert.Equal(t, "FAILED", out.Body.Job.State)
	assert.Equal(t, "video unavailable", out.Body.Job.Message)
	require.NotNil(t, out.Body.Job.Error)
	assert.Equal(t, "download", out.Body.Job.Error.Kind)
	assert.Equal(t, "stack...", out.Body.Job.Error.Traceback)
}

func TestJobHandler_Cancel(t *testing.T) {
	h, broker := newTestJobHandler(t)
	ctx := context.Background()

	require.NoError(t, broker.Enqueue(ctx, &models.JobRequest{
		JobID:      "job-cancel",
		SourcePath: "/tmp/in.mp4",
	}))

	out, err := h.Cancel(ctx, &CancelJobInput{ID: "job-cancel"})
	require.NoError(t, err)
	assert.Contains(t, out.Body.Message, "job-cancel")
	assert.True(t, broker.CancelRequested(ctx, "job-cancel"))
}

func TestJobHandler_Cancel_Unknown(t *testing.T) {
	h, _ := newTestJobHandler(t)

	_, err := h.Cancel(context.Background(), &CancelJobInput{ID: "nope"})
	assert.Error(t, err)
}
