package handlers

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cliparr/internal/models"
)

func TestSystemHandler_GetSystem_NoBroker(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewSystemHandler("1.2.3", nil, logger)

	out, err := h.GetSystem(context.Background(), &GetSystemInput{})
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.Equal(t, runtime.Version(), out.Body.GoVersion)
	assert.Greater(t, out.Body.Goroutines, 0)
	assert.Greater(t, out.Body.CPU.Cores, 0)
	assert.Zero(t, out.Body.QueueDepth)
	assert.Empty(t, out.Body.Workers)
}

func TestSystemHandler_GetSystem_QueueAndWorkers(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()

	require.NoError(t, broker.Enqueue(ctx, &models.JobRequest{
		JobID:      "sys-1",
		SourcePath: "/tmp/a.mp4",
	}))
	require.NoError(t, broker.Enqueue(ctx, &models.JobRequest{
		JobID:      "sys-2",
		SourcePath: "/tmp/b.mp4",
	}))
	require.NoError(t, broker.RegisterWorker(ctx, "w1"))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewSystemHandler("dev", broker, logger)

	out, err := h.GetSystem(ctx, &GetSystemInput{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), out.Body.QueueDepth)
	require.Len(t, out.Body.Workers, 1)

	w := out.Body.Workers[0]
	assert.Equal(t, "w1", w.Name)
	assert.Equal(t, "default", w.Queue)
	assert.Equal(t, os.Getpid(), w.PID)
	assert.True(t, w.Alive)

	_, err = time.Parse(time.RFC3339, w.StartedAt)
	assert.NoError(t, err)
	_, err = time.Parse(time.RFC3339, w.LastBeat)
	assert.NoError(t, err)
}

func TestSystemHandler_GetSystem_DeadWorker(t *testing.T) {
	broker := newTestBroker(t)
	ctx := context.Background()
	require.NoError(t, broker.RegisterWorker(ctx, "w-dead"))
	require.NoError(t, broker.DeregisterWorker(ctx, "w-dead"))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewSystemHandler("dev", broker, logger)

	out, err := h.GetSystem(ctx, &GetSystemInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Body.Workers)
}
