package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cliparr/internal/queue"
)

func TestHealthHandler_GetHealth(t *testing.T) {
	h := NewHealthHandler("1.2.3")

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)

	assert.Equal(t, "ok", out.Body.Status)
	assert.Equal(t, "1.2.3", out.Body.Version)
	assert.NotEmpty(t, out.Body.Timestamp)
	assert.Empty(t, out.Body.Checks)
}

func TestHealthHandler_GetHealth_BrokerCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := queue.NewWithClient(client, "cliparr-test", "default", logger)

	h := NewHealthHandler("dev").WithBroker(broker)

	out, err := h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Body.Status)
	assert.Equal(t, "ok", out.Body.Checks["redis"])

	// A dead broker degrades the service but health still answers.
	mr.Close()
	out, err = h.GetHealth(context.Background(), &HealthInput{})
	require.NoError(t, err)
	assert.Equal(t, "degraded", out.Body.Status)
	assert.Contains(t, out.Body.Checks["redis"], "error")
}
