package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Worker registration hash field names.
const (
	workerFieldHost      = "host"
	workerFieldPID       = "pid"
	workerFieldQueue     = "queue"
	workerFieldStartedAt = "started_at"
	workerFieldBeat      = "beat"
)

// WorkerInfo describes one registered worker.
type WorkerInfo struct {
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	PID       int       `json:"pid"`
	Queue     string    `json:"queue"`
	StartedAt time.Time `json:"started_at"`
	LastBeat  time.Time `json:"last_beat"`
}

// Alive reports whether the worker heartbeat is fresher than maxAge.
func (w WorkerInfo) Alive(maxAge time.Duration) bool {
	return !w.LastBeat.IsZero() && time.Since(w.LastBeat) <= maxAge
}

// RegisterWorker claims the given worker name. A stale registration left by
// a crashed process is repaired automatically; a registration with a live
// heartbeat is rejected with ErrWorkerRegistered so that two workers never
// share a name.
func (b *Broker) RegisterWorker(ctx context.Context, name string) error {
	key := b.workerKey(name)

	beat, err := b.client.HGet(ctx, key, workerFieldBeat).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return brokerErr("register worker", err)
	}
	if err == nil {
		if beatTime := parseUnixSeconds(beat); time.Since(beatTime) <= b.heartbeatTTL {
			return fmt.Errorf("%w: %s", ErrWorkerRegistered, name)
		}
		// Stale registration from a dead process: repair and continue.
		b.logger.Warn("repairing stale worker registration", slog.String("worker", name))
		if err := b.ClearWorker(ctx, name); err != nil {
			return err
		}
	}

	host, _ := os.Hostname()
	now := time.Now().UTC()

	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, key,
		workerFieldHost, host,
		workerFieldPID, os.Getpid(),
		workerFieldQueue, b.queue,
		workerFieldStartedAt, now.Format(time.RFC3339Nano),
		workerFieldBeat, formatUnixSeconds(now),
	)
	pipe.Expire(ctx, key, b.heartbeatTTL)
	pipe.SAdd(ctx, b.workerIndexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return brokerErr("register worker", err)
	}

	b.logger.Info("worker registered",
		slog.String("worker", name),
		slog.String("host", host),
		slog.String("queue", b.queue),
	)
	return nil
}

// Heartbeat refreshes the worker registration TTL and beat timestamp.
func (b *Broker) Heartbeat(ctx context.Context, name string) error {
	key := b.workerKey(name)
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, key, workerFieldBeat, formatUnixSeconds(time.Now().UTC()))
	pipe.Expire(ctx, key, b.heartbeatTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return brokerErr("heartbeat", err)
	}
	return nil
}

// DeregisterWorker removes the registration on clean shutdown.
func (b *Broker) DeregisterWorker(ctx context.Context, name string) error {
	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.workerKey(name))
	pipe.SRem(ctx, b.workerIndexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return brokerErr("deregister worker", err)
	}
	b.logger.Info("worker deregistered", slog.String("worker", name))
	return nil
}

// ClearWorker force-deletes a worker registration hash. This is the repair
// path for a stale entry that would otherwise block a restarted worker.
func (b *Broker) ClearWorker(ctx context.Context, name string) error {
	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.workerKey(name))
	pipe.SRem(ctx, b.workerIndexKey(), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return brokerErr("clear worker", err)
	}
	return nil
}

// ListWorkers returns every known worker registration. Names whose hash has
// expired are pruned from the index as they are encountered.
func (b *Broker) ListWorkers(ctx context.Context) ([]WorkerInfo, error) {
	names, err := b.client.SMembers(ctx, b.workerIndexKey()).Result()
	if err != nil {
		return nil, brokerErr("list workers", err)
	}

	out := make([]WorkerInfo, 0, len(names))
	for _, name := range names {
		fields, err := b.client.HGetAll(ctx, b.workerKey(name)).Result()
		if err != nil {
			continue
		}
		if len(fields) == 0 {
			b.client.SRem(ctx, b.workerIndexKey(), name)
			continue
		}
		pid, _ := strconv.Atoi(fields[workerFieldPID])
		out = append(out, WorkerInfo{
			Name:      name,
			Host:      fields[workerFieldHost],
			PID:       pid,
			Queue:     fields[workerFieldQueue],
			StartedAt: parseBrokerTime(fields[workerFieldStartedAt]),
			LastBeat:  parseUnixSeconds(fields[workerFieldBeat]),
		})
	}
	return out, nil
}

// workerAlive reports whether the named worker has a heartbeat fresher than
// maxAge. A missing registration counts as dead.
func (b *Broker) workerAlive(ctx context.Context, name string, maxAge time.Duration) bool {
	beat, err := b.client.HGet(ctx, b.workerKey(name), workerFieldBeat).Result()
	if err != nil {
		return false
	}
	beatTime := parseUnixSeconds(beat)
	return !beatTime.IsZero() && time.Since(beatTime) <= maxAge
}

func formatUnixSeconds(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func parseUnixSeconds(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
